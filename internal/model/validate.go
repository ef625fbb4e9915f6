package model

// VALIDATION:
// Documents carry go-playground/validator tags (see the struct definitions
// in novel.go, user.go and prompt.go). The enum tags genre, novelstatus and
// promptcategory are registered here and defer to each type's Valid
// method, so the tag and the Go-side check can never disagree.

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/inkwell/internal/apperror"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so errors match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "genre", func(fl validator.FieldLevel) bool {
		return Genre(fl.Field().String()).Valid()
	})
	mustRegister(v, "novelstatus", func(fl validator.FieldLevel) bool {
		return NovelStatus(fl.Field().String()).Valid()
	})
	mustRegister(v, "promptcategory", func(fl validator.FieldLevel) bool {
		return PromptCategory(fl.Field().String()).Valid()
	})
	return v
}

// mustRegister panics at init; a bad tag name is a programming error.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("model: registering %q validation: %v", tag, err))
	}
}

// Validate checks a document against its schema tags. The first failing
// field is reported as an apperror.ErrValidation.
func Validate(doc any) error {
	err := validate.Struct(doc)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
	}
	return fmt.Errorf("model: validating document: %w", err)
}

// fieldMessage renders one validator failure as a client-facing sentence.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "genre":
		return field + " must be one of: " + JoinValues(Genres)
	case "novelstatus":
		return field + " must be one of: " + JoinValues(NovelStatuses)
	case "promptcategory":
		return field + " must be one of: " + JoinValues(PromptCategories)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// JoinValues renders an enum list the way validation messages show it,
// for example "Fantasy, Romance".
func JoinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
