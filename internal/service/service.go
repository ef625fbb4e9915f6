// Package service contains the business rules of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces ownership, orchestrates
//	Repository (data layer)  → reads/writes the document store
//
// Services take repository interfaces, never a concrete backend, and return
// apperror values that the handler maps to HTTP statuses.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

const msgMissingFields = "Missing required fields"

// Cache is the subset of the cache client the services use. A nil
// *cache.Client satisfies it and caches nothing.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

type noCache struct{}

func (noCache) GetJSON(context.Context, string, any) bool  { return false }
func (noCache) SetJSON(context.Context, string, any) error { return nil }
func (noCache) Delete(context.Context, string) error       { return nil }

func novelCacheKey(id string) string {
	return "novel:" + id
}

// requireCaller turns an anonymous request into apperror.ErrUnauthorized.
func requireCaller(caller *auth.Caller) error {
	if caller == nil || caller.ExternalID == "" {
		return apperror.Unauthorized("Unauthorized")
	}
	return nil
}

// profileOf returns the local profile linked to the caller, or nil when the
// caller has not created one.
func profileOf(ctx context.Context, users repository.UserRepository, caller *auth.Caller) (*model.User, error) {
	user, err := users.GetByExternalID(ctx, caller.ExternalID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up profile of %s: %w", caller.ExternalID, err)
	}
	return user, nil
}

// firstMissing returns the name of the first blank value in pairs of
// (name, value), or "" when all are present.
func firstMissing(pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return pairs[i]
		}
	}
	return ""
}
