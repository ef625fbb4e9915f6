package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// UserService manages user profiles and their favorites.
//
// A profile is the local record for an identity-provider account, linked
// by ExternalID (the provider's user id). Signing up with the provider
// does not create one; the client calls Create afterwards.
//
// FAVORITES:
// The favorites list is never written through Update. AddFavorite and
// RemoveFavorite go to dedicated repository operations that edit the stored
// list in one step, so two tabs favoriting at once both land.
type UserService struct {
	users  repository.UserRepository
	novels repository.NovelRepository
	logger *slog.Logger
}

// NewUserService creates a UserService.
//
// The novels repository is only read: AddFavorite checks that the novel
// exists before it is stored on the profile.
func NewUserService(users repository.UserRepository, novels repository.NovelRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, novels: novels, logger: logger}
}

// Create registers a profile for an identity-provider account. All three
// fields are required and the email must be unused.
func (s *UserService) Create(ctx context.Context, email, name, externalID string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	externalID = strings.TrimSpace(externalID)

	if field := firstMissing("email", email, "name", name, "supabaseId", externalID); field != "" {
		return nil, apperror.ValidationFailed(field, msgMissingFields)
	}

	user := &model.User{
		Email:      email,
		Name:       name,
		ExternalID: externalID,
		Favorites:  []string{},
	}
	if err := model.Validate(user); err != nil {
		return nil, err
	}

	// Checked up front for the friendly message; the unique index still
	// catches a concurrent duplicate and Create reports it as a conflict.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("User with this email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created",
		slog.String("id", user.ID),
		slog.String("supabaseId", user.ExternalID),
	)
	return user, nil
}

// Find looks a user up by external ID, or by email when no external ID is
// given. Exactly one key is used.
func (s *UserService) Find(ctx context.Context, externalID, email string) (*model.User, error) {
	externalID = strings.TrimSpace(externalID)
	email = strings.ToLower(strings.TrimSpace(email))

	var (
		user *model.User
		err  error
	)
	switch {
	case externalID != "":
		user, err = s.users.GetByExternalID(ctx, externalID)
	case email != "":
		user, err = s.users.GetByEmail(ctx, email)
	default:
		return nil, apperror.ValidationFailed("", "Missing search parameter")
	}

	// The repository message names the lookup key; clients get a fixed one.
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFoundMessage("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return user, nil
}

// Profile returns the caller's profile, or nil if they have none yet.
func (s *UserService) Profile(ctx context.Context, caller *auth.Caller) (*model.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return profileOf(ctx, s.users, caller)
}

// ProfilePatch holds the optional profile edits; nil fields are untouched.
type ProfilePatch struct {
	Name  *string
	Bio   *string
	Image *string
}

// UpdateProfile edits the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, caller *auth.Caller, id string, patch ProfilePatch) (*model.User, error) {
	user, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.ValidationFailed("name", "name is required")
		}
		user.Name = name
	}
	if patch.Bio != nil {
		user.Bio = strings.TrimSpace(*patch.Bio)
	}
	if patch.Image != nil {
		user.Image = strings.TrimSpace(*patch.Image)
	}

	// user came from owned and its favorites may already be stale; Update
	// does not write them back.
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}
	return user, nil
}

// AddFavorite appends novelID to the user's favorites unless present.
// The novel must exist; the append itself is atomic in the store.
func (s *UserService) AddFavorite(ctx context.Context, caller *auth.Caller, id, novelID string) (*model.User, error) {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return nil, err
	}
	if _, err := s.novels.GetByID(ctx, novelID); err != nil {
		return nil, err
	}

	user, err := s.users.AddFavorite(ctx, id, novelID)
	if err != nil {
		return nil, fmt.Errorf("adding favorite to %s: %w", id, err)
	}
	return user, nil
}

// RemoveFavorite drops novelID from the user's favorites, keeping the order
// of the rest. Removing an absent favorite is a no-op.
func (s *UserService) RemoveFavorite(ctx context.Context, caller *auth.Caller, id, novelID string) (*model.User, error) {
	if _, err := s.owned(ctx, caller, id); err != nil {
		return nil, err
	}

	user, err := s.users.RemoveFavorite(ctx, id, novelID)
	if err != nil {
		return nil, fmt.Errorf("removing favorite from %s: %w", id, err)
	}
	return user, nil
}

// owned loads user id and checks it belongs to the caller.
func (s *UserService) owned(ctx context.Context, caller *auth.Caller, id string) (*model.User, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ExternalID != caller.ExternalID {
		return nil, apperror.Forbidden("You can only edit your own profile")
	}
	if user.Favorites == nil {
		user.Favorites = []string{}
	}
	return user, nil
}
