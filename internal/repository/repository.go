// Package repository declares the storage contracts the services depend on.
// Backends live in subpackages (sqlite, mongodb) and must return apperror
// values for missing documents and uniqueness violations.
package repository

import (
	"context"

	"github.com/sakif/inkwell/internal/model"
)

// MaxPromptResults caps every prompt listing.
const MaxPromptResults = 50

// UserRepository stores profiles.
type UserRepository interface {
	// Create inserts a new user. Returns apperror.ErrConflict when the email
	// or external ID is already taken.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// Update replaces name, image and bio. Favorites are left alone; they
	// change only through AddFavorite and RemoveFavorite.
	Update(ctx context.Context, user *model.User) error
	// AddFavorite appends novelID to the user's favorites unless it is
	// already there, as one atomic step, and returns the updated user.
	AddFavorite(ctx context.Context, userID, novelID string) (*model.User, error)
	// RemoveFavorite atomically drops novelID, keeping the order of the rest.
	RemoveFavorite(ctx context.Context, userID, novelID string) (*model.User, error)
}

// NovelSort selects the catalog ordering.
type NovelSort string

const (
	SortNewest  NovelSort = "newest"
	SortPopular NovelSort = "popular" // views desc
	SortLikes   NovelSort = "likes"
)

// NovelFilter is a conjunctive catalog filter; zero values are ignored.
type NovelFilter struct {
	Genre    model.Genre
	Status   model.NovelStatus
	AuthorID string
	Query    string // case-insensitive substring of title or synopsis
	Sort     NovelSort
	Limit    int
	Offset   int
}

// CounterResult reports a counter after an idempotent increment.
type CounterResult struct {
	Value   int64 // counter value after the operation
	Changed bool  // false when the actor key had already been counted
}

// NovelRepository stores novels with their chapters and counters.
type NovelRepository interface {
	Create(ctx context.Context, novel *model.Novel) error
	GetByID(ctx context.Context, id string) (*model.Novel, error)
	// List returns one page of matching novels plus the total match count.
	List(ctx context.Context, filter NovelFilter) ([]model.Novel, int, error)
	// Update replaces title, synopsis, cover, genre, status and tags.
	Update(ctx context.Context, novel *model.Novel) error
	// AppendChapter adds a chapter to the end of the novel's chapter list.
	AppendChapter(ctx context.Context, novelID string, chapter *model.Chapter) error

	// IncrementViews adds one view. A non-empty actorKey is counted at most
	// once per novel.
	IncrementViews(ctx context.Context, novelID, actorKey string) (CounterResult, error)
	// AddLike records one like per (novel, actorKey).
	AddLike(ctx context.Context, novelID, actorKey string) (CounterResult, error)
	// RemoveLike withdraws the actor's like, if any.
	RemoveLike(ctx context.Context, novelID, actorKey string) (CounterResult, error)
	HasLiked(ctx context.Context, novelID, actorKey string) (bool, error)
}

// PromptFilter is a conjunctive prompt filter. Nil/empty fields are ignored.
type PromptFilter struct {
	Category  model.PromptCategory
	IsPublic  *bool
	CreatorID string
}

// PromptRepository stores writing prompts.
type PromptRepository interface {
	Create(ctx context.Context, prompt *model.WritingPrompt) error
	GetByID(ctx context.Context, id string) (*model.WritingPrompt, error)
	// List returns at most MaxPromptResults prompts, newest first.
	List(ctx context.Context, filter PromptFilter) ([]model.WritingPrompt, error)
	// IncrementUses atomically adds one use and returns the updated prompt.
	IncrementUses(ctx context.Context, id string) (*model.WritingPrompt, error)
}

// ClampPage normalises limit/offset to the catalog bounds.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
