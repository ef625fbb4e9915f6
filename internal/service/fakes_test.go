package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/identity"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func callerFor(externalID string) *auth.Caller {
	return &auth.Caller{ExternalID: externalID, Email: externalID + "@x.com"}
}

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	err   error // returned by every call when set
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("User with this email already exists")
		}
		if existing.ExternalID == u.ExternalID {
			return apperror.Conflict("User with this identity already exists")
		}
	}
	u.ID = xid.New().String()
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	copied := *u
	f.users[u.ID] = &copied
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			copied.Favorites = slices.Clone(u.Favorites)
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ExternalID == externalID }, externalID)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) Update(ctx context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	stored.Name, stored.Image, stored.Bio = u.Name, u.Image, u.Bio
	return nil
}

func (f *fakeUserRepo) AddFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return f.editFavorites(userID, func(favs []string) []string {
		if slices.Contains(favs, novelID) {
			return favs
		}
		return append(favs, novelID)
	})
}

func (f *fakeUserRepo) RemoveFavorite(ctx context.Context, userID, novelID string) (*model.User, error) {
	return f.editFavorites(userID, func(favs []string) []string {
		return slices.DeleteFunc(favs, func(v string) bool { return v == novelID })
	})
}

func (f *fakeUserRepo) editFavorites(userID string, edit func([]string) []string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[userID]
	if !ok {
		return nil, apperror.NotFound("user", userID)
	}
	stored.Favorites = edit(slices.Clone(stored.Favorites))
	copied := *stored
	copied.Favorites = slices.Clone(stored.Favorites)
	if copied.Favorites == nil {
		copied.Favorites = []string{}
	}
	return &copied, nil
}

// fakeNovelRepo is an in-memory repository.NovelRepository.
type fakeNovelRepo struct {
	mu        sync.Mutex
	novels    map[string]*model.Novel
	reactions map[string]bool // novel|actor|kind
	lastList  repository.NovelFilter
	gets      int
}

func newFakeNovelRepo() *fakeNovelRepo {
	return &fakeNovelRepo{novels: map[string]*model.Novel{}, reactions: map[string]bool{}}
}

func cloneNovel(n *model.Novel) *model.Novel {
	c := *n
	c.Chapters = slices.Clone(n.Chapters)
	c.Tags = slices.Clone(n.Tags)
	return &c
}

func (f *fakeNovelRepo) Create(ctx context.Context, n *model.Novel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = xid.New().String()
	for i := range n.Chapters {
		n.Chapters[i].ID = xid.New().String()
	}
	f.novels[n.ID] = cloneNovel(n)
	return nil
}

func (f *fakeNovelRepo) GetByID(ctx context.Context, id string) (*model.Novel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	n, ok := f.novels[id]
	if !ok {
		return nil, apperror.NotFound("novel", id)
	}
	return cloneNovel(n), nil
}

func (f *fakeNovelRepo) List(ctx context.Context, filter repository.NovelFilter) ([]model.Novel, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter
	var out []model.Novel
	for _, n := range f.novels {
		if filter.Genre != "" && n.Genre != filter.Genre {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(n.Title), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, *cloneNovel(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, len(out), nil
}

func (f *fakeNovelRepo) Update(ctx context.Context, n *model.Novel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.novels[n.ID]
	if !ok {
		return apperror.NotFound("novel", n.ID)
	}
	updated := cloneNovel(n)
	updated.Chapters = existing.Chapters
	f.novels[n.ID] = updated
	return nil
}

func (f *fakeNovelRepo) AppendChapter(ctx context.Context, novelID string, c *model.Chapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.novels[novelID]
	if !ok {
		return apperror.NotFound("novel", novelID)
	}
	c.ID = xid.New().String()
	c.Order = len(n.Chapters) + 1
	n.Chapters = append(n.Chapters, *c)
	return nil
}

func (f *fakeNovelRepo) react(novelID, actor, kind string, counter func(*model.Novel) *int64, delta int64, add bool) (repository.CounterResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.novels[novelID]
	if !ok {
		return repository.CounterResult{}, apperror.NotFound("novel", novelID)
	}
	key := novelID + "|" + actor + "|" + kind
	if actor != "" && f.reactions[key] == add {
		return repository.CounterResult{Value: *counter(n)}, nil
	}
	if actor != "" {
		f.reactions[key] = add
	}
	*counter(n) += delta
	return repository.CounterResult{Value: *counter(n), Changed: true}, nil
}

func (f *fakeNovelRepo) IncrementViews(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	return f.react(novelID, actorKey, "view", func(n *model.Novel) *int64 { return &n.Views }, 1, true)
}

func (f *fakeNovelRepo) AddLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	return f.react(novelID, actorKey, "like", func(n *model.Novel) *int64 { return &n.Likes }, 1, true)
}

func (f *fakeNovelRepo) RemoveLike(ctx context.Context, novelID, actorKey string) (repository.CounterResult, error) {
	return f.react(novelID, actorKey, "like", func(n *model.Novel) *int64 { return &n.Likes }, -1, false)
}

func (f *fakeNovelRepo) HasLiked(ctx context.Context, novelID, actorKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reactions[novelID+"|"+actorKey+"|like"], nil
}

// fakePromptRepo is an in-memory repository.PromptRepository.
type fakePromptRepo struct {
	mu         sync.Mutex
	prompts    []*model.WritingPrompt
	lastFilter repository.PromptFilter
}

func (f *fakePromptRepo) Create(ctx context.Context, p *model.WritingPrompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = xid.New().String()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	copied := *p
	f.prompts = append(f.prompts, &copied)
	return nil
}

func (f *fakePromptRepo) GetByID(ctx context.Context, id string) (*model.WritingPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prompts {
		if p.ID == id {
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("writing prompt", id)
}

func (f *fakePromptRepo) List(ctx context.Context, filter repository.PromptFilter) ([]model.WritingPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	out := []model.WritingPrompt{}
	for _, p := range f.prompts {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.IsPublic != nil && p.IsPublic != *filter.IsPublic {
			continue
		}
		if filter.CreatorID != "" && p.CreatorID != filter.CreatorID {
			continue
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > repository.MaxPromptResults {
		out = out[:repository.MaxPromptResults]
	}
	return out, nil
}

func (f *fakePromptRepo) IncrementUses(ctx context.Context, id string) (*model.WritingPrompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.prompts {
		if p.ID == id {
			p.Uses++
			copied := *p
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("writing prompt", id)
}

// fakeCache is an in-memory Cache that records keys.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dst any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	return ok && json.Unmarshal(raw, dst) == nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deleted = append(c.deleted, key)
	return nil
}

// fakeProvider is an in-memory IdentityProvider.
type fakeProvider struct {
	sessions   map[string]*identity.Session // keyed by email
	err        error
	signedOut  []string
	signOutErr error
}

func (p *fakeProvider) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	return p.SignIn(ctx, email, password)
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	s, ok := p.sessions[email]
	if !ok {
		return nil, &identity.ProviderError{Status: 400, Message: "Invalid login credentials"}
	}
	return s, nil
}

func (p *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	p.signedOut = append(p.signedOut, accessToken)
	return p.signOutErr
}
