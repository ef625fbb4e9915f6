package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// NovelService manages novels, their chapters and counters.
//
// CACHING:
// Novel detail documents are cached under "novel:<id>"; every write that
// changes a novel deletes that key. The cache is read-through only: a miss
// loads from the repository and fills the entry, a write never updates the
// entry in place. Listings are never cached.
//
// OWNERSHIP:
// Edits go through owned, which loads the novel and compares its author
// with the caller's local profile. Callers without a profile can read and
// react but not write.
type NovelService struct {
	novels repository.NovelRepository
	users  repository.UserRepository
	cache  Cache
	logger *slog.Logger
}

// NewNovelService wires the service. A nil cache disables caching.
func NewNovelService(novels repository.NovelRepository, users repository.UserRepository, cache Cache, logger *slog.Logger) *NovelService {
	if cache == nil {
		cache = noCache{}
	}
	return &NovelService{novels: novels, users: users, cache: cache, logger: logger}
}

// ChapterInput is the body of a new chapter.
type ChapterInput struct {
	Title   string
	Content string
}

// NovelInput is the body of a new novel with its first chapter.
type NovelInput struct {
	Title      string
	Synopsis   string
	Genre      string
	CoverImage string
	Tags       []string
	Chapter    ChapterInput
}

// Create publishes a novel owned by the caller's profile.
func (s *NovelService) Create(ctx context.Context, caller *auth.Caller, in NovelInput) (*model.Novel, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	author, err := profileOf(ctx, s.users, caller)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, apperror.Forbidden("Create a profile before publishing a novel")
	}

	title := strings.TrimSpace(in.Title)
	synopsis := strings.TrimSpace(in.Synopsis)
	chapterTitle := strings.TrimSpace(in.Chapter.Title)
	if field := firstMissing(
		"title", title,
		"synopsis", synopsis,
		"genre", in.Genre,
		"chapter.title", chapterTitle,
		"chapter.content", in.Chapter.Content,
	); field != "" {
		return nil, apperror.ValidationFailed(field, msgMissingFields)
	}

	// Validate below rejects an unknown genre with the full list of options.
	genre, _ := model.ParseGenre(in.Genre)
	cover := strings.TrimSpace(in.CoverImage)
	if cover == "" {
		cover = model.DefaultCoverImage
	}

	novel := &model.Novel{
		Title:      title,
		Synopsis:   synopsis,
		CoverImage: cover,
		Genre:      genre,
		AuthorID:   author.ID,
		Status:     model.StatusOngoing,
		Tags:       model.NormalizeTags(in.Tags),
		// A new novel always starts with exactly one chapter.
		Chapters: []model.Chapter{{
			Title:   chapterTitle,
			Content: in.Chapter.Content,
			Order:   1,
		}},
	}
	if err := model.Validate(novel); err != nil {
		return nil, err
	}

	if err := s.novels.Create(ctx, novel); err != nil {
		s.logger.Error("failed to create novel",
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating novel: %w", err)
	}

	s.logger.Info("novel created",
		slog.String("id", novel.ID),
		slog.String("author", author.ID),
	)
	return novel, nil
}

// Get returns a novel, serving it from the cache when possible.
func (s *NovelService) Get(ctx context.Context, id string) (*model.Novel, error) {
	key := novelCacheKey(id)

	// An entry that no longer decodes counts as a miss and is overwritten.
	var cached model.Novel
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	novel, err := s.novels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, novel); err != nil {
		s.logger.Warn("caching novel failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	return novel, nil
}

// NovelQuery is the raw catalog query. Genre and status "all" mean any.
type NovelQuery struct {
	Genre    string
	Status   string
	Query    string
	AuthorID string
	Sort     string
	Limit    int
	Offset   int
}

// List returns one catalog page and the total number of matches.
func (s *NovelService) List(ctx context.Context, q NovelQuery) ([]model.Novel, int, error) {
	filter := repository.NovelFilter{
		AuthorID: strings.TrimSpace(q.AuthorID),
		Query:    strings.TrimSpace(q.Query),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}

	if g := strings.TrimSpace(q.Genre); g != "" && !strings.EqualFold(g, "all") {
		genre, ok := model.ParseGenre(g)
		if !ok {
			return nil, 0, apperror.ValidationFailed("genre", "genre must be one of: "+model.JoinValues(model.Genres))
		}
		filter.Genre = genre
	}
	if st := strings.TrimSpace(q.Status); st != "" && !strings.EqualFold(st, "all") {
		status, ok := model.ParseNovelStatus(st)
		if !ok {
			return nil, 0, apperror.ValidationFailed("status", "status must be one of: "+model.JoinValues(model.NovelStatuses))
		}
		filter.Status = status
	}
	// Sort is case-insensitive; empty means newest.
	switch sort := repository.NovelSort(strings.ToLower(strings.TrimSpace(q.Sort))); sort {
	case "", repository.SortNewest, repository.SortPopular, repository.SortLikes:
		filter.Sort = sort
	default:
		return nil, 0, apperror.ValidationFailed("sort", "sort must be one of: newest, popular, likes")
	}

	novels, total, err := s.novels.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("listing novels: %w", err)
	}
	return novels, total, nil
}

// NovelPatch holds optional edits; nil fields are untouched.
type NovelPatch struct {
	Title      *string
	Synopsis   *string
	Genre      *string
	Status     *string
	CoverImage *string
	Tags       *[]string
}

// Update edits a novel owned by the caller.
func (s *NovelService) Update(ctx context.Context, caller *auth.Caller, id string, patch NovelPatch) (*model.Novel, error) {
	novel, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		novel.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Synopsis != nil {
		novel.Synopsis = strings.TrimSpace(*patch.Synopsis)
	}
	if patch.Genre != nil {
		genre, ok := model.ParseGenre(*patch.Genre)
		if !ok {
			return nil, apperror.ValidationFailed("genre", "genre must be one of: "+model.JoinValues(model.Genres))
		}
		novel.Genre = genre
	}
	if patch.Status != nil {
		status, ok := model.ParseNovelStatus(*patch.Status)
		if !ok {
			return nil, apperror.ValidationFailed("status", "status must be one of: "+model.JoinValues(model.NovelStatuses))
		}
		novel.Status = status
	}
	if patch.CoverImage != nil {
		novel.CoverImage = strings.TrimSpace(*patch.CoverImage)
		if novel.CoverImage == "" {
			novel.CoverImage = model.DefaultCoverImage
		}
	}
	if patch.Tags != nil {
		novel.Tags = model.NormalizeTags(*patch.Tags)
	}

	// Views, likes and chapters are not patchable. The repository update
	// writes only the fields above, so a like landing between GetByID and
	// Update is kept.
	if err := model.Validate(novel); err != nil {
		return nil, err
	}
	if err := s.novels.Update(ctx, novel); err != nil {
		return nil, fmt.Errorf("updating novel %s: %w", id, err)
	}
	s.invalidate(ctx, id)
	return novel, nil
}

// AddChapter appends a chapter to a novel owned by the caller. The chapter
// always takes the next order after the existing ones.
func (s *NovelService) AddChapter(ctx context.Context, caller *auth.Caller, novelID string, in ChapterInput) (*model.Chapter, error) {
	if _, err := s.owned(ctx, caller, novelID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if field := firstMissing("title", title, "content", in.Content); field != "" {
		return nil, apperror.ValidationFailed(field, msgMissingFields)
	}

	// The repository assigns ID, order and timestamps.
	chapter := &model.Chapter{Title: title, Content: in.Content}
	if err := s.novels.AppendChapter(ctx, novelID, chapter); err != nil {
		return nil, fmt.Errorf("adding chapter to %s: %w", novelID, err)
	}
	s.invalidate(ctx, novelID)

	s.logger.Info("chapter added",
		slog.String("novel", novelID),
		slog.Int("order", chapter.Order),
	)
	return chapter, nil
}

// GetChapter returns one chapter and its neighbours by sorted position.
func (s *NovelService) GetChapter(ctx context.Context, novelID, chapterID string) (*model.Chapter, model.Navigation, error) {
	novel, err := s.Get(ctx, novelID)
	if err != nil {
		return nil, model.Navigation{}, err
	}

	nav, ok := novel.Navigate(chapterID)
	if !ok {
		return nil, model.Navigation{}, apperror.NotFound("chapter", chapterID)
	}
	chapter := novel.Chapters[novel.ChapterIndex(chapterID)]
	return &chapter, nav, nil
}

// RecordView counts a view. A non-empty key is counted once per novel.
func (s *NovelService) RecordView(ctx context.Context, novelID, key string) (repository.CounterResult, error) {
	// An uncounted repeat leaves the cached document valid.
	res, err := s.novels.IncrementViews(ctx, novelID, strings.TrimSpace(key))
	if err != nil {
		return res, fmt.Errorf("recording view of %s: %w", novelID, err)
	}
	if res.Changed {
		s.invalidate(ctx, novelID)
	}
	return res, nil
}

// Like records the caller's like; liking twice changes nothing.
func (s *NovelService) Like(ctx context.Context, caller *auth.Caller, novelID string) (repository.CounterResult, error) {
	if err := requireCaller(caller); err != nil {
		return repository.CounterResult{}, err
	}
	res, err := s.novels.AddLike(ctx, novelID, caller.ExternalID)
	if err != nil {
		return res, fmt.Errorf("liking %s: %w", novelID, err)
	}
	if res.Changed {
		s.invalidate(ctx, novelID)
	}
	return res, nil
}

// Unlike withdraws the caller's like, if any.
func (s *NovelService) Unlike(ctx context.Context, caller *auth.Caller, novelID string) (repository.CounterResult, error) {
	if err := requireCaller(caller); err != nil {
		return repository.CounterResult{}, err
	}
	res, err := s.novels.RemoveLike(ctx, novelID, caller.ExternalID)
	if err != nil {
		return res, fmt.Errorf("unliking %s: %w", novelID, err)
	}
	if res.Changed {
		s.invalidate(ctx, novelID)
	}
	return res, nil
}

// LikeStatus reports the like count and whether the caller is among them.
// Anonymous callers get liked=false.
func (s *NovelService) LikeStatus(ctx context.Context, caller *auth.Caller, novelID string) (int64, bool, error) {
	// Read past the cache: like counts must be current for the button.
	novel, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return 0, false, err
	}
	if caller == nil || caller.ExternalID == "" {
		return novel.Likes, false, nil
	}
	liked, err := s.novels.HasLiked(ctx, novelID, caller.ExternalID)
	if err != nil {
		return 0, false, fmt.Errorf("checking like on %s: %w", novelID, err)
	}
	return novel.Likes, liked, nil
}

// owned loads a novel and checks the caller's profile wrote it.
func (s *NovelService) owned(ctx context.Context, caller *auth.Caller, id string) (*model.Novel, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	novel, err := s.novels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := profileOf(ctx, s.users, caller)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.ID != novel.AuthorID {
		return nil, apperror.Forbidden("You can only edit your own novels")
	}
	return novel, nil
}

// invalidate drops the cached detail document. A failed delete is only
// logged; the entry then lives until its TTL.
func (s *NovelService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, novelCacheKey(id)); err != nil {
		s.logger.Warn("cache invalidation failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}
