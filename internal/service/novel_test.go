package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

type novelFixture struct {
	svc    *NovelService
	novels *fakeNovelRepo
	users  *fakeUserRepo
	cache  *fakeCache
	author *model.User
	caller *auth.Caller
}

func newNovelFixture(t *testing.T) *novelFixture {
	t.Helper()
	f := &novelFixture{
		novels: newFakeNovelRepo(),
		users:  newFakeUserRepo(),
		cache:  newFakeCache(),
	}
	f.svc = NewNovelService(f.novels, f.users, f.cache, testLogger())
	f.author = &model.User{Email: "author@x.com", Name: "Author", ExternalID: "ext-author"}
	require.NoError(t, f.users.Create(context.Background(), f.author))
	f.caller = callerFor("ext-author")
	return f
}

func validNovelInput() NovelInput {
	return NovelInput{
		Title:    "The Glass Tower",
		Synopsis: "A mage climbs.",
		Genre:    "fantasy",
		Tags:     []string{" magic", "towers", "magic", ""},
		Chapter:  ChapterInput{Title: "Arrival", Content: "<p>It rained.</p>"},
	}
}

func (f *novelFixture) create(t *testing.T) *model.Novel {
	t.Helper()
	n, err := f.svc.Create(context.Background(), f.caller, validNovelInput())
	require.NoError(t, err)
	return n
}

func TestNovelCreate_Defaults(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)

	assert.Equal(t, model.GenreFantasy, n.Genre, "genre is canonicalised")
	assert.Equal(t, model.StatusOngoing, n.Status)
	assert.Equal(t, model.DefaultCoverImage, n.CoverImage)
	assert.Equal(t, f.author.ID, n.AuthorID)
	assert.Equal(t, []string{"magic", "towers"}, n.Tags)
	assert.Zero(t, n.Views)
	assert.Zero(t, n.Likes)
	require.Len(t, n.Chapters, 1)
	assert.Equal(t, 1, n.Chapters[0].Order)
}

func TestNovelCreate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		caller *auth.Caller
		mutate func(*NovelInput)
		want   error
	}{
		{"anonymous", nil, nil, apperror.ErrUnauthorized},
		{"no profile", callerFor("stranger"), nil, apperror.ErrForbidden},
		{"missing title", nil, func(in *NovelInput) { in.Title = "" }, apperror.ErrValidation},
		{"missing chapter content", nil, func(in *NovelInput) { in.Chapter.Content = "" }, apperror.ErrValidation},
		{"unknown genre", nil, func(in *NovelInput) { in.Genre = "Western" }, apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newNovelFixture(t)
			caller := tt.caller
			if caller == nil && tt.want != apperror.ErrUnauthorized {
				caller = f.caller
			}
			in := validNovelInput()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			_, err := f.svc.Create(context.Background(), caller, in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNovelGet_UsesCache(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()

	first, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	second, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.novels.gets, "second read is served from the cache")

	_, err = f.svc.Get(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestNovelMutationsInvalidateCache(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()
	key := novelCacheKey(n.ID)

	prime := func() {
		_, err := f.svc.Get(ctx, n.ID)
		require.NoError(t, err)
		require.Contains(t, f.cache.entries, key)
	}

	prime()
	title := "Renamed"
	_, err := f.svc.Update(ctx, f.caller, n.ID, NovelPatch{Title: &title})
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, key)

	prime()
	_, err = f.svc.AddChapter(ctx, f.caller, n.ID, ChapterInput{Title: "Two", Content: "2"})
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, key)

	prime()
	_, err = f.svc.Like(ctx, callerFor("reader"), n.ID)
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, key)

	prime()
	_, err = f.svc.RecordView(ctx, n.ID, "")
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, key)

	got, err := f.svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Len(t, got.Chapters, 2)
	assert.Equal(t, int64(1), got.Likes)
	assert.Equal(t, int64(1), got.Views)
}

func TestNovelUpdate(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()

	status := "Completed"
	tags := []string{"done", "done"}
	got, err := f.svc.Update(ctx, f.caller, n.ID, NovelPatch{Status: &status, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, []string{"done"}, got.Tags)

	bad := "abandoned"
	_, err = f.svc.Update(ctx, f.caller, n.ID, NovelPatch{Status: &bad})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	blank := ""
	_, err = f.svc.Update(ctx, f.caller, n.ID, NovelPatch{Title: &blank})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = f.svc.Update(ctx, callerFor("reader"), n.ID, NovelPatch{Status: &status})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestNovelAddChapter(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()

	c, err := f.svc.AddChapter(ctx, f.caller, n.ID, ChapterInput{Title: "Two", Content: "2"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Order)

	_, err = f.svc.AddChapter(ctx, f.caller, n.ID, ChapterInput{Title: "Three"})
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = f.svc.AddChapter(ctx, callerFor("reader"), n.ID, ChapterInput{Title: "x", Content: "y"})
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	_, err = f.svc.AddChapter(ctx, nil, n.ID, ChapterInput{Title: "x", Content: "y"})
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestNovelGetChapter_Navigation(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()

	second, err := f.svc.AddChapter(ctx, f.caller, n.ID, ChapterInput{Title: "Two", Content: "2"})
	require.NoError(t, err)
	third, err := f.svc.AddChapter(ctx, f.caller, n.ID, ChapterInput{Title: "Three", Content: "3"})
	require.NoError(t, err)
	firstID := n.Chapters[0].ID

	c, nav, err := f.svc.GetChapter(ctx, n.ID, firstID)
	require.NoError(t, err)
	assert.Equal(t, "Arrival", c.Title)
	assert.Nil(t, nav.Previous, "first chapter has no previous")
	require.NotNil(t, nav.Next)
	assert.Equal(t, second.ID, nav.Next.ID)

	_, nav, err = f.svc.GetChapter(ctx, n.ID, third.ID)
	require.NoError(t, err)
	assert.Nil(t, nav.Next, "last chapter has no next")
	assert.Equal(t, second.ID, nav.Previous.ID)

	_, _, err = f.svc.GetChapter(ctx, n.ID, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestNovelList_QueryParsing(t *testing.T) {
	f := newNovelFixture(t)
	ctx := context.Background()

	_, _, err := f.svc.List(ctx, NovelQuery{Genre: "All", Status: "Ongoing", Sort: "Popular"})
	require.NoError(t, err)
	assert.Empty(t, f.novels.lastList.Genre)
	assert.Equal(t, model.StatusOngoing, f.novels.lastList.Status)
	assert.Equal(t, repository.SortPopular, f.novels.lastList.Sort)

	_, _, err = f.svc.List(ctx, NovelQuery{Status: "all"})
	require.NoError(t, err)
	assert.Empty(t, f.novels.lastList.Status)

	tests := []NovelQuery{
		{Genre: "Western"},
		{Status: "paused"},
		{Sort: "random"},
	}
	for _, q := range tests {
		_, _, err := f.svc.List(ctx, q)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "query %+v", q)
	}
}

func TestNovelLikes(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()
	reader := callerFor("reader")

	res, err := f.svc.Like(ctx, reader, n.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.CounterResult{Value: 1, Changed: true}, res)

	res, err = f.svc.Like(ctx, reader, n.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.CounterResult{Value: 1, Changed: false}, res)

	likes, liked, err := f.svc.LikeStatus(ctx, reader, n.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), likes)
	assert.True(t, liked)

	_, liked, err = f.svc.LikeStatus(ctx, nil, n.ID)
	require.NoError(t, err)
	assert.False(t, liked)

	res, err = f.svc.Unlike(ctx, reader, n.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.CounterResult{Value: 0, Changed: true}, res)

	_, err = f.svc.Like(ctx, nil, n.ID)
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))
}

func TestNovelRecordView_KeyedOnce(t *testing.T) {
	f := newNovelFixture(t)
	n := f.create(t)
	ctx := context.Background()

	res, err := f.svc.RecordView(ctx, n.ID, "reader")
	require.NoError(t, err)
	assert.True(t, res.Changed)

	res, err = f.svc.RecordView(ctx, n.ID, "reader")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, int64(1), res.Value)

	_, err = f.svc.RecordView(ctx, "missing", "")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestNewNovelService_NilCache(t *testing.T) {
	svc := NewNovelService(newFakeNovelRepo(), newFakeUserRepo(), nil, testLogger())
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}
