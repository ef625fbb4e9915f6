package model

import (
	"sort"
	"strings"
	"time"
)

// DefaultCoverImage is used when a novel is created without a cover.
const DefaultCoverImage = "/images/default-cover.jpg"

// Genre is the closed set of novel genres.
type Genre string

const (
	GenreFantasy    Genre = "Fantasy"
	GenreSciFi      Genre = "Sci-Fi"
	GenreRomance    Genre = "Romance"
	GenreMystery    Genre = "Mystery"
	GenreHorror     Genre = "Horror"
	GenreThriller   Genre = "Thriller"
	GenreAdventure  Genre = "Adventure"
	GenreHistorical Genre = "Historical"
	GenreOther      Genre = "Other"
)

// Genres lists every valid genre in display order.
var Genres = []Genre{
	GenreFantasy, GenreSciFi, GenreRomance, GenreMystery, GenreHorror,
	GenreThriller, GenreAdventure, GenreHistorical, GenreOther,
}

// Valid reports whether g is one of Genres. Matching is exact; use
// ParseGenre for user input.
func (g Genre) Valid() bool {
	for _, v := range Genres {
		if g == v {
			return true
		}
	}
	return false
}

// ParseGenre matches s against the genre list ignoring letter case and
// returns the canonical spelling.
func ParseGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	for _, g := range Genres {
		if strings.EqualFold(s, string(g)) {
			return g, true
		}
	}
	return Genre(s), false
}

// NovelStatus is the publication state of a novel.
type NovelStatus string

const (
	StatusOngoing   NovelStatus = "ongoing"
	StatusCompleted NovelStatus = "completed"
	StatusHiatus    NovelStatus = "hiatus"
)

// NovelStatuses lists every status in display order.
var NovelStatuses = []NovelStatus{StatusOngoing, StatusCompleted, StatusHiatus}

// Valid reports whether s is a known status.
func (s NovelStatus) Valid() bool {
	switch s {
	case StatusOngoing, StatusCompleted, StatusHiatus:
		return true
	}
	return false
}

// ParseNovelStatus accepts any letter case ("Ongoing" from the catalog UI).
func ParseNovelStatus(s string) (NovelStatus, bool) {
	status := NovelStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.Valid()
}

// Chapter is embedded in its Novel and has no lifecycle of its own.
// Order is 1-based and contiguous within a novel.
type Chapter struct {
	ID        string    `json:"id"        bson:"id"`
	Title     string    `json:"title"     bson:"title"   validate:"required"`
	Content   string    `json:"content"   bson:"content" validate:"required"`
	Order     int       `json:"order"     bson:"order"   validate:"min=1"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Novel is a serialized work owned by exactly one author.
type Novel struct {
	ID         string      `json:"id"         bson:"_id"`
	Title      string      `json:"title"      bson:"title"    validate:"required"`
	Synopsis   string      `json:"synopsis"   bson:"synopsis" validate:"required"`
	CoverImage string      `json:"coverImage" bson:"coverImage"`
	Genre      Genre       `json:"genre"      bson:"genre"    validate:"required,genre"`
	AuthorID   string      `json:"author"     bson:"author"   validate:"required"`
	Chapters   []Chapter   `json:"chapters"   bson:"chapters" validate:"dive"`
	Status     NovelStatus `json:"status"     bson:"status"   validate:"required,novelstatus"`
	Tags       []string    `json:"tags"       bson:"tags"`
	Views      int64       `json:"views"      bson:"views"`
	Likes      int64       `json:"likes"      bson:"likes"`
	CreatedAt  time.Time   `json:"createdAt"  bson:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"  bson:"updatedAt"`
}

// SortChapters orders chapters by Order, keeping insertion order for ties.
func (n *Novel) SortChapters() {
	sort.SliceStable(n.Chapters, func(i, j int) bool {
		return n.Chapters[i].Order < n.Chapters[j].Order
	})
}

// ChapterIndex returns the sorted position of the chapter, or -1.
// The chapter list must already be sorted (see SortChapters).
func (n *Novel) ChapterIndex(chapterID string) int {
	for i, c := range n.Chapters {
		if c.ID == chapterID {
			return i
		}
	}
	return -1
}

// ChapterRef identifies a neighbouring chapter for navigation.
type ChapterRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// Navigation holds the previous/next neighbours of a chapter.
// A nil side means the control is disabled.
type Navigation struct {
	Previous *ChapterRef `json:"previous"`
	Next     *ChapterRef `json:"next"`
}

// Navigate computes previous/next by sorted position rather than by
// trusting Order values, so gaps or duplicates cannot break the boundaries.
func (n *Novel) Navigate(chapterID string) (Navigation, bool) {
	n.SortChapters()
	idx := n.ChapterIndex(chapterID)
	if idx < 0 {
		return Navigation{}, false
	}

	var nav Navigation
	if idx > 0 {
		prev := n.Chapters[idx-1]
		nav.Previous = &ChapterRef{ID: prev.ID, Title: prev.Title, Order: prev.Order}
	}
	if idx < len(n.Chapters)-1 {
		next := n.Chapters[idx+1]
		nav.Next = &ChapterRef{ID: next.ID, Title: next.Title, Order: next.Order}
	}
	return nav, true
}

// NormalizeTags trims tags and drops blanks and duplicates, keeping the
// first occurrence.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
