package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkwell/internal/service"
)

// IdempotencyHeader lets anonymous readers count a view at most once.
const IdempotencyHeader = "Idempotency-Key"

// NovelHandler serves /api/novels and the chapter, view and like
// subresources.
type NovelHandler struct {
	novels *service.NovelService
	logger *slog.Logger
}

// NewNovelHandler creates a NovelHandler.
//
// CONSTRUCTOR INJECTION:
// The handler gets the service it talks to and a logger, nothing else. It
// never sees a repository; routing, auth and body limits are set up by the
// server package before a request reaches it.
func NewNovelHandler(novels *service.NovelService, logger *slog.Logger) *NovelHandler {
	return &NovelHandler{novels: novels, logger: logger}
}

type chapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createNovelRequest struct {
	Title      string         `json:"title"`
	Synopsis   string         `json:"synopsis"`
	Genre      string         `json:"genre"`
	CoverImage string         `json:"coverImage"`
	Tags       []string       `json:"tags"`
	Chapter    chapterRequest `json:"chapter"`
}

// HandleCreate publishes a novel with its first chapter.
//
// HTTP: POST /api/novels
// REQUEST BODY: {"title", "synopsis", "genre", "coverImage", "tags", "chapter": {"title", "content"}}
func (h *NovelHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createNovelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	novel, err := h.novels.Create(r.Context(), callerOf(r), service.NovelInput{
		Title:      req.Title,
		Synopsis:   req.Synopsis,
		Genre:      req.Genre,
		CoverImage: req.CoverImage,
		Tags:       req.Tags,
		Chapter:    service.ChapterInput{Title: req.Chapter.Title, Content: req.Chapter.Content},
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "novel": novel})
}

// HandleList returns one catalog page.
//
// HTTP: GET /api/novels?genre=&status=&q=&authorId=&sort=&limit=&offset=
// RESPONSE: {"success": true, "novels": [...], "total": 42}
//
// total counts every match, not just this page, so clients can render a
// pager. limit defaults to 20 and is capped at 100 by the repository.
func (h *NovelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	novels, total, err := h.novels.List(r.Context(), service.NovelQuery{
		Genre:    q.Get("genre"),
		Status:   q.Get("status"),
		Query:    q.Get("q"),
		AuthorID: q.Get("authorId"),
		Sort:     q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "novels": novels, "total": total})
}

// HandleGet returns a novel with all its chapters.
//
// HTTP: GET /api/novels/{id}
func (h *NovelHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	novel, err := h.novels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "novel": novel})
}

// updateNovelRequest uses pointers so an absent field and an empty field
// differ: {"coverImage": ""} resets the cover, {} leaves it alone.
type updateNovelRequest struct {
	Title      *string   `json:"title"`
	Synopsis   *string   `json:"synopsis"`
	Genre      *string   `json:"genre"`
	Status     *string   `json:"status"`
	CoverImage *string   `json:"coverImage"`
	Tags       *[]string `json:"tags"`
}

// HandleUpdate edits the caller's own novel.
//
// HTTP: PATCH /api/novels/{id}
func (h *NovelHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateNovelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	novel, err := h.novels.Update(r.Context(), callerOf(r), chi.URLParam(r, "id"), service.NovelPatch{
		Title:      req.Title,
		Synopsis:   req.Synopsis,
		Genre:      req.Genre,
		Status:     req.Status,
		CoverImage: req.CoverImage,
		Tags:       req.Tags,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "novel": novel})
}

// HandleAddChapter appends a chapter to the caller's novel.
//
// HTTP: POST /api/novels/{id}/chapters
// REQUEST BODY: {"title": "...", "content": "<p>...</p>"}
//
// The response carries the stored chapter with its assigned order.
func (h *NovelHandler) HandleAddChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	chapter, err := h.novels.AddChapter(r.Context(), callerOf(r), chi.URLParam(r, "id"), service.ChapterInput{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "chapter": chapter})
}

// HandleGetChapter returns one chapter plus its previous/next neighbours.
//
// HTTP: GET /api/novels/{id}/chapters/{chapterId}
func (h *NovelHandler) HandleGetChapter(w http.ResponseWriter, r *http.Request) {
	chapter, nav, err := h.novels.GetChapter(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chapterId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chapter": chapter, "navigation": nav})
}

// HandleRecordView counts a read. Signed-in readers are keyed by identity,
// anonymous ones by the Idempotency-Key header; without either every call
// counts.
//
// HTTP: POST /api/novels/{id}/views
func (h *NovelHandler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	res, err := h.novels.RecordView(r.Context(), chi.URLParam(r, "id"), viewKey(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "views": res.Value, "counted": res.Changed})
}

// viewKey namespaces the two key sources so a header value can never
// collide with a reader's identity.
func viewKey(r *http.Request) string {
	if caller := callerOf(r); caller != nil {
		return "user:" + caller.ExternalID
	}
	if key := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); key != "" {
		return "key:" + key
	}
	return ""
}

// HandleLike records the caller's like.
//
// HTTP: PUT /api/novels/{id}/like
func (h *NovelHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	res, err := h.novels.Like(r.Context(), callerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "likes": res.Value, "liked": true})
}

// HandleUnlike withdraws the caller's like.
//
// HTTP: DELETE /api/novels/{id}/like
func (h *NovelHandler) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	res, err := h.novels.Unlike(r.Context(), callerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "likes": res.Value, "liked": false})
}

// HandleLikeStatus reports the like count and whether the caller liked it.
//
// HTTP: GET /api/novels/{id}/like
func (h *NovelHandler) HandleLikeStatus(w http.ResponseWriter, r *http.Request) {
	likes, liked, err := h.novels.LikeStatus(r.Context(), callerOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "likes": likes, "liked": liked})
}
