package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/service"
)

// PromptHandler serves /api/writing-prompts.
type PromptHandler struct {
	prompts *service.PromptService
	logger  *slog.Logger
}

// NewPromptHandler creates a PromptHandler.
func NewPromptHandler(prompts *service.PromptService, logger *slog.Logger) *PromptHandler {
	return &PromptHandler{prompts: prompts, logger: logger}
}

// HandleList returns up to 50 prompts, newest first.
//
// HTTP: GET /api/writing-prompts?category=&isPublic=&creatorId=
func (h *PromptHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	isPublic, err := queryBool(r, "isPublic")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	prompts, err := h.prompts.List(r.Context(), service.PromptQuery{
		Category:  q.Get("category"),
		IsPublic:  isPublic,
		CreatorID: q.Get("creatorId"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "prompts": prompts})
}

type createPromptRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	IsPublic *bool  `json:"isPublic"`
}

// HandleCreate stores a prompt for the signed-in caller.
// The caller is checked before the body is read.
//
// HTTP: POST /api/writing-prompts
// REQUEST BODY: {"title": "...", "content": "...", "category": "Dialogue", "isPublic": true}
func (h *PromptHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller := callerOf(r)
	if caller == nil {
		writeError(w, h.logger, apperror.Unauthorized("Unauthorized"))
		return
	}

	var req createPromptRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	prompt, err := h.prompts.Create(r.Context(), caller, service.PromptInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "prompt": prompt})
}

// HandleUse counts one use of a prompt.
//
// HTTP: POST /api/writing-prompts/{id}/use
func (h *PromptHandler) HandleUse(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.prompts.Use(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "prompt": prompt})
}

// HandleCategories lists the accepted categories.
//
// HTTP: GET /api/writing-prompts/categories
func (h *PromptHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "categories": h.prompts.Categories()})
}
