package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkwell/internal/service"
)

// UserHandler serves /api/users.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler. Ownership checks live in the
// service; the handler only forwards the caller from the request context.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	SupabaseID string `json:"supabaseId"`
}

// HandleCreate registers a profile.
//
// HTTP: POST /api/users
// REQUEST BODY: {"email": "...", "name": "...", "supabaseId": "..."}
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Create(r.Context(), req.Email, req.Name, req.SupabaseID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

// HandleFind looks a user up.
//
// HTTP: GET /api/users?supabaseId=... or ?email=...
func (h *UserHandler) HandleFind(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user, err := h.users.Find(r.Context(), q.Get("supabaseId"), q.Get("email"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Bio   *string `json:"bio"`
	Image *string `json:"image"`
}

// HandleUpdate edits the caller's own profile.
//
// HTTP: PATCH /api/users/{id}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), callerOf(r), chi.URLParam(r, "id"), service.ProfilePatch{
		Name:  req.Name,
		Bio:   req.Bio,
		Image: req.Image,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// HandleAddFavorite stars a novel.
//
// HTTP: PUT /api/users/{id}/favorites/{novelId}
func (h *UserHandler) HandleAddFavorite(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.AddFavorite(r.Context(), callerOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "novelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// HandleRemoveFavorite un-stars a novel.
//
// HTTP: DELETE /api/users/{id}/favorites/{novelId}
func (h *UserHandler) HandleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.RemoveFavorite(r.Context(), callerOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "novelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}
