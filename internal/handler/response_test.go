package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/inkwell/internal/apperror"
	"github.com/sakif/inkwell/internal/identity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorResponse
	}{
		{
			name:       "validation",
			err:        apperror.ValidationFailed("email", "Missing required fields"),
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrorResponse{Error: "Missing required fields", Code: "validation_error", Field: "email"},
		},
		{
			name:       "conflict is a bad request",
			err:        fmt.Errorf("creating user: %w", apperror.Conflict("User with this email already exists")),
			wantStatus: http.StatusBadRequest,
			wantBody:   ErrorResponse{Error: "User with this email already exists", Code: "conflict"},
		},
		{
			name:       "unauthorized",
			err:        apperror.Unauthorized("Unauthorized"),
			wantStatus: http.StatusUnauthorized,
			wantBody:   ErrorResponse{Error: "Unauthorized", Code: "unauthorized"},
		},
		{
			name:       "forbidden",
			err:        apperror.Forbidden("You can only edit your own novels"),
			wantStatus: http.StatusForbidden,
			wantBody:   ErrorResponse{Error: "You can only edit your own novels", Code: "forbidden"},
		},
		{
			name:       "not found",
			err:        apperror.NotFoundMessage("User not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   ErrorResponse{Error: "User not found", Code: "not_found"},
		},
		{
			name:       "provider status passes through",
			err:        fmt.Errorf("sign-in: %w", &identity.ProviderError{Status: 422, Message: "Password should be at least 6 characters"}),
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   ErrorResponse{Error: "Password should be at least 6 characters", Code: "identity_error"},
		},
		{
			name:       "provider status out of range",
			err:        &identity.ProviderError{Status: 200, Message: "odd"},
			wantStatus: http.StatusBadGateway,
			wantBody:   ErrorResponse{Error: "odd", Code: "identity_error"},
		},
		{
			name:       "unhandled passes message through",
			err:        errors.New("sqlite: database is locked"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Error: "sqlite: database is locked", Code: "internal_error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, testLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
		require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &b))
		assert.Equal(t, "Ada", b.Name)
	})

	t.Run("empty body leaves zero value", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &b))
		assert.Empty(t, b.Name)
	})

	t.Run("malformed", func(t *testing.T) {
		var b body
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		err := decodeJSON(httptest.NewRecorder(), r, &b)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})
}

func TestQueryBool(t *testing.T) {
	tests := []struct {
		query   string
		want    *bool
		wantErr bool
	}{
		{query: "", want: nil},
		{query: "isPublic=true", want: ptr(true)},
		{query: "isPublic=false", want: ptr(false)},
		{query: "isPublic=yes", wantErr: true},
		{query: "isPublic=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := queryBool(r, "isPublic")
			if tt.wantErr {
				assert.ErrorIs(t, err, apperror.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&offset=x", nil)

	n, err := queryInt(r, "limit")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = queryInt(r, "offset")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	n, err = queryInt(r, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func ptr[T any](v T) *T { return &v }
