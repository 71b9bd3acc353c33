package user

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_Me(t *testing.T) {
	handler := NewHandler(nil)

	t.Run("returns the context account", func(t *testing.T) {
		account := &User{
			ID:            uuid.New(),
			Name:          "Alice",
			Email:         "alice@example.com",
			Provider:      ProviderLocal,
			Role:          RoleUser,
			EmailVerified: true,
			CreatedAt:     time.Now(),
		}

		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		req = req.WithContext(NewContext(req.Context(), account))
		rec := httptest.NewRecorder()

		handler.Me(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), account.ID.String())
		assert.Contains(t, rec.Body.String(), "alice@example.com")
		// Credential material never leaves the server
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("rejects a request without identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
		rec := httptest.NewRecorder()

		handler.Me(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestHandler_UpdateRoleValidation(t *testing.T) {
	handler := NewHandler(nil)

	router := chi.NewRouter()
	router.Put("/api/users/{id}/role", handler.UpdateRole)

	t.Run("rejects malformed user id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/users/not-a-uuid/role", strings.NewReader(`{"role":"ADMIN"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/users/"+uuid.NewString()+"/role", strings.NewReader(`{"role":"ROOT"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "SUPER_ADMIN")
	})
}
