package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/httputil"
	"github.com/lafi-app/lostfound-api/internal/logging"
)

// Handler contains HTTP handlers for user management endpoints
type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// ProfileResponse is the account projection returned by user endpoints.
type ProfileResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	Provider      Provider  `json:"provider"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// UpdateRoleRequest carries the new role for a user.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func newProfileResponse(u *User) ProfileResponse {
	return ProfileResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Role:          u.Role,
		Provider:      u.Provider,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// Me returns the caller's own account
// @Summary      Current user profile
// @Description  Return the authenticated user's account
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} ProfileResponse
// @Failure      401 {object} map[string]string "Not authenticated"
// @Router       /api/users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	httputil.RespondJSON(w, newProfileResponse(account), http.StatusOK)
}

// List returns all users
// @Summary      List users
// @Description  Return every registered account. Requires the ADMIN role.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} ProfileResponse
// @Failure      403 {object} map[string]string "Insufficient permissions"
// @Router       /api/users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	users, err := h.repo.List(r.Context())
	if err != nil {
		logger.Error("failed to list users", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to list users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	profiles := make([]ProfileResponse, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, newProfileResponse(u))
	}

	httputil.RespondJSON(w, profiles, http.StatusOK)
}

// UpdateRole changes a user's role
// @Summary      Update user role
// @Description  Assign a new role to a user. Requires the SUPER_ADMIN role.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "User ID"
// @Param        request body UpdateRoleRequest true "New role"
// @Success      200 {object} ProfileResponse
// @Failure      400 {object} map[string]string "Invalid role or user ID"
// @Failure      404 {object} map[string]string "User not found"
// @Router       /api/users/{id}/role [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid user ID", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	role, ok := ParseRole(req.Role)
	if !ok {
		httputil.RespondErrorWithCode(w, "role must be one of USER, ADMIN, SUPER_ADMIN", httputil.CodeInvalidRole, http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateRole(r.Context(), targetID, role); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to update user role", "user_id", targetID, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update role", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	updated, err := h.repo.GetByID(r.Context(), targetID)
	if err != nil {
		logger.Error("failed to load updated user", "user_id", targetID, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to load user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user role updated", "user_id", targetID, "role", role)

	httputil.RespondJSON(w, newProfileResponse(updated), http.StatusOK)
}
