package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lafi-app/lostfound-api/internal/httputil"
	"github.com/lafi-app/lostfound-api/internal/user"
)

// Middleware handles authentication and role gating for protected routes
type Middleware struct {
	tokenService TokenService
	directory    UserDirectory
}

func NewMiddleware(tokenService TokenService, directory UserDirectory) *Middleware {
	return &Middleware{tokenService: tokenService, directory: directory}
}

// RequireAuth validates the access token and loads the caller's account. The
// directory lookup catches tokens that outlive a deleted account.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string

		// Priority 1: Authorization header, strict "Bearer <token>" shape
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			} else {
				httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
				return
			}
		}

		// Priority 2: Cookie (fallback for browser clients)
		if token == "" {
			cookieToken, err := GetAccessTokenFromCookie(r)
			if err != nil {
				httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
				return
			}
			token = cookieToken
		}

		claims, err := m.tokenService.VerifyToken(token)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeInvalidToken, http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			httputil.RespondErrorWithCode(w, "invalid user ID in token", httputil.CodeInvalidTokenUserID, http.StatusUnauthorized)
			return
		}

		account, err := m.directory.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
				return
			}
			httputil.RespondErrorWithCode(w, "failed to authenticate", httputil.CodeInternalError, http.StatusInternalServerError)
			return
		}

		ctx := user.NewContext(r.Context(), account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin passes callers whose role is ADMIN or SUPER_ADMIN. Must be
// mounted after RequireAuth; a missing caller identity is answered with 401
// rather than a panic.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return m.requireRole(next, func(role user.Role) bool {
		switch role {
		case user.RoleAdmin, user.RoleSuperAdmin:
			return true
		case user.RoleUser:
			return false
		}
		return false
	})
}

// RequireSuperAdmin passes only SUPER_ADMIN callers.
func (m *Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return m.requireRole(next, func(role user.Role) bool {
		switch role {
		case user.RoleSuperAdmin:
			return true
		case user.RoleUser, user.RoleAdmin:
			return false
		}
		return false
	})
}

func (m *Middleware) requireRole(next http.Handler, allowed func(user.Role) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := GetUserFromContext(r.Context())
		if !ok {
			// Programming error: gate mounted without RequireAuth
			httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeMissingAuth, http.StatusUnauthorized)
			return
		}

		if !allowed(account.Role) {
			httputil.RespondErrorWithCode(w, "insufficient permissions", httputil.CodeForbidden, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext extracts the authenticated account from the request context
func GetUserFromContext(ctx context.Context) (*user.User, bool) {
	return user.FromContext(ctx)
}
