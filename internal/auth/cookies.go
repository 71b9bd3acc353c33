package auth

import (
	"errors"
	"net/http"
	"time"
)

const (
	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)

var ErrNoCookie = errors.New("auth cookie not present")

// SetAuthCookies sets both tokens as http-only cookies. SameSite=Strict keeps
// the refresh token out of cross-site requests; Secure is tied to the
// deployment environment so local development over plain HTTP still works.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, isProduction bool, accessDuration, refreshDuration time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookieName,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(accessDuration.Seconds()),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookieName,
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(refreshDuration.Seconds()),
	})
}

// ClearAuthCookies expires both auth cookies using the same attributes they
// were set with, which browsers require for the deletion to take effect.
func ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookieName, RefreshTokenCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   -1,
		})
	}
}

// GetAccessTokenFromCookie extracts the access token cookie value.
func GetAccessTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(AccessTokenCookieName)
	if err != nil {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}

// GetRefreshTokenFromCookie extracts the refresh token cookie value.
func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(RefreshTokenCookieName)
	if err != nil {
		return "", ErrNoCookie
	}
	return cookie.Value, nil
}
