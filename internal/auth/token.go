package auth

import (
	"net/http"
	"strings"
)

// ExtractAccessToken pulls the access token from the request, preferring the
// cookie set for browser sessions over the Authorization header used by API
// clients.
func ExtractAccessToken(r *http.Request) string {
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
