package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/acadimport/internal/core"
	mw "github.com/JonMunkholm/acadimport/internal/web/middleware"
)

// requestMetadata puts the client IP and the operator's bearer token on the
// request context. The token is forwarded to the backend on submit.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := core.ContextWithIPAddress(r.Context(), mw.ClientIP(r))
		if token := bearerToken(r); token != "" {
			ctx = core.ContextWithOperatorToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
