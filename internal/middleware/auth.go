package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// TokenValidator checks bearer tokens.
type TokenValidator interface {
	Validate(ctx context.Context, token string) error
}

type tokenKey struct{}

// APIKey 要求请求携带匹配的 X-API-Key；expected 为空时不校验。
func APIKey(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected != "" {
				got := r.Header.Get("X-API-Key")
				if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
					utils.RespondError(w, http.StatusUnauthorized, "invalid api key")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Bearer 要求 Authorization: Bearer <token> 且 token 有效。
func Bearer(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if err := validator.Validate(r.Context(), token); err != nil {
				utils.RespondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), tokenKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the bearer token accepted by Bearer.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
