package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goTokens "github.com/MrEthical07/goTokens"
)

type payloadContextKey struct{}

// PayloadFromContext returns the verified token payload attached by [Guard].
func PayloadFromContext(ctx context.Context) (*goTokens.TokenPayload, bool) {
	payload, ok := ctx.Value(payloadContextKey{}).(*goTokens.TokenPayload)
	return payload, ok
}

// Guard verifies the bearer session token on every request and attaches its
// payload to the request context. Missing or invalid tokens get 401; a
// revocation store outage gets 503, never a silent accept.
func Guard(engine *goTokens.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			payload, err := engine.VerifySessionToken(r.Context(), token)
			if err != nil {
				if errors.Is(err, goTokens.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), payloadContextKey{}, payload)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
