package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "identity"

// JWTMiddleware requires a valid bearer token on every request that skip does
// not exempt. skip may be nil.
func JWTMiddleware(cfg JWTConfig, skip func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skip != nil && skip(c) {
				return next(c)
			}
			tokenStr, err := requestToken(c.Request())
			if err != nil {
				return err
			}
			id, err := ParseToken(cfg, tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}

// DevAuthMiddleware validates a token when one is sent and otherwise acts as
// fallback. For local development only.
func DevAuthMiddleware(cfg JWTConfig, fallback Identity, skip func(echo.Context) bool) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg, skip)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		validated := strict(next)
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return validated(c)
			}
			setIdentity(c, fallback)
			return next(c)
		}
	}
}

// requestToken reads the bearer token. Browsers cannot set headers on
// WebSocket handshakes, so upgrade requests may pass it as access_token.
func requestToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" && strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if tok := r.URL.Query().Get("access_token"); tok != "" {
			return tok, nil
		}
	}
	return bearerToken(header)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func setIdentity(c echo.Context, id Identity) {
	c.Set("user_id", id.Subject)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller, if authenticated.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
