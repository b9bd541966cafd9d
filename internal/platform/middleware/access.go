package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/platform/auth"
)

// Access emits a structured "phi_access" line for every /api/v1 request made
// by an authenticated caller. It complements the patient-visible audit log,
// which records only domain actions.
func Access(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			id, ok := auth.IdentityFromContext(c.Request().Context())
			if !ok {
				return err
			}
			rid, _ := c.Get("request_id").(string)
			status := c.Response().Status
			if he, isHTTP := err.(*echo.HTTPError); isHTTP {
				status = he.Code
			}

			evt := logger.Info()
			if status == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "phi_access").
				Str("request_id", rid).
				Str("user_id", id.Subject).
				Str("role", id.Role).
				Str("patient_id", c.Param("patientId")).
				Str("action", methodAction(req.Method)).
				Str("route", c.Path()).
				Int("status", status).
				Msg("phi_access")

			return err
		}
	}
}

func methodAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
