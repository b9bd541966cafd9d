package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testConfig = JWTConfig{
	Issuer:     "healthguard-test",
	SigningKey: []byte("test-secret-key-for-unit-tests-only"),
	TTL:        time.Hour,
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func assertHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestIssueAndParseToken(t *testing.T) {
	want := Identity{Subject: "HG-66-1029-X", Name: "Rahul Sharma", Role: RolePatient}
	tok, exp, err := IssueToken(testConfig, want, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Error("expected expiry in the future")
	}
	got, err := ParseToken(testConfig, tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestIssueToken_NoKey(t *testing.T) {
	if _, _, err := IssueToken(JWTConfig{}, Identity{Role: RolePatient}, time.Now()); err == nil {
		t.Error("expected error without signing key")
	}
}

func TestParseToken_Rejects(t *testing.T) {
	expired, _, _ := IssueToken(testConfig, Identity{Subject: "p", Role: RolePatient}, time.Now().Add(-2*time.Hour))
	otherKey, _, _ := IssueToken(JWTConfig{SigningKey: []byte("another-secret-key-of-enough-len")}, Identity{Role: RolePatient}, time.Now())
	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: testConfig.Issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "admin",
	}).SignedString(testConfig.SigningKey)

	tests := map[string]string{
		"expired":   expired,
		"wrong key": otherKey,
		"bad role":  badRole,
		"garbage":   "not.a.token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(testConfig, tok); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := JWTMiddleware(testConfig, nil)(okHandler)(c)
	assertHTTPError(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			c := e.NewContext(req, httptest.NewRecorder())
			err := JWTMiddleware(testConfig, nil)(okHandler)(c)
			assertHTTPError(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok, _, _ := IssueToken(testConfig, Identity{Subject: "Dr. Vikram Seth", Name: "Dr. Vikram Seth", Role: RoleDoctor}, time.Now())
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen Identity
	h := JWTMiddleware(testConfig, nil)(func(c echo.Context) error {
		seen, _ = IdentityFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen.Role != RoleDoctor || seen.Subject != "Dr. Vikram Seth" {
		t.Errorf("unexpected identity %+v", seen)
	}
	if c.Get("user_id") != "Dr. Vikram Seth" {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	tok, _, _ := IssueToken(testConfig, Identity{Subject: "HG-66-1029-X", Name: "Rahul Sharma", Role: RolePatient}, time.Now())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token="+tok, nil)
	req.Header.Set("Upgrade", "websocket")
	if err := JWTMiddleware(testConfig, nil)(okHandler)(e.NewContext(req, httptest.NewRecorder())); err != nil {
		t.Fatalf("expected query token to authenticate upgrade, got %v", err)
	}

	plain := httptest.NewRequest(http.MethodGet, "/events?access_token="+tok, nil)
	assertHTTPError(t, JWTMiddleware(testConfig, nil)(okHandler)(e.NewContext(plain, httptest.NewRecorder())), http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	c.SetPath("/health")
	if err := JWTMiddleware(testConfig, AuthSkipper)(okHandler)(c); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	fallback := Identity{Subject: "HG-66-1029-X", Name: "Rahul Sharma", Role: RolePatient}

	t.Run("no header uses fallback", func(t *testing.T) {
		e := echo.New()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		var seen Identity
		h := DevAuthMiddleware(testConfig, fallback, nil)(func(c echo.Context) error {
			seen, _ = IdentityFromContext(c.Request().Context())
			return nil
		})
		if err := h(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen != fallback {
			t.Errorf("expected fallback identity, got %+v", seen)
		}
	})

	t.Run("bad token still rejected", func(t *testing.T) {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		c := e.NewContext(req, httptest.NewRecorder())
		err := DevAuthMiddleware(testConfig, fallback, nil)(okHandler)(c)
		assertHTTPError(t, err, http.StatusUnauthorized)
	})
}
