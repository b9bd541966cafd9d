package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/config"
	"github.com/healthguard/portal/internal/domain/portal"
)

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig(env string) *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            env,
		DBMaxConns:     10,
		DBMinConns:     2,
		CORSOrigins:    []string{"http://localhost:3000"},
		AuthIssuer:     "healthguard",
		AuthSigningKey: "0123456789abcdef0123456789abcdef",
		TokenTTL:       time.Hour,
		BriefCacheTTL:  time.Minute,
		MaxUploadBytes: 1 << 20,
		MaxOpenChats:   4,
		RequestTimeout: 5 * time.Second,
	}
}

func serve(t *testing.T, env string, d deps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e, _, err := newServer(context.Background(), testConfig(env), d, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	rec := serve(t, "production", deps{}, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected health response %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id")
	}
}

func TestServer_DBHealth(t *testing.T) {
	rec := serve(t, "development", deps{}, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected no db health route without a database, got %d", rec.Code)
	}

	rec = serve(t, "production", deps{dbHealth: downPinger{}}, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestServer_ProductionRequiresToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+portal.DemoPatientID+"/profile", nil)
	if rec := serve(t, "production", deps{}, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServer_DevFallsBackToDemoPatient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/"+portal.DemoPatientID+"/profile", nil)
	rec := serve(t, "development", deps{}, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Rahul Sharma") {
		t.Errorf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_LoginIsPublic(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"role":"patient"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(t, "production", deps{}, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token"`) {
		t.Errorf("unexpected login response %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	rec := serve(t, "production", deps{}, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}

func TestNewLogger_FollowsConfiguredEnv(t *testing.T) {
	tests := []struct {
		env      string
		wantJSON bool
	}{
		{"development", false},
		{"production", true},
		{"staging", true},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf strings.Builder
			logger := newLogger(&buf, testConfig(tt.env))
			logger.Info().Msg("started")
			out := strings.TrimSpace(buf.String())
			isJSON := strings.HasPrefix(out, "{")
			if isJSON != tt.wantJSON {
				t.Errorf("ENV=%s: JSON output = %v, want %v: %s", tt.env, isJSON, tt.wantJSON, out)
			}
			if !strings.Contains(out, "started") {
				t.Errorf("ENV=%s: message missing from %q", tt.env, out)
			}
		})
	}
}
