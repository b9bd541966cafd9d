package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWith(id *Identity, path, param, value string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != nil {
		req = req.WithContext(WithIdentity(req.Context(), *id))
	}
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)
	if param != "" {
		c.SetParamNames(param)
		c.SetParamValues(value)
	}
	return c
}

func TestRequireRole(t *testing.T) {
	doctor := &Identity{Subject: "Dr. A", Role: RoleDoctor}
	patient := &Identity{Subject: "HG-1", Role: RolePatient}

	if err := RequireRole(RoleDoctor)(okHandler)(contextWith(doctor, "/", "", "")); err != nil {
		t.Errorf("expected doctor allowed, got %v", err)
	}
	assertHTTPError(t, RequireRole(RoleDoctor)(okHandler)(contextWith(patient, "/", "", "")), http.StatusForbidden)
	assertHTTPError(t, RequireRole(RoleDoctor)(okHandler)(contextWith(nil, "/", "", "")), http.StatusUnauthorized)
}

func TestRequireSubject(t *testing.T) {
	patient := &Identity{Subject: "HG-1", Role: RolePatient}
	mw := RequireSubject("patientId")

	if err := mw(okHandler)(contextWith(patient, "/p/:patientId", "patientId", "HG-1")); err != nil {
		t.Errorf("expected own record allowed, got %v", err)
	}
	assertHTTPError(t, mw(okHandler)(contextWith(patient, "/p/:patientId", "patientId", "HG-2")), http.StatusForbidden)
}
