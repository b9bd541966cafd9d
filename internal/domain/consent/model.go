package consent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AccessMode scopes what a doctor may see under a grant.
type AccessMode string

const (
	// ModeStandard exposes the full profile and record history.
	ModeStandard AccessMode = "Standard"
	// ModeEmergency exposes life-saving criticals only, never record history.
	ModeEmergency AccessMode = "Emergency"
	// ModeIncognito exposes the full history with the patient's name suppressed.
	ModeIncognito AccessMode = "Incognito"
)

// Known reports whether m is one of the defined access modes.
func (m AccessMode) Known() bool {
	switch m {
	case ModeStandard, ModeEmergency, ModeIncognito:
		return true
	}
	return false
}

// ParseAccessMode accepts a mode name in any letter case.
func ParseAccessMode(s string) (AccessMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard":
		return ModeStandard, nil
	case "emergency":
		return ModeEmergency, nil
	case "incognito":
		return ModeIncognito, nil
	}
	return "", fmt.Errorf("unknown access mode %q", s)
}

// GrantStatus is the lifecycle status of a grant. Revoked grants are removed
// from the store, so a stored grant is always Active.
type GrantStatus string

const (
	StatusActive  GrantStatus = "Active"
	StatusRevoked GrantStatus = "Revoked"
)

// Grant is a patient's authorization for one doctor to view their data.
type Grant struct {
	ID             string      `json:"id"`
	DoctorName     string      `json:"doctor_name"`
	Specialization string      `json:"specialization"`
	Facility       string      `json:"facility"`
	ExpiryDate     time.Time   `json:"-"`
	Mode           AccessMode  `json:"mode"`
	Status         GrantStatus `json:"status"`
}

// DateLayout is the calendar-date format used for grant expiry dates.
const DateLayout = "2006-01-02"

// MarshalJSON renders the expiry as a plain calendar date.
func (g Grant) MarshalJSON() ([]byte, error) {
	type alias Grant
	var expiry string
	if !g.ExpiryDate.IsZero() {
		expiry = g.ExpiryDate.Format(DateLayout)
	}
	return json.Marshal(struct {
		alias
		ExpiryDate string `json:"expiry_date,omitempty"`
	}{alias: alias(g), ExpiryDate: expiry})
}

// IsActive reports whether the grant currently authorizes access.
func (g Grant) IsActive() bool {
	return g.Status == StatusActive
}

// GrantRequest carries the patient-supplied fields of a new grant.
type GrantRequest struct {
	DoctorName     string
	Specialization string
	Facility       string
	ExpiryDate     time.Time
	Mode           AccessMode
}
