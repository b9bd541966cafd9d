package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type is the closed set of clinical event kinds.
type Type int

const (
	TypeConsultation Type = iota
	TypeBloodTest
	TypeXRay
	TypePrescription
	TypeMRI
	TypeVaccination
)

var typeLabels = map[Type]string{
	TypeConsultation: "Consultation",
	TypeBloodTest:    "Blood Test",
	TypeXRay:         "X-Ray",
	TypePrescription: "Prescription",
	TypeMRI:          "MRI",
	TypeVaccination:  "Vaccination",
}

// String returns the display label, e.g. "Blood Test".
func (t Type) String() string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return typeLabels[TypeConsultation]
}

// Labels returns every display label in schema order.
func Labels() []string {
	return []string{
		typeLabels[TypeBloodTest],
		typeLabels[TypeXRay],
		typeLabels[TypePrescription],
		typeLabels[TypeConsultation],
		typeLabels[TypeMRI],
		typeLabels[TypeVaccination],
	}
}

// ParseType maps a display label (case and punctuation insensitive) to a Type.
func ParseType(s string) (Type, bool) {
	key := normalizeLabel(s)
	for t, l := range typeLabels {
		if normalizeLabel(l) == key {
			return t, true
		}
	}
	return TypeConsultation, false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseType(s)
	if !ok {
		return fmt.Errorf("unknown record type %q", s)
	}
	*t = parsed
	return nil
}

// MedicalRecord is a single clinical event in the patient's timeline. Records
// are never modified once added.
type MedicalRecord struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Type        Type      `json:"type"`
	Facility    string    `json:"facility"`
	Doctor      string    `json:"doctor"`
	Summary     string    `json:"summary"`
	Insights    []string  `json:"insights"`
	IsDuplicate bool      `json:"is_duplicate,omitempty"`
	FileURL     string    `json:"file_url,omitempty"`
}

// Clone returns a copy that does not share the insights slice.
func (r MedicalRecord) Clone() MedicalRecord {
	out := r
	out.Insights = make([]string, len(r.Insights))
	copy(out.Insights, r.Insights)
	return out
}
