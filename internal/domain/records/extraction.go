package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Extraction is what a document analysis reports about a record. Every field
// comes from an external service and may be missing.
type Extraction struct {
	Summary              string   `json:"summary"`
	Insights             []string `json:"insights"`
	IsDuplicatePotential bool     `json:"isDuplicatePotential"`
	Facility             string   `json:"facility"`
	Doctor               string   `json:"doctor"`
	Type                 string   `json:"type"`
}

// Defaults substituted for missing extraction fields.
const (
	DefaultFacility = "Unknown Facility"
	DefaultDoctor   = "Unknown Doctor"
	DefaultSummary  = "New medical entry added."
)

// FromExtraction builds a new record from an extraction, filling absent or
// unrecognized fields with the defaults above. fileName is kept as the
// record's file reference when the record came from an upload.
func FromExtraction(x Extraction, fileName string, now time.Time) MedicalRecord {
	rec := MedicalRecord{
		ID:          uuid.NewString(),
		Date:        now,
		Type:        TypeConsultation,
		Facility:    orDefault(x.Facility, DefaultFacility),
		Doctor:      orDefault(x.Doctor, DefaultDoctor),
		Summary:     orDefault(x.Summary, DefaultSummary),
		Insights:    []string{},
		IsDuplicate: x.IsDuplicatePotential,
		FileURL:     fileName,
	}
	if t, ok := ParseType(x.Type); ok {
		rec.Type = t
	}
	for _, in := range x.Insights {
		if in = strings.TrimSpace(in); in != "" {
			rec.Insights = append(rec.Insights, in)
		}
	}
	return rec
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
