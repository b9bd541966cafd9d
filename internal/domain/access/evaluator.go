// Package access decides what a doctor may see of a patient's data under a
// consent grant. Evaluate is a pure function: it never mutates its inputs and
// never shares their backing slices with the returned projection.
package access

import (
	"github.com/healthguard/portal/internal/domain/consent"
	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

// AnonymizedName replaces the patient's name in Incognito projections.
const AnonymizedName = "Anonymized Subject"

// Decision is the outcome of an evaluation.
type Decision string

const (
	DecisionPermit Decision = "permit"
	DecisionDeny   Decision = "deny"
)

// Criticals is the life-saving subset of a profile shared in Emergency mode.
type Criticals struct {
	BloodGroup        string   `json:"blood_group"`
	Allergies         []string `json:"allergies"`
	ChronicConditions []string `json:"chronic_conditions"`
}

// Projection is the filtered view of a patient for one grant. Exactly one of
// Profile or Criticals is set on a permitted projection; a denied projection
// carries no data at all.
type Projection struct {
	Decision  Decision                `json:"decision"`
	Mode      consent.AccessMode      `json:"mode,omitempty"`
	Profile   *patient.Profile        `json:"profile,omitempty"`
	Criticals *Criticals              `json:"criticals,omitempty"`
	Records   []records.MedicalRecord `json:"records,omitempty"`
}

// Denied returns the empty projection produced for any non-active grant.
func Denied() Projection {
	return Projection{Decision: DecisionDeny}
}

// Permitted reports whether the projection carries data.
func (p Projection) Permitted() bool {
	return p.Decision == DecisionPermit
}

// Evaluate computes the projection of profile and recs allowed by grant.
//
//   - non-active grant: Denied, regardless of mode
//   - Standard: full profile and records
//   - Incognito: as Standard with the name replaced by AnonymizedName
//   - Emergency, or any unrecognized mode: Criticals only, no records
func Evaluate(profile patient.Profile, recs []records.MedicalRecord, grant consent.Grant) Projection {
	if !grant.IsActive() {
		return Denied()
	}

	switch grant.Mode {
	case consent.ModeStandard:
		p := profile.Clone()
		return Projection{
			Decision: DecisionPermit,
			Mode:     consent.ModeStandard,
			Profile:  &p,
			Records:  cloneRecords(recs),
		}
	case consent.ModeIncognito:
		p := profile.Clone()
		p.Name = AnonymizedName
		return Projection{
			Decision: DecisionPermit,
			Mode:     consent.ModeIncognito,
			Profile:  &p,
			Records:  cloneRecords(recs),
		}
	default:
		// Emergency, and fail closed for modes this build does not know.
		return emergency(profile)
	}
}

func emergency(profile patient.Profile) Projection {
	p := profile.Clone()
	return Projection{
		Decision: DecisionPermit,
		Mode:     consent.ModeEmergency,
		Criticals: &Criticals{
			BloodGroup:        p.BloodGroup,
			Allergies:         p.Allergies,
			ChronicConditions: p.ChronicConditions,
		},
	}
}

func cloneRecords(in []records.MedicalRecord) []records.MedicalRecord {
	out := make([]records.MedicalRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
