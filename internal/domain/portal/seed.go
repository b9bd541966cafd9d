package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/healthguard/portal/internal/domain/auditlog"
	"github.com/healthguard/portal/internal/domain/consent"
	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

// DemoPatientID identifies the demo patient.
const DemoPatientID = "HG-66-1029-X"

// DemoDoctor is the identity used by the doctor login.
const DemoDoctor = "Dr. Vikram Seth"

func DemoProfile() patient.Profile {
	return patient.Profile{
		ID:                DemoPatientID,
		Name:              "Rahul Sharma",
		Age:               32,
		BloodGroup:        "B+",
		Allergies:         []string{"Penicillin", "Peanuts"},
		ChronicConditions: []string{"Type 1 Diabetes"},
	}
}

// DemoRecords returns the demo timeline, newest first.
func DemoRecords() []records.MedicalRecord {
	return []records.MedicalRecord{
		{
			ID:       "1",
			Date:     time.Date(2024, time.October, 24, 0, 0, 0, 0, time.UTC),
			Type:     records.TypeBloodTest,
			Facility: "Metropolis Labs",
			Doctor:   "Lab Assistant",
			Summary:  "Routine CBC and Vitamin D screening. Vitamin D found deficient (15ng/ml).",
			Insights: []string{"Vitamin D Deficiency (Low)", "Hemoglobin Normal"},
		},
		{
			ID:       "2",
			Date:     time.Date(2024, time.September, 12, 0, 0, 0, 0, time.UTC),
			Type:     records.TypeConsultation,
			Facility: "AIIMS Delhi",
			Doctor:   "Dr. Vikram Seth",
			Summary:  "Quarterly diabetic follow-up. Blood sugar levels are stable. Advised to maintain current insulin pump dosage.",
			Insights: []string{"Good Glycemic Control", "No dosage change"},
		},
	}
}

func DemoGrants() []consent.Grant {
	return []consent.Grant{
		{
			ID:             "g1",
			DoctorName:     "Vikram Seth",
			Specialization: "Endocrinologist",
			Facility:       "AIIMS Delhi",
			ExpiryDate:     time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
			Mode:           consent.ModeStandard,
			Status:         consent.StatusActive,
		},
	}
}

// NewDemoSession builds the demo patient's session on top of repo. The
// historical audit entries are only written into an empty log.
func NewDemoSession(ctx context.Context, repo auditlog.Repository, opts Options) (*Session, error) {
	grants := consent.NewStore()
	grants.Seed(DemoGrants()...)

	log := auditlog.NewLog(repo)
	n, err := log.Len(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed demo session: %w", err)
	}
	if n == 0 {
		now := time.Now()
		history := []struct {
			draft auditlog.Draft
			at    time.Time
		}{
			{auditlog.Draft{Actor: "Rahul Sharma", Action: "Uploaded MRI Scan", Purpose: auditlog.PurposeSelfManagement}, now.Add(-24 * time.Hour)},
			{auditlog.Draft{Actor: "Dr. Vikram Seth", Action: "Accessed Lab Reports", Purpose: auditlog.PurposeConsultation}, now.Add(-2 * time.Hour)},
		}
		for _, h := range history {
			if _, err := log.AppendAt(ctx, h.draft, h.at); err != nil {
				return nil, fmt.Errorf("seed demo session: %w", err)
			}
		}
	}

	return NewSession(DemoProfile(), grants, records.NewRepository(DemoRecords()...), log, opts), nil
}
