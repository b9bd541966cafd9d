package auditlog

import "time"

// Entry is an immutable audit record. Seq is assigned in append order and is
// the authoritative ordering key; Timestamp is the capture time.
type Entry struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Purpose   string    `json:"purpose"`
}

// Draft carries the caller-supplied fields of a new entry.
type Draft struct {
	Actor   string
	Action  string
	Purpose string
}

// Actions and purposes written by the portal.
const (
	ActionGrantIssued      = "Granted Access to Dr. " // followed by the doctor name
	ActionGrantRevoked     = "Revoked Access Grant"
	ActionRecordAdded      = "Added New Record"
	ActionRecordsAccessed  = "Accessed Patient Records"
	ActionEmergencyAccess  = "Accessed Emergency Profile"
	ActionAnonymizedAccess = "Accessed Anonymized Records"
	ActionAccessDenied     = "Denied Access Attempt"

	PurposeCareContinuity   = "Care Continuity"
	PurposePrivacy          = "Privacy"
	PurposeSelfManagement   = "Self Management"
	PurposeConsultation     = "Consultation"
	PurposeEmergencyCare    = "Emergency Care"
	PurposeAnonymizedReview = "Anonymized Review"
	PurposeExpired          = "Expired"
)
