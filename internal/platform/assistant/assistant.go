// Package assistant is the boundary to the external generative-content
// service used for record extraction, emergency briefs and health chat.
//
// Service implementations report failures as errors. Callers inside the
// portal go through Guarded, which turns every failure into the documented
// fallback value so that no external error reaches a store mutation.
package assistant

import (
	"context"
	"errors"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

// ErrUnavailable is returned when no generative backend is configured.
var ErrUnavailable = errors.New("assistant: service unavailable")

// Analysis is the structured extraction of a medical document.
type Analysis = records.Extraction

// Service is a generative-content backend.
type Service interface {
	SummarizeRecord(ctx context.Context, text string) (*Analysis, error)
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Analysis, error)
	EmergencyBrief(ctx context.Context, profile patient.Profile, recs []records.MedicalRecord) (string, error)
	NewChat(ctx context.Context, systemInstruction string) (Chat, error)
}

// Chat is a stateful conversation. Each Send sees the previous turns.
type Chat interface {
	Send(ctx context.Context, text string) (string, error)
}

// Unavailable is the Service used when no API key is configured.
type Unavailable struct{}

func (Unavailable) SummarizeRecord(context.Context, string) (*Analysis, error) {
	return nil, ErrUnavailable
}

func (Unavailable) AnalyzeImage(context.Context, []byte, string) (*Analysis, error) {
	return nil, ErrUnavailable
}

func (Unavailable) EmergencyBrief(context.Context, patient.Profile, []records.MedicalRecord) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) NewChat(context.Context, string) (Chat, error) {
	return nil, ErrUnavailable
}
