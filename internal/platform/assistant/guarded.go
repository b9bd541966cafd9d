package assistant

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

// Fallback replies.
const (
	FallbackBrief     = "Patient has chronic conditions and known allergies. Check full records if possible."
	FallbackChatError = "Sorry, I encountered an error connecting to my medical brain."
	FallbackChatEmpty = "I apologize, I could not generate a response."
)

// Guarded wraps a Service and never returns an error. Failures are logged
// and replaced with fallback values.
type Guarded struct {
	svc    Service
	logger zerolog.Logger
}

// NewGuarded wraps svc. A nil svc behaves like Unavailable.
func NewGuarded(svc Service, logger zerolog.Logger) *Guarded {
	if svc == nil {
		svc = Unavailable{}
	}
	return &Guarded{svc: svc, logger: logger.With().Str("component", "assistant").Logger()}
}

// Summarize extracts a record from free text. Returns nil on failure.
func (g *Guarded) Summarize(ctx context.Context, text string) *Analysis {
	a, err := g.svc.SummarizeRecord(ctx, text)
	if err != nil {
		g.logger.Warn().Err(err).Str("op", "summarize").Msg("generative call failed")
		return nil
	}
	return a
}

// Analyze extracts a record from a document image. Returns nil on failure.
func (g *Guarded) Analyze(ctx context.Context, data []byte, mimeType string) *Analysis {
	a, err := g.svc.AnalyzeImage(ctx, data, mimeType)
	if err != nil {
		g.logger.Warn().Err(err).Str("op", "analyze_image").Str("mime_type", mimeType).Msg("generative call failed")
		return nil
	}
	return a
}

// Brief returns the emergency brief, or FallbackBrief on failure.
func (g *Guarded) Brief(ctx context.Context, profile patient.Profile, recs []records.MedicalRecord) string {
	text, err := g.svc.EmergencyBrief(ctx, profile, recs)
	if err != nil {
		g.logger.Warn().Err(err).Str("op", "emergency_brief").Msg("generative call failed")
		return FallbackBrief
	}
	if strings.TrimSpace(text) == "" {
		return FallbackBrief
	}
	return text
}

// Conversation opens a chat with the given system instruction. The backend
// chat is created on the first message.
func (g *Guarded) Conversation(systemInstruction string) *Conversation {
	return &Conversation{g: g, instruction: systemInstruction}
}

// Conversation is a guarded chat. Send always returns a displayable reply.
type Conversation struct {
	g           *Guarded
	instruction string

	mu   sync.Mutex
	chat Chat
}

// Send forwards text and returns the reply. Turns are serialized.
func (c *Conversation) Send(ctx context.Context, text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chat == nil {
		chat, err := c.g.svc.NewChat(ctx, c.instruction)
		if err != nil {
			c.g.logger.Warn().Err(err).Str("op", "chat_create").Msg("generative call failed")
			return FallbackChatError
		}
		c.chat = chat
	}

	reply, err := c.chat.Send(ctx, text)
	if err != nil {
		c.g.logger.Warn().Err(err).Str("op", "chat_send").Msg("generative call failed")
		return FallbackChatError
	}
	if strings.TrimSpace(reply) == "" {
		return FallbackChatEmpty
	}
	return reply
}
