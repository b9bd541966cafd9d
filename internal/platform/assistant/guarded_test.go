package assistant

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

type mockService struct {
	analysis   *Analysis
	brief      string
	chatReply  string
	err        error
	chatErr    error
	chatsMade  int
	lastPrompt string
}

func (m *mockService) SummarizeRecord(_ context.Context, text string) (*Analysis, error) {
	m.lastPrompt = text
	return m.analysis, m.err
}

func (m *mockService) AnalyzeImage(_ context.Context, _ []byte, _ string) (*Analysis, error) {
	return m.analysis, m.err
}

func (m *mockService) EmergencyBrief(_ context.Context, _ patient.Profile, _ []records.MedicalRecord) (string, error) {
	return m.brief, m.err
}

func (m *mockService) NewChat(_ context.Context, instruction string) (Chat, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.chatsMade++
	m.lastPrompt = instruction
	return &mockChat{reply: m.chatReply, err: m.chatErr}, nil
}

type mockChat struct {
	reply string
	err   error
	turns []string
}

func (c *mockChat) Send(_ context.Context, text string) (string, error) {
	c.turns = append(c.turns, text)
	return c.reply, c.err
}

func TestGuarded_SummarizeFailureIsNil(t *testing.T) {
	g := NewGuarded(&mockService{err: errors.New("timeout")}, zerolog.Nop())
	if a := g.Summarize(context.Background(), "cbc"); a != nil {
		t.Errorf("expected nil analysis, got %+v", a)
	}
	if a := g.Analyze(context.Background(), []byte{1}, "image/png"); a != nil {
		t.Errorf("expected nil analysis, got %+v", a)
	}
}

func TestGuarded_SummarizePassesThrough(t *testing.T) {
	want := &Analysis{Summary: "Lipid panel", Type: "Blood Test"}
	g := NewGuarded(&mockService{analysis: want}, zerolog.Nop())
	got := g.Summarize(context.Background(), "lipids")
	if got != want {
		t.Errorf("expected analysis to pass through, got %+v", got)
	}
}

func TestGuarded_BriefFallback(t *testing.T) {
	tests := []struct {
		name string
		svc  *mockService
		want string
	}{
		{"error", &mockService{err: errors.New("quota")}, FallbackBrief},
		{"blank", &mockService{brief: "   "}, FallbackBrief},
		{"ok", &mockService{brief: "B+, penicillin allergy"}, "B+, penicillin allergy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGuarded(tt.svc, zerolog.Nop())
			if got := g.Brief(context.Background(), patient.Profile{}, nil); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGuarded_NilServiceIsUnavailable(t *testing.T) {
	g := NewGuarded(nil, zerolog.Nop())
	if got := g.Brief(context.Background(), patient.Profile{}, nil); got != FallbackBrief {
		t.Errorf("expected fallback brief, got %q", got)
	}
	if got := g.Conversation("x").Send(context.Background(), "hi"); got != FallbackChatError {
		t.Errorf("expected chat error fallback, got %q", got)
	}
}

func TestConversation_Replies(t *testing.T) {
	tests := []struct {
		name string
		svc  *mockService
		want string
	}{
		{"create fails", &mockService{err: errors.New("down")}, FallbackChatError},
		{"send fails", &mockService{chatErr: errors.New("reset")}, FallbackChatError},
		{"empty reply", &mockService{chatReply: ""}, FallbackChatEmpty},
		{"reply", &mockService{chatReply: "Stay hydrated."}, "Stay hydrated."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewGuarded(tt.svc, zerolog.Nop()).Conversation("instr")
			if got := c.Send(context.Background(), "question"); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConversation_CreatesChatOnce(t *testing.T) {
	svc := &mockService{chatReply: "ok"}
	c := NewGuarded(svc, zerolog.Nop()).Conversation("system")
	c.Send(context.Background(), "one")
	c.Send(context.Background(), "two")
	if svc.chatsMade != 1 {
		t.Errorf("expected 1 chat, got %d", svc.chatsMade)
	}
	if svc.lastPrompt != "system" {
		t.Errorf("expected system instruction to reach backend, got %q", svc.lastPrompt)
	}
}
