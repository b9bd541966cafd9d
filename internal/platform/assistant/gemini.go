package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

// Default model names.
const (
	DefaultTextModel   = "gemini-3-flash-preview"
	DefaultVisionModel = "gemini-3-pro-preview"
	DefaultChatModel   = "gemini-3-pro-preview"
)

// GeminiConfig selects the API key and models.
type GeminiConfig struct {
	APIKey      string
	TextModel   string
	VisionModel string
	ChatModel   string
}

// contentGenerator is the subset of *genai.Models used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// chatCreator is the subset of *genai.Chats used here.
type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (*genai.Chat, error)
}

// Gemini is a Service backed by the Gemini API.
type Gemini struct {
	models contentGenerator
	chats  chatCreator
	cfg    GeminiConfig
}

// NewGemini creates a Gemini client. It does not contact the API.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, client.Chats, cfg), nil
}

func newGemini(models contentGenerator, chats chatCreator, cfg GeminiConfig) *Gemini {
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = DefaultVisionModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	return &Gemini{models: models, chats: chats, cfg: cfg}
}

func (g *Gemini) SummarizeRecord(ctx context.Context, text string) (*Analysis, error) {
	resp, err := g.models.GenerateContent(ctx, g.cfg.TextModel,
		genai.Text(fmt.Sprintf(summarizePrompt, text)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema(true),
		})
	if err != nil {
		return nil, fmt.Errorf("summarize record: %w", err)
	}
	return decodeAnalysis(resp.Text())
}

func (g *Gemini) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Analysis, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(imagePrompt),
	}
	resp, err := g.models.GenerateContent(ctx, g.cfg.VisionModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   analysisSchema(false),
		})
	if err != nil {
		return nil, fmt.Errorf("analyze image: %w", err)
	}
	return decodeAnalysis(resp.Text())
}

func (g *Gemini) EmergencyBrief(ctx context.Context, profile patient.Profile, recs []records.MedicalRecord) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.cfg.TextModel, genai.Text(BriefPrompt(profile, recs)), nil)
	if err != nil {
		return "", fmt.Errorf("emergency brief: %w", err)
	}
	return resp.Text(), nil
}

func (g *Gemini) NewChat(ctx context.Context, systemInstruction string) (Chat, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	}
	chat, err := g.chats.Create(ctx, g.cfg.ChatModel, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &geminiChat{chat: chat}, nil
}

type geminiChat struct {
	chat *genai.Chat
}

func (c *geminiChat) Send(ctx context.Context, text string) (string, error) {
	resp, err := c.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return "", fmt.Errorf("send chat message: %w", err)
	}
	return resp.Text(), nil
}
