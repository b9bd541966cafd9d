package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type fakeModels struct {
	reply  string
	err    error
	model  string
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 {
		f.parts = contents[0].Parts
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.reply}}},
		}},
	}, nil
}

func TestGemini_SummarizeRecord(t *testing.T) {
	models := &fakeModels{reply: `{"summary":"Thyroid panel normal","insights":["TSH normal"],"isDuplicatePotential":false,"facility":"Max","doctor":"Dr. Rao","type":"Blood Test"}`}
	g := newGemini(models, nil, GeminiConfig{})

	a, err := g.SummarizeRecord(context.Background(), "TSH 2.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Summary != "Thyroid panel normal" {
		t.Errorf("unexpected summary %q", a.Summary)
	}
	if models.model != DefaultTextModel {
		t.Errorf("expected model %s, got %s", DefaultTextModel, models.model)
	}
	if models.config.ResponseMIMEType != "application/json" {
		t.Errorf("expected JSON response type, got %q", models.config.ResponseMIMEType)
	}
	if !strings.Contains(models.parts[0].Text, "Record: TSH 2.1") {
		t.Errorf("expected record text in prompt, got %q", models.parts[0].Text)
	}
}

func TestGemini_AnalyzeImageUsesVisionModel(t *testing.T) {
	models := &fakeModels{reply: `{}`}
	g := newGemini(models, nil, GeminiConfig{VisionModel: "vision-x"})

	if _, err := g.AnalyzeImage(context.Background(), []byte{0x89, 0x50}, "image/png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if models.model != "vision-x" {
		t.Errorf("expected vision-x, got %s", models.model)
	}
	if len(models.parts) != 2 || models.parts[0].InlineData == nil {
		t.Fatalf("expected inline image part followed by text, got %+v", models.parts)
	}
	if models.parts[0].InlineData.MIMEType != "image/png" {
		t.Errorf("unexpected mime type %q", models.parts[0].InlineData.MIMEType)
	}
}

func TestGemini_ErrorsAreWrapped(t *testing.T) {
	cause := errors.New("429")
	g := newGemini(&fakeModels{err: cause}, nil, GeminiConfig{})
	if _, err := g.EmergencyBrief(context.Background(), testProfile(), nil); !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestGemini_MalformedJSON(t *testing.T) {
	g := newGemini(&fakeModels{reply: "```json"}, nil, GeminiConfig{})
	if _, err := g.SummarizeRecord(context.Background(), "x"); err == nil {
		t.Error("expected decode error")
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiConfig{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
