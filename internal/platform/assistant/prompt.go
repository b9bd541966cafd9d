package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

const (
	summarizePrompt = "Summarize the following medical record and extract 3 key health insights as a bulleted list. Record: %s"
	imagePrompt     = "Analyze this medical document image. Extract the hospital/facility name, doctor name, type of report, and a detailed summary of findings. Also, identify 3-5 key health insights. Format as JSON."
	briefPrompt     = "Generate a critical 30-word emergency brief for medical staff based on this patient. Name: %s, Blood: %s, Allergies: %s, Recent Meds/Conditions from records: %s"

	// briefRecordLimit is how many of the newest records feed the brief.
	briefRecordLimit = 3

	digestDateLayout = "Jan 2, 2006"
)

// BriefPrompt builds the emergency-brief prompt from the profile and the
// newest records.
func BriefPrompt(profile patient.Profile, recs []records.MedicalRecord) string {
	recent := recs
	if len(recent) > briefRecordLimit {
		recent = recent[:briefRecordLimit]
	}
	if recent == nil {
		recent = []records.MedicalRecord{}
	}
	raw, err := json.Marshal(recent)
	if err != nil {
		raw = []byte("[]")
	}
	return fmt.Sprintf(briefPrompt,
		profile.Name, profile.BloodGroup, strings.Join(profile.Allergies, ", "), raw)
}

// ChatInstruction builds the system instruction for a health chat.
func ChatInstruction(profile patient.Profile, recs []records.MedicalRecord) string {
	digest := make([]string, 0, len(recs))
	for _, r := range recs {
		digest = append(digest, fmt.Sprintf("%s %s: %s", r.Date.Format(digestDateLayout), r.Type, r.Summary))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a medical assistant for %s (Age: %d, Blood: %s).\n", profile.Name, profile.Age, profile.BloodGroup)
	fmt.Fprintf(&b, "Known Allergies: %s.\n", strings.Join(profile.Allergies, ", "))
	fmt.Fprintf(&b, "Patient Records Summary: %s.\n", strings.Join(digest, " | "))
	b.WriteString("Answer user questions based on their records and profile. Be helpful, concise, and always include a medical disclaimer.")
	return b.String()
}

// Greeting is the first assistant turn shown when a chat opens.
func Greeting(name string) string {
	return fmt.Sprintf("Hello %s, I'm your HealthGuard Assistant. I've reviewed your records. How can I help you today?", name)
}

// analysisSchema constrains the JSON returned for record extraction.
func analysisSchema(describeDuplicate bool) *genai.Schema {
	dup := &genai.Schema{Type: genai.TypeBoolean}
	if describeDuplicate {
		dup.Description = "Whether this sounds like a duplicate of a common test like CBC or Vitamin D"
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary":              {Type: genai.TypeString},
			"insights":             {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"isDuplicatePotential": dup,
			"facility":             {Type: genai.TypeString},
			"doctor":               {Type: genai.TypeString},
			"type":                 {Type: genai.TypeString, Enum: records.Labels()},
		},
		Required: []string{"summary", "insights", "isDuplicatePotential", "facility", "doctor", "type"},
	}
}

// decodeAnalysis parses a model reply. An empty reply decodes to an empty
// analysis, which the fallback table then fills.
func decodeAnalysis(text string) (*Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Analysis{}, nil
	}
	var a Analysis
	if err := json.Unmarshal([]byte(text), &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}
