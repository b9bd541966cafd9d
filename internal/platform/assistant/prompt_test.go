package assistant

import (
	"strings"
	"testing"
	"time"

	"github.com/healthguard/portal/internal/domain/patient"
	"github.com/healthguard/portal/internal/domain/records"
)

func testProfile() patient.Profile {
	return patient.Profile{
		ID:         "HG-1",
		Name:       "Asha Rao",
		Age:        40,
		BloodGroup: "O-",
		Allergies:  []string{"Penicillin", "Latex"},
	}
}

func testRecords(n int) []records.MedicalRecord {
	out := make([]records.MedicalRecord, n)
	for i := range out {
		out[i] = records.MedicalRecord{
			ID:      string(rune('a' + i)),
			Date:    time.Date(2024, time.Month(i+1), 5, 0, 0, 0, 0, time.UTC),
			Type:    records.TypeBloodTest,
			Summary: "summary-" + string(rune('a'+i)),
		}
	}
	return out
}

func TestBriefPrompt_UsesThreeNewestRecords(t *testing.T) {
	p := BriefPrompt(testProfile(), testRecords(5))
	for _, want := range []string{"Name: Asha Rao", "Blood: O-", "Allergies: Penicillin, Latex", "summary-a", "summary-c"} {
		if !strings.Contains(p, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}
	if strings.Contains(p, "summary-d") {
		t.Error("expected only the three newest records")
	}
}

func TestBriefPrompt_NoRecords(t *testing.T) {
	p := BriefPrompt(testProfile(), nil)
	if !strings.HasSuffix(p, "records: []") {
		t.Errorf("expected empty record list, got %q", p)
	}
}

func TestChatInstruction_Digest(t *testing.T) {
	got := ChatInstruction(testProfile(), testRecords(2))
	for _, want := range []string{
		"You are a medical assistant for Asha Rao (Age: 40, Blood: O-).",
		"Known Allergies: Penicillin, Latex.",
		"Jan 5, 2024 Blood Test: summary-a | Feb 5, 2024 Blood Test: summary-b",
		"medical disclaimer",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected instruction to contain %q, got:\n%s", want, got)
		}
	}
}

func TestGreeting(t *testing.T) {
	want := "Hello Asha Rao, I'm your HealthGuard Assistant. I've reviewed your records. How can I help you today?"
	if got := Greeting("Asha Rao"); got != want {
		t.Errorf("got %q", got)
	}
}

func TestDecodeAnalysis(t *testing.T) {
	a, err := decodeAnalysis(`{"summary":"CBC","insights":["ok"],"isDuplicatePotential":true,"facility":"Apollo","doctor":"Dr. K","type":"Blood Test"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Facility != "Apollo" || !a.IsDuplicatePotential || a.Type != "Blood Test" {
		t.Errorf("unexpected analysis: %+v", a)
	}

	empty, err := decodeAnalysis("")
	if err != nil || empty == nil {
		t.Fatalf("expected empty analysis, got %v %v", empty, err)
	}

	if _, err := decodeAnalysis("not json"); err == nil {
		t.Error("expected decode error")
	}
}
