package biz

import (
	"strings"
	"testing"

	"github.com/kart-io/revdiff/internal/model"
)

func TestParseCompletion_WellFormed(t *testing.T) {
	raw := "SUMMARY: Minor wording fix in the introduction.\n" +
		"CHANGES:\n" +
		"• Fixed typo in the first paragraph\n" +
		"- Removed an outdated reference\n" +
		"SIGNIFICANCE: Minor"

	parsed := ParseCompletion(raw)

	if parsed.Summary != "Minor wording fix in the introduction." {
		t.Errorf("unexpected summary: %q", parsed.Summary)
	}
	if parsed.Significance != model.SignificanceLow {
		t.Errorf("expected low significance, got %v", parsed.Significance)
	}
	if !strings.Contains(parsed.DetailedChanges, "Fixed typo in the first paragraph") {
		t.Errorf("bullet missing from detailed changes: %q", parsed.DetailedChanges)
	}
	if !strings.Contains(parsed.DetailedChanges, "Removed an outdated reference") {
		t.Errorf("dash bullet missing from detailed changes: %q", parsed.DetailedChanges)
	}
	if !parsed.ChangeType.Has(model.ChangeTypeContentModification) {
		t.Error("content modification flag should always be set")
	}
	if !parsed.ChangeType.Has(model.ChangeTypeDeletion) {
		t.Error("'Removed' bullet should set the deletion flag")
	}
	if parsed.Confidence != 0.85 {
		t.Errorf("expected default confidence 0.85, got %v", parsed.Confidence)
	}
}

func TestParseCompletion_SignificanceLabels(t *testing.T) {
	cases := map[string]model.Significance{
		"Critical":  model.SignificanceCritical,
		"high":      model.SignificanceHigh,
		"MEDIUM":    model.SignificanceMedium,
		"Minor":     model.SignificanceLow,
		"low":       model.SignificanceLow,
		"whatever":  model.SignificanceMedium,
		"  Medium ": model.SignificanceMedium,
	}
	for label, want := range cases {
		raw := "SUMMARY: s\nSIGNIFICANCE: " + label
		if got := ParseCompletion(raw).Significance; got != want {
			t.Errorf("label %q: expected %v, got %v", label, want, got)
		}
	}
}

func TestParseCompletion_FallbackOnMissingSummary(t *testing.T) {
	raw := strings.Repeat("x", 600)

	parsed := ParseCompletion(raw)

	if len(parsed.Summary) != 503 { // 500 chars plus ellipsis
		t.Errorf("expected truncated fallback summary, got len %d", len(parsed.Summary))
	}
	if !strings.HasSuffix(parsed.Summary, "...") {
		t.Error("fallback summary should end with ellipsis")
	}
	if parsed.DetailedChanges != "" {
		t.Errorf("fallback should have no detailed changes, got %q", parsed.DetailedChanges)
	}
	if parsed.ChangeType != model.ChangeTypeContentModification {
		t.Errorf("fallback change type should be content modification only, got %v", parsed.ChangeType)
	}
	if parsed.Significance != model.SignificanceMedium {
		t.Errorf("fallback significance should be medium, got %v", parsed.Significance)
	}
}

func TestParseCompletion_ShortFallbackNotTruncated(t *testing.T) {
	parsed := ParseCompletion("just some prose without structure")
	if parsed.Summary != "just some prose without structure" {
		t.Errorf("short raw text should pass through: %q", parsed.Summary)
	}
}

func TestDetectChangeTypes(t *testing.T) {
	flags := detectChangeTypes("• Added a new section\n• Removed the appendix\n• Changed the format of tables")

	for _, want := range []model.ChangeType{
		model.ChangeTypeAddition,
		model.ChangeTypeDeletion,
		model.ChangeTypeStructural,
		model.ChangeTypeContentModification,
	} {
		if !flags.Has(want) {
			t.Errorf("expected flag %v to be set in %v", want, flags)
		}
	}
}

func TestApproxTokens(t *testing.T) {
	if got := ApproxTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("expected 100 tokens for 400 chars, got %d", got)
	}
	if got := ApproxTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}
}
