package biz

import (
	"strings"

	"github.com/kart-io/revdiff/internal/model"
)

// Parser defaults.
const (
	// defaultConfidence is assigned when the completion parses cleanly.
	defaultConfidence = 0.85

	// fallbackSummaryLimit caps the raw-text fallback summary.
	fallbackSummaryLimit = 500
)

// ParsedComparison is the structured result extracted from a model completion.
type ParsedComparison struct {
	Summary         string
	DetailedChanges string
	ChangeType      model.ChangeType
	Significance    model.Significance
	Confidence      float64
}

// ParseCompletion turns a free-text model completion into a structured
// result. The expected shape is:
//
//	SUMMARY: <one or two sentences>
//	CHANGES:
//	• <bullet>
//	- <bullet>
//	SIGNIFICANCE: <Minor|Medium|High|Critical>
//
// A completion without a SUMMARY line falls back to the truncated raw text
// as the summary with no detailed changes.
func ParseCompletion(raw string) *ParsedComparison {
	result := &ParsedComparison{
		Significance: model.SignificanceMedium,
		Confidence:   defaultConfidence,
	}

	var bullets []string
	collecting := false
	foundSummary := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upper, "SUMMARY:"):
			result.Summary = strings.TrimSpace(line[len("SUMMARY:"):])
			foundSummary = true
			collecting = false
		case strings.HasPrefix(upper, "CHANGES:"):
			collecting = true
		case strings.HasPrefix(upper, "SIGNIFICANCE:"):
			result.Significance = parseSignificance(line[len("SIGNIFICANCE:"):])
			collecting = false
		case collecting && (strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*")):
			bullets = append(bullets, line)
		}
	}

	if !foundSummary || result.Summary == "" {
		result.Summary = truncate(strings.TrimSpace(raw), fallbackSummaryLimit)
		result.DetailedChanges = ""
		result.ChangeType = model.ChangeTypeContentModification
		return result
	}

	result.DetailedChanges = strings.Join(bullets, "\n")
	result.ChangeType = detectChangeTypes(result.DetailedChanges)
	return result
}

// parseSignificance maps a significance label to the ordered enum.
// Unrecognized labels default to Medium.
func parseSignificance(label string) model.Significance {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "critical":
		return model.SignificanceCritical
	case "high":
		return model.SignificanceHigh
	case "medium":
		return model.SignificanceMedium
	case "minor", "low":
		return model.SignificanceLow
	default:
		return model.SignificanceMedium
	}
}

// detectChangeTypes derives the change-type bitset from keyword search over
// the detailed changes text. ContentModification is always set.
func detectChangeTypes(detailedChanges string) model.ChangeType {
	flags := model.ChangeTypeContentModification

	lower := strings.ToLower(detailedChanges)
	if strings.Contains(lower, "added") {
		flags |= model.ChangeTypeAddition
	}
	if strings.Contains(lower, "removed") || strings.Contains(lower, "deleted") {
		flags |= model.ChangeTypeDeletion
	}
	if strings.Contains(lower, "structure") || strings.Contains(lower, "format") {
		flags |= model.ChangeTypeStructural
	}
	return flags
}

// ApproxTokens estimates a token count when the gateway does not report one.
func ApproxTokens(raw string) int {
	return len(raw) / 4
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
