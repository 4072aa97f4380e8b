package json

import (
	"bytes"
	stdjson "encoding/json"
	"testing"
)

// Fixtures mirror the payloads the service actually serializes: cached
// comparison results and paginated listings.

type comparisonPayload struct {
	ID               string   `json:"id"`
	DocumentID       string   `json:"document_id"`
	FromVersionID    string   `json:"from_version_id"`
	ToVersionID      string   `json:"to_version_id"`
	Summary          string   `json:"summary"`
	DetailedChanges  []string `json:"detailed_changes"`
	ChangeType       string   `json:"change_type"`
	Significance     string   `json:"significance"`
	Confidence       float64  `json:"confidence"`
	Model            string   `json:"model"`
	TokensUsed       int      `json:"tokens_used"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	GeneratedAt      int64    `json:"generated_at"`
}

type listingPayload struct {
	Code     int                 `json:"code"`
	Message  string              `json:"message"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Items    []comparisonPayload `json:"items"`
}

func sampleComparison(i int) comparisonPayload {
	return comparisonPayload{
		ID:            "01JF8Z0000000000000000000" + string(rune('0'+i%10)),
		DocumentID:    "doc-4821",
		FromVersionID: "ver-1001",
		ToVersionID:   "ver-1002",
		Summary:       "Section 3 rewritten to clarify the refund policy; two paragraphs removed from the appendix.",
		DetailedChanges: []string{
			"Rewrote the refund policy section with explicit timelines",
			"Removed the outdated appendix paragraphs on legacy pricing",
			"Added a cross-reference to the service level agreement",
		},
		ChangeType:       "modification",
		Significance:     "medium",
		Confidence:       0.85,
		Model:            "gpt-4o-mini",
		TokensUsed:       742,
		ProcessingTimeMs: 1840,
		GeneratedAt:      1703001234567,
	}
}

func sampleListing() *listingPayload {
	items := make([]comparisonPayload, 20)
	for i := range items {
		items[i] = sampleComparison(i)
	}
	return &listingPayload{
		Code:     0,
		Message:  "success",
		Total:    200,
		Page:     1,
		PageSize: 20,
		Items:    items,
	}
}

func BenchmarkComparisonMarshal_Sonic(b *testing.B) {
	data := sampleComparison(0)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Marshal(&data)
	}
}

func BenchmarkComparisonMarshal_Stdlib(b *testing.B) {
	data := sampleComparison(0)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = stdjson.Marshal(&data)
	}
}

func BenchmarkComparisonUnmarshal_Sonic(b *testing.B) {
	data := sampleComparison(0)
	raw, _ := Marshal(&data)
	var out comparisonPayload
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Unmarshal(raw, &out)
	}
}

func BenchmarkComparisonUnmarshal_Stdlib(b *testing.B) {
	data := sampleComparison(0)
	raw, _ := stdjson.Marshal(&data)
	var out comparisonPayload
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = stdjson.Unmarshal(raw, &out)
	}
}

func BenchmarkListingMarshal_Sonic(b *testing.B) {
	data := sampleListing()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Marshal(data)
	}
}

func BenchmarkListingMarshal_Stdlib(b *testing.B) {
	data := sampleListing()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = stdjson.Marshal(data)
	}
}

func BenchmarkListingEncoder_Sonic(b *testing.B) {
	data := sampleListing()
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		_ = NewEncoder(&buf).Encode(data)
	}
}

func BenchmarkListingDecoder_Sonic(b *testing.B) {
	data := sampleListing()
	raw, _ := Marshal(data)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var out listingPayload
		_ = NewDecoder(bytes.NewReader(raw)).Decode(&out)
	}
}
