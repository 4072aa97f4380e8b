package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kart-io/revdiff/pkg/llm"
	"github.com/kart-io/revdiff/pkg/utils/json"
)

func TestCompleteParsesUsage(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q, want gpt-4o-mini", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		resp := map[string]any{
			"id":    "cmpl-1",
			"model": "gpt-4o-mini-2024-07-18",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]any{"role": "assistant", "content": "SUMMARY: Minor wording fix"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     120,
				"completion_tokens": 30,
				"total_tokens":      150,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		data, _ := json.Marshal(resp)
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	gw := NewGatewayWithConfig(&Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "gpt-4o-mini",
		Timeout:    5 * time.Second,
		MaxRetries: 0,
	})

	res, err := gw.Complete(context.Background(), llm.CompletionRequest{
		Prompt:       "compare these versions",
		SystemPrompt: "you summarize document changes",
	})
	if err != nil {
		t.Fatal(err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if res.Content != "SUMMARY: Minor wording fix" {
		t.Errorf("content = %q", res.Content)
	}
	if res.TokensUsed != 150 {
		t.Errorf("tokens = %d, want 150", res.TokensUsed)
	}
	if res.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("model = %q", res.Model)
	}
	if res.ResponseTime <= 0 {
		t.Error("response time not measured")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	}))
	defer srv.Close()

	gw := NewGatewayWithConfig(&Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})

	if _, err := gw.Complete(context.Background(), llm.CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewGatewayRequiresAPIKey(t *testing.T) {
	if _, err := NewGateway(map[string]any{}); err == nil {
		t.Fatal("expected error when api_key is missing")
	}
}
