// Package ollama implements the llm.Gateway contract against a local Ollama
// server. Useful for development and air-gapped deployments.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kart-io/revdiff/pkg/llm"
	"github.com/kart-io/revdiff/pkg/utils/httpclient"
	"github.com/kart-io/revdiff/pkg/utils/json"
)

// ProviderName identifies this gateway in the registry.
const ProviderName = "ollama"

func init() {
	llm.RegisterGateway(ProviderName, NewGateway)
}

// Config holds Ollama gateway settings.
type Config struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Model      string        `json:"model" mapstructure:"model"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:11434",
		Model:      "llama3.1:8b",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Gateway is the Ollama implementation of llm.Gateway.
type Gateway struct {
	config *Config
	client *httpclient.Client
}

// NewGateway builds a Gateway from a configuration map.
func NewGateway(configMap map[string]any) (llm.Gateway, error) {
	cfg := DefaultConfig()

	if v, ok := configMap["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := configMap["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	if v, ok := configMap["max_retries"].(int); ok && v > 0 {
		cfg.MaxRetries = v
	}

	return NewGatewayWithConfig(cfg), nil
}

// NewGatewayWithConfig builds a Gateway from a structured config.
func NewGatewayWithConfig(cfg *Config) *Gateway {
	return &Gateway{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries),
	}
}

// Name returns the provider name.
func (g *Gateway) Name() string {
	return ProviderName
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`

	// Token accounting, present once done is true.
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

// Complete implements llm.Gateway.
func (g *Gateway) Complete(ctx context.Context, creq llm.CompletionRequest) (*llm.CompletionResult, error) {
	model := creq.Model
	if model == "" {
		model = g.config.Model
	}

	var messages []chatMessage
	if creq.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: creq.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: creq.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	var chatResp chatResponse
	if err := g.client.DoJSON(req, &chatResp); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if chatResp.Message.Content == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}

	servedModel := chatResp.Model
	if servedModel == "" {
		servedModel = model
	}

	return &llm.CompletionResult{
		Content:      chatResp.Message.Content,
		Model:        servedModel,
		TokensUsed:   chatResp.PromptEvalCount + chatResp.EvalCount,
		ResponseTime: elapsed,
	}, nil
}

var _ llm.Gateway = (*Gateway)(nil)
