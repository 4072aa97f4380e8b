// Package openai implements the llm.Gateway contract against the OpenAI API
// and any OpenAI-compatible service (Azure OpenAI, LocalAI, vLLM and so on).
//
// Basic usage:
//
//	import _ "github.com/kart-io/revdiff/pkg/llm/openai"
//	import "github.com/kart-io/revdiff/pkg/llm"
//
//	gw, err := llm.NewGateway("openai", map[string]any{
//	    "api_key": "your-api-key",
//	})
package openai

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
const ProviderName = "openai"

func init() {
	llm.RegisterGateway(ProviderName, NewGateway)
}

// Config holds OpenAI gateway settings.
type Config struct {
	// BaseURL is the API base address. Point it at a compatible service to
	// use non-OpenAI backends.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey is the bearer token.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// Model is the default chat model.
	Model string `json:"model" mapstructure:"model"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget for transport and 5xx failures.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// Organization is the optional OpenAI organization header.
	Organization string `json:"organization" mapstructure:"organization"`

	// Temperature controls sampling randomness. Zero leaves the API default.
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens caps generated tokens. Zero leaves the API default.
	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// Gateway is the OpenAI implementation of llm.Gateway.
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
	if v, ok := configMap["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
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
	if v, ok := configMap["organization"].(string); ok && v != "" {
		cfg.Organization = v
	}
	if v, ok := configMap["temperature"].(float64); ok {
		cfg.Temperature = v
	}
	if v, ok := configMap["max_tokens"].(int); ok {
		cfg.MaxTokens = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api_key is required")
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
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
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

	reqBody := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}
	if g.config.MaxTokens > 0 {
		reqBody.MaxTokens = g.config.MaxTokens
	}
	if g.config.Temperature > 0 {
		reqBody.Temperature = g.config.Temperature
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	g.setHeaders(req)

	start := time.Now()
	var chatResp chatResponse
	if err := g.client.DoJSON(req, &chatResp); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}

	servedModel := chatResp.Model
	if servedModel == "" {
		servedModel = model
	}

	return &llm.CompletionResult{
		Content:      chatResp.Choices[0].Message.Content,
		Model:        servedModel,
		TokensUsed:   chatResp.Usage.TotalTokens,
		ResponseTime: elapsed,
	}, nil
}

func (g *Gateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	if g.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", g.config.Organization)
	}
}

var _ llm.Gateway = (*Gateway)(nil)
