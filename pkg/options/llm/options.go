// Package llm provides LLM gateway configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/revdiff/pkg/options"
)

var _ options.IOptions = (*GatewayOptions)(nil)

// GatewayOptions defines the LLM gateway configuration.
type GatewayOptions struct {
	// Provider is the gateway name (openai, ollama).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base address.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the API key, required by the openai provider.
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model is the default model name.
	Model string `json:"model" mapstructure:"model"`

	// Timeout bounds a single gateway request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the retry budget for transient failures.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization is the optional OpenAI organization ID.
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewGatewayOptions creates the default gateway configuration.
func NewGatewayOptions() *GatewayOptions {
	return &GatewayOptions{
		Provider:   "openai",
		BaseURL:    "https://api.openai.com/v1",
		Model:      "gpt-4o-mini",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap converts the options into the map the gateway factory expects.
func (o *GatewayOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"model":        o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for LLM gateway options to the specified FlagSet.
func (o *GatewayOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"llm.provider", o.Provider, "LLM provider (openai, ollama).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"llm.base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"llm.api-key", o.APIKey, "LLM API key (DEPRECATED: use LLM_API_KEY env var instead).")
	fs.StringVar(&o.Model, options.Join(prefixes...)+"llm.model", o.Model, "LLM model name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"llm.timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"llm.max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.Organization, options.Join(prefixes...)+"llm.organization", o.Organization, "LLM organization ID (optional).")
}

// Validate validates the LLM gateway options.
func (o *GatewayOptions) Validate() []error {
	if o == nil {
		return nil
	}

	if o.APIKey == "" {
		o.APIKey = os.Getenv("LLM_API_KEY")
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}

// Complete completes the LLM gateway options with defaults.
func (o *GatewayOptions) Complete() error {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return nil
}
