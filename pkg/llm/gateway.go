// Package llm provides a unified gateway abstraction over text-generation
// providers. Providers register themselves in an init function and are
// constructed by name from a configuration map.
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CompletionRequest is a single-turn generation request.
type CompletionRequest struct {
	// Prompt is the user prompt.
	Prompt string

	// SystemPrompt is an optional system instruction.
	SystemPrompt string

	// Model overrides the provider's configured default model when non-empty.
	Model string
}

// CompletionResult carries the generated text plus the accounting data the
// usage pipeline needs.
type CompletionResult struct {
	// Content is the generated text.
	Content string

	// Model is the model that actually served the request.
	Model string

	// TokensUsed is the total token count reported by the provider,
	// or 0 when the provider does not report usage.
	TokensUsed int

	// ResponseTime is the wall-clock duration of the provider call.
	ResponseTime time.Duration
}

// Gateway is the provider contract for text generation.
type Gateway interface {
	// Complete performs a single-turn generation.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)

	// Name returns the provider name.
	Name() string
}

// GatewayFactory constructs a Gateway from a configuration map.
type GatewayFactory func(config map[string]any) (Gateway, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]GatewayFactory
}{
	factories: make(map[string]GatewayFactory),
}

// RegisterGateway registers a gateway factory under name. Later registrations
// with the same name replace earlier ones.
func RegisterGateway(name string, factory GatewayFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// NewGateway constructs the gateway registered under name.
func NewGateway(name string, config map[string]any) (Gateway, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", name)
	}
	return factory(config)
}

// ListGateways returns the registered provider names, sorted.
func ListGateways() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
