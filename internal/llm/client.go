// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"
	"fmt"
)

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// Grounding selects a retrieval tool for providers that support one.
type Grounding string

const (
	GroundingNone   Grounding = ""
	GroundingSearch Grounding = "search"
	GroundingMaps   Grounding = "maps"
)

// LatLng is a point used to bias map grounding.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	Stream      bool

	// JSON asks the provider for a JSON response body when supported.
	JSON bool
	// Grounding enables web or map retrieval when supported.
	Grounding Grounding
	// Location biases map grounding.
	Location *LatLng
	// ThinkingBudget caps reasoning tokens on models that support it.
	ThinkingBudget int
}

const defaultMaxTokens = 4096

func (r *CompletionRequest) modelOr(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

func (r *CompletionRequest) maxTokens() int {
	if r.MaxTokens > 0 {
		return r.MaxTokens
	}
	return defaultMaxTokens
}

// ChatMessage represents a chat message for LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a retrieval reference attached to a grounded response.
type Source struct {
	URI   string
	Title string
	Kind  string
}

// CompletionResponse represents a completion response.
type CompletionResponse struct {
	Content    string
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
	Sources    []Source
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Keys holds provider API keys.
type Keys struct {
	Gemini    string
	Anthropic string
	OpenAI    string
}

// NewClient creates a new LLM client based on provider.
func NewClient(ctx context.Context, provider Provider, keys Keys) (Client, error) {
	switch provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, keys.Gemini)
	case ProviderAnthropic:
		return NewAnthropicClient(keys.Anthropic)
	case ProviderOpenAI:
		return NewOpenAIClient(keys.OpenAI)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}

// withSystem folds a system prompt into the first user turn for providers
// that have no separate system field.
func withSystem(system string, messages []ChatMessage) []ChatMessage {
	if system == "" || len(messages) == 0 {
		return messages
	}
	out := make([]ChatMessage, len(messages))
	copy(out, messages)
	for i := range out {
		if out[i].Role == RoleUser {
			out[i].Content = system + "\n\n" + out[i].Content
			break
		}
	}
	return out
}
