package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Role is the wire-level speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one {role, content} pair sent to the provider.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request carries the full ordered transcript for one completion.
type Request struct {
	SessionID string    `json:"session_id,omitempty"`
	TurnID    string    `json:"turn_id,omitempty"`
	Messages  []Message `json:"messages"`
}

// Response is the final assistant reply after any streamed deltas.
type Response struct {
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Adapter sends a transcript to a hosted chat-completion model.
type Adapter interface {
	Complete(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error)
}

// ErrEmptyResponse is returned when the provider answers without any choice.
var ErrEmptyResponse = errors.New("model returned no choices")

// Config controls adapter construction.
type Config struct {
	Provider        string
	Model           string
	Temperature     float64
	Streaming       bool
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaHost      string
}

func NewAdapter(cfg Config) (Adapter, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	cfg.Provider = provider

	switch provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return NewLangchainAdapter(cfg)
	case ProviderMock:
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
