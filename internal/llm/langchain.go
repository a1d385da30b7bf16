package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainAdapter talks to hosted models through langchaingo.
type LangchainAdapter struct {
	provider    string
	modelName   string
	model       llms.Model
	temperature float64
	streaming   bool
}

func NewLangchainAdapter(cfg Config) (*LangchainAdapter, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("openai api key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		}
		if base := strings.TrimSpace(cfg.OpenAIBaseURL); base != "" {
			opts = append(opts, openai.WithBaseURL(base))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, errors.New("anthropic api key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if host := strings.TrimSpace(cfg.OllamaHost); host != "" {
			opts = append(opts, ollama.WithServerURL(host))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported langchain provider %q", cfg.Provider)
	}

	return newLangchainAdapter(cfg.Provider, cfg.Model, model, cfg.Temperature, cfg.Streaming), nil
}

func newLangchainAdapter(provider, modelName string, model llms.Model, temperature float64, streaming bool) *LangchainAdapter {
	return &LangchainAdapter{
		provider:    provider,
		modelName:   modelName,
		model:       model,
		temperature: temperature,
		streaming:   streaming,
	}
}

// Provider returns the configured provider name.
func (a *LangchainAdapter) Provider() string { return a.provider }

// Model returns the configured model name.
func (a *LangchainAdapter) Model() string { return a.modelName }

func (a *LangchainAdapter) Complete(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	messages, err := toMessageContent(req.Messages)
	if err != nil {
		return Response{}, err
	}

	opts := []llms.CallOption{llms.WithTemperature(a.temperature)}
	streamed := false
	if a.streaming && onDelta != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			return onDelta(string(chunk))
		}))
	}

	resp, err := a.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Response{}, fmt.Errorf("%s generate: %w", a.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	if !streamed && onDelta != nil && choice.Content != "" {
		if err := onDelta(choice.Content); err != nil {
			return Response{}, err
		}
	}
	return Response{Text: choice.Content, FinishReason: choice.StopReason}, nil
}

func toMessageContent(in []Message) ([]llms.MessageContent, error) {
	out := make([]llms.MessageContent, 0, len(in))
	for i, m := range in {
		var t llms.ChatMessageType
		switch m.Role {
		case RoleSystem:
			t = llms.ChatMessageTypeSystem
		case RoleUser:
			t = llms.ChatMessageTypeHuman
		case RoleAssistant:
			t = llms.ChatMessageTypeAI
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
		out = append(out, llms.TextParts(t, m.Content))
	}
	return out, nil
}
