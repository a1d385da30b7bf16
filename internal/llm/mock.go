package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockAdapter gives deterministic tutor-style replies without a provider.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Complete(ctx context.Context, req Request, onDelta DeltaHandler) (Response, error) {
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	default:
	}

	text := buildMockReply(req.Messages)
	if onDelta != nil {
		// Word-sized deltas so streaming clients see more than one frame.
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			if err := onDelta(w); err != nil {
				return Response{}, err
			}
		}
	}
	return Response{Text: text, FinishReason: "stop"}, nil
}

func buildMockReply(messages []Message) string {
	if len(messages) == 0 || messages[0].Role != RoleSystem {
		return "I do not have a paper to work from yet. Could you upload one?"
	}

	userTurns := 0
	last := ""
	for _, m := range messages {
		if m.Role == RoleUser {
			userTurns++
			last = strings.TrimSpace(m.Content)
		}
	}
	if last == "" {
		last = "the paper"
	}

	if userTurns <= 1 {
		return fmt.Sprintf("Before we dig into %q, what do you already know about this topic?", last)
	}
	return fmt.Sprintf("Let's take one small step on %q. Which part feels least clear so far?", last)
}
