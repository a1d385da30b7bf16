package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAdapterMock(t *testing.T) {
	a, err := NewAdapter(Config{Provider: "MOCK"})
	require.NoError(t, err)
	_, ok := a.(*MockAdapter)
	assert.True(t, ok, "expected *MockAdapter, got %T", a)
}

func TestNewAdapterRejectsUnknownProvider(t *testing.T) {
	_, err := NewAdapter(Config{Provider: "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported llm provider")
}

func TestNewAdapterOpenAIRequiresKey(t *testing.T) {
	_, err := NewAdapter(Config{Provider: ProviderOpenAI, Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestNewAdapterAnthropicRequiresKey(t *testing.T) {
	_, err := NewAdapter(Config{Provider: ProviderAnthropic, Model: "claude"})
	require.Error(t, err)
}

func TestMockAdapterAsksAboutBackgroundFirst(t *testing.T) {
	a := NewMockAdapter()
	var deltas []string
	resp, err := a.Complete(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "paper"},
		{Role: RoleUser, Content: "What is attention?"},
	}}, func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "what do you already know")
	assert.Equal(t, resp.Text, strings.Join(deltas, ""))
	assert.Greater(t, len(deltas), 1)
}

func TestMockAdapterWithoutSystemPrompt(t *testing.T) {
	resp, err := NewMockAdapter().Complete(context.Background(), Request{Messages: []Message{
		{Role: RoleUser, Content: "hi"},
	}}, nil)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "upload")
}

func TestMockAdapterHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockAdapter().Complete(ctx, Request{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
