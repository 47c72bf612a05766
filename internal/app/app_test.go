package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/travel-concierge/internal/config"
	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/llm/llmtest"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

func TestNewWithInjectedClient(t *testing.T) {
	cfg := config.Default()
	client := llmtest.NewScripted(`{"intent":"general"}`, "Hello there.", nil)

	a, err := New(cfg, client, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Events)

	res, err := a.Chat.HandleTurn(context.Background(), a.Chat.Store().ActiveID(), "Hello, I need help planning a trip", language.English)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", res.Reply.Content)

	for _, call := range client.Calls() {
		assert.Equal(t, "llama-3.3-70b-versatile", call.Model)
	}
}

func TestNewUnreachableNATSKeepsRunning(t *testing.T) {
	cfg := config.Default()
	cfg.NATSURL = "nats://127.0.0.1:1"

	a, err := New(cfg, llmtest.NewScripted("", "", nil), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Events)
	assert.NotNil(t, a.Chat)
}
