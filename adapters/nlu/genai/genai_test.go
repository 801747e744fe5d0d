package genai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/model"
)

func TestAdapter_IsConfigured(t *testing.T) {
	assert.False(t, New(Config{}, nil).IsConfigured())
	assert.True(t, New(Config{APIKey: "key"}, nil).IsConfigured())
}

func TestAdapter_ProcessWithoutAPIKeyReturnsEmptyResult(t *testing.T) {
	a := New(Config{}, nil)
	require.NoError(t, a.Start(context.Background()))

	result, err := a.Process(context.Background(), model.NewTextMessage("m1", "hi", model.NewUser("u1", "Ada"), model.NewRoom("r1", "general")))
	require.NoError(t, err)
	assert.Equal(t, &model.NLUResult{}, result)
}

func TestBuildPrompt_EmbedsMessageText(t *testing.T) {
	prompt := buildPrompt("book a flight to Rome")
	assert.Contains(t, prompt, "book a flight to Rome")
	assert.Contains(t, prompt, "JSON object")
}

func TestParseResult_PlainJSON(t *testing.T) {
	result, err := parseResult(`{"intent": "book_flight", "score": 0.9, "entities": {"city": "Rome"}, "sentiment": "neutral", "language": "en"}`)
	require.NoError(t, err)
	require.Len(t, result.Intents, 1)
	assert.Equal(t, "book_flight", result.Intents[0].Name)
	assert.Equal(t, 0.9, result.Intents[0].Score)
	assert.Equal(t, "Rome", result.Entities["city"])
	assert.Equal(t, "en", result.Language)
}

func TestParseResult_StripsMarkdownFence(t *testing.T) {
	result, err := parseResult("```json\n{\"intent\": \"greet\", \"score\": 0.5}\n```")
	require.NoError(t, err)
	require.Len(t, result.Intents, 1)
	assert.Equal(t, "greet", result.Intents[0].Name)
}

func TestParseResult_NoIntentLeavesIntentsEmpty(t *testing.T) {
	result, err := parseResult(`{"sentiment": "positive"}`)
	require.NoError(t, err)
	assert.Empty(t, result.Intents)
	assert.Equal(t, "positive", result.Sentiment)
}

func TestParseResult_InvalidJSONErrors(t *testing.T) {
	_, err := parseResult("not json")
	require.Error(t, err)
}
