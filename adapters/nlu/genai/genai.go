// Package genai implements the NLU adapter contract by prompting a Gemini
// model for a constrained JSON object, grounded on the teacher's
// index/llm.go LLMClient (prompt-and-parse shape), ported from that file's
// raw-HTTP Gemini client onto the google.golang.org/genai SDK.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/model"
)

// Config tunes the adapter. An empty APIKey leaves the client unconfigured;
// Process then returns a zero-value NLUResult rather than erroring, the
// same fallback-to-commit-message posture the teacher's SummarizeDiff uses
// for an unconfigured LLMClient.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Adapter processes messages into NLUResult via Gemini.
type Adapter struct {
	cfg    Config
	client *genai.Client
	logger *slog.Logger
}

// New constructs an Adapter. The underlying client is created in Start,
// not here, since client construction can make a network call.
func New(cfg Config, logger *slog.Logger) *Adapter {
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Factory adapts New to adapter.Factory, registered under "genai".
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	cfg := Config{
		APIKey: fc.Settings["api_key"],
		Model:  fc.Settings["model"],
	}
	return New(cfg, fc.Logger), nil
}

func (a *Adapter) Name() string { return "genai" }

// IsConfigured reports whether an API key was supplied.
func (a *Adapter) IsConfigured() bool { return a.cfg.APIKey != "" }

func (a *Adapter) Start(ctx context.Context) error {
	if !a.IsConfigured() {
		a.logger.Warn("genai adapter started without an API key; Process will return empty results")
		return nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  a.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("genai: new client: %w", err)
	}
	a.client = client
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error { return nil }

// Process prompts Gemini for a constrained JSON object describing the
// message's intent, entities, sentiment and language, and parses the
// response into an NLUResult.
func (a *Adapter) Process(ctx context.Context, msg *model.Message) (*model.NLUResult, error) {
	if a.client == nil {
		return &model.NLUResult{}, nil
	}

	cctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	prompt := buildPrompt(msg.Text)
	resp, err := a.client.Models.GenerateContent(cctx, a.cfg.Model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("genai: generate content: %w", err)
	}

	text := resp.Text()
	result, err := parseResult(text)
	if err != nil {
		return nil, fmt.Errorf("genai: parse result: %w", err)
	}
	return result, nil
}

func buildPrompt(text string) string {
	return fmt.Sprintf(`Classify the following message. Respond with ONLY a single JSON object,
no surrounding prose, matching this shape:

{"intent": "<short_intent_name>", "score": <0..1>, "entities": {"<name>": "<value>"},
 "sentiment": "<positive|neutral|negative>", "language": "<bcp47 tag>"}

Message: %s`, text)
}

func parseResult(text string) (*model.NLUResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var raw struct {
		Intent    string            `json:"intent"`
		Score     float64           `json:"score"`
		Entities  map[string]string `json:"entities"`
		Sentiment string            `json:"sentiment"`
		Language  string            `json:"language"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	result := &model.NLUResult{
		Entities:   raw.Entities,
		Sentiment:  raw.Sentiment,
		Language:   raw.Language,
		Confidence: raw.Score,
	}
	if raw.Intent != "" {
		result.Intents = []model.Intent{{Name: raw.Intent, Score: raw.Score}}
	}
	return result, nil
}
