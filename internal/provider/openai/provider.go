// Package openai implements a pricing refresh provider on the official
// OpenAI SDK. A chat model is instructed to compile current LLM token and
// server hosting prices into the structured payload the refresh merger
// consumes. Accuracy of the fetched prices is the model's problem, not
// ours; normalization downstream rejects structurally incomplete entries.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/tokentracker/internal/domain"
	"github.com/davidbz/tokentracker/internal/observability"
)

const instruction = `You gather current pricing for AI infrastructure.
Respond with a single JSON object and nothing else, with two keys:
"models": a list of {name, input_per_1m, output_per_1m, currency, source, retrieved_at, notes}
  where prices are USD per 1M tokens, and
"servers": a list of {provider, plan, base_monthly, storage_gb_price, traffic_gb_price, currency, source, retrieved_at}
  where base_monthly is the USD monthly price.
Cover the requested models and server plans. Use ISO-8601 timestamps.`

// Provider implements domain.RefreshProvider using the OpenAI API.
type Provider struct {
	client openai.Client
	model  string
	name   string
}

// NewProvider creates a new OpenAI refresh provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(config.MaxRetries))
	}

	return &Provider{
		client: openai.NewClient(opts...),
		model:  config.Model,
		name:   "openai",
	}, nil
}

// FetchPricing asks the model for a fresh pricing payload.
func (p *Provider) FetchPricing(ctx context.Context, meta domain.Metadata) (*domain.RefreshPayload, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("requesting pricing payload from OpenAI",
		observability.String("model", p.model))

	prompt := buildPrompt(meta)

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instruction),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		logger.Error("OpenAI API call failed", observability.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("OpenAI returned no choices")
	}

	payload, err := decodePayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	logger.Debug("pricing payload received",
		observability.Int("models", len(payload.Models)),
		observability.Int("servers", len(payload.Servers)),
	)

	return payload, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func buildPrompt(meta domain.Metadata) string {
	currency := meta.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	var b strings.Builder
	b.WriteString("Collect token prices for these LLM models: ")
	b.WriteString("gpt-4o, gpt-4o-mini, gemini-2.5-flash-lite, claude-3-5-sonnet. ")
	b.WriteString("Collect monthly hosting prices for these plans: ")
	b.WriteString("aws t2.micro, aws t2.small, digitalocean basic_1, digitalocean basic_2. ")
	fmt.Fprintf(&b, "Report all prices in %s. ", currency)
	if meta.LastSuccessfulUpdate != "" {
		fmt.Fprintf(&b, "The cached data was last updated at %s; prefer newer figures.", meta.LastSuccessfulUpdate)
	}
	return b.String()
}

// decodePayload extracts the JSON object from the completion content,
// tolerating a surrounding markdown code fence.
func decodePayload(content string) (*domain.RefreshPayload, error) {
	trimmed := strings.TrimSpace(content)

	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}

	var payload domain.RefreshPayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return nil, fmt.Errorf("unparseable pricing payload: %w", err)
	}

	return &payload, nil
}
