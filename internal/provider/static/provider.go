// Package static provides a refresh provider with fixed pricing entries,
// for development and tests where no external pricing source is configured.
package static

import (
	"context"

	"github.com/davidbz/tokentracker/internal/domain"
)

// Provider implements domain.RefreshProvider with a canned payload.
type Provider struct {
	name string
}

// NewProvider creates a static refresh provider.
func NewProvider() *Provider {
	return &Provider{name: "static"}
}

// FetchPricing returns the built-in seed payload.
func (p *Provider) FetchPricing(_ context.Context, _ domain.Metadata) (*domain.RefreshPayload, error) {
	return seedPayload(), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func f(v float64) *float64 { return &v }

// seedPayload carries ballpark list prices for the commonly requested
// models and plans. Good enough for local development; a real deployment
// should configure the OpenAI provider.
func seedPayload() *domain.RefreshPayload {
	return &domain.RefreshPayload{
		Models: []domain.ModelEntry{
			{Name: "gpt-4o", InputPer1M: f(2.50), OutputPer1M: f(10.00), Source: "static"},
			{Name: "gpt-4o-mini", InputPer1M: f(0.15), OutputPer1M: f(0.60), Source: "static"},
			{Name: "gemini-2.5-flash-lite", InputPer1M: f(0.10), OutputPer1M: f(0.40), Source: "static"},
			{Name: "claude-3-5-sonnet", InputPer1M: f(3.00), OutputPer1M: f(15.00), Source: "static"},
		},
		Servers: []domain.ServerEntry{
			{Provider: "aws", Plan: "t2.micro", BaseMonthly: f(8.50), StorageGBPrice: 0.10, TrafficGBPrice: 0.09, Source: "static"},
			{Provider: "aws", Plan: "t2.small", BaseMonthly: f(17.00), StorageGBPrice: 0.10, TrafficGBPrice: 0.09, Source: "static"},
			{Provider: "digitalocean", Plan: "basic_1", BaseMonthly: f(6.00), StorageGBPrice: 0.10, TrafficGBPrice: 0.01, Source: "static"},
			{Provider: "digitalocean", Plan: "basic_2", BaseMonthly: f(12.00), StorageGBPrice: 0.10, TrafficGBPrice: 0.01, Source: "static"},
		},
	}
}
