package domain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davidbz/tokentracker/internal/observability"
)

// RefreshConfig carries the refresher's tunables.
type RefreshConfig struct {
	// ProviderTimeout bounds the external pricing fetch. Past it the
	// refresh is treated as failed and the old document retained.
	ProviderTimeout time.Duration

	// DefaultCurrency fills entries whose currency is absent.
	DefaultCurrency string
}

// Refresher runs the load-fetch-normalize-replace cycle. The whole cycle is
// serialized behind a mutex: the document is not safe for concurrent
// writers, so only one refresh may be in flight at a time.
type Refresher struct {
	store    DocumentStore
	provider RefreshProvider
	policy   FreshnessPolicy
	config   RefreshConfig
	now      func() time.Time
	mu       sync.Mutex
}

// NewRefresher creates a refresher. A nil clock defaults to time.Now.
func NewRefresher(
	store DocumentStore,
	provider RefreshProvider,
	policy FreshnessPolicy,
	config RefreshConfig,
	now func() time.Time,
) *Refresher {
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = 60 * time.Second
	}
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = DefaultCurrency
	}
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		store:    store,
		provider: provider,
		policy:   policy,
		config:   config,
		now:      now,
	}
}

// Update refreshes the pricing document if it is stale, or unconditionally
// when force is set. When the document is still fresh the call is a no-op
// and returns the document unchanged. On any failure the persisted document
// is left untouched; a refresh either fully replaces the pricing section
// together with the update timestamp, or changes nothing.
func (r *Refresher) Update(ctx context.Context, force bool) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := observability.FromContext(ctx)

	doc, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if !force && !r.policy.ShouldRefresh(doc.Metadata) {
		logger.Debug("pricing document still fresh, skipping refresh",
			observability.String("last_successful_update", doc.Metadata.LastSuccessfulUpdate))
		return doc, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.ProviderTimeout)
	defer cancel()

	payload, err := r.provider.FetchPricing(fetchCtx, doc.Metadata)
	if err != nil {
		return nil, &RefreshError{Stage: "fetch", Err: err}
	}

	stamp := r.now().UTC().Format(time.RFC3339)
	pricing, err := r.normalize(payload, stamp)
	if err != nil {
		return nil, err
	}

	updated := *doc
	updated.Pricing = pricing
	updated.Metadata.LastSuccessfulUpdate = stamp
	if updated.Metadata.Currency == "" {
		updated.Metadata.Currency = r.config.DefaultCurrency
	}

	if err := r.store.Replace(ctx, &updated); err != nil {
		return nil, err
	}

	logger.Info("pricing document refreshed",
		observability.String("provider", r.provider.Name()),
		observability.Int("models", len(pricing.Models)),
		observability.Int("providers", len(pricing.Servers)),
	)

	return &updated, nil
}

// normalize converts a raw provider payload into the canonical pricing
// section. Any entry missing a required field aborts the whole refresh.
func (r *Refresher) normalize(payload *RefreshPayload, stamp string) (Pricing, error) {
	if payload == nil {
		return Pricing{}, &RefreshError{Stage: "normalize", Err: fmt.Errorf("provider returned no payload")}
	}

	pricing := Pricing{
		Models:  make(map[string]ModelPricing, len(payload.Models)),
		Servers: make(map[string]map[string]ServerPricing),
	}

	for i, entry := range payload.Models {
		name, record, err := r.normalizeModelEntry(entry, stamp)
		if err != nil {
			return Pricing{}, &RefreshError{Stage: "normalize", Err: fmt.Errorf("model entry %d: %w", i, err)}
		}
		pricing.Models[name] = record
	}

	for i, entry := range payload.Servers {
		provider, plan, record, err := r.normalizeServerEntry(entry, stamp)
		if err != nil {
			return Pricing{}, &RefreshError{Stage: "normalize", Err: fmt.Errorf("server entry %d: %w", i, err)}
		}
		if pricing.Servers[provider] == nil {
			pricing.Servers[provider] = make(map[string]ServerPricing)
		}
		pricing.Servers[provider][plan] = record
	}

	return pricing, nil
}

func (r *Refresher) normalizeModelEntry(entry ModelEntry, stamp string) (string, ModelPricing, error) {
	if entry.Name == "" {
		return "", ModelPricing{}, fmt.Errorf("missing required field %q", "name")
	}
	if entry.InputPer1M == nil {
		return "", ModelPricing{}, fmt.Errorf("missing required field %q", "input_per_1m")
	}
	if entry.OutputPer1M == nil {
		return "", ModelPricing{}, fmt.Errorf("missing required field %q", "output_per_1m")
	}

	record := ModelPricing{
		InputPer1M:  *entry.InputPer1M,
		OutputPer1M: *entry.OutputPer1M,
		Currency:    entry.Currency,
		Source:      entry.Source,
		RetrievedAt: entry.RetrievedAt,
		Notes:       entry.Notes,
	}
	if record.Currency == "" {
		record.Currency = r.config.DefaultCurrency
	}
	if record.Source == "" {
		record.Source = r.provider.Name()
	}
	if record.RetrievedAt == "" {
		record.RetrievedAt = stamp
	}
	return entry.Name, record, nil
}

func (r *Refresher) normalizeServerEntry(entry ServerEntry, stamp string) (string, string, ServerPricing, error) {
	if entry.Provider == "" {
		return "", "", ServerPricing{}, fmt.Errorf("missing required field %q", "provider")
	}
	if entry.Plan == "" {
		return "", "", ServerPricing{}, fmt.Errorf("missing required field %q", "plan")
	}
	if entry.BaseMonthly == nil {
		return "", "", ServerPricing{}, fmt.Errorf("missing required field %q", "base_monthly")
	}

	record := ServerPricing{
		BaseMonthly:    *entry.BaseMonthly,
		StorageGBPrice: entry.StorageGBPrice,
		TrafficGBPrice: entry.TrafficGBPrice,
		Currency:       entry.Currency,
		Source:         entry.Source,
		RetrievedAt:    entry.RetrievedAt,
	}
	if record.Currency == "" {
		record.Currency = r.config.DefaultCurrency
	}
	if record.Source == "" {
		record.Source = r.provider.Name()
	}
	if record.RetrievedAt == "" {
		record.RetrievedAt = stamp
	}
	return entry.Provider, entry.Plan, record, nil
}
