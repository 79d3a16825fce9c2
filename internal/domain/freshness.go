package domain

import "time"

// DefaultRefreshTTL is how long cached pricing stays fresh.
const DefaultRefreshTTL = 24 * time.Hour

// FreshnessPolicy decides whether cached pricing is stale. It is a pure
// function of document metadata and the injected clock; no I/O.
type FreshnessPolicy struct {
	ttl time.Duration
	now func() time.Time
}

// NewFreshnessPolicy creates a policy with the given TTL. A nil clock
// defaults to time.Now.
func NewFreshnessPolicy(ttl time.Duration, now func() time.Time) FreshnessPolicy {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	if now == nil {
		now = time.Now
	}
	return FreshnessPolicy{ttl: ttl, now: now}
}

// ShouldRefresh reports whether the pricing document needs a refresh.
// An absent or unparseable last_successful_update always counts as stale.
func (p FreshnessPolicy) ShouldRefresh(meta Metadata) bool {
	if meta.LastSuccessfulUpdate == "" {
		return true
	}

	last, err := time.Parse(time.RFC3339, meta.LastSuccessfulUpdate)
	if err != nil {
		return true
	}

	return p.now().UTC().Sub(last) >= p.ttl
}

// TTL returns the configured time-to-live.
func (p FreshnessPolicy) TTL() time.Duration { return p.ttl }
