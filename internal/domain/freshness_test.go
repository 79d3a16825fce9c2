package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokentracker/internal/domain"
)

func TestFreshnessPolicy_ShouldRefresh(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	policy := domain.NewFreshnessPolicy(24*time.Hour, clock)

	tests := []struct {
		name       string
		lastUpdate string
		want       bool
	}{
		{
			name:       "empty timestamp is always stale",
			lastUpdate: "",
			want:       true,
		},
		{
			name:       "unparseable timestamp is always stale",
			lastUpdate: "yesterday-ish",
			want:       true,
		},
		{
			name:       "just updated is fresh",
			lastUpdate: now.Format(time.RFC3339),
			want:       false,
		},
		{
			name:       "one hour old is fresh",
			lastUpdate: now.Add(-1 * time.Hour).Format(time.RFC3339),
			want:       false,
		},
		{
			name:       "exactly at the TTL boundary is stale",
			lastUpdate: now.Add(-24 * time.Hour).Format(time.RFC3339),
			want:       true,
		},
		{
			name:       "past the TTL is stale",
			lastUpdate: now.Add(-25 * time.Hour).Format(time.RFC3339),
			want:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.ShouldRefresh(domain.Metadata{LastSuccessfulUpdate: tt.lastUpdate})
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNewFreshnessPolicy_Defaults(t *testing.T) {
	policy := domain.NewFreshnessPolicy(0, nil)
	require.Equal(t, domain.DefaultRefreshTTL, policy.TTL())

	policy = domain.NewFreshnessPolicy(6*time.Hour, nil)
	require.Equal(t, 6*time.Hour, policy.TTL())
}
