package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/tokentracker/internal/domain"
)

type stubStore struct {
	doc *domain.Document
}

func (s *stubStore) Load(_ context.Context) (*domain.Document, error) { return s.doc, nil }

func (s *stubStore) Replace(_ context.Context, doc *domain.Document) error {
	s.doc = doc
	return nil
}

type stubProvider struct{}

func (stubProvider) FetchPricing(_ context.Context, _ domain.Metadata) (*domain.RefreshPayload, error) {
	return &domain.RefreshPayload{}, nil
}

func (stubProvider) Name() string { return "stub" }

func newStubRefresher() *domain.Refresher {
	return domain.NewRefresher(
		&stubStore{doc: domain.NewDocument("USD")},
		stubProvider{},
		domain.NewFreshnessPolicy(24*time.Hour, nil),
		domain.RefreshConfig{},
		nil,
	)
}

func TestScheduler_EmptyScheduleIsDisabled(t *testing.T) {
	sched := NewScheduler(newStubRefresher(), "")

	require.NoError(t, sched.Start(context.Background()))
	require.False(t, sched.IsRunning())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	sched := NewScheduler(newStubRefresher(), "not a cron expression")

	err := sched.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid cron schedule")
	require.False(t, sched.IsRunning())
}

func TestScheduler_StartAndStop(t *testing.T) {
	sched := NewScheduler(newStubRefresher(), "0 3 * * *")

	require.NoError(t, sched.Start(context.Background()))
	require.True(t, sched.IsRunning())

	sched.Stop()
	require.False(t, sched.IsRunning())
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched := NewScheduler(newStubRefresher(), "0 3 * * *")

	require.NoError(t, sched.Start(ctx))
	require.True(t, sched.IsRunning())

	cancel()
	require.Eventually(t, func() bool {
		return !sched.IsRunning()
	}, time.Second, 10*time.Millisecond)
}
