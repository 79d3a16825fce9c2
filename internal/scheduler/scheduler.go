// Package scheduler runs the pricing refresh on a cron schedule, so
// cached pricing never drifts past its TTL on a long-running instance.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/davidbz/tokentracker/internal/domain"
	"github.com/davidbz/tokentracker/internal/observability"
)

// Scheduler triggers periodic pricing refreshes. Overlap is harmless: the
// refresher serializes cycles internally and skips when still fresh.
type Scheduler struct {
	refresher *domain.Refresher
	schedule  string
	cron      *cron.Cron
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a refresh scheduler. An empty cron expression
// disables it.
func NewScheduler(refresher *domain.Refresher, schedule string) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		schedule:  schedule,
		cron:      cron.New(),
	}
}

// Start begins scheduled refreshing. Common expressions:
//
//	"0 3 * * *"   - daily at 3 AM
//	"0 */6 * * *" - every 6 hours
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := observability.FromContext(ctx)

	if s.schedule == "" {
		logger.Info("refresh schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runRefresh(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.running = true

	logger.Info("refresh scheduler started",
		observability.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runRefresh executes one refresh cycle.
func (s *Scheduler) runRefresh(ctx context.Context) {
	logger := observability.FromContext(ctx)
	logger.Info("starting scheduled pricing refresh")

	doc, err := s.refresher.Update(ctx, false)
	if err != nil {
		// Old document is retained; the next tick tries again.
		logger.Error("scheduled refresh failed", observability.Error(err))
		return
	}

	logger.Info("scheduled refresh completed",
		observability.String("last_successful_update", doc.Metadata.LastSuccessfulUpdate))
}

// Stop stops the scheduler and waits for any running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
