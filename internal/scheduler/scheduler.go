// Package scheduler wires up the cron job that periodically triggers a full
// digest run.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Runner is the batch entrypoint the scheduler fires.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler wraps robfig/cron and manages the digest loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string // cron spec, e.g. "@every 24h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(runner Runner, intervalHours int) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cron.DefaultLogger)),
		runner: runner,
		spec:   fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one digest
// immediately so subscribers don't wait a full interval after a restart.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runDigest(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] Cron started — spec: %s", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runDigest(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] Cron stopped")
}

func (s *Scheduler) runDigest(ctx context.Context) {
	log.Println("[scheduler] Digest cycle started")
	if err := s.runner.Run(ctx); err != nil {
		log.Printf("[scheduler] Digest run error: %v", err)
		return
	}
	log.Println("[scheduler] Digest cycle complete")
}
