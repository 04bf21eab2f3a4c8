// Package schedule is the optional periodic batch runner: a nightly
// cron job that re-scrapes and re-ranks every active division.
// Adapted from the reference ingestion service's scheduler, dropping
// its per-minute live-game ticker (this domain has no in-progress
// games to poll) and keeping its cron-driven nightly refresh shape.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// RefreshFunc runs one full scrape+rank pass for a single division
// key and reports whether it succeeded.
type RefreshFunc func(ctx context.Context, divisionKey string) error

// Scheduler runs RefreshFunc for every division key on a cron
// schedule.
type Scheduler struct {
	cron       *cron.Cron
	divisions  []string
	refresh    RefreshFunc
	cronSpec   string
}

// New builds a Scheduler. cronSpec is a standard 5-field cron
// expression (e.g. "0 2 * * *" for 2am daily).
func New(cronSpec string, divisions []string, refresh RefreshFunc) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		divisions: divisions,
		refresh:   refresh,
		cronSpec:  cronSpec,
	}
}

// Start schedules the nightly refresh job and begins running it.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cronSpec, func() {
		s.runNightlyRefresh(ctx)
	}); err != nil {
		return fmt.Errorf("schedule: registering nightly refresh: %w", err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.cronSpec).Int("divisions", len(s.divisions)).Msg("nightly refresh scheduled")
	return nil
}

// Stop halts the cron scheduler, letting any in-flight job finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runNightlyRefresh(ctx context.Context) {
	log.Info().Int("divisions", len(s.divisions)).Msg("running nightly refresh")

	for _, key := range s.divisions {
		if err := s.refresh(ctx, key); err != nil {
			log.Error().Err(err).Str("division", key).Msg("nightly refresh failed for division")
			continue
		}
		log.Info().Str("division", key).Msg("nightly refresh complete")
	}
}
