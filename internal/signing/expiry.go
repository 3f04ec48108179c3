package signing

import (
	"context"
	"fmt"

	"github.com/eduzen/cascadesign/internal/telemetry"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultExpirySchedule is how often pending processes past their deadline are expired.
const DefaultExpirySchedule = "@every 5m"

// ExpireDue moves pending processes whose deadline has passed to expired.
func (o *Orchestrator) ExpireDue(ctx context.Context) ([]uuid.UUID, error) {
	expired, err := o.processes.ExpireDue(ctx, o.now())
	if err != nil {
		return nil, fmt.Errorf("failed to expire processes: %w", err)
	}

	if len(expired) > 0 {
		telemetry.GetMetrics().ProcessesExpiredTotal.Add(ctx, int64(len(expired)))
		for _, id := range expired {
			log.Info().Str("process_id", id.String()).Msg("Expired signing process")
		}
	}
	return expired, nil
}

// ExpiryScheduler runs ExpireDue on a cron schedule.
type ExpiryScheduler struct {
	cron *cron.Cron
	o    *Orchestrator
}

// NewExpiryScheduler registers the expiry job. schedule accepts standard cron
// expressions and descriptors such as "@every 5m".
func NewExpiryScheduler(o *Orchestrator, schedule string) (*ExpiryScheduler, error) {
	if schedule == "" {
		schedule = DefaultExpirySchedule
	}

	s := &ExpiryScheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		o:    o,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *ExpiryScheduler) run() {
	if _, err := s.o.ExpireDue(context.Background()); err != nil {
		log.Error().Err(err).Msg("Expiry run failed")
	}
}

// Run starts the scheduler and blocks until ctx is cancelled and any running job returns.
func (s *ExpiryScheduler) Run(ctx context.Context) error {
	log.Info().Msg("Expiry scheduler started")
	s.cron.Start()

	<-ctx.Done()

	<-s.cron.Stop().Done()
	log.Info().Msg("Expiry scheduler stopped")
	return nil
}
