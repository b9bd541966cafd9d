package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically revokes expired grants in every session.
type Sweeper struct {
	cron     *cron.Cron
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time
}

// NewSweeper schedules a sweep of registry on spec, a standard cron
// expression or descriptor such as "@hourly".
func NewSweeper(registry *Registry, spec string, logger zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		registry: registry,
		logger:   logger.With().Str("component", "grant_sweeper").Logger(),
		now:      time.Now,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule grant sweep %q: %w", spec, err)
	}
	return s, nil
}

// Run performs one sweep and returns the number of grants revoked.
func (s *Sweeper) Run(ctx context.Context) int {
	asOf := s.now()
	total := 0
	for _, sess := range s.registry.Sessions() {
		n, err := sess.RevokeExpired(ctx, asOf)
		total += n
		if err != nil {
			s.logger.Error().Err(err).Str("patient_id", sess.PatientID()).Msg("grant sweep failed")
			continue
		}
		if n > 0 {
			s.logger.Info().Str("patient_id", sess.PatientID()).Int("revoked", n).Msg("expired grants revoked")
		}
	}
	return total
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once a running
// sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
