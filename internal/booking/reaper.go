package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/hospital-booking/internal/metrics"
)

// Reaper cancels bookings whose patient abandoned the payment step. Such
// appointments sit PENDING/PENDING and hold their slot until this runs.
type Reaper struct {
	repo    Repository
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewReaper builds a reaper with the given booking TTL. A non-positive ttl
// disables it; Run becomes a no-op.
func NewReaper(repo Repository, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Reaper {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Reaper{
		repo:    repo,
		ttl:     ttl,
		metrics: m,
		logger:  logger.With().Str("component", "reaper").Logger(),
	}
}

// Run performs one sweep: every appointment still PENDING/PENDING older
// than the TTL is canceled and its slot released. Individual failures are
// logged and skipped so one stuck row cannot block the rest.
func (r *Reaper) Run(ctx context.Context) error {
	if r.ttl <= 0 {
		return nil
	}

	cutoff := time.Now().Add(-r.ttl)
	stale, err := r.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale bookings: %w", err)
	}

	for _, appt := range stale {
		if _, err := r.repo.MarkFailedAndRelease(ctx, appt.ID); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// Paid between the scan and the cancel; leave it alone.
				continue
			}
			r.metrics.DanglingSlotReleases.Inc()
			r.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to reap stale booking")
			continue
		}
		r.metrics.SlotsReleased.Inc()
		r.logger.Info().
			Str("appointment_id", appt.ID.String()).
			Time("created_at", appt.CreatedAt).
			Msg("stale booking canceled, slot released")
	}

	return nil
}
