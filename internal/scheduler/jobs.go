package scheduler

import (
	"context"
	"time"

	"github.com/finsec-io/finsec-api/internal/auth"
	"github.com/finsec-io/finsec-api/internal/store"
	"github.com/rs/zerolog"
)

const jobTimeout = 5 * time.Minute

// Jobs holds the maintenance tasks run on a schedule.
type Jobs struct {
	sessions *auth.SessionManager
	store    *store.Store
	now      func() time.Time
	logger   zerolog.Logger
}

func NewJobs(sessions *auth.SessionManager, st *store.Store, logger zerolog.Logger) *Jobs {
	return &Jobs{
		sessions: sessions,
		store:    st,
		now:      time.Now,
		logger:   logger,
	}
}

// SweepSessions soft-deactivates sessions past their expiry so they stop
// counting as active even if no request ever presents their token again.
func (j *Jobs) SweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.sessions.SweepExpired(ctx)
	if err != nil {
		j.logger.Error().Err(err).Str("job", "session_sweep").Msg("job failed")
		return
	}
	j.logger.Info().Str("job", "session_sweep").Int64("deactivated", n).Msg("job finished")
}

// RefreshBillStatuses marks unpaid bills past their due date as overdue.
func (j *Jobs) RefreshBillStatuses() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := j.store.MarkOverdueBills(ctx, j.now())
	if err != nil {
		j.logger.Error().Err(err).Str("job", "bill_status").Msg("job failed")
		return
	}
	j.logger.Info().Str("job", "bill_status").Int64("overdue", n).Msg("job finished")
}
