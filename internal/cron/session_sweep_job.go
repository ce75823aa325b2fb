package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/courtside-storefront/pkg/logger"
)

const defaultSessionRetention = 30 * 24 * time.Hour

type sessionSweeper interface {
	SweepExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionSweepJobParams struct {
	Logger    *logger.Logger
	Store     sessionSweeper
	Retention time.Duration
}

// NewSessionSweepJob deletes cart session handles that were not saved within
// the retention window.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultSessionRetention
	}
	return &sessionSweepJob{
		logg:      params.Logger,
		store:     params.Store,
		retention: retention,
		now:       time.Now,
	}, nil
}

type sessionSweepJob struct {
	logg      *logger.Logger
	store     sessionSweeper
	retention time.Duration
	now       func() time.Time
}

func (j *sessionSweepJob) Name() string { return "session_sweep" }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.store.SweepExpired(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("session sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "session sweep complete")
	return nil
}
