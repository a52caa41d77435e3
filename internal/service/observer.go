package service

import (
	"context"
	"log/slog"

	"github.com/dkrasnov/pickpool/internal/contest"
)

// Observer is notified after a lifecycle transition has committed.
// Observers run in registration order, outside the transaction; a slow or
// failing observer cannot roll the transition back.
type Observer interface {
	ContestTransitioned(ctx context.Context, c *contest.Contest, op contest.Operation)
}

// LogObserver logs every committed transition.
type LogObserver struct{}

func (LogObserver) ContestTransitioned(ctx context.Context, c *contest.Contest, op contest.Operation) {
	slog.Info("contest transitioned",
		"contest_id", c.ID,
		"op", op,
		"status", c.Status,
	)
}

func notifyAll(ctx context.Context, observers []Observer, c *contest.Contest, op contest.Operation) {
	for _, o := range observers {
		o.ContestTransitioned(ctx, c, op)
	}
}
