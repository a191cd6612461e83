package metrics

import (
	"context"
	"time"

	"github.com/agency/backend/internal/application/obligation"
)

// Notifier counts every batch notification before handing it on
type Notifier struct {
	next    obligation.Notifier
	metrics *Metrics
}

// NewNotifier decorates next; a nil next only records metrics
func NewNotifier(next obligation.Notifier, m *Metrics) *Notifier {
	if next == nil {
		next = obligation.NopNotifier{}
	}
	return &Notifier{next: next, metrics: m}
}

// Notify implements obligation.Notifier
func (n *Notifier) Notify(ctx context.Context, notification obligation.Notification) {
	n.metrics.ObserveBatch(ctx,
		notification.Operation,
		string(notification.Outcome),
		notification.ItemsAffected,
		notification.ItemsFailed,
	)
	n.next.Notify(ctx, notification)
}

type sweepRunner interface {
	RunSweep(ctx context.Context, asOf time.Time) error
}

// SweepRunner times each sweep of the wrapped runner
type SweepRunner struct {
	next    sweepRunner
	metrics *Metrics
	now     func() time.Time
}

// NewSweepRunner decorates next
func NewSweepRunner(next sweepRunner, m *Metrics) *SweepRunner {
	return &SweepRunner{next: next, metrics: m, now: time.Now}
}

// RunSweep runs and records one sweep
func (r *SweepRunner) RunSweep(ctx context.Context, asOf time.Time) error {
	start := r.now()
	err := r.next.RunSweep(ctx, asOf)
	r.metrics.ObserveSweep(ctx, r.now().Sub(start), err)
	return err
}

var _ obligation.Notifier = (*Notifier)(nil)
