package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agency/backend/internal/application/obligation"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	got []obligation.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n obligation.Notification) {
	c.got = append(c.got, n)
}

type stubSweep struct{ err error }

func (s stubSweep) RunSweep(context.Context, time.Time) error { return s.err }

func TestNotifier(t *testing.T) {
	m := New(false)
	next := &captureNotifier{}
	n := NewNotifier(next, m)

	n.Notify(context.Background(), obligation.Notification{
		Operation:     obligation.OpMaterializeRange,
		Outcome:       obligation.OutcomeSuccess,
		ItemsAffected: 3,
	})
	n.Notify(context.Background(), obligation.Notification{
		Operation:     obligation.OpMaterializeRange,
		Outcome:       obligation.OutcomePartial,
		ItemsAffected: 2,
		ItemsFailed:   1,
	})

	assert.Len(t, next.got, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchOperations.WithLabelValues(obligation.OpMaterializeRange, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchOperations.WithLabelValues(obligation.OpMaterializeRange, "partial")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.batchItems.WithLabelValues(obligation.OpMaterializeRange, "affected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchItems.WithLabelValues(obligation.OpMaterializeRange, "failed")))
}

func TestNotifier_NilNext(t *testing.T) {
	m := New(false)
	n := NewNotifier(nil, m)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), obligation.Notification{Operation: obligation.OpFixContractTypes, Outcome: obligation.OutcomeSuccess})
	})
	assert.Equal(t, 1, testutil.CollectAndCount(m.batchOperations))
}

func TestSweepRunner(t *testing.T) {
	m := New(false)

	require.NoError(t, NewSweepRunner(stubSweep{}, m).RunSweep(context.Background(), time.Now()))
	boom := errors.New("boom")
	assert.ErrorIs(t, NewSweepRunner(stubSweep{err: boom}, m).RunSweep(context.Background(), time.Now()), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.sweepDuration))
}

func TestHandler(t *testing.T) {
	m := New(true)
	m.ObserveHTTP(http.MethodPost, "/api/v1/obligations/contracts/:id/materialize", http.StatusCreated, 20*time.Millisecond)
	m.InFlight(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agency_http_requests_total{method="POST",route="/api/v1/obligations/contracts/:id/materialize",status="201"} 1`)
	assert.Contains(t, string(body), "agency_http_requests_in_flight 1")
	assert.Contains(t, string(body), "go_goroutines")
}
