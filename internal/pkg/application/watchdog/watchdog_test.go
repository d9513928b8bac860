package watchdog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/alerts"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/matryer/is"
)

func TestWatchdogEvaluatesEveryOrganizationAndSweeps(t *testing.T) {
	is, ctx := testSetup(t)

	e := &EvaluatorMock{
		EvaluateFunc: func(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error) {
			if req.OrganizationID == "broken" {
				return types.EvaluationResult{}, errors.New("database is down")
			}
			return types.EvaluationResult{Success: true, AlertsTriggered: 1}, nil
		},
		SweepFunc: func(ctx context.Context, now time.Time) (alerts.SweepResult, error) {
			return alerts.SweepResult{Expired: 1}, nil
		},
	}

	w := New(e, Config{
		Organizations:      []string{"org", "broken", "other"},
		EvaluationInterval: 10 * time.Millisecond,
		SweepInterval:      10 * time.Millisecond,
	})

	w.Start(ctx)
	time.Sleep(100 * time.Millisecond)
	w.Stop()

	calls := e.EvaluateCalls()
	is.True(len(calls) >= 3)
	is.True(len(e.SweepCalls()) >= 1)

	is.Equal(calls[0].Req.OrganizationID, "org")
	is.Equal(calls[1].Req.OrganizationID, "broken") // a failing organization does not stop the round
	is.Equal(calls[2].Req.OrganizationID, "other")
	is.True(!calls[0].Req.Force)

	stopped := len(e.EvaluateCalls())
	time.Sleep(50 * time.Millisecond)
	is.Equal(len(e.EvaluateCalls()), stopped) // nothing runs after stop
}

func TestWatchdogStopsWhenContextIsCancelled(t *testing.T) {
	is, ctx := testSetup(t)

	e := &EvaluatorMock{
		EvaluateFunc: func(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error) {
			return types.EvaluationResult{}, nil
		},
		SweepFunc: func(ctx context.Context, now time.Time) (alerts.SweepResult, error) {
			return alerts.SweepResult{}, nil
		},
	}

	ctx, cancel := context.WithCancel(ctx)

	w := New(e, Config{Organizations: []string{"org"}, EvaluationInterval: 5 * time.Millisecond, SweepInterval: time.Hour})
	w.Start(ctx)
	w.Start(ctx) // starting twice is a no-op

	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	calls := len(e.EvaluateCalls())
	time.Sleep(30 * time.Millisecond)
	is.Equal(len(e.EvaluateCalls()), calls)

	w.Stop()
	w.Stop() // stopping twice is a no-op
}

func TestDefaultIntervals(t *testing.T) {
	is := is.New(t)

	w := New(&EvaluatorMock{}, Config{}).(*watchdogImpl)
	is.Equal(w.config.EvaluationInterval, DefaultEvaluationInterval)
	is.Equal(w.config.SweepInterval, DefaultSweepInterval)
}

func testSetup(t *testing.T) (*is.I, context.Context) {
	return is.New(t), context.Background()
}
