package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/alerts"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/pkg/types"
)

const (
	DefaultEvaluationInterval = 1 * time.Minute
	DefaultSweepInterval      = 1 * time.Minute
)

type Config struct {
	Organizations      []string      `yaml:"organizations"`
	EvaluationInterval time.Duration `yaml:"evaluation_interval"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
}

//go:generate moq -rm -out evaluator_mock.go . Evaluator

// Evaluator is the part of the alert service driven by the watchdog.
type Evaluator interface {
	Evaluate(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error)
	Sweep(ctx context.Context, now time.Time) (alerts.SweepResult, error)
}

type Watchdog interface {
	Start(ctx context.Context)
	Stop()
}

type watchdogImpl struct {
	evaluator Evaluator
	config    Config

	mu      sync.Mutex
	wg      sync.WaitGroup
	done    chan bool
	running bool
}

func New(e Evaluator, cfg Config) Watchdog {
	if cfg.EvaluationInterval <= 0 {
		cfg.EvaluationInterval = DefaultEvaluationInterval
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	return &watchdogImpl{
		evaluator: e,
		config:    cfg,
	}
}

func (w *watchdogImpl) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.running = true
	w.done = make(chan bool)

	w.wg.Add(1)
	go w.backgroundWorker(ctx, w.done)
}

// Stop blocks until the background worker has returned.
func (w *watchdogImpl) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *watchdogImpl) backgroundWorker(ctx context.Context, done <-chan bool) {
	defer w.wg.Done()

	logger := logging.GetFromContext(ctx)
	logger.Info().
		Int("organizations", len(w.config.Organizations)).
		Str("evaluation_interval", w.config.EvaluationInterval.String()).
		Str("sweep_interval", w.config.SweepInterval.String()).
		Msg("watchdog started")

	evaluation := time.NewTicker(w.config.EvaluationInterval)
	defer evaluation.Stop()

	sweep := time.NewTicker(w.config.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-done:
			logger.Info().Msg("watchdog stopped")
			return
		case <-ctx.Done():
			return
		case <-evaluation.C:
			w.evaluate(ctx)
		case <-sweep.C:
			w.sweep(ctx)
		}
	}
}

func (w *watchdogImpl) evaluate(ctx context.Context) {
	logger := logging.GetFromContext(ctx)

	for _, organizationID := range w.config.Organizations {
		result, err := w.evaluator.Evaluate(ctx, types.EvaluationRequest{OrganizationID: organizationID})
		if err != nil {
			logger.Error().Err(err).Str("organization_id", organizationID).Msg("scheduled evaluation failed")
			continue
		}

		if result.AlertsTriggered > 0 {
			logger.Info().
				Str("organization_id", organizationID).
				Int("alerts_triggered", result.AlertsTriggered).
				Msg("scheduled evaluation triggered alerts")
		}
	}
}

func (w *watchdogImpl) sweep(ctx context.Context) {
	logger := logging.GetFromContext(ctx)

	result, err := w.evaluator.Sweep(ctx, time.Now().UTC())
	if err != nil {
		logger.Error().Err(err).Msg("alert sweep failed")
		return
	}

	if result.Expired+result.AutoResolved+result.Escalated > 0 {
		logger.Info().
			Int("expired", result.Expired).
			Int("auto_resolved", result.AutoResolved).
			Int("escalated", result.Escalated).
			Msg("alert sweep completed")
	}
}
