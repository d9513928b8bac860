package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/broadcast"
	"github.com/diwise/alert-engine/internal/pkg/application/conditions"
	"github.com/diwise/alert-engine/internal/pkg/application/notifications"
	"github.com/diwise/alert-engine/internal/pkg/application/rules"
	"github.com/diwise/alert-engine/internal/pkg/application/snapshots"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/metrics"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/diwise/alert-engine/pkg/types"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("alert-engine/alerts")

var (
	ErrAlertNotFound     = db.ErrAlertNotFound
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type AlertService interface {
	Evaluate(ctx context.Context, req types.EvaluationRequest) (types.EvaluationResult, error)
	Notify(ctx context.Context, alerts []types.Alert) []types.Alert

	Acknowledge(ctx context.Context, req types.AcknowledgeRequest) (types.Alert, error)
	Resolve(ctx context.Context, req types.ResolveRequest) (types.Alert, error)

	List(ctx context.Context, filter types.AlertFilter) (types.Collection[types.Alert], error)
	Get(ctx context.Context, alertID string) (types.Alert, error)

	Sweep(ctx context.Context, now time.Time) (SweepResult, error)
}

type alertSvc struct {
	storage     db.AlertRepository
	rules       rules.RuleService
	fetcher     snapshots.ContextFetcher
	dispatcher  notifications.Dispatcher
	broadcaster broadcast.Broadcaster
	config      Config

	now func() time.Time
}

func New(storage db.AlertRepository, r rules.RuleService, f snapshots.ContextFetcher, d notifications.Dispatcher, b broadcast.Broadcaster, cfg Config) AlertService {
	return &alertSvc{
		storage:     storage,
		rules:       r,
		fetcher:     f,
		dispatcher:  d,
		broadcaster: b,
		config:      cfg.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeNotMet
	outcomeSuppressed
	outcomeTriggered
)

// trigger is an alert created during a pass together with the rule that fired it.
type trigger struct {
	alert types.Alert
	rule  types.Rule
}

// Evaluate runs one evaluation pass over the applicable rules of an
// organization. Failures of single rules are logged and do not fail the pass.
func (svc *alertSvc) Evaluate(ctx context.Context, req types.EvaluationRequest) (result types.EvaluationResult, err error) {
	if req.OrganizationID == "" {
		return types.EvaluationResult{}, fmt.Errorf("%w: organization_id is required", ErrInvalidRequest)
	}

	if req.Source != "" && !req.Source.IsValid() {
		return types.EvaluationResult{}, fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, req.Source)
	}

	ctx, span := tracer.Start(ctx, "evaluate-rules")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := logging.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)
	logger = logger.With().Str("organization_id", req.OrganizationID).Logger()
	ctx = logging.NewContextWithLogger(ctx, logger)

	started := time.Now()
	now := svc.now()

	applicable, err := svc.rules.Applicable(ctx, req, svc.config.MaxRulesPerEvaluation)
	if err != nil {
		return types.EvaluationResult{}, fmt.Errorf("could not load applicable rules: %w", err)
	}

	metrics.EvaluationsTotal.WithLabelValues(req.OrganizationID).Inc()

	triggered := []trigger{}
	suppressed := 0

	for _, rule := range applicable {
		metrics.RulesEvaluatedTotal.Inc()

		o, alert, err := svc.evaluateRule(ctx, rule, req, now)
		if err != nil {
			metrics.RuleErrorsTotal.Inc()
			logger.Error().Err(err).Str("rule_id", rule.ID).Msg("failed to evaluate rule")
			continue
		}

		switch o {
		case outcomeSuppressed:
			suppressed++
			metrics.AlertsSuppressedTotal.Inc()
		case outcomeTriggered:
			triggered = append(triggered, trigger{alert: alert, rule: rule})
		}
	}

	svc.group(ctx, triggered, now)

	alerts := make([]types.Alert, 0, len(triggered))
	for _, t := range triggered {
		alerts = append(alerts, t.alert)
	}

	alerts = svc.Notify(ctx, alerts)

	elapsed := time.Since(started)
	metrics.EvaluationDuration.Observe(elapsed.Seconds())

	logger.Debug().
		Int("rules_evaluated", len(applicable)).
		Int("alerts_triggered", len(alerts)).
		Int("alerts_suppressed", suppressed).
		Msg("evaluation pass completed")

	return types.EvaluationResult{
		Success:          true,
		RulesEvaluated:   len(applicable),
		AlertsTriggered:  len(alerts),
		AlertsSuppressed: suppressed,
		Alerts:           alerts,
		EvaluationTimeMs: elapsed.Milliseconds(),
	}, nil
}

func (svc *alertSvc) evaluateRule(ctx context.Context, rule types.Rule, req types.EvaluationRequest, now time.Time) (outcome, types.Alert, error) {
	logger := logging.GetFromContext(ctx).With().Str("rule_id", rule.ID).Logger()

	if !req.Force {
		if inCooldown(rule, now) {
			logger.Debug().Msg("rule is within its cooldown")
			return outcomeSkipped, types.Alert{}, nil
		}

		inWindow, err := conditions.InWindow(rule.Schedule, now)
		if err != nil {
			logger.Warn().Err(err).Msg("rule schedule could not be interpreted")
		}
		if !inWindow {
			return outcomeSkipped, types.Alert{}, nil
		}
	}

	values := svc.fetcher.Fetch(ctx, rule, req.Context)

	met, err := conditions.All(rule.Condition, rule.AdditionalConditions, values)
	if err != nil {
		logger.Warn().Err(err).Msg("rule condition could not be evaluated")
	}
	if !met {
		return outcomeNotMet, types.Alert{}, nil
	}

	if isSuppressed(ctx, rule, values, now) {
		logger.Debug().Msg("rule triggered but is suppressed")
		return outcomeSuppressed, types.Alert{}, nil
	}

	claimed, err := svc.rules.MarkTriggered(ctx, rule, now, req.Force)
	if err != nil {
		return outcomeSkipped, types.Alert{}, err
	}
	if !claimed {
		logger.Debug().Msg("trigger was already claimed by a concurrent evaluation")
		return outcomeSkipped, types.Alert{}, nil
	}

	alert := newAlert(rule, req, values, now)

	err = svc.storage.Add(ctx, alert)
	if err != nil {
		return outcomeSkipped, types.Alert{}, fmt.Errorf("could not store alert: %w", err)
	}

	metrics.AlertsTriggeredTotal.WithLabelValues(string(alert.Severity)).Inc()
	logger.Info().Str("alert_id", alert.ID).Str("severity", string(alert.Severity)).Msg("alert triggered")

	svc.broadcaster.BroadcastAlert(ctx, alert)

	return outcomeTriggered, alert, nil
}

func inCooldown(rule types.Rule, now time.Time) bool {
	if rule.LastTriggeredAt == nil {
		return false
	}

	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	return now.Sub(*rule.LastTriggeredAt) < cooldown
}

// isSuppressed requires suppression to be enabled and then either the time
// to be inside the suppression schedule or the suppression condition to hold.
func isSuppressed(ctx context.Context, rule types.Rule, values map[string]any, now time.Time) bool {
	s := rule.Suppression
	if s == nil || !s.Enabled {
		return false
	}

	logger := logging.GetFromContext(ctx)

	if s.Schedule != nil {
		inWindow, err := conditions.InWindow(s.Schedule, now)
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("suppression schedule could not be interpreted")
		}
		if inWindow {
			return true
		}
	}

	if s.SuppressIfCondition != nil {
		ok, err := conditions.Check(*s.SuppressIfCondition, values)
		if err != nil {
			logger.Warn().Err(err).Str("rule_id", rule.ID).Msg("suppression condition could not be evaluated")
		}
		return ok
	}

	return false
}
