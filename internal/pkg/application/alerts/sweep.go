package alerts

import (
	"context"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/tracing"
	"github.com/diwise/alert-engine/pkg/types"
)

const SystemUser string = "system"

type SweepResult struct {
	Expired      int `json:"expired"`
	AutoResolved int `json:"auto_resolved"`
	Escalated    int `json:"escalated"`
}

// Sweep applies the time based policies to open alerts: expiry, automatic
// resolution and escalation, in that order.
func (svc *alertSvc) Sweep(ctx context.Context, now time.Time) (result SweepResult, err error) {
	ctx, span := tracer.Start(ctx, "sweep-alerts")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, logger := logging.AddTraceIDToLoggerAndStoreInContext(span, logging.GetFromContext(ctx), ctx)

	now = now.UTC()

	expiring, err := svc.storage.Query(ctx,
		db.WithStatus(types.AlertStatusPending, types.AlertStatusActive),
		db.WithExpiresBefore(now),
	)
	if err != nil {
		return result, err
	}

	for _, alert := range expiring.Data {
		alert.Status = types.AlertStatusExpired
		if err := svc.transition(ctx, alert); err != nil {
			logger.Error().Err(err).Str("alert_id", alert.ID).Msg("could not expire alert")
			continue
		}
		result.Expired++
	}

	owners := ruleCache{svc: svc, rules: map[string]*types.Rule{}}

	open, err := svc.storage.Query(ctx, db.WithStatus(types.AlertStatusActive, types.AlertStatusAcknowledged))
	if err != nil {
		return result, err
	}

	for _, alert := range open.Data {
		rule := owners.get(ctx, alert.RuleID)
		if rule == nil || rule.AutoResolveAfterMinutes == nil {
			continue
		}

		if now.Sub(alert.TriggeredAt) < time.Duration(*rule.AutoResolveAfterMinutes)*time.Minute {
			continue
		}

		svc.resolve(&alert, SystemUser, "")
		if err := svc.transition(ctx, alert); err != nil {
			logger.Error().Err(err).Str("alert_id", alert.ID).Msg("could not auto resolve alert")
			continue
		}
		result.AutoResolved++
	}

	active, err := svc.storage.Query(ctx, db.WithStatus(types.AlertStatusActive))
	if err != nil {
		return result, err
	}

	for _, alert := range active.Data {
		rule := owners.get(ctx, alert.RuleID)
		if rule == nil || rule.Escalation == nil || !rule.Escalation.Enabled || alert.EscalatedAt != nil {
			continue
		}

		esc := rule.Escalation
		if now.Sub(alert.TriggeredAt) < time.Duration(esc.EscalateAfterMinutes)*time.Minute {
			continue
		}

		alert.EscalationLevel++
		alert.EscalatedAt = &now
		if esc.EscalateToSeverity.Rank() > alert.Severity.Rank() {
			alert.EscalatedSeverity = esc.EscalateToSeverity
		}

		err := svc.storage.Save(ctx, alert)
		if err != nil {
			logger.Error().Err(err).Str("alert_id", alert.ID).Msg("could not escalate alert")
			continue
		}

		logger.Info().Str("alert_id", alert.ID).Int("escalation_level", alert.EscalationLevel).Msg("alert escalated")

		svc.fanOut(ctx, alert, esc.Channels, esc.Recipients)
		svc.broadcaster.BroadcastAlert(ctx, alert)

		result.Escalated++
	}

	return result, nil
}

// ruleCache remembers owning rules, including those that no longer exist.
type ruleCache struct {
	svc   *alertSvc
	rules map[string]*types.Rule
}

func (c ruleCache) get(ctx context.Context, ruleID string) *types.Rule {
	if r, ok := c.rules[ruleID]; ok {
		return r
	}

	var rule *types.Rule

	r, err := c.svc.rules.Get(ctx, ruleID)
	if err == nil {
		rule = &r
	}

	c.rules[ruleID] = rule
	return rule
}
