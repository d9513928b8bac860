package alerts

import (
	"context"
	"fmt"

	"github.com/diwise/alert-engine/internal/pkg/application/notifications"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/metrics"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/pkg/types"
)

// Notify sends every alert to each recipient on each channel of its rule and
// then marks it active. Sends are fire and forget, a failed send is logged
// and the alert is activated anyway.
func (svc *alertSvc) Notify(ctx context.Context, alerts []types.Alert) []types.Alert {
	logger := logging.GetFromContext(ctx)

	owners := map[string]*types.Rule{}
	notified := make([]types.Alert, 0, len(alerts))

	for _, alert := range alerts {
		rule, ok := owners[alert.RuleID]
		if !ok {
			r, err := svc.rules.Get(ctx, alert.RuleID)
			if err != nil {
				logger.Error().Err(err).Str("rule_id", alert.RuleID).Msg("could not load rule for notification")
			} else {
				rule = &r
			}
			owners[alert.RuleID] = rule
		}

		if rule != nil {
			svc.fanOut(ctx, alert, rule.NotificationChannels, rule.NotificationRecipients)
		}

		err := svc.dispatcher.Publish(ctx, alert)
		if err != nil {
			logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert to subscribers")
		}

		now := svc.now()
		alert.Status = types.AlertStatusActive
		alert.NotifiedAt = &now

		err = svc.storage.Save(ctx, alert)
		if err != nil {
			logger.Error().Err(err).Str("alert_id", alert.ID).Msg("could not activate alert")
		} else {
			metrics.AlertTransitionsTotal.WithLabelValues(string(alert.Status)).Inc()
		}

		svc.broadcaster.BroadcastAlert(ctx, alert)

		notified = append(notified, alert)
	}

	return notified
}

func (svc *alertSvc) fanOut(ctx context.Context, alert types.Alert, channels, recipients []string) {
	for _, channel := range channels {
		for _, recipient := range recipients {
			err := svc.dispatcher.Send(ctx, notifications.Message{
				Channel:   channel,
				Recipient: recipient,
				Subject:   notifications.Subject(alert),
				Body:      alert.Message,
				Alert:     alert,
			})
			if err != nil {
				logger := logging.GetFromContext(ctx)
				logger.Warn().Err(err).
					Str("alert_id", alert.ID).
					Str("channel", channel).
					Msg("notification could not be sent")
			}
		}
	}
}

func (svc *alertSvc) Acknowledge(ctx context.Context, req types.AcknowledgeRequest) (types.Alert, error) {
	if req.AlertID == "" || req.AcknowledgedBy == "" {
		return types.Alert{}, fmt.Errorf("%w: alert_id and acknowledged_by are required", ErrInvalidRequest)
	}

	alert, err := svc.storage.GetByID(ctx, req.AlertID)
	if err != nil {
		return types.Alert{}, err
	}

	switch alert.Status {
	case types.AlertStatusResolved, types.AlertStatusExpired, types.AlertStatusSuppressed:
		return types.Alert{}, fmt.Errorf("%w: alert %s is %s", ErrInvalidTransition, alert.ID, alert.Status)
	}

	now := svc.now()

	alert.Status = types.AlertStatusAcknowledged
	alert.AcknowledgedAt = &now
	alert.AcknowledgedBy = req.AcknowledgedBy
	if req.Notes != "" {
		alert.ResolutionNotes = req.Notes
	}

	return alert, svc.transition(ctx, alert)
}

// Resolve may be repeated. Resolving again overwrites who resolved the alert and when.
func (svc *alertSvc) Resolve(ctx context.Context, req types.ResolveRequest) (types.Alert, error) {
	if req.AlertID == "" || req.ResolvedBy == "" {
		return types.Alert{}, fmt.Errorf("%w: alert_id and resolved_by are required", ErrInvalidRequest)
	}

	alert, err := svc.storage.GetByID(ctx, req.AlertID)
	if err != nil {
		return types.Alert{}, err
	}

	svc.resolve(&alert, req.ResolvedBy, req.ResolutionNotes)

	return alert, svc.transition(ctx, alert)
}

func (svc *alertSvc) resolve(alert *types.Alert, resolvedBy, notes string) {
	now := svc.now()

	alert.Status = types.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.ResolvedBy = resolvedBy
	if notes != "" {
		alert.ResolutionNotes = notes
	}
}

// transition persists a status change and broadcasts it.
func (svc *alertSvc) transition(ctx context.Context, alert types.Alert) error {
	err := svc.storage.Save(ctx, alert)
	if err != nil {
		return err
	}

	metrics.AlertTransitionsTotal.WithLabelValues(string(alert.Status)).Inc()

	logger := logging.GetFromContext(ctx)
	logger.Info().
		Str("alert_id", alert.ID).
		Str("status", string(alert.Status)).
		Msg("alert status changed")

	svc.broadcaster.BroadcastAlert(ctx, alert)

	return nil
}

func (svc *alertSvc) List(ctx context.Context, filter types.AlertFilter) (types.Collection[types.Alert], error) {
	if filter.OrganizationID == "" {
		return types.Collection[types.Alert]{}, fmt.Errorf("%w: organization_id is required", ErrInvalidRequest)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = svc.config.DefaultPageSize
	}
	if pageSize > svc.config.MaxPageSize {
		pageSize = svc.config.MaxPageSize
	}

	conds := []db.ConditionFunc{
		db.WithOrganization(filter.OrganizationID),
		db.WithPage(filter.Page, pageSize),
	}

	if len(filter.Statuses) > 0 {
		conds = append(conds, db.WithStatus(filter.Statuses...))
	}
	if len(filter.Severities) > 0 {
		conds = append(conds, db.WithSeverities(filter.Severities...))
	}
	if filter.Source != "" {
		conds = append(conds, db.WithSource(filter.Source))
	}
	if filter.RuleID != "" {
		conds = append(conds, db.WithRuleID(filter.RuleID))
	}
	if filter.DepartmentID != "" {
		conds = append(conds, db.WithDepartment(filter.DepartmentID))
	}
	if filter.QueueName != "" {
		conds = append(conds, db.WithQueue(filter.QueueName))
	}
	if filter.From != nil || filter.To != nil {
		conds = append(conds, db.WithTriggeredBetween(filter.From, filter.To))
	}

	return svc.storage.Query(ctx, conds...)
}

func (svc *alertSvc) Get(ctx context.Context, alertID string) (types.Alert, error) {
	return svc.storage.GetByID(ctx, alertID)
}
