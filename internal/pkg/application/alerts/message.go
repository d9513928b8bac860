package alerts

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/conditions"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/google/uuid"
)

const DefaultMessageTemplate string = "{rule_name}: {field} is {current_value} (threshold: {threshold_value})"

func newAlert(rule types.Rule, req types.EvaluationRequest, values map[string]any, now time.Time) types.Alert {
	current := values[rule.Condition.Field]
	threshold := rule.Condition.ThresholdValue

	alert := types.Alert{
		ID:             uuid.NewString(),
		RuleID:         rule.ID,
		RuleName:       rule.Name,
		AlertType:      rule.AlertType,
		Severity:       rule.Severity,
		Source:         rule.Source,
		OrganizationID: rule.OrganizationID,
		DepartmentID:   firstOf(rule.DepartmentID, req.DepartmentID),
		SiteID:         rule.SiteID,
		QueueName:      firstOf(rule.QueueName, req.QueueName),
		CurrentValue:   current,
		ThresholdValue: threshold,
		Variance:       variance(current, threshold),
		CustomData:     values,
		Status:         types.AlertStatusPending,
		TriggeredAt:    now,
	}

	if id, ok := values["snapshot_id"].(string); ok {
		alert.RelatedSnapshotID = id
	}

	if rule.AutoExpireAfterMinutes > 0 {
		expires := now.Add(time.Duration(rule.AutoExpireAfterMinutes) * time.Minute)
		alert.ExpiresAt = &expires
	}

	alert.Message = renderMessage(rule, alert)

	return alert
}

func renderMessage(rule types.Rule, alert types.Alert) string {
	template := rule.MessageTemplate
	if template == "" {
		template = DefaultMessageTemplate
	}

	v := ""
	if alert.Variance != nil {
		v = fmt.Sprintf("%d", *alert.Variance)
	}

	r := strings.NewReplacer(
		"{rule_name}", rule.Name,
		"{field}", rule.Condition.Field,
		"{current_value}", fmt.Sprint(alert.CurrentValue),
		"{threshold_value}", fmt.Sprint(alert.ThresholdValue),
		"{severity}", string(alert.Severity),
		"{alert_type}", alert.AlertType,
		"{department_id}", alert.DepartmentID,
		"{queue_name}", alert.QueueName,
		"{variance}", v,
	)

	return r.Replace(template)
}

// variance is the percentage by which current deviates from threshold, rounded
// half up. It is only defined for numeric values and a non zero threshold.
func variance(current, threshold any) *int {
	c, ok := conditions.ToFloat(current)
	if !ok {
		return nil
	}

	t, ok := conditions.ToFloat(threshold)
	if !ok || t == 0 {
		return nil
	}

	pct := (c - t) / t * 100
	if math.IsInf(pct, 0) || math.IsNaN(pct) {
		return nil
	}

	v := int(math.Floor(pct + 0.5))
	return &v
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
