package types

import (
	"encoding/json"
	"time"
)

// AlertBroadcast is the payload published on the realtime channels whenever
// an alert is created or changes status. Only pending, active, acknowledged
// and resolved are ever published. Expired and suppressed are sent as resolved.
type AlertBroadcast struct {
	AlertID        string      `json:"alert_id"`
	RuleID         string      `json:"rule_id"`
	AlertType      string      `json:"alert_type"`
	Severity       Severity    `json:"severity"`
	Source         Source      `json:"source"`
	OrganizationID string      `json:"organization_id"`
	DepartmentID   string      `json:"department_id,omitempty"`
	QueueName      string      `json:"queue_name,omitempty"`
	Message        string      `json:"message"`
	CurrentValue   any         `json:"current_value"`
	ThresholdValue any         `json:"threshold_value"`
	Status         AlertStatus `json:"status"`
	Timestamp      time.Time   `json:"timestamp"`
}

func NewAlertBroadcast(a Alert, timestamp time.Time) AlertBroadcast {
	status := a.Status
	if status == AlertStatusExpired || status == AlertStatusSuppressed {
		status = AlertStatusResolved
	}

	return AlertBroadcast{
		AlertID:        a.ID,
		RuleID:         a.RuleID,
		AlertType:      a.AlertType,
		Severity:       a.CurrentSeverity(),
		Source:         a.Source,
		OrganizationID: a.OrganizationID,
		DepartmentID:   a.DepartmentID,
		QueueName:      a.QueueName,
		Message:        a.Message,
		CurrentValue:   a.CurrentValue,
		ThresholdValue: a.ThresholdValue,
		Status:         status,
		Timestamp:      timestamp,
	}
}

func (b *AlertBroadcast) ContentType() string {
	return "application/json"
}

func (b *AlertBroadcast) TopicName() string {
	return "alerts." + string(b.Status)
}

func (b *AlertBroadcast) Body() []byte {
	bytes, _ := json.Marshal(b)
	return bytes
}
