package types

import "time"

type Alert struct {
	ID        string   `json:"id"`
	RuleID    string   `json:"rule_id"`
	RuleName  string   `json:"rule_name"`
	AlertType string   `json:"alert_type"`
	Severity  Severity `json:"severity"`
	Source    Source   `json:"source"`

	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id,omitempty"`
	SiteID         string `json:"site_id,omitempty"`
	QueueName      string `json:"queue_name,omitempty"`

	Message           string         `json:"message"`
	CurrentValue      any            `json:"current_value"`
	ThresholdValue    any            `json:"threshold_value"`
	Variance          *int           `json:"variance,omitempty"`
	RelatedSnapshotID string         `json:"related_snapshot_id,omitempty"`
	Tags              []string       `json:"tags,omitempty"`
	CustomData        map[string]any `json:"custom_data,omitempty"`

	Status          AlertStatus `json:"status"`
	TriggeredAt     time.Time   `json:"triggered_at"`
	NotifiedAt      *time.Time  `json:"notified_at,omitempty"`
	AcknowledgedAt  *time.Time  `json:"acknowledged_at,omitempty"`
	AcknowledgedBy  string      `json:"acknowledged_by,omitempty"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy      string      `json:"resolved_by,omitempty"`
	ResolutionNotes string      `json:"resolution_notes,omitempty"`
	ExpiresAt       *time.Time  `json:"expires_at,omitempty"`
	EscalatedAt     *time.Time  `json:"escalated_at,omitempty"`
	EscalationLevel int         `json:"escalation_level"`

	EscalatedSeverity Severity `json:"escalated_severity,omitempty"`

	GroupID   string `json:"group_id,omitempty"`
	IsGrouped bool   `json:"is_grouped"`
}

// CurrentSeverity is the escalated severity when the alert has been raised
// by escalation, and the severity it was triggered with otherwise.
func (a Alert) CurrentSeverity() Severity {
	if a.EscalatedSeverity != "" {
		return a.EscalatedSeverity
	}
	return a.Severity
}

type AlertGroup struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id,omitempty"`
	QueueName      string `json:"queue_name,omitempty"`
	AlertType      string `json:"alert_type"`

	AlertIDs        []string    `json:"alert_ids"`
	AlertCount      int         `json:"alert_count"`
	HighestSeverity Severity    `json:"highest_severity"`
	Status          AlertStatus `json:"status"`
	GroupMessage    string      `json:"group_message"`

	FirstAlertAt          time.Time `json:"first_alert_at"`
	LastAlertAt           time.Time `json:"last_alert_at"`
	GroupNotificationSent bool      `json:"group_notification_sent"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AlertFilter struct {
	OrganizationID string        `json:"organization_id"`
	Statuses       []AlertStatus `json:"status,omitempty"`
	Severities     []Severity    `json:"severity,omitempty"`
	Source         Source        `json:"source,omitempty"`
	RuleID         string        `json:"rule_id,omitempty"`
	DepartmentID   string        `json:"department_id,omitempty"`
	QueueName      string        `json:"queue_name,omitempty"`
	From           *time.Time    `json:"start_time,omitempty"`
	To             *time.Time    `json:"end_time,omitempty"`
	Page           int           `json:"page,omitempty"`
	PageSize       int           `json:"page_size,omitempty"`
}

type EvaluationRequest struct {
	OrganizationID string         `json:"organization_id"`
	DepartmentID   string         `json:"department_id,omitempty"`
	QueueName      string         `json:"queue_name,omitempty"`
	Source         Source         `json:"source,omitempty"`
	Context        map[string]any `json:"context,omitempty"`
	Force          bool           `json:"force,omitempty"`
}

type EvaluationResult struct {
	Success          bool    `json:"success"`
	RulesEvaluated   int     `json:"rules_evaluated"`
	AlertsTriggered  int     `json:"alerts_triggered"`
	AlertsSuppressed int     `json:"alerts_suppressed"`
	Alerts           []Alert `json:"alerts"`
	EvaluationTimeMs int64   `json:"evaluation_time_ms"`
}

type AcknowledgeRequest struct {
	AlertID        string `json:"alert_id"`
	AcknowledgedBy string `json:"acknowledged_by"`
	Notes          string `json:"notes,omitempty"`
}

type ResolveRequest struct {
	AlertID         string `json:"alert_id"`
	ResolvedBy      string `json:"resolved_by"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}
