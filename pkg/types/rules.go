package types

import "time"

type Condition struct {
	Field                   string   `json:"field"`
	Operator                Operator `json:"operator"`
	ThresholdValue          any      `json:"threshold_value"`
	ThresholdValueSecondary any      `json:"threshold_value_secondary,omitempty"`
}

// Schedule is a days-of-week and time-of-day window. Days use 0 for Sunday.
// Times are "HH:MM" in the schedule's timezone. A window whose end is before
// its start wraps past midnight.
type Schedule struct {
	DaysOfWeek []int  `json:"days_of_week,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}

type Suppression struct {
	Enabled             bool       `json:"enabled"`
	Schedule            *Schedule  `json:"schedule,omitempty"`
	SuppressIfCondition *Condition `json:"suppress_if_condition,omitempty"`
}

type Grouping struct {
	Enabled       bool `json:"enabled"`
	WindowMinutes int  `json:"window_minutes,omitempty"`
}

type Escalation struct {
	Enabled              bool     `json:"enabled"`
	EscalateAfterMinutes int      `json:"escalate_after_minutes"`
	EscalateToSeverity   Severity `json:"escalate_to_severity,omitempty"`
	Channels             []string `json:"channels,omitempty"`
	Recipients           []string `json:"recipients,omitempty"`
}

type Rule struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id,omitempty"`
	SiteID         string `json:"site_id,omitempty"`
	QueueName      string `json:"queue_name,omitempty"`

	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Source               Source      `json:"source"`
	AlertType            string      `json:"alert_type"`
	Severity             Severity    `json:"severity"`
	Condition            Condition   `json:"condition"`
	AdditionalConditions []Condition `json:"additional_conditions,omitempty"`
	Enabled              bool        `json:"enabled"`
	Priority             int         `json:"priority"`

	NotificationChannels   []string `json:"notification_channels,omitempty"`
	NotificationRecipients []string `json:"notification_recipients,omitempty"`
	MessageTemplate        string   `json:"message_template,omitempty"`

	CooldownMinutes         int          `json:"cooldown_minutes"`
	AutoResolveAfterMinutes *int         `json:"auto_resolve_after_minutes,omitempty"`
	AutoExpireAfterMinutes  int          `json:"auto_expire_after_minutes"`
	Schedule                *Schedule    `json:"schedule,omitempty"`
	Suppression             *Suppression `json:"suppression,omitempty"`
	Grouping                *Grouping    `json:"grouping,omitempty"`
	Escalation              *Escalation  `json:"escalation,omitempty"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	TriggerCount    int        `json:"trigger_count"`
}

// RuleSpec is the input to rule creation. Pointer fields are optional and
// receive engine defaults when nil.
type RuleSpec struct {
	OrganizationID string `json:"organization_id"`
	DepartmentID   string `json:"department_id,omitempty"`
	SiteID         string `json:"site_id,omitempty"`
	QueueName      string `json:"queue_name,omitempty"`

	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Source               Source      `json:"source"`
	AlertType            string      `json:"alert_type"`
	Severity             Severity    `json:"severity"`
	Condition            Condition   `json:"condition"`
	AdditionalConditions []Condition `json:"additional_conditions,omitempty"`
	Enabled              *bool       `json:"enabled,omitempty"`
	Priority             int         `json:"priority"`

	NotificationChannels   []string `json:"notification_channels,omitempty"`
	NotificationRecipients []string `json:"notification_recipients,omitempty"`
	MessageTemplate        string   `json:"message_template,omitempty"`

	CooldownMinutes         *int         `json:"cooldown_minutes,omitempty"`
	AutoResolveAfterMinutes *int         `json:"auto_resolve_after_minutes,omitempty"`
	AutoExpireAfterMinutes  *int         `json:"auto_expire_after_minutes,omitempty"`
	Schedule                *Schedule    `json:"schedule,omitempty"`
	Suppression             *Suppression `json:"suppression,omitempty"`
	Grouping                *Grouping    `json:"grouping,omitempty"`
	Escalation              *Escalation  `json:"escalation,omitempty"`
}

type RuleFilter struct {
	OrganizationID string     `json:"organization_id"`
	DepartmentID   string     `json:"department_id,omitempty"`
	Source         Source     `json:"source,omitempty"`
	Enabled        *bool      `json:"enabled,omitempty"`
	Severities     []Severity `json:"severity,omitempty"`
	Page           int        `json:"page,omitempty"`
	PageSize       int        `json:"page_size,omitempty"`
}
