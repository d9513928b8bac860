package rules

import (
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
)

type Rule struct {
	ID             string  `gorm:"primaryKey"`
	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	SiteID         *string
	QueueName      *string `gorm:"index"`

	Name                 string `gorm:"not null"`
	Description          string
	Source               string            `gorm:"index;not null"`
	AlertType            string            `gorm:"index"`
	Severity             string            `gorm:"not null"`
	Condition            types.Condition   `gorm:"serializer:json"`
	AdditionalConditions []types.Condition `gorm:"serializer:json"`
	Enabled              bool              `gorm:"index"`
	Priority             int

	NotificationChannels   []string `gorm:"serializer:json"`
	NotificationRecipients []string `gorm:"serializer:json"`
	MessageTemplate        string

	CooldownMinutes         int
	AutoResolveAfterMinutes *int
	AutoExpireAfterMinutes  int
	Schedule                *types.Schedule    `gorm:"serializer:json"`
	Suppression             *types.Suppression `gorm:"serializer:json"`
	Grouping                *types.Grouping    `gorm:"serializer:json"`
	Escalation              *types.Escalation  `gorm:"serializer:json"`

	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
	LastTriggeredAt *time.Time
	TriggerCount    int
}

func (Rule) TableName() string {
	return "alert_rules"
}

func fromRule(r types.Rule) Rule {
	return Rule{
		ID:                      r.ID,
		OrganizationID:          r.OrganizationID,
		DepartmentID:            NullIfEmpty(r.DepartmentID),
		SiteID:                  NullIfEmpty(r.SiteID),
		QueueName:               NullIfEmpty(r.QueueName),
		Name:                    r.Name,
		Description:             r.Description,
		Source:                  string(r.Source),
		AlertType:               r.AlertType,
		Severity:                string(r.Severity),
		Condition:               r.Condition,
		AdditionalConditions:    r.AdditionalConditions,
		Enabled:                 r.Enabled,
		Priority:                r.Priority,
		NotificationChannels:    r.NotificationChannels,
		NotificationRecipients:  r.NotificationRecipients,
		MessageTemplate:         r.MessageTemplate,
		CooldownMinutes:         r.CooldownMinutes,
		AutoResolveAfterMinutes: r.AutoResolveAfterMinutes,
		AutoExpireAfterMinutes:  r.AutoExpireAfterMinutes,
		Schedule:                r.Schedule,
		Suppression:             r.Suppression,
		Grouping:                r.Grouping,
		Escalation:              r.Escalation,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		LastTriggeredAt:         r.LastTriggeredAt,
		TriggerCount:            r.TriggerCount,
	}
}

func (r Rule) toRule() types.Rule {
	return types.Rule{
		ID:                      r.ID,
		OrganizationID:          r.OrganizationID,
		DepartmentID:            ValueOrEmpty(r.DepartmentID),
		SiteID:                  ValueOrEmpty(r.SiteID),
		QueueName:               ValueOrEmpty(r.QueueName),
		Name:                    r.Name,
		Description:             r.Description,
		Source:                  types.Source(r.Source),
		AlertType:               r.AlertType,
		Severity:                types.Severity(r.Severity),
		Condition:               r.Condition,
		AdditionalConditions:    r.AdditionalConditions,
		Enabled:                 r.Enabled,
		Priority:                r.Priority,
		NotificationChannels:    r.NotificationChannels,
		NotificationRecipients:  r.NotificationRecipients,
		MessageTemplate:         r.MessageTemplate,
		CooldownMinutes:         r.CooldownMinutes,
		AutoResolveAfterMinutes: r.AutoResolveAfterMinutes,
		AutoExpireAfterMinutes:  r.AutoExpireAfterMinutes,
		Schedule:                r.Schedule,
		Suppression:             r.Suppression,
		Grouping:                r.Grouping,
		Escalation:              r.Escalation,
		CreatedAt:               r.CreatedAt.UTC(),
		UpdatedAt:               r.UpdatedAt.UTC(),
		LastTriggeredAt:         utcOrNil(r.LastTriggeredAt),
		TriggerCount:            r.TriggerCount,
	}
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
