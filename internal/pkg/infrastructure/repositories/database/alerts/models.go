package alerts

import (
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
)

type Alert struct {
	ID        string `gorm:"primaryKey"`
	RuleID    string `gorm:"index;not null"`
	RuleName  string
	AlertType string `gorm:"index"`
	Severity  string `gorm:"index"`
	Source    string `gorm:"index"`

	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	SiteID         *string
	QueueName      *string `gorm:"index"`

	Message           string
	Values            values `gorm:"serializer:json"`
	Variance          *int
	RelatedSnapshotID *string
	Tags              []string       `gorm:"serializer:json"`
	CustomData        map[string]any `gorm:"serializer:json"`

	Status          string    `gorm:"index;not null"`
	TriggeredAt     time.Time `gorm:"index;not null"`
	NotifiedAt      *time.Time
	AcknowledgedAt  *time.Time
	AcknowledgedBy  string
	ResolvedAt      *time.Time
	ResolvedBy      string
	ResolutionNotes string
	ExpiresAt       *time.Time `gorm:"index"`
	EscalatedAt     *time.Time
	EscalationLevel int

	EscalatedSeverity string

	GroupID   *string `gorm:"index"`
	IsGrouped bool
}

func (Alert) TableName() string {
	return "alerts"
}

// values holds the observed and the threshold value. Both may be numbers or strings.
type values struct {
	Current   any `json:"current"`
	Threshold any `json:"threshold"`
}

type AlertGroup struct {
	ID             string  `gorm:"primaryKey"`
	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	QueueName      *string `gorm:"index"`
	AlertType      string  `gorm:"index"`

	AlertIDs        []string `gorm:"serializer:json"`
	AlertCount      int
	HighestSeverity string
	Status          string `gorm:"index"`
	GroupMessage    string

	FirstAlertAt          time.Time
	LastAlertAt           time.Time `gorm:"index"`
	GroupNotificationSent bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AlertGroup) TableName() string {
	return "alert_groups"
}

func fromAlert(a types.Alert) Alert {
	return Alert{
		ID:                a.ID,
		RuleID:            a.RuleID,
		RuleName:          a.RuleName,
		AlertType:         a.AlertType,
		Severity:          string(a.Severity),
		Source:            string(a.Source),
		OrganizationID:    a.OrganizationID,
		DepartmentID:      NullIfEmpty(a.DepartmentID),
		SiteID:            NullIfEmpty(a.SiteID),
		QueueName:         NullIfEmpty(a.QueueName),
		Message:           a.Message,
		Values:            values{Current: a.CurrentValue, Threshold: a.ThresholdValue},
		Variance:          a.Variance,
		RelatedSnapshotID: NullIfEmpty(a.RelatedSnapshotID),
		Tags:              a.Tags,
		CustomData:        a.CustomData,
		Status:            string(a.Status),
		TriggeredAt:       a.TriggeredAt.UTC(),
		NotifiedAt:        utcOrNil(a.NotifiedAt),
		AcknowledgedAt:    utcOrNil(a.AcknowledgedAt),
		AcknowledgedBy:    a.AcknowledgedBy,
		ResolvedAt:        utcOrNil(a.ResolvedAt),
		ResolvedBy:        a.ResolvedBy,
		ResolutionNotes:   a.ResolutionNotes,
		ExpiresAt:         utcOrNil(a.ExpiresAt),
		EscalatedAt:       utcOrNil(a.EscalatedAt),
		EscalationLevel:   a.EscalationLevel,
		EscalatedSeverity: string(a.EscalatedSeverity),
		GroupID:           NullIfEmpty(a.GroupID),
		IsGrouped:         a.IsGrouped,
	}
}

func (a Alert) toAlert() types.Alert {
	return types.Alert{
		ID:                a.ID,
		RuleID:            a.RuleID,
		RuleName:          a.RuleName,
		AlertType:         a.AlertType,
		Severity:          types.Severity(a.Severity),
		Source:            types.Source(a.Source),
		OrganizationID:    a.OrganizationID,
		DepartmentID:      ValueOrEmpty(a.DepartmentID),
		SiteID:            ValueOrEmpty(a.SiteID),
		QueueName:         ValueOrEmpty(a.QueueName),
		Message:           a.Message,
		CurrentValue:      a.Values.Current,
		ThresholdValue:    a.Values.Threshold,
		Variance:          a.Variance,
		RelatedSnapshotID: ValueOrEmpty(a.RelatedSnapshotID),
		Tags:              a.Tags,
		CustomData:        a.CustomData,
		Status:            types.AlertStatus(a.Status),
		TriggeredAt:       a.TriggeredAt.UTC(),
		NotifiedAt:        utcOrNil(a.NotifiedAt),
		AcknowledgedAt:    utcOrNil(a.AcknowledgedAt),
		AcknowledgedBy:    a.AcknowledgedBy,
		ResolvedAt:        utcOrNil(a.ResolvedAt),
		ResolvedBy:        a.ResolvedBy,
		ResolutionNotes:   a.ResolutionNotes,
		ExpiresAt:         utcOrNil(a.ExpiresAt),
		EscalatedAt:       utcOrNil(a.EscalatedAt),
		EscalationLevel:   a.EscalationLevel,
		EscalatedSeverity: types.Severity(a.EscalatedSeverity),
		GroupID:           ValueOrEmpty(a.GroupID),
		IsGrouped:         a.IsGrouped,
	}
}

func fromGroup(g types.AlertGroup) AlertGroup {
	return AlertGroup{
		ID:                    g.ID,
		OrganizationID:        g.OrganizationID,
		DepartmentID:          NullIfEmpty(g.DepartmentID),
		QueueName:             NullIfEmpty(g.QueueName),
		AlertType:             g.AlertType,
		AlertIDs:              g.AlertIDs,
		AlertCount:            g.AlertCount,
		HighestSeverity:       string(g.HighestSeverity),
		Status:                string(g.Status),
		GroupMessage:          g.GroupMessage,
		FirstAlertAt:          g.FirstAlertAt.UTC(),
		LastAlertAt:           g.LastAlertAt.UTC(),
		GroupNotificationSent: g.GroupNotificationSent,
		CreatedAt:             g.CreatedAt,
		UpdatedAt:             g.UpdatedAt,
	}
}

func (g AlertGroup) toGroup() types.AlertGroup {
	return types.AlertGroup{
		ID:                    g.ID,
		OrganizationID:        g.OrganizationID,
		DepartmentID:          ValueOrEmpty(g.DepartmentID),
		QueueName:             ValueOrEmpty(g.QueueName),
		AlertType:             g.AlertType,
		AlertIDs:              g.AlertIDs,
		AlertCount:            g.AlertCount,
		HighestSeverity:       types.Severity(g.HighestSeverity),
		Status:                types.AlertStatus(g.Status),
		GroupMessage:          g.GroupMessage,
		FirstAlertAt:          g.FirstAlertAt.UTC(),
		LastAlertAt:           g.LastAlertAt.UTC(),
		GroupNotificationSent: g.GroupNotificationSent,
		CreatedAt:             g.CreatedAt.UTC(),
		UpdatedAt:             g.UpdatedAt.UTC(),
	}
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
