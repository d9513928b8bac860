package alerts

import (
	"time"

	"github.com/diwise/alert-engine/pkg/types"
	"gorm.io/gorm"
)

type ConditionFunc func(*Condition) *Condition

type Condition struct {
	OrganizationID string
	Statuses       []types.AlertStatus
	Severities     []types.Severity
	Source         types.Source
	RuleID         string
	DepartmentID   string
	QueueName      string
	From           *time.Time
	To             *time.Time
	ExpiresBefore  *time.Time

	page     int
	pageSize int
}

func WithOrganization(organizationID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.OrganizationID = organizationID
		return c
	}
}

func WithStatus(statuses ...types.AlertStatus) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Statuses = statuses
		return c
	}
}

func WithSeverities(severities ...types.Severity) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Severities = severities
		return c
	}
}

func WithSource(source types.Source) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Source = source
		return c
	}
}

func WithRuleID(ruleID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.RuleID = ruleID
		return c
	}
}

func WithDepartment(departmentID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.DepartmentID = departmentID
		return c
	}
}

func WithQueue(queueName string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.QueueName = queueName
		return c
	}
}

// WithTriggeredBetween limits results to alerts triggered within [from, to]. Either bound may be nil.
func WithTriggeredBetween(from, to *time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.From = from
		c.To = to
		return c
	}
}

func WithExpiresBefore(t time.Time) ConditionFunc {
	return func(c *Condition) *Condition {
		c.ExpiresBefore = &t
		return c
	}
}

func WithPage(page, pageSize int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.page = page
		c.pageSize = pageSize
		return c
	}
}

func (c Condition) where(db *gorm.DB) *gorm.DB {
	query := db

	if c.OrganizationID != "" {
		query = query.Where("organization_id = ?", c.OrganizationID)
	}

	if len(c.Statuses) > 0 {
		statuses := make([]string, 0, len(c.Statuses))
		for _, s := range c.Statuses {
			statuses = append(statuses, string(s))
		}
		query = query.Where("status IN ?", statuses)
	}

	if len(c.Severities) > 0 {
		severities := make([]string, 0, len(c.Severities))
		for _, s := range c.Severities {
			severities = append(severities, string(s))
		}
		query = query.Where("severity IN ?", severities)
	}

	if c.Source != "" {
		query = query.Where("source = ?", string(c.Source))
	}

	if c.RuleID != "" {
		query = query.Where("rule_id = ?", c.RuleID)
	}

	if c.DepartmentID != "" {
		query = query.Where("department_id = ?", c.DepartmentID)
	}

	if c.QueueName != "" {
		query = query.Where("queue_name = ?", c.QueueName)
	}

	if c.From != nil {
		query = query.Where("triggered_at >= ?", c.From.UTC())
	}

	if c.To != nil {
		query = query.Where("triggered_at <= ?", c.To.UTC())
	}

	if c.ExpiresBefore != nil {
		query = query.Where("expires_at IS NOT NULL AND expires_at <= ?", c.ExpiresBefore.UTC())
	}

	return query
}
