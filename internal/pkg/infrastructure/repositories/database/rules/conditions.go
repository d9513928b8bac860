package rules

import (
	"github.com/diwise/alert-engine/pkg/types"
	"gorm.io/gorm"
)

type ConditionFunc func(*Condition) *Condition

type Condition struct {
	OrganizationID string
	DepartmentID   string
	QueueName      string
	Source         types.Source
	Enabled        *bool
	Severities     []types.Severity

	// scopeOrUnscoped makes department and queue match either the given
	// value or a rule without that scope.
	scopeOrUnscoped bool

	page     int
	pageSize int
	limit    int
}

func WithOrganization(organizationID string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.OrganizationID = organizationID
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

// WithApplicableScope matches rules scoped to the given department and queue
// as well as rules that leave the department or queue unset.
func WithApplicableScope(departmentID, queueName string) ConditionFunc {
	return func(c *Condition) *Condition {
		c.DepartmentID = departmentID
		c.QueueName = queueName
		c.scopeOrUnscoped = true
		return c
	}
}

func WithSource(source types.Source) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Source = source
		return c
	}
}

func WithEnabled(enabled bool) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Enabled = &enabled
		return c
	}
}

func WithSeverities(severities ...types.Severity) ConditionFunc {
	return func(c *Condition) *Condition {
		c.Severities = severities
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

func WithLimit(limit int) ConditionFunc {
	return func(c *Condition) *Condition {
		c.limit = limit
		return c
	}
}

func (c Condition) where(db *gorm.DB) *gorm.DB {
	query := db.Where("organization_id = ?", c.OrganizationID)

	if c.DepartmentID != "" {
		if c.scopeOrUnscoped {
			query = query.Where("(department_id = ? OR department_id IS NULL)", c.DepartmentID)
		} else {
			query = query.Where("department_id = ?", c.DepartmentID)
		}
	}

	if c.QueueName != "" {
		if c.scopeOrUnscoped {
			query = query.Where("(queue_name = ? OR queue_name IS NULL)", c.QueueName)
		} else {
			query = query.Where("queue_name = ?", c.QueueName)
		}
	}

	if c.Source != "" {
		query = query.Where("source = ?", string(c.Source))
	}

	if c.Enabled != nil {
		query = query.Where("enabled = ?", *c.Enabled)
	}

	if len(c.Severities) > 0 {
		severities := make([]string, 0, len(c.Severities))
		for _, s := range c.Severities {
			severities = append(severities, string(s))
		}
		query = query.Where("severity IN ?", severities)
	}

	return query
}
