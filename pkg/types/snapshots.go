package types

import "time"

// Snapshot is a point in time reading of KPI or backlog metrics for a scope.
type Snapshot struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	DepartmentID   string         `json:"department_id,omitempty"`
	QueueName      string         `json:"queue_name,omitempty"`
	SnapshotTime   time.Time      `json:"snapshot_time"`
	Metrics        map[string]any `json:"metrics"`
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

type AttendanceSnapshot struct {
	ID             string           `json:"id"`
	OrganizationID string           `json:"organization_id"`
	DepartmentID   string           `json:"department_id,omitempty"`
	EmployeeID     string           `json:"employee_id"`
	Status         AttendanceStatus `json:"status"`
	SnapshotTime   time.Time        `json:"snapshot_time"`
}
