package snapshots

import (
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
)

type KPISnapshot struct {
	ID             string  `gorm:"primaryKey"`
	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	QueueName      *string
	SnapshotTime   time.Time      `gorm:"index;not null"`
	Metrics        map[string]any `gorm:"serializer:json"`
}

func (KPISnapshot) TableName() string {
	return "kpi_snapshots"
}

type BacklogSnapshot struct {
	ID             string  `gorm:"primaryKey"`
	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	QueueName      *string `gorm:"index"`
	SnapshotTime   time.Time      `gorm:"index;not null"`
	Metrics        map[string]any `gorm:"serializer:json"`
}

func (BacklogSnapshot) TableName() string {
	return "backlog_snapshots"
}

type AttendanceSnapshot struct {
	ID             string  `gorm:"primaryKey"`
	OrganizationID string  `gorm:"index;not null"`
	DepartmentID   *string `gorm:"index"`
	EmployeeID     string
	Status         string
	SnapshotTime   time.Time `gorm:"index;not null"`
}

func (AttendanceSnapshot) TableName() string {
	return "attendance_snapshots"
}

func toSnapshot(id, organizationID string, departmentID, queueName *string, snapshotTime time.Time, metrics map[string]any) types.Snapshot {
	return types.Snapshot{
		ID:             id,
		OrganizationID: organizationID,
		DepartmentID:   ValueOrEmpty(departmentID),
		QueueName:      ValueOrEmpty(queueName),
		SnapshotTime:   snapshotTime.UTC(),
		Metrics:        metrics,
	}
}

func (a AttendanceSnapshot) toAttendance() types.AttendanceSnapshot {
	return types.AttendanceSnapshot{
		ID:             a.ID,
		OrganizationID: a.OrganizationID,
		DepartmentID:   ValueOrEmpty(a.DepartmentID),
		EmployeeID:     a.EmployeeID,
		Status:         types.AttendanceStatus(a.Status),
		SnapshotTime:   a.SnapshotTime.UTC(),
	}
}
