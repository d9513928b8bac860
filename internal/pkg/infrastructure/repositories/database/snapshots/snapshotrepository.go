package snapshots

import (
	"context"
	"errors"
	"fmt"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
	"gorm.io/gorm"
)

var ErrSnapshotNotFound = fmt.Errorf("snapshot %w", ErrNotFound)

// SnapshotRepository reads the metric snapshots written by the reporting
// pipeline. The Add methods exist for seeding.
type SnapshotRepository interface {
	LatestKPI(ctx context.Context, organizationID string) (types.Snapshot, error)
	LatestBacklog(ctx context.Context, organizationID, queueName string) (types.Snapshot, error)
	RecentAttendance(ctx context.Context, organizationID, departmentID string, limit int) ([]types.AttendanceSnapshot, error)

	AddKPI(ctx context.Context, s types.Snapshot) error
	AddBacklog(ctx context.Context, s types.Snapshot) error
	AddAttendance(ctx context.Context, s types.AttendanceSnapshot) error
}

type snapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(connect ConnectorFunc) (SnapshotRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&KPISnapshot{}, &BacklogSnapshot{}, &AttendanceSnapshot{})
	if err != nil {
		return nil, err
	}

	return &snapshotRepository{
		db: impl,
	}, nil
}

func (r *snapshotRepository) LatestKPI(ctx context.Context, organizationID string) (types.Snapshot, error) {
	var record KPISnapshot

	result := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("snapshot_time DESC").
		First(&record)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Snapshot{}, ErrSnapshotNotFound
		}
		return types.Snapshot{}, fmt.Errorf("failed to fetch kpi snapshot: %w", result.Error)
	}

	return toSnapshot(record.ID, record.OrganizationID, record.DepartmentID, record.QueueName, record.SnapshotTime, record.Metrics), nil
}

func (r *snapshotRepository) LatestBacklog(ctx context.Context, organizationID, queueName string) (types.Snapshot, error) {
	var record BacklogSnapshot

	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)
	if queueName != "" {
		query = query.Where("queue_name = ?", queueName)
	}

	result := query.Order("snapshot_time DESC").First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Snapshot{}, ErrSnapshotNotFound
		}
		return types.Snapshot{}, fmt.Errorf("failed to fetch backlog snapshot: %w", result.Error)
	}

	return toSnapshot(record.ID, record.OrganizationID, record.DepartmentID, record.QueueName, record.SnapshotTime, record.Metrics), nil
}

func (r *snapshotRepository) RecentAttendance(ctx context.Context, organizationID, departmentID string, limit int) ([]types.AttendanceSnapshot, error) {
	var records []AttendanceSnapshot

	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)
	if departmentID != "" {
		query = query.Where("department_id = ?", departmentID)
	}

	result := query.Order("snapshot_time DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch attendance snapshots: %w", result.Error)
	}

	snapshots := make([]types.AttendanceSnapshot, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, rec.toAttendance())
	}

	return snapshots, nil
}

func (r *snapshotRepository) AddKPI(ctx context.Context, s types.Snapshot) error {
	record := KPISnapshot{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		DepartmentID:   NullIfEmpty(s.DepartmentID),
		QueueName:      NullIfEmpty(s.QueueName),
		SnapshotTime:   s.SnapshotTime.UTC(),
		Metrics:        s.Metrics,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *snapshotRepository) AddBacklog(ctx context.Context, s types.Snapshot) error {
	record := BacklogSnapshot{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		DepartmentID:   NullIfEmpty(s.DepartmentID),
		QueueName:      NullIfEmpty(s.QueueName),
		SnapshotTime:   s.SnapshotTime.UTC(),
		Metrics:        s.Metrics,
	}
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *snapshotRepository) AddAttendance(ctx context.Context, s types.AttendanceSnapshot) error {
	record := AttendanceSnapshot{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		DepartmentID:   NullIfEmpty(s.DepartmentID),
		EmployeeID:     s.EmployeeID,
		Status:         string(s.Status),
		SnapshotTime:   s.SnapshotTime.UTC(),
	}
	return r.db.WithContext(ctx).Create(&record).Error
}
