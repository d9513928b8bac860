package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
	"gorm.io/gorm"
)

var ErrAlertNotFound = fmt.Errorf("alert %w", ErrNotFound)
var ErrGroupNotFound = fmt.Errorf("alert group %w", ErrNotFound)

type AlertRepository interface {
	Add(ctx context.Context, alert types.Alert) error
	Save(ctx context.Context, alert types.Alert) error
	GetByID(ctx context.Context, alertID string) (types.Alert, error)
	Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Alert], error)

	AddGroup(ctx context.Context, group types.AlertGroup) error
	SaveGroup(ctx context.Context, group types.AlertGroup) error
	GetGroupByID(ctx context.Context, groupID string) (types.AlertGroup, error)
	FindOpenGroup(ctx context.Context, key GroupKey, since time.Time) (types.AlertGroup, error)
}

// GroupKey identifies the alerts that may be merged into one group.
type GroupKey struct {
	OrganizationID string
	AlertType      string
	DepartmentID   string
	QueueName      string
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(connect ConnectorFunc) (AlertRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Alert{}, &AlertGroup{})
	if err != nil {
		return nil, err
	}

	return &alertRepository{
		db: impl,
	}, nil
}

func (r *alertRepository) Add(ctx context.Context, alert types.Alert) error {
	record := fromAlert(alert)

	result := r.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to add alert: %w", result.Error)
	}

	return nil
}

// Save persists the mutable parts of an alert. Identity, ownership and the
// time of triggering are fixed at creation and are never rewritten.
func (r *alertRepository) Save(ctx context.Context, alert types.Alert) error {
	record := fromAlert(alert)

	result := r.db.WithContext(ctx).
		Model(&Alert{ID: alert.ID}).
		Select("*").
		Omit("id", "rule_id", "organization_id", "triggered_at").
		Updates(&record)

	if result.Error != nil {
		return fmt.Errorf("failed to save alert %s: %w", alert.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrAlertNotFound
	}

	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, alertID string) (types.Alert, error) {
	var record Alert

	result := r.db.WithContext(ctx).Where("id = ?", alertID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Alert{}, ErrAlertNotFound
		}
		return types.Alert{}, fmt.Errorf("failed to get alert %s: %w", alertID, result.Error)
	}

	return record.toAlert(), nil
}

// Query returns alerts with the most recently triggered first. Without a page
// size every matching alert is returned.
func (r *alertRepository) Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Alert], error) {
	c := &Condition{}
	for _, f := range conditions {
		c = f(c)
	}

	var total int64
	err := c.where(r.db.WithContext(ctx).Model(&Alert{})).Count(&total).Error
	if err != nil {
		return types.Collection[types.Alert]{}, fmt.Errorf("failed to count alerts: %w", err)
	}

	query := c.where(r.db.WithContext(ctx)).Order("triggered_at DESC")
	if c.pageSize > 0 {
		query = query.Scopes(Paginate(c.page, c.pageSize))
	}

	var records []Alert
	err = query.Find(&records).Error
	if err != nil {
		return types.Collection[types.Alert]{}, fmt.Errorf("failed to query alerts: %w", err)
	}

	alerts := make([]types.Alert, 0, len(records))
	for _, rec := range records {
		alerts = append(alerts, rec.toAlert())
	}

	page := c.page
	if page < 1 {
		page = 1
	}

	return types.Collection[types.Alert]{
		Data:       alerts,
		Count:      uint64(len(alerts)),
		Page:       uint64(page),
		PageSize:   uint64(c.pageSize),
		TotalCount: uint64(total),
	}, nil
}

func (r *alertRepository) AddGroup(ctx context.Context, group types.AlertGroup) error {
	record := fromGroup(group)

	result := r.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to add alert group: %w", result.Error)
	}

	return nil
}

func (r *alertRepository) SaveGroup(ctx context.Context, group types.AlertGroup) error {
	record := fromGroup(group)

	result := r.db.WithContext(ctx).
		Model(&AlertGroup{ID: group.ID}).
		Select("*").
		Omit("id", "organization_id", "created_at").
		Updates(&record)

	if result.Error != nil {
		return fmt.Errorf("failed to save alert group %s: %w", group.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}

	return nil
}

func (r *alertRepository) GetGroupByID(ctx context.Context, groupID string) (types.AlertGroup, error) {
	var record AlertGroup

	result := r.db.WithContext(ctx).Where("id = ?", groupID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.AlertGroup{}, ErrGroupNotFound
		}
		return types.AlertGroup{}, fmt.Errorf("failed to get alert group %s: %w", groupID, result.Error)
	}

	return record.toGroup(), nil
}

// FindOpenGroup returns the most recently updated group for the key that is
// still open and has received an alert since the given time.
func (r *alertRepository) FindOpenGroup(ctx context.Context, key GroupKey, since time.Time) (types.AlertGroup, error) {
	query := r.db.WithContext(ctx).
		Where("organization_id = ? AND alert_type = ?", key.OrganizationID, key.AlertType).
		Where("status IN ?", []string{string(types.AlertStatusPending), string(types.AlertStatusActive)}).
		Where("last_alert_at >= ?", since.UTC())

	if key.DepartmentID == "" {
		query = query.Where("department_id IS NULL")
	} else {
		query = query.Where("department_id = ?", key.DepartmentID)
	}

	if key.QueueName == "" {
		query = query.Where("queue_name IS NULL")
	} else {
		query = query.Where("queue_name = ?", key.QueueName)
	}

	var record AlertGroup
	result := query.Order("last_alert_at DESC").First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.AlertGroup{}, ErrGroupNotFound
		}
		return types.AlertGroup{}, fmt.Errorf("failed to find open alert group: %w", result.Error)
	}

	return record.toGroup(), nil
}
