package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
	"gorm.io/gorm"
)

var ErrRuleNotFound = fmt.Errorf("rule %w", ErrNotFound)

type RuleRepository interface {
	Add(ctx context.Context, rule types.Rule) error
	Update(ctx context.Context, rule types.Rule) error
	GetByID(ctx context.Context, ruleID string) (types.Rule, error)
	Delete(ctx context.Context, ruleID string) error
	Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Rule], error)
	MarkTriggered(ctx context.Context, ruleID string, triggeredAt time.Time, cooldown time.Duration, force bool) (bool, error)
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(connect ConnectorFunc) (RuleRepository, error) {
	impl, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(&Rule{})
	if err != nil {
		return nil, err
	}

	return &ruleRepository{
		db: impl,
	}, nil
}

func (r *ruleRepository) Add(ctx context.Context, rule types.Rule) error {
	record := fromRule(rule)

	result := r.db.WithContext(ctx).Create(&record)
	if result.Error != nil {
		return fmt.Errorf("failed to add rule: %w", result.Error)
	}

	return nil
}

// Update writes every user editable column of the rule. Trigger bookkeeping and
// ownership columns are never written here.
func (r *ruleRepository) Update(ctx context.Context, rule types.Rule) error {
	record := fromRule(rule)

	result := r.db.WithContext(ctx).
		Model(&Rule{ID: rule.ID}).
		Select("*").
		Omit("id", "organization_id", "created_at", "trigger_count", "last_triggered_at").
		Updates(&record)

	if result.Error != nil {
		return fmt.Errorf("failed to update rule %s: %w", rule.ID, result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

func (r *ruleRepository) GetByID(ctx context.Context, ruleID string) (types.Rule, error) {
	var record Rule

	result := r.db.WithContext(ctx).Where("id = ?", ruleID).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return types.Rule{}, ErrRuleNotFound
		}
		return types.Rule{}, fmt.Errorf("failed to get rule %s: %w", ruleID, result.Error)
	}

	return record.toRule(), nil
}

func (r *ruleRepository) Delete(ctx context.Context, ruleID string) error {
	result := r.db.WithContext(ctx).Delete(&Rule{}, "id = ?", ruleID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule %s: %w", ruleID, result.Error)
	}

	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}

	return nil
}

// Query returns rules ordered by priority, highest first, and then by
// creation time, newest first.
func (r *ruleRepository) Query(ctx context.Context, conditions ...ConditionFunc) (types.Collection[types.Rule], error) {
	c := &Condition{}
	for _, f := range conditions {
		c = f(c)
	}

	var total int64
	err := c.where(r.db.WithContext(ctx).Model(&Rule{})).Count(&total).Error
	if err != nil {
		return types.Collection[types.Rule]{}, fmt.Errorf("failed to count rules: %w", err)
	}

	query := c.where(r.db.WithContext(ctx)).Order("priority DESC").Order("created_at DESC")

	if c.pageSize > 0 {
		query = query.Scopes(Paginate(c.page, c.pageSize))
	} else if c.limit > 0 {
		query = query.Limit(c.limit)
	}

	var records []Rule
	err = query.Find(&records).Error
	if err != nil {
		return types.Collection[types.Rule]{}, fmt.Errorf("failed to query rules: %w", err)
	}

	rules := make([]types.Rule, 0, len(records))
	for _, rec := range records {
		rules = append(rules, rec.toRule())
	}

	page := c.page
	if page < 1 {
		page = 1
	}

	return types.Collection[types.Rule]{
		Data:       rules,
		Count:      uint64(len(rules)),
		Page:       uint64(page),
		PageSize:   uint64(c.pageSize),
		TotalCount: uint64(total),
	}, nil
}

// MarkTriggered increments the trigger count and stamps last_triggered_at only if
// the stored last_triggered_at is still outside the cooldown window. It reports
// false when another evaluation already claimed the trigger.
func (r *ruleRepository) MarkTriggered(ctx context.Context, ruleID string, triggeredAt time.Time, cooldown time.Duration, force bool) (bool, error) {
	triggeredAt = triggeredAt.UTC()

	query := r.db.WithContext(ctx).Model(&Rule{}).Where("id = ?", ruleID)
	if !force {
		query = query.Where("(last_triggered_at IS NULL OR last_triggered_at <= ?)", triggeredAt.Add(-cooldown))
	}

	result := query.UpdateColumns(map[string]any{
		"trigger_count":     gorm.Expr("trigger_count + ?", 1),
		"last_triggered_at": triggeredAt,
	})

	if result.Error != nil {
		return false, fmt.Errorf("failed to mark rule %s as triggered: %w", ruleID, result.Error)
	}

	return result.RowsAffected == 1, nil
}
