package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/application/conditions"
	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/rules"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/google/uuid"
)

var ErrRuleNotFound = db.ErrRuleNotFound
var ErrInvalidRule = errors.New("invalid rule")

type RuleService interface {
	Create(ctx context.Context, spec types.RuleSpec) (types.Rule, error)
	Update(ctx context.Context, ruleID string, fields map[string]any) (types.Rule, error)
	Delete(ctx context.Context, ruleID string) error
	Get(ctx context.Context, ruleID string) (types.Rule, error)
	List(ctx context.Context, filter types.RuleFilter) (types.Collection[types.Rule], error)

	Applicable(ctx context.Context, req types.EvaluationRequest, limit int) ([]types.Rule, error)
	MarkTriggered(ctx context.Context, rule types.Rule, triggeredAt time.Time, force bool) (bool, error)
}

type ruleSvc struct {
	storage db.RuleRepository
	config  Config
	now     func() time.Time
}

func New(storage db.RuleRepository, cfg Config) RuleService {
	return &ruleSvc{
		storage: storage,
		config:  cfg.withDefaults(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *ruleSvc) Create(ctx context.Context, spec types.RuleSpec) (types.Rule, error) {
	now := s.now()

	rule := types.Rule{
		ID:                      uuid.NewString(),
		OrganizationID:          spec.OrganizationID,
		DepartmentID:            spec.DepartmentID,
		SiteID:                  spec.SiteID,
		QueueName:               spec.QueueName,
		Name:                    spec.Name,
		Description:             spec.Description,
		Source:                  spec.Source,
		AlertType:               spec.AlertType,
		Severity:                spec.Severity,
		Condition:               spec.Condition,
		AdditionalConditions:    spec.AdditionalConditions,
		Enabled:                 true,
		Priority:                spec.Priority,
		NotificationChannels:    spec.NotificationChannels,
		NotificationRecipients:  spec.NotificationRecipients,
		MessageTemplate:         spec.MessageTemplate,
		CooldownMinutes:         s.config.DefaultCooldownMinutes,
		AutoResolveAfterMinutes: spec.AutoResolveAfterMinutes,
		AutoExpireAfterMinutes:  s.config.DefaultAutoExpireMinutes,
		Schedule:                spec.Schedule,
		Suppression:             spec.Suppression,
		Grouping:                spec.Grouping,
		Escalation:              spec.Escalation,
		CreatedAt:               now,
		UpdatedAt:               now,
		TriggerCount:            0,
	}

	if spec.Enabled != nil {
		rule.Enabled = *spec.Enabled
	}
	if spec.CooldownMinutes != nil {
		rule.CooldownMinutes = *spec.CooldownMinutes
	}
	if spec.AutoExpireAfterMinutes != nil {
		rule.AutoExpireAfterMinutes = *spec.AutoExpireAfterMinutes
	}
	if rule.AlertType == "" {
		rule.AlertType = rule.Condition.Field
	}

	if err := Validate(rule); err != nil {
		return types.Rule{}, err
	}

	if err := s.storage.Add(ctx, rule); err != nil {
		return types.Rule{}, fmt.Errorf("could not create rule: %w", err)
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().
		Str("rule_id", rule.ID).
		Str("organization_id", rule.OrganizationID).
		Msg("rule created")

	return rule, nil
}

// editableFields lists the rule attributes that may be changed through Update.
// Ownership, identity and trigger bookkeeping are silently kept.
var editableFields = map[string]bool{
	"name": true, "description": true, "department_id": true, "site_id": true, "queue_name": true,
	"source": true, "alert_type": true, "severity": true, "condition": true, "additional_conditions": true,
	"enabled": true, "priority": true, "notification_channels": true, "notification_recipients": true,
	"message_template": true, "cooldown_minutes": true, "auto_resolve_after_minutes": true,
	"auto_expire_after_minutes": true, "schedule": true, "suppression": true, "grouping": true, "escalation": true,
}

var readOnlyFields = map[string]bool{
	"id": true, "organization_id": true, "created_at": true, "updated_at": true,
	"last_triggered_at": true, "trigger_count": true,
}

func (s *ruleSvc) Update(ctx context.Context, ruleID string, fields map[string]any) (types.Rule, error) {
	current, err := s.storage.GetByID(ctx, ruleID)
	if err != nil {
		return types.Rule{}, err
	}

	merged, err := merge(current, fields)
	if err != nil {
		return types.Rule{}, err
	}

	merged.UpdatedAt = s.now()

	if err := Validate(merged); err != nil {
		return types.Rule{}, err
	}

	if err := s.storage.Update(ctx, merged); err != nil {
		return types.Rule{}, err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Str("rule_id", ruleID).Msg("rule updated")

	return merged, nil
}

func merge(current types.Rule, fields map[string]any) (types.Rule, error) {
	b, err := json.Marshal(current)
	if err != nil {
		return types.Rule{}, err
	}

	m := map[string]any{}
	if err = json.Unmarshal(b, &m); err != nil {
		return types.Rule{}, err
	}

	for k, v := range fields {
		if readOnlyFields[k] {
			continue
		}
		if !editableFields[k] {
			return types.Rule{}, fmt.Errorf("%w: unknown field %q", ErrInvalidRule, k)
		}
		m[k] = v
	}

	if b, err = json.Marshal(m); err != nil {
		return types.Rule{}, err
	}

	merged := types.Rule{}
	if err = json.Unmarshal(b, &merged); err != nil {
		return types.Rule{}, fmt.Errorf("%w: %s", ErrInvalidRule, err.Error())
	}

	merged.ID = current.ID
	merged.OrganizationID = current.OrganizationID
	merged.CreatedAt = current.CreatedAt
	merged.LastTriggeredAt = current.LastTriggeredAt
	merged.TriggerCount = current.TriggerCount

	return merged, nil
}

func (s *ruleSvc) Delete(ctx context.Context, ruleID string) error {
	err := s.storage.Delete(ctx, ruleID)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)
	logger.Info().Str("rule_id", ruleID).Msg("rule deleted")

	return nil
}

func (s *ruleSvc) Get(ctx context.Context, ruleID string) (types.Rule, error) {
	return s.storage.GetByID(ctx, ruleID)
}

func (s *ruleSvc) List(ctx context.Context, filter types.RuleFilter) (types.Collection[types.Rule], error) {
	if filter.OrganizationID == "" {
		return types.Collection[types.Rule]{}, fmt.Errorf("%w: organization_id is required", ErrInvalidRule)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}

	conds := []db.ConditionFunc{
		db.WithOrganization(filter.OrganizationID),
		db.WithPage(filter.Page, pageSize),
	}

	if filter.DepartmentID != "" {
		conds = append(conds, db.WithDepartment(filter.DepartmentID))
	}
	if filter.Source != "" {
		conds = append(conds, db.WithSource(filter.Source))
	}
	if filter.Enabled != nil {
		conds = append(conds, db.WithEnabled(*filter.Enabled))
	}
	if len(filter.Severities) > 0 {
		conds = append(conds, db.WithSeverities(filter.Severities...))
	}

	return s.storage.Query(ctx, conds...)
}

// Applicable returns the enabled rules of the organization that match the
// requested scope, including rules without a department or queue.
func (s *ruleSvc) Applicable(ctx context.Context, req types.EvaluationRequest, limit int) ([]types.Rule, error) {
	conds := []db.ConditionFunc{
		db.WithOrganization(req.OrganizationID),
		db.WithApplicableScope(req.DepartmentID, req.QueueName),
		db.WithEnabled(true),
		db.WithLimit(limit),
	}

	if req.Source != "" {
		conds = append(conds, db.WithSource(req.Source))
	}

	result, err := s.storage.Query(ctx, conds...)
	if err != nil {
		return nil, err
	}

	return result.Data, nil
}

func (s *ruleSvc) MarkTriggered(ctx context.Context, rule types.Rule, triggeredAt time.Time, force bool) (bool, error) {
	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	return s.storage.MarkTriggered(ctx, rule.ID, triggeredAt, cooldown, force)
}

func Validate(r types.Rule) error {
	var problems []string

	if r.OrganizationID == "" {
		problems = append(problems, "organization_id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !r.Source.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown source %q", r.Source))
	}
	if !r.Severity.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown severity %q", r.Severity))
	}
	if r.CooldownMinutes < 0 {
		problems = append(problems, "cooldown_minutes must not be negative")
	}
	if r.AutoExpireAfterMinutes < 0 {
		problems = append(problems, "auto_expire_after_minutes must not be negative")
	}
	if r.AutoResolveAfterMinutes != nil && *r.AutoResolveAfterMinutes <= 0 {
		problems = append(problems, "auto_resolve_after_minutes must be positive")
	}

	for _, c := range append([]types.Condition{r.Condition}, r.AdditionalConditions...) {
		if err := conditions.Validate(c); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if err := conditions.ValidateSchedule(r.Schedule); err != nil {
		problems = append(problems, err.Error())
	}

	if r.Suppression != nil {
		if err := conditions.ValidateSchedule(r.Suppression.Schedule); err != nil {
			problems = append(problems, err.Error())
		}
		if r.Suppression.SuppressIfCondition != nil {
			if err := conditions.Validate(*r.Suppression.SuppressIfCondition); err != nil {
				problems = append(problems, "suppression: "+err.Error())
			}
		}
	}

	if r.Escalation != nil && r.Escalation.EscalateToSeverity != "" && !r.Escalation.EscalateToSeverity.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown escalation severity %q", r.Escalation.EscalateToSeverity))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(problems, ", "))
	}

	return nil
}
