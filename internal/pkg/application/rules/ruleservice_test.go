package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/rules"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/matryer/is"
)

func TestCreateAppliesDefaults(t *testing.T) {
	is, ctx, svc := testSetup(t)

	rule, err := svc.Create(ctx, waitTimeSpec("org"))
	is.NoErr(err)

	is.True(rule.ID != "")
	is.True(rule.Enabled)
	is.Equal(rule.CooldownMinutes, 15)
	is.Equal(rule.AutoExpireAfterMinutes, 240)
	is.Equal(rule.TriggerCount, 0)
	is.True(rule.LastTriggeredAt == nil)

	fromDb, err := svc.Get(ctx, rule.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, "long wait time")
}

func TestCreateHonoursExplicitValues(t *testing.T) {
	is, ctx, svc := testSetup(t)

	disabled := false
	cooldown := 0
	expire := 30

	spec := waitTimeSpec("org")
	spec.Enabled = &disabled
	spec.CooldownMinutes = &cooldown
	spec.AutoExpireAfterMinutes = &expire
	spec.AlertType = ""

	rule, err := svc.Create(ctx, spec)
	is.NoErr(err)
	is.True(!rule.Enabled)
	is.Equal(rule.CooldownMinutes, 0)
	is.Equal(rule.AutoExpireAfterMinutes, 30)
	is.Equal(rule.AlertType, "wait_time") // falls back to the condition field
}

func TestCreateRejectsInvalidRules(t *testing.T) {
	is, ctx, svc := testSetup(t)

	noOrg := waitTimeSpec("")
	_, err := svc.Create(ctx, noOrg)
	is.True(errors.Is(err, ErrInvalidRule))

	badOperator := waitTimeSpec("org")
	badOperator.Condition.Operator = "approximately"
	_, err = svc.Create(ctx, badOperator)
	is.True(errors.Is(err, ErrInvalidRule))

	badSchedule := waitTimeSpec("org")
	badSchedule.Schedule = &types.Schedule{StartTime: "noon"}
	_, err = svc.Create(ctx, badSchedule)
	is.True(errors.Is(err, ErrInvalidRule))

	badSeverity := waitTimeSpec("org")
	badSeverity.Severity = "apocalyptic"
	_, err = svc.Create(ctx, badSeverity)
	is.True(errors.Is(err, ErrInvalidRule))
}

func TestUpdateMergesFieldsAndKeepsBookkeeping(t *testing.T) {
	is, ctx, svc := testSetup(t)

	rule, err := svc.Create(ctx, waitTimeSpec("org"))
	is.NoErr(err)

	claimed, err := svc.MarkTriggered(ctx, rule, time.Now().UTC(), false)
	is.NoErr(err)
	is.True(claimed)

	updated, err := svc.Update(ctx, rule.ID, map[string]any{
		"name":            "very long wait time",
		"severity":        "critical",
		"organization_id": "someone-else",
		"trigger_count":   100,
		"condition": map[string]any{
			"field":           "wait_time",
			"operator":        "gte",
			"threshold_value": 600,
		},
	})
	is.NoErr(err)
	is.Equal(updated.Name, "very long wait time")
	is.Equal(updated.Severity, types.SeverityCritical)
	is.Equal(updated.OrganizationID, "org")
	is.Equal(updated.Condition.Operator, types.OperatorGreaterThanOrEqual)

	fromDb, err := svc.Get(ctx, rule.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, "very long wait time")
	is.Equal(fromDb.OrganizationID, "org")
	is.Equal(fromDb.TriggerCount, 1)
	is.True(fromDb.LastTriggeredAt != nil)
	is.Equal(fromDb.Description, rule.Description) // untouched fields are kept
}

func TestUpdateRejectsUnknownFieldsAndInvalidValues(t *testing.T) {
	is, ctx, svc := testSetup(t)

	rule, err := svc.Create(ctx, waitTimeSpec("org"))
	is.NoErr(err)

	_, err = svc.Update(ctx, rule.ID, map[string]any{"colour": "blue"})
	is.True(errors.Is(err, ErrInvalidRule))

	_, err = svc.Update(ctx, rule.ID, map[string]any{"source": "weather"})
	is.True(errors.Is(err, ErrInvalidRule))

	_, err = svc.Update(ctx, "nosuchrule", map[string]any{"name": "x"})
	is.True(errors.Is(err, ErrRuleNotFound))
}

func TestDeleteRule(t *testing.T) {
	is, ctx, svc := testSetup(t)

	rule, err := svc.Create(ctx, waitTimeSpec("org"))
	is.NoErr(err)

	is.NoErr(svc.Delete(ctx, rule.ID))

	_, err = svc.Get(ctx, rule.ID)
	is.True(errors.Is(err, ErrRuleNotFound))

	err = svc.Delete(ctx, rule.ID)
	is.True(errors.Is(err, ErrRuleNotFound))
}

func TestListRequiresOrganizationAndFilters(t *testing.T) {
	is, ctx, svc := testSetup(t)

	_, err := svc.List(ctx, types.RuleFilter{})
	is.True(errors.Is(err, ErrInvalidRule))

	disabled := false

	kpi := waitTimeSpec("org")
	backlog := waitTimeSpec("org")
	backlog.Source = types.SourceBacklog
	backlog.Enabled = &disabled

	_, err = svc.Create(ctx, kpi)
	is.NoErr(err)
	_, err = svc.Create(ctx, backlog)
	is.NoErr(err)

	all, err := svc.List(ctx, types.RuleFilter{OrganizationID: "org"})
	is.NoErr(err)
	is.Equal(len(all.Data), 2)
	is.Equal(all.PageSize, uint64(50))

	enabled := true
	onlyEnabled, err := svc.List(ctx, types.RuleFilter{OrganizationID: "org", Enabled: &enabled})
	is.NoErr(err)
	is.Equal(len(onlyEnabled.Data), 1)
	is.Equal(onlyEnabled.Data[0].Source, types.SourceKPI)

	onlyBacklog, err := svc.List(ctx, types.RuleFilter{OrganizationID: "org", Source: types.SourceBacklog})
	is.NoErr(err)
	is.Equal(len(onlyBacklog.Data), 1)
}

func TestApplicableIncludesUnscopedRules(t *testing.T) {
	is, ctx, svc := testSetup(t)

	unscoped := waitTimeSpec("org")
	scoped := waitTimeSpec("org")
	scoped.DepartmentID = "support"
	otherDept := waitTimeSpec("org")
	otherDept.DepartmentID = "sales"

	disabled := false
	off := waitTimeSpec("org")
	off.Enabled = &disabled

	for _, s := range []types.RuleSpec{unscoped, scoped, otherDept, off} {
		_, err := svc.Create(ctx, s)
		is.NoErr(err)
	}

	rules, err := svc.Applicable(ctx, types.EvaluationRequest{OrganizationID: "org", DepartmentID: "support"}, 100)
	is.NoErr(err)
	is.Equal(len(rules), 2)

	for _, r := range rules {
		is.True(r.DepartmentID == "" || r.DepartmentID == "support")
		is.True(r.Enabled)
	}
}

func TestMarkTriggeredRespectsCooldown(t *testing.T) {
	is, ctx, svc := testSetup(t)

	rule, err := svc.Create(ctx, waitTimeSpec("org"))
	is.NoErr(err)

	now := time.Now().UTC()

	claimed, err := svc.MarkTriggered(ctx, rule, now, false)
	is.NoErr(err)
	is.True(claimed)

	claimed, err = svc.MarkTriggered(ctx, rule, now.Add(5*time.Minute), false)
	is.NoErr(err)
	is.True(!claimed) // still within the 15 minute cooldown

	claimed, err = svc.MarkTriggered(ctx, rule, now.Add(5*time.Minute), true)
	is.NoErr(err)
	is.True(claimed)

	fromDb, _ := svc.Get(ctx, rule.ID)
	is.Equal(fromDb.TriggerCount, 2)
}

func testSetup(t *testing.T) (*is.I, context.Context, RuleService) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.NewRuleRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, New(repo, DefaultConfig())
}

func waitTimeSpec(organizationID string) types.RuleSpec {
	return types.RuleSpec{
		OrganizationID: organizationID,
		Name:           "long wait time",
		Description:    "customers wait too long",
		Source:         types.SourceKPI,
		AlertType:      "wait_time",
		Severity:       types.SeverityWarning,
		Condition: types.Condition{
			Field:          "wait_time",
			Operator:       types.OperatorGreaterThan,
			ThresholdValue: 300,
		},
		Priority: 1,
	}
}
