package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestAddAndGetRule(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	rule := createRule("org", 1, time.Now().UTC())
	rule.DepartmentID = "dept"
	rule.Suppression = &types.Suppression{
		Enabled:             true,
		SuppressIfCondition: &types.Condition{Field: "staff", Operator: types.OperatorLessThan, ThresholdValue: 2},
	}

	is.NoErr(r.Add(ctx, rule))

	fromDb, err := r.GetByID(ctx, rule.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, rule.Name)
	is.Equal(fromDb.DepartmentID, "dept")
	is.Equal(fromDb.QueueName, "")
	is.Equal(fromDb.Condition.Operator, types.OperatorGreaterThan)
	is.Equal(fromDb.Condition.ThresholdValue, float64(300))
	is.True(fromDb.Suppression != nil)
	is.Equal(fromDb.Suppression.SuppressIfCondition.Field, "staff")
	is.True(fromDb.LastTriggeredAt == nil)
}

func TestGetUnknownRuleReturnsNotFound(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	_, err := r.GetByID(ctx, "nosuchrule")
	is.True(errors.Is(err, ErrRuleNotFound))
	is.True(errors.Is(err, ErrNotFound))
}

func TestQueryOrdersByPriorityThenNewestFirst(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	now := time.Now().UTC()

	low := createRule("org", 1, now.Add(-3*time.Minute))
	highOld := createRule("org", 10, now.Add(-2*time.Minute))
	highNew := createRule("org", 10, now.Add(-1*time.Minute))
	other := createRule("other", 100, now)

	for _, rule := range []types.Rule{low, highOld, highNew, other} {
		is.NoErr(r.Add(ctx, rule))
	}

	result, err := r.Query(ctx, WithOrganization("org"))
	is.NoErr(err)
	is.Equal(3, len(result.Data))
	is.Equal(uint64(3), result.TotalCount)
	is.Equal(highNew.ID, result.Data[0].ID)
	is.Equal(highOld.ID, result.Data[1].ID)
	is.Equal(low.ID, result.Data[2].ID)
}

func TestQueryWithPagination(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		is.NoErr(r.Add(ctx, createRule("org", i, now)))
	}

	result, err := r.Query(ctx, WithOrganization("org"), WithPage(2, 2))
	is.NoErr(err)
	is.Equal(2, len(result.Data))
	is.Equal(uint64(5), result.TotalCount)
	is.Equal(uint64(2), result.Page)
	is.Equal(2, result.Data[0].Priority)
}

func TestQueryFilters(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	now := time.Now().UTC()

	scoped := createRule("org", 1, now)
	scoped.DepartmentID = "dept-a"
	scoped.QueueName = "support"

	unscoped := createRule("org", 1, now)

	otherDept := createRule("org", 1, now)
	otherDept.DepartmentID = "dept-b"

	disabled := createRule("org", 1, now)
	disabled.Enabled = false

	critical := createRule("org", 1, now)
	critical.Severity = types.SeverityCritical
	critical.Source = types.SourceBacklog

	for _, rule := range []types.Rule{scoped, unscoped, otherDept, disabled, critical} {
		is.NoErr(r.Add(ctx, rule))
	}

	result, err := r.Query(ctx, WithOrganization("org"), WithApplicableScope("dept-a", "support"), WithEnabled(true))
	is.NoErr(err)
	is.Equal(3, len(result.Data)) // scoped, unscoped and critical

	result, err = r.Query(ctx, WithOrganization("org"), WithDepartment("dept-b"))
	is.NoErr(err)
	is.Equal(1, len(result.Data))
	is.Equal(otherDept.ID, result.Data[0].ID)

	result, err = r.Query(ctx, WithOrganization("org"), WithSeverities(types.SeverityCritical, types.SeverityError))
	is.NoErr(err)
	is.Equal(1, len(result.Data))

	result, err = r.Query(ctx, WithOrganization("org"), WithSource(types.SourceBacklog))
	is.NoErr(err)
	is.Equal(critical.ID, result.Data[0].ID)

	result, err = r.Query(ctx, WithOrganization("org"), WithEnabled(false))
	is.NoErr(err)
	is.Equal(disabled.ID, result.Data[0].ID)

	result, err = r.Query(ctx, WithOrganization("org"), WithLimit(2))
	is.NoErr(err)
	is.Equal(2, len(result.Data))
}

func TestUpdateRule(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	rule := createRule("org", 1, time.Now().UTC())
	is.NoErr(r.Add(ctx, rule))

	ok, err := r.MarkTriggered(ctx, rule.ID, time.Now().UTC(), 15*time.Minute, false)
	is.NoErr(err)
	is.True(ok)

	rule.Name = "renamed"
	rule.Enabled = false
	rule.TriggerCount = 100
	is.NoErr(r.Update(ctx, rule))

	fromDb, err := r.GetByID(ctx, rule.ID)
	is.NoErr(err)
	is.Equal(fromDb.Name, "renamed")
	is.Equal(fromDb.Enabled, false)
	is.Equal(fromDb.TriggerCount, 1) // bookkeeping is not writable through update
	is.True(fromDb.LastTriggeredAt != nil)
}

func TestUpdateUnknownRuleReturnsNotFound(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	err := r.Update(ctx, createRule("org", 1, time.Now().UTC()))
	is.True(errors.Is(err, ErrRuleNotFound))
}

func TestDeleteRule(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	rule := createRule("org", 1, time.Now().UTC())
	is.NoErr(r.Add(ctx, rule))

	is.NoErr(r.Delete(ctx, rule.ID))

	err := r.Delete(ctx, rule.ID)
	is.True(errors.Is(err, ErrRuleNotFound))
}

func TestMarkTriggeredHonoursCooldown(t *testing.T) {
	is, ctx, r := testSetupRuleRepository(t)

	rule := createRule("org", 1, time.Now().UTC())
	is.NoErr(r.Add(ctx, rule))

	now := time.Now().UTC()

	ok, err := r.MarkTriggered(ctx, rule.ID, now, 15*time.Minute, false)
	is.NoErr(err)
	is.True(ok)

	ok, err = r.MarkTriggered(ctx, rule.ID, now.Add(5*time.Minute), 15*time.Minute, false)
	is.NoErr(err)
	is.True(!ok) // still within cooldown

	ok, err = r.MarkTriggered(ctx, rule.ID, now.Add(5*time.Minute), 15*time.Minute, true)
	is.NoErr(err)
	is.True(ok) // forced

	ok, err = r.MarkTriggered(ctx, rule.ID, now.Add(21*time.Minute), 15*time.Minute, false)
	is.NoErr(err)
	is.True(ok)

	fromDb, _ := r.GetByID(ctx, rule.ID)
	is.Equal(fromDb.TriggerCount, 3)
	is.True(fromDb.LastTriggeredAt.Equal(now.Add(21 * time.Minute)))
}

func testSetupRuleRepository(t *testing.T) (*is.I, context.Context, RuleRepository) {
	is, ctx, conn := setup(t)

	r, err := NewRuleRepository(conn)
	is.NoErr(err)

	return is, ctx, r
}

func setup(t *testing.T) (*is.I, context.Context, ConnectorFunc) {
	is := is.New(t)
	ctx := context.Background()
	conn := NewSQLiteConnector(ctx)

	return is, ctx, conn
}

func createRule(organizationID string, priority int, createdAt time.Time) types.Rule {
	return types.Rule{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		Name:           "long wait time",
		Source:         types.SourceKPI,
		AlertType:      "wait_time",
		Severity:       types.SeverityWarning,
		Condition: types.Condition{
			Field:          "wait_time",
			Operator:       types.OperatorGreaterThan,
			ThresholdValue: 300,
		},
		Enabled:                true,
		Priority:               priority,
		CooldownMinutes:        15,
		AutoExpireAfterMinutes: 240,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
}
