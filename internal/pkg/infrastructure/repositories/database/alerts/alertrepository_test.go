package alerts

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

func TestAddAndGetAlert(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	variance := 50
	a := createAlert("org", types.SeverityWarning, time.Now().UTC())
	a.Variance = &variance
	a.CustomData = map[string]any{"wait_time": 450}

	is.NoErr(r.Add(ctx, a))

	fromDb, err := r.GetByID(ctx, a.ID)
	is.NoErr(err)
	is.Equal(fromDb.RuleID, a.RuleID)
	is.Equal(fromDb.Status, types.AlertStatusPending)
	is.Equal(fromDb.CurrentValue, float64(450))
	is.Equal(fromDb.ThresholdValue, float64(300))
	is.Equal(*fromDb.Variance, 50)
	is.Equal(fromDb.CustomData["wait_time"], float64(450))
	is.True(fromDb.TriggeredAt.Equal(a.TriggeredAt))
}

func TestGetUnknownAlertReturnsNotFound(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	_, err := r.GetByID(ctx, "nosuchalert")
	is.True(errors.Is(err, ErrAlertNotFound))
}

func TestSaveAlertKeepsIdentity(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	a := createAlert("org", types.SeverityWarning, time.Now().UTC())
	is.NoErr(r.Add(ctx, a))

	now := time.Now().UTC()
	changed := a
	changed.Status = types.AlertStatusAcknowledged
	changed.AcknowledgedAt = &now
	changed.AcknowledgedBy = "supervisor"
	changed.OrganizationID = "someone-else"
	changed.RuleID = "another-rule"

	is.NoErr(r.Save(ctx, changed))

	fromDb, err := r.GetByID(ctx, a.ID)
	is.NoErr(err)
	is.Equal(fromDb.Status, types.AlertStatusAcknowledged)
	is.Equal(fromDb.AcknowledgedBy, "supervisor")
	is.Equal(fromDb.OrganizationID, "org")
	is.Equal(fromDb.RuleID, a.RuleID)
}

func TestSaveUnknownAlertReturnsNotFound(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	err := r.Save(ctx, createAlert("org", types.SeverityInfo, time.Now().UTC()))
	is.True(errors.Is(err, ErrAlertNotFound))
}

func TestQueryAlerts(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	now := time.Now().UTC()

	oldest := createAlert("org", types.SeverityInfo, now.Add(-3*time.Hour))
	older := createAlert("org", types.SeverityCritical, now.Add(-2*time.Hour))
	newest := createAlert("org", types.SeverityWarning, now.Add(-1*time.Hour))
	newest.Status = types.AlertStatusResolved
	newest.QueueName = "support"
	foreign := createAlert("other", types.SeverityWarning, now)

	for _, a := range []types.Alert{oldest, older, newest, foreign} {
		is.NoErr(r.Add(ctx, a))
	}

	result, err := r.Query(ctx, WithOrganization("org"))
	is.NoErr(err)
	is.Equal(3, len(result.Data))
	is.Equal(newest.ID, result.Data[0].ID)
	is.Equal(oldest.ID, result.Data[2].ID)

	result, err = r.Query(ctx, WithOrganization("org"), WithStatus(types.AlertStatusPending, types.AlertStatusActive))
	is.NoErr(err)
	is.Equal(2, len(result.Data))

	result, err = r.Query(ctx, WithOrganization("org"), WithSeverities(types.SeverityCritical))
	is.NoErr(err)
	is.Equal(older.ID, result.Data[0].ID)

	result, err = r.Query(ctx, WithOrganization("org"), WithQueue("support"))
	is.NoErr(err)
	is.Equal(newest.ID, result.Data[0].ID)

	from := now.Add(-150 * time.Minute)
	result, err = r.Query(ctx, WithOrganization("org"), WithTriggeredBetween(&from, &now))
	is.NoErr(err)
	is.Equal(2, len(result.Data))

	result, err = r.Query(ctx, WithOrganization("org"), WithPage(2, 2))
	is.NoErr(err)
	is.Equal(1, len(result.Data))
	is.Equal(uint64(3), result.TotalCount)
}

func TestQueryExpiredAlerts(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	expired := createAlert("org", types.SeverityInfo, now.Add(-4*time.Hour))
	expired.ExpiresAt = &past
	current := createAlert("org", types.SeverityInfo, now)
	current.ExpiresAt = &future

	is.NoErr(r.Add(ctx, expired))
	is.NoErr(r.Add(ctx, current))

	result, err := r.Query(ctx, WithExpiresBefore(now))
	is.NoErr(err)
	is.Equal(1, len(result.Data))
	is.Equal(expired.ID, result.Data[0].ID)
}

func TestAlertGroups(t *testing.T) {
	is, ctx, r := testSetupAlertRepository(t)

	now := time.Now().UTC()

	g := types.AlertGroup{
		ID:              uuid.NewString(),
		OrganizationID:  "org",
		AlertType:       "wait_time",
		AlertIDs:        []string{"a", "b"},
		AlertCount:      2,
		HighestSeverity: types.SeverityError,
		Status:          types.AlertStatusActive,
		GroupMessage:    "2 wait_time alerts",
		FirstAlertAt:    now.Add(-time.Minute),
		LastAlertAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	is.NoErr(r.AddGroup(ctx, g))

	found, err := r.FindOpenGroup(ctx, GroupKey{OrganizationID: "org", AlertType: "wait_time"}, now.Add(-10*time.Minute))
	is.NoErr(err)
	is.Equal(found.ID, g.ID)
	is.Equal(found.AlertIDs, []string{"a", "b"})

	_, err = r.FindOpenGroup(ctx, GroupKey{OrganizationID: "org", AlertType: "wait_time", QueueName: "support"}, now.Add(-10*time.Minute))
	is.True(errors.Is(err, ErrGroupNotFound))

	_, err = r.FindOpenGroup(ctx, GroupKey{OrganizationID: "org", AlertType: "wait_time"}, now.Add(time.Minute))
	is.True(errors.Is(err, ErrGroupNotFound))

	found.AlertIDs = append(found.AlertIDs, "c")
	found.AlertCount = 3
	is.NoErr(r.SaveGroup(ctx, found))

	fromDb, err := r.GetGroupByID(ctx, g.ID)
	is.NoErr(err)
	is.Equal(fromDb.AlertCount, 3)
	is.Equal(len(fromDb.AlertIDs), 3)
}

func testSetupAlertRepository(t *testing.T) (*is.I, context.Context, AlertRepository) {
	is := is.New(t)
	ctx := context.Background()

	r, err := NewAlertRepository(NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, r
}

func createAlert(organizationID string, severity types.Severity, triggeredAt time.Time) types.Alert {
	return types.Alert{
		ID:             uuid.NewString(),
		RuleID:         uuid.NewString(),
		RuleName:       "long wait time",
		AlertType:      "wait_time",
		Severity:       severity,
		Source:         types.SourceKPI,
		OrganizationID: organizationID,
		Message:        "long wait time: wait_time is 450 (threshold: 300)",
		CurrentValue:   450,
		ThresholdValue: 300,
		Status:         types.AlertStatusPending,
		TriggeredAt:    triggeredAt,
	}
}
