package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/matryer/is"
)

var t0 = time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

func TestEmptyWindowHasZeroDefaults(t *testing.T) {
	is := is.New(t)

	a := Aggregate(nil)

	is.Equal(a.TotalAlerts, 0)
	is.Equal(a.CriticalAlerts, 0)
	is.Equal(a.AverageTimeToAcknowledgeMinutes, 0.0)
	is.Equal(a.AverageTimeToResolveMinutes, 0.0)
	is.Equal(len(a.TopAlertTypes), 0)
	is.Equal(len(a.TimeSeries), 0)
	is.Equal(a.Trend.Direction, types.TrendStable)
	is.Equal(a.Trend.Percentage, 0.0)

	is.Equal(len(a.BySeverity), len(types.Severities))
	is.Equal(len(a.BySource), len(types.Sources))
	is.Equal(len(a.ByStatus), len(types.AlertStatuses))

	for _, s := range types.AlertStatuses {
		v, ok := a.ByStatus[s]
		is.True(ok)
		is.Equal(v, 0)
	}
}

func TestAggregate(t *testing.T) {
	is := is.New(t)

	ack := func(minutes int) *time.Time {
		t := t0.Add(time.Duration(minutes) * time.Minute)
		return &t
	}

	alerts := []types.Alert{
		{AlertType: "wait_time", QueueName: "support", Severity: types.SeverityCritical, Source: types.SourceKPI, Status: types.AlertStatusAcknowledged, TriggeredAt: t0, AcknowledgedAt: ack(10)},
		{AlertType: "wait_time", QueueName: "support", Severity: types.SeverityWarning, Source: types.SourceKPI, Status: types.AlertStatusResolved, TriggeredAt: t0, AcknowledgedAt: ack(20), ResolvedAt: ack(60)},
		{AlertType: "backlog", QueueName: "sales", Severity: types.SeverityWarning, Source: types.SourceBacklog, Status: types.AlertStatusActive, TriggeredAt: t0},
		{AlertType: "absence", Severity: types.SeverityInfo, Source: types.SourceAttendance, Status: types.AlertStatusExpired, TriggeredAt: t0},
	}

	a := Aggregate(alerts)

	is.Equal(a.TotalAlerts, 4)
	is.Equal(a.CriticalAlerts, 1)
	is.Equal(a.AverageTimeToAcknowledgeMinutes, 15.0)
	is.Equal(a.AverageTimeToResolveMinutes, 60.0)

	is.Equal(a.TopAlertTypes[0], types.CountByKey{Key: "wait_time", Count: 2})
	is.Equal(a.TopAlertTypes[1], types.CountByKey{Key: "absence", Count: 1}) // ties sorted by name
	is.Equal(a.TopAlertTypes[2], types.CountByKey{Key: "backlog", Count: 1})

	is.Equal(len(a.TopQueues), 2) // alerts without queue are not counted
	is.Equal(a.TopQueues[0].Key, "support")

	is.Equal(a.BySeverity[types.SeverityWarning], 2)
	is.Equal(a.BySeverity[types.SeverityError], 0)
	is.Equal(a.BySource[types.SourceKPI], 2)
	is.Equal(a.BySource[types.SourceSystem], 0)
	is.Equal(a.ByStatus[types.AlertStatusExpired], 1)
	is.Equal(a.ByStatus[types.AlertStatusPending], 0)
}

func TestTopListsAreCapped(t *testing.T) {
	is := is.New(t)

	alerts := []types.Alert{}
	for i := 0; i < 15; i++ {
		alerts = append(alerts, types.Alert{AlertType: fmt.Sprintf("type-%02d", i), Severity: types.SeverityInfo, Source: types.SourceSystem, Status: types.AlertStatusPending})
	}

	a := Aggregate(alerts)
	is.Equal(len(a.TopAlertTypes), 10)
	is.Equal(a.TopAlertTypes[0].Key, "type-00")
}

func TestGetLoadsAlertsInWindow(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.NewAlertRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	add := func(id, org string, triggeredAt time.Time) {
		is.NoErr(repo.Add(ctx, types.Alert{
			ID: id, RuleID: "rule", OrganizationID: org, AlertType: "wait_time",
			Severity: types.SeverityCritical, Source: types.SourceKPI, Status: types.AlertStatusActive, TriggeredAt: triggeredAt,
		}))
	}

	add("inside", "org", t0)
	add("before", "org", t0.Add(-48*time.Hour))
	add("other-org", "other", t0)

	svc := New(repo)

	a, err := svc.Get(ctx, types.AnalyticsRequest{OrganizationID: "org", StartTime: t0.Add(-time.Hour), EndTime: t0.Add(time.Hour)})
	is.NoErr(err)
	is.Equal(a.TotalAlerts, 1)
	is.Equal(a.CriticalAlerts, 1)

	_, err = svc.Get(ctx, types.AnalyticsRequest{OrganizationID: "org", StartTime: t0, EndTime: t0.Add(-time.Hour)})
	is.True(errors.Is(err, ErrInvalidRequest))

	_, err = svc.Get(ctx, types.AnalyticsRequest{StartTime: t0, EndTime: t0})
	is.True(errors.Is(err, ErrInvalidRequest))
}
