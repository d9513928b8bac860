package snapshots

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/snapshots"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/matryer/is"
)

func TestKPIContextIsFlattened(t *testing.T) {
	is, ctx, repo := testSetup(t)

	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	is.NoErr(repo.AddKPI(ctx, types.Snapshot{ID: "snap-1", OrganizationID: "org", SnapshotTime: now, Metrics: map[string]any{"wait_time": 450}}))

	f := NewFetcher(repo, 0)
	values := f.Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceKPI}, nil)

	is.Equal(values["wait_time"], float64(450))
	is.Equal(values["snapshot_id"], "snap-1")
	is.Equal(values["snapshot_time"], "2024-01-03T12:00:00Z")
}

func TestSuppliedContextTakesPrecedence(t *testing.T) {
	is, ctx, repo := testSetup(t)

	is.NoErr(repo.AddKPI(ctx, types.Snapshot{ID: "snap-1", OrganizationID: "org", SnapshotTime: time.Now().UTC(), Metrics: map[string]any{"wait_time": 450, "agents": 3}}))

	f := NewFetcher(repo, 0)
	values := f.Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceKPI}, map[string]any{"wait_time": 10})

	is.Equal(values["wait_time"], 10)
	is.Equal(values["agents"], float64(3))
}

func TestBacklogContextUsesRuleQueue(t *testing.T) {
	is, ctx, repo := testSetup(t)

	now := time.Now().UTC()
	is.NoErr(repo.AddBacklog(ctx, types.Snapshot{ID: "support", OrganizationID: "org", QueueName: "support", SnapshotTime: now.Add(-time.Minute), Metrics: map[string]any{"open_tickets": 12}}))
	is.NoErr(repo.AddBacklog(ctx, types.Snapshot{ID: "sales", OrganizationID: "org", QueueName: "sales", SnapshotTime: now, Metrics: map[string]any{"open_tickets": 2}}))

	f := NewFetcher(repo, 0)
	values := f.Fetch(ctx, types.Rule{OrganizationID: "org", QueueName: "support", Source: types.SourceBacklog}, nil)

	is.Equal(values["snapshot_id"], "support")
	is.Equal(values["open_tickets"], float64(12))
}

func TestAttendanceContextIsAggregated(t *testing.T) {
	is, ctx, repo := testSetup(t)

	now := time.Now().UTC()
	statuses := []types.AttendanceStatus{types.AttendancePresent, types.AttendancePresent, types.AttendanceAbsent, types.AttendanceLate, "on_leave"}

	for i, s := range statuses {
		is.NoErr(repo.AddAttendance(ctx, types.AttendanceSnapshot{
			ID:             fmt.Sprintf("a%d", i),
			OrganizationID: "org",
			DepartmentID:   "support",
			EmployeeID:     fmt.Sprintf("e%d", i),
			Status:         s,
			SnapshotTime:   now.Add(-time.Duration(i) * time.Minute),
		}))
	}

	f := NewFetcher(repo, 0)
	values := f.Fetch(ctx, types.Rule{OrganizationID: "org", DepartmentID: "support", Source: types.SourceAttendance}, nil)

	is.Equal(values["total"], 5)
	is.Equal(values["present"], 2)
	is.Equal(values["absent"], 1)
	is.Equal(values["late"], 1)

	sampled := NewFetcher(repo, 2).Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceAttendance}, nil)
	is.Equal(sampled["total"], 2)
}

func TestMissingSnapshotYieldsEmptyContext(t *testing.T) {
	is, ctx, repo := testSetup(t)

	f := NewFetcher(repo, 0)

	is.Equal(len(f.Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceKPI}, nil)), 0)
	is.Equal(len(f.Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceSchedule}, nil)), 0)
	is.Equal(len(f.Fetch(ctx, types.Rule{OrganizationID: "org", Source: types.SourceSystem}, map[string]any{"cpu": 99})), 1)
}

func TestStorageErrorYieldsSuppliedContextOnly(t *testing.T) {
	is := is.New(t)

	f := NewFetcher(&failingRepository{}, 0)
	values := f.Fetch(context.Background(), types.Rule{OrganizationID: "org", Source: types.SourceKPI}, map[string]any{"wait_time": 1})

	is.Equal(len(values), 1)
	is.Equal(values["wait_time"], 1)
}

type failingRepository struct {
	db.SnapshotRepository
}

func (failingRepository) LatestKPI(context.Context, string) (types.Snapshot, error) {
	return types.Snapshot{}, errors.New("connection refused")
}

func testSetup(t *testing.T) (*is.I, context.Context, db.SnapshotRepository) {
	is := is.New(t)
	ctx := context.Background()

	repo, err := db.NewSnapshotRepository(database.NewSQLiteConnector(ctx))
	is.NoErr(err)

	return is, ctx, repo
}
