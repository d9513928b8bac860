package snapshots

import (
	"context"
	"errors"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/snapshots"
	"github.com/diwise/alert-engine/pkg/types"
)

const DefaultAttendanceSampleSize int = 100

// ContextFetcher builds the field to value mapping a rule is evaluated against.
type ContextFetcher interface {
	Fetch(ctx context.Context, rule types.Rule, supplied map[string]any) map[string]any
}

type FetchFunc func(ctx context.Context, rule types.Rule) (map[string]any, error)

type fetcher struct {
	strategies map[types.Source]FetchFunc
}

func NewFetcher(storage db.SnapshotRepository, attendanceSampleSize int) ContextFetcher {
	if attendanceSampleSize <= 0 {
		attendanceSampleSize = DefaultAttendanceSampleSize
	}

	return &fetcher{
		strategies: map[types.Source]FetchFunc{
			types.SourceKPI:        latestKPI(storage),
			types.SourceBacklog:    latestBacklog(storage),
			types.SourceAttendance: attendanceCounts(storage, attendanceSampleSize),
		},
	}
}

// Fetch never fails. A missing snapshot or a storage error yields only the
// supplied values, which always take precedence over fetched ones.
func (f *fetcher) Fetch(ctx context.Context, rule types.Rule, supplied map[string]any) map[string]any {
	result := map[string]any{}

	if fetch, ok := f.strategies[rule.Source]; ok {
		values, err := fetch(ctx, rule)
		if err != nil && !errors.Is(err, db.ErrSnapshotNotFound) {
			logger := logging.GetFromContext(ctx)
			logger.Error().Err(err).
				Str("rule_id", rule.ID).
				Str("source", string(rule.Source)).
				Msg("failed to fetch context")
		}

		for k, v := range values {
			result[k] = v
		}
	}

	for k, v := range supplied {
		result[k] = v
	}

	return result
}

func latestKPI(storage db.SnapshotRepository) FetchFunc {
	return func(ctx context.Context, rule types.Rule) (map[string]any, error) {
		s, err := storage.LatestKPI(ctx, rule.OrganizationID)
		if err != nil {
			return nil, err
		}
		return flatten(s), nil
	}
}

func latestBacklog(storage db.SnapshotRepository) FetchFunc {
	return func(ctx context.Context, rule types.Rule) (map[string]any, error) {
		s, err := storage.LatestBacklog(ctx, rule.OrganizationID, rule.QueueName)
		if err != nil {
			return nil, err
		}
		return flatten(s), nil
	}
}

func attendanceCounts(storage db.SnapshotRepository, sampleSize int) FetchFunc {
	return func(ctx context.Context, rule types.Rule) (map[string]any, error) {
		snapshots, err := storage.RecentAttendance(ctx, rule.OrganizationID, rule.DepartmentID, sampleSize)
		if err != nil {
			return nil, err
		}

		present, absent, late := 0, 0, 0
		for _, s := range snapshots {
			switch s.Status {
			case types.AttendancePresent:
				present++
			case types.AttendanceAbsent:
				absent++
			case types.AttendanceLate:
				late++
			}
		}

		return map[string]any{
			"total":   len(snapshots),
			"present": present,
			"absent":  absent,
			"late":    late,
		}, nil
	}
}

func flatten(s types.Snapshot) map[string]any {
	values := make(map[string]any, len(s.Metrics)+2)
	for k, v := range s.Metrics {
		values[k] = v
	}

	values["snapshot_id"] = s.ID
	values["snapshot_time"] = s.SnapshotTime.UTC().Format(time.RFC3339)

	return values
}
