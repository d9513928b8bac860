package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/samber/lo"
)

const topListSize int = 10

var ErrInvalidRequest = errors.New("invalid analytics request")

type AnalyticsService interface {
	Get(ctx context.Context, req types.AnalyticsRequest) (types.AlertAnalytics, error)
}

type analyticsSvc struct {
	storage db.AlertRepository
}

func New(storage db.AlertRepository) AnalyticsService {
	return &analyticsSvc{storage: storage}
}

func (svc *analyticsSvc) Get(ctx context.Context, req types.AnalyticsRequest) (types.AlertAnalytics, error) {
	if req.OrganizationID == "" {
		return types.AlertAnalytics{}, fmt.Errorf("%w: organization_id is required", ErrInvalidRequest)
	}

	if req.StartTime.IsZero() || req.EndTime.IsZero() || req.EndTime.Before(req.StartTime) {
		return types.AlertAnalytics{}, fmt.Errorf("%w: start_time and end_time must form a window", ErrInvalidRequest)
	}

	result, err := svc.storage.Query(ctx,
		db.WithOrganization(req.OrganizationID),
		db.WithTriggeredBetween(&req.StartTime, &req.EndTime),
	)
	if err != nil {
		return types.AlertAnalytics{}, fmt.Errorf("could not load alerts: %w", err)
	}

	return Aggregate(result.Data), nil
}

// Aggregate computes the rollups for a set of alerts. The time series is left
// empty and the trend is always reported as stable.
func Aggregate(alerts []types.Alert) types.AlertAnalytics {
	a := types.AlertAnalytics{
		TotalAlerts: len(alerts),
		CriticalAlerts: len(lo.Filter(alerts, func(al types.Alert, _ int) bool {
			return al.Severity == types.SeverityCritical
		})),
		TopAlertTypes: top(alerts, func(al types.Alert) string { return al.AlertType }),
		TopQueues:     top(alerts, func(al types.Alert) string { return al.QueueName }),
		TimeSeries:    []types.TimeSeriesPoint{},
		BySeverity:    map[types.Severity]int{},
		BySource:      map[types.Source]int{},
		ByStatus:      map[types.AlertStatus]int{},
		Trend:         types.Trend{Direction: types.TrendStable, Percentage: 0},
	}

	a.AverageTimeToAcknowledgeMinutes = averageMinutes(alerts, func(al types.Alert) *time.Time { return al.AcknowledgedAt })
	a.AverageTimeToResolveMinutes = averageMinutes(alerts, func(al types.Alert) *time.Time { return al.ResolvedAt })

	for _, s := range types.Severities {
		a.BySeverity[s] = 0
	}
	for _, s := range types.Sources {
		a.BySource[s] = 0
	}
	for _, s := range types.AlertStatuses {
		a.ByStatus[s] = 0
	}

	for _, al := range alerts {
		a.BySeverity[al.Severity]++
		a.BySource[al.Source]++
		a.ByStatus[al.Status]++
	}

	return a
}

// averageMinutes averages the time from triggering until the given moment
// over the alerts that have reached it.
func averageMinutes(alerts []types.Alert, moment func(types.Alert) *time.Time) float64 {
	reached := lo.Filter(alerts, func(al types.Alert, _ int) bool {
		return moment(al) != nil
	})

	if len(reached) == 0 {
		return 0
	}

	total := 0.0
	for _, al := range reached {
		total += moment(al).Sub(al.TriggeredAt).Minutes()
	}

	return total / float64(len(reached))
}

func top(alerts []types.Alert, key func(types.Alert) string) []types.CountByKey {
	groups := lo.GroupBy(
		lo.Filter(alerts, func(al types.Alert, _ int) bool { return key(al) != "" }),
		key,
	)

	counts := lo.MapToSlice(groups, func(k string, members []types.Alert) types.CountByKey {
		return types.CountByKey{Key: k, Count: len(members)}
	})

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Key < counts[j].Key
	})

	if len(counts) > topListSize {
		counts = counts[:topListSize]
	}

	return counts
}
