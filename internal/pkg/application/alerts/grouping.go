package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/alert-engine/internal/pkg/infrastructure/logging"
	db "github.com/diwise/alert-engine/internal/pkg/infrastructure/repositories/database/alerts"
	"github.com/diwise/alert-engine/pkg/types"
	"github.com/google/uuid"
)

// group merges the alerts of grouping enabled rules that share organization,
// alert type, department and queue. Alerts join an open group of the same key
// seen within the grouping window. Without one, a new group is created when
// at least two alerts of the pass share the key.
func (svc *alertSvc) group(ctx context.Context, triggered []trigger, now time.Time) {
	buckets := map[db.GroupKey][]int{}
	keys := []db.GroupKey{}

	for i, t := range triggered {
		if t.rule.Grouping == nil || !t.rule.Grouping.Enabled {
			continue
		}

		key := db.GroupKey{
			OrganizationID: t.alert.OrganizationID,
			AlertType:      t.alert.AlertType,
			DepartmentID:   t.alert.DepartmentID,
			QueueName:      t.alert.QueueName,
		}

		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], i)
	}

	for _, key := range keys {
		err := svc.groupAlerts(ctx, key, triggered, buckets[key], now)
		if err != nil {
			logger := logging.GetFromContext(ctx)
			logger.Error().Err(err).Str("alert_type", key.AlertType).Msg("failed to group alerts")
		}
	}
}

func (svc *alertSvc) groupAlerts(ctx context.Context, key db.GroupKey, triggered []trigger, members []int, now time.Time) error {
	window := svc.config.GroupingWindowMinutes
	if w := triggered[members[0]].rule.Grouping.WindowMinutes; w > 0 {
		window = w
	}

	isNew := false

	group, err := svc.storage.FindOpenGroup(ctx, key, now.Add(-time.Duration(window)*time.Minute))
	if err != nil {
		if !errors.Is(err, db.ErrGroupNotFound) {
			return err
		}

		if len(members) < 2 {
			return nil
		}

		isNew = true
		group = types.AlertGroup{
			ID:             uuid.NewString(),
			OrganizationID: key.OrganizationID,
			DepartmentID:   key.DepartmentID,
			QueueName:      key.QueueName,
			AlertType:      key.AlertType,
			AlertIDs:       []string{},
			Status:         types.AlertStatusActive,
			CreatedAt:      now,
		}
	}

	for _, i := range members {
		addMember(&group, triggered[i].alert)
	}

	group.GroupMessage = fmt.Sprintf("%d %s alerts", group.AlertCount, group.AlertType)
	group.UpdatedAt = now

	if isNew {
		err = svc.storage.AddGroup(ctx, group)
	} else {
		err = svc.storage.SaveGroup(ctx, group)
	}
	if err != nil {
		return err
	}

	for _, i := range members {
		triggered[i].alert.GroupID = group.ID
		triggered[i].alert.IsGrouped = true

		err = svc.storage.Save(ctx, triggered[i].alert)
		if err != nil {
			return err
		}
	}

	return nil
}

// addMember keeps alert_count, highest_severity and the first and last alert
// times consistent with the member list.
func addMember(g *types.AlertGroup, a types.Alert) {
	g.AlertIDs = append(g.AlertIDs, a.ID)
	g.AlertCount = len(g.AlertIDs)

	if a.Severity.Rank() > g.HighestSeverity.Rank() {
		g.HighestSeverity = a.Severity
	}

	if g.FirstAlertAt.IsZero() || a.TriggeredAt.Before(g.FirstAlertAt) {
		g.FirstAlertAt = a.TriggeredAt
	}

	if a.TriggeredAt.After(g.LastAlertAt) {
		g.LastAlertAt = a.TriggeredAt
	}
}
