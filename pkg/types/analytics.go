package types

import "time"

type AnalyticsRequest struct {
	OrganizationID string    `json:"organization_id"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendStable     TrendDirection = "stable"
	TrendDecreasing TrendDirection = "decreasing"
)

type Trend struct {
	Direction  TrendDirection `json:"direction"`
	Percentage float64        `json:"percentage"`
}

type AlertAnalytics struct {
	TotalAlerts                     int                 `json:"total_alerts"`
	CriticalAlerts                  int                 `json:"critical_alerts"`
	AverageTimeToAcknowledgeMinutes float64             `json:"average_time_to_acknowledge_minutes"`
	AverageTimeToResolveMinutes     float64             `json:"average_time_to_resolve_minutes"`
	TopAlertTypes                   []CountByKey        `json:"top_alert_types"`
	TopQueues                       []CountByKey        `json:"top_queues"`
	TimeSeries                      []TimeSeriesPoint   `json:"time_series"`
	BySeverity                      map[Severity]int    `json:"by_severity"`
	BySource                        map[Source]int      `json:"by_source"`
	ByStatus                        map[AlertStatus]int `json:"by_status"`
	Trend                           Trend               `json:"trend"`
}
