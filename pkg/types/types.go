package types

type Collection[T any] struct {
	Data       []T    `json:"data"`
	Count      uint64 `json:"count"`
	Page       uint64 `json:"page"`
	PageSize   uint64 `json:"page_size"`
	TotalCount uint64 `json:"total_count"`
}

type Source string

const (
	SourceKPI        Source = "kpi"
	SourceBacklog    Source = "backlog"
	SourceAttendance Source = "attendance"
	SourceSchedule   Source = "schedule"
	SourceSystem     Source = "system"
)

var Sources = []Source{SourceKPI, SourceBacklog, SourceAttendance, SourceSchedule, SourceSystem}

func (s Source) IsValid() bool {
	for _, v := range Sources {
		if s == v {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var Severities = []Severity{SeverityCritical, SeverityError, SeverityWarning, SeverityInfo}

func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// Rank orders severities so that critical > error > warning > info. Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

type Operator string

const (
	OperatorGreaterThan        Operator = "gt"
	OperatorGreaterThanOrEqual Operator = "gte"
	OperatorLessThan           Operator = "lt"
	OperatorLessThanOrEqual    Operator = "lte"
	OperatorEqual              Operator = "eq"
	OperatorNotEqual           Operator = "neq"
	OperatorBetween            Operator = "between"
	OperatorNotBetween         Operator = "not_between"
)

var Operators = []Operator{
	OperatorGreaterThan, OperatorGreaterThanOrEqual, OperatorLessThan, OperatorLessThanOrEqual,
	OperatorEqual, OperatorNotEqual, OperatorBetween, OperatorNotBetween,
}

func (o Operator) IsValid() bool {
	for _, v := range Operators {
		if o == v {
			return true
		}
	}
	return false
}

func (o Operator) IsRange() bool {
	return o == OperatorBetween || o == OperatorNotBetween
}

type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusExpired      AlertStatus = "expired"
	AlertStatusSuppressed   AlertStatus = "suppressed"
)

var AlertStatuses = []AlertStatus{
	AlertStatusPending, AlertStatusActive, AlertStatusAcknowledged,
	AlertStatusResolved, AlertStatusExpired, AlertStatusSuppressed,
}

func (s AlertStatus) IsValid() bool {
	for _, v := range AlertStatuses {
		if s == v {
			return true
		}
	}
	return false
}
