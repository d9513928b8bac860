package conditions

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/diwise/alert-engine/pkg/types"
	"github.com/matryer/is"
)

func TestComparisonOperators(t *testing.T) {
	is := is.New(t)

	values := map[string]any{"wait_time": 450}

	tests := []struct {
		op        types.Operator
		threshold any
		expected  bool
	}{
		{types.OperatorGreaterThan, 300, true},
		{types.OperatorGreaterThan, 450, false},
		{types.OperatorGreaterThanOrEqual, 450, true},
		{types.OperatorLessThan, 500, true},
		{types.OperatorLessThan, 450, false},
		{types.OperatorLessThanOrEqual, 450, true},
		{types.OperatorEqual, 450.0, true},
		{types.OperatorEqual, "450", true},
		{types.OperatorNotEqual, 300, true},
		{types.OperatorNotEqual, 450, false},
	}

	for _, tc := range tests {
		ok, err := Check(types.Condition{Field: "wait_time", Operator: tc.op, ThresholdValue: tc.threshold}, values)
		is.NoErr(err)
		is.Equal(ok, tc.expected) // unexpected result for operator
	}
}

func TestBetweenIsInclusive(t *testing.T) {
	is := is.New(t)

	between := types.Condition{Field: "v", Operator: types.OperatorBetween, ThresholdValue: 10, ThresholdValueSecondary: 20}
	notBetween := types.Condition{Field: "v", Operator: types.OperatorNotBetween, ThresholdValue: 10, ThresholdValueSecondary: 20}

	is.True(Evaluate(between, map[string]any{"v": 15}))
	is.True(Evaluate(between, map[string]any{"v": 10}))
	is.True(Evaluate(between, map[string]any{"v": 20}))
	is.True(!Evaluate(between, map[string]any{"v": 25}))
	is.True(!Evaluate(between, map[string]any{"v": 9.99}))

	is.True(Evaluate(notBetween, map[string]any{"v": 25}))
	is.True(Evaluate(notBetween, map[string]any{"v": 9}))
	is.True(!Evaluate(notBetween, map[string]any{"v": 10}))
	is.True(!Evaluate(notBetween, map[string]any{"v": 15}))
}

func TestMissingOrNilValueIsFalse(t *testing.T) {
	is := is.New(t)

	for _, op := range types.Operators {
		c := types.Condition{Field: "missing", Operator: op, ThresholdValue: 1, ThresholdValueSecondary: 2}

		is.True(!Evaluate(c, map[string]any{}))
		is.True(!Evaluate(c, map[string]any{"missing": nil}))
		is.True(!Evaluate(c, nil))
	}
}

func TestUnknownOperatorIsFalseWithError(t *testing.T) {
	is := is.New(t)

	ok, err := Check(types.Condition{Field: "v", Operator: "approx", ThresholdValue: 1}, map[string]any{"v": 1})
	is.True(!ok)
	is.True(errors.Is(err, ErrUnknownOperator))
}

func TestNumericCoercion(t *testing.T) {
	is := is.New(t)

	c := types.Condition{Field: "v", Operator: types.OperatorGreaterThan, ThresholdValue: json.Number("10")}

	is.True(Evaluate(c, map[string]any{"v": "11"}))
	is.True(Evaluate(c, map[string]any{"v": int64(11)}))
	is.True(Evaluate(c, map[string]any{"v": float32(10.5)}))
	is.True(!Evaluate(c, map[string]any{"v": uint8(10)}))
}

func TestStringComparison(t *testing.T) {
	is := is.New(t)

	is.True(Evaluate(types.Condition{Field: "state", Operator: types.OperatorEqual, ThresholdValue: "closed"}, map[string]any{"state": "closed"}))
	is.True(Evaluate(types.Condition{Field: "state", Operator: types.OperatorNotEqual, ThresholdValue: "closed"}, map[string]any{"state": "open"}))
	is.True(Evaluate(types.Condition{Field: "flag", Operator: types.OperatorEqual, ThresholdValue: "true"}, map[string]any{"flag": true}))
}

func TestNonNumericValuesNeverOrderAgainstNumbers(t *testing.T) {
	is := is.New(t)

	operators := []types.Operator{
		types.OperatorGreaterThan,
		types.OperatorGreaterThanOrEqual,
		types.OperatorLessThan,
		types.OperatorLessThanOrEqual,
		types.OperatorBetween,
		types.OperatorNotBetween,
	}

	values := []any{"n/a", "unavailable", "missing", "NaN", math.NaN(), float32(math.NaN()), true, false, []int{1}}

	for _, op := range operators {
		for _, v := range values {
			c := types.Condition{Field: "wait_time", Operator: op, ThresholdValue: 300, ThresholdValueSecondary: 600}

			ok, err := Check(c, map[string]any{"wait_time": v})
			is.NoErr(err)
			is.True(!ok) // a non-numeric value must not satisfy an ordering or range condition

			c.ThresholdValue, c.ThresholdValueSecondary = v, v
			ok, err = Check(c, map[string]any{"wait_time": 450})
			is.NoErr(err)
			is.True(!ok) // nor may a non-numeric threshold
		}
	}
}

func TestStringsOrderLexicographically(t *testing.T) {
	is := is.New(t)

	is.True(Evaluate(types.Condition{Field: "grade", Operator: types.OperatorGreaterThan, ThresholdValue: "b"}, map[string]any{"grade": "c"}))
	is.True(!Evaluate(types.Condition{Field: "grade", Operator: types.OperatorLessThan, ThresholdValue: "b"}, map[string]any{"grade": "c"}))
	is.True(Evaluate(types.Condition{Field: "grade", Operator: types.OperatorBetween, ThresholdValue: "a", ThresholdValueSecondary: "c"}, map[string]any{"grade": "b"}))
}

func TestAllShortCircuitsOnFirstFalse(t *testing.T) {
	is := is.New(t)

	primary := types.Condition{Field: "wait_time", Operator: types.OperatorGreaterThan, ThresholdValue: 300}
	additional := []types.Condition{
		{Field: "queue_length", Operator: types.OperatorGreaterThan, ThresholdValue: 10},
		{Field: "agents", Operator: "bogus", ThresholdValue: 1},
	}

	ok, err := All(primary, additional, map[string]any{"wait_time": 450, "queue_length": 5})
	is.NoErr(err) // the bogus operator is never reached
	is.True(!ok)

	ok, err = All(primary, additional, map[string]any{"wait_time": 450, "queue_length": 12})
	is.True(errors.Is(err, ErrUnknownOperator))
	is.True(!ok)

	ok, err = All(primary, additional[:1], map[string]any{"wait_time": 450, "queue_length": 12})
	is.NoErr(err)
	is.True(ok)
}

func TestValidate(t *testing.T) {
	is := is.New(t)

	is.NoErr(Validate(types.Condition{Field: "v", Operator: types.OperatorGreaterThan, ThresholdValue: 1}))
	is.True(errors.Is(Validate(types.Condition{Field: "", Operator: types.OperatorGreaterThan, ThresholdValue: 1}), ErrInvalidCondition))
	is.True(errors.Is(Validate(types.Condition{Field: "v", Operator: "nope", ThresholdValue: 1}), ErrUnknownOperator))
	is.True(errors.Is(Validate(types.Condition{Field: "v", Operator: types.OperatorBetween, ThresholdValue: 1}), ErrInvalidCondition))
	is.True(errors.Is(Validate(types.Condition{Field: "v", Operator: types.OperatorLessThan}), ErrInvalidCondition))
}

func TestInWindow(t *testing.T) {
	is := is.New(t)

	// 2024-01-03 is a Wednesday
	wednesdayNoon := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	wednesdayNight := time.Date(2024, 1, 3, 23, 30, 0, 0, time.UTC)

	officeHours := &types.Schedule{DaysOfWeek: []int{1, 2, 3, 4, 5}, StartTime: "08:00", EndTime: "17:00"}
	weekend := &types.Schedule{DaysOfWeek: []int{0, 6}}
	overnight := &types.Schedule{StartTime: "22:00", EndTime: "06:00"}

	in, err := InWindow(nil, wednesdayNoon)
	is.NoErr(err)
	is.True(in)

	in, _ = InWindow(officeHours, wednesdayNoon)
	is.True(in)

	in, _ = InWindow(officeHours, wednesdayNight)
	is.True(!in)

	in, _ = InWindow(officeHours, time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC))
	is.True(in) // end is inclusive

	in, _ = InWindow(weekend, wednesdayNoon)
	is.True(!in)

	in, _ = InWindow(overnight, wednesdayNight)
	is.True(in)

	in, _ = InWindow(overnight, wednesdayNoon)
	is.True(!in)
}

func TestInWindowUsesTimezone(t *testing.T) {
	is := is.New(t)

	// 07:30 UTC is 08:30 in Stockholm during winter
	s := &types.Schedule{StartTime: "08:00", EndTime: "09:00", Timezone: "Europe/Stockholm"}

	in, err := InWindow(s, time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC))
	is.NoErr(err)
	is.True(in)
}

func TestInvalidScheduleIsNeverInWindow(t *testing.T) {
	is := is.New(t)

	in, err := InWindow(&types.Schedule{Timezone: "Mars/Olympus"}, time.Now())
	is.True(errors.Is(err, ErrInvalidSchedule))
	is.True(!in)

	is.True(errors.Is(ValidateSchedule(&types.Schedule{StartTime: "25:99"}), ErrInvalidSchedule))
	is.True(errors.Is(ValidateSchedule(&types.Schedule{DaysOfWeek: []int{7}}), ErrInvalidSchedule))
	is.NoErr(ValidateSchedule(&types.Schedule{StartTime: "08:00", EndTime: "17:00:00"}))
}
