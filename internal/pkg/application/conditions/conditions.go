package conditions

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/diwise/alert-engine/pkg/types"
)

var (
	ErrUnknownOperator  = errors.New("unknown operator")
	ErrInvalidCondition = errors.New("invalid condition")
)

// Check reports whether the condition holds for the given values. A missing
// or nil value never satisfies a condition. An operator that is not supported
// yields false together with ErrUnknownOperator.
func Check(c types.Condition, values map[string]any) (bool, error) {
	if !c.Operator.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}

	value, ok := values[c.Field]
	if !ok || value == nil || c.ThresholdValue == nil {
		return false, nil
	}

	switch c.Operator {
	case types.OperatorEqual:
		return equal(value, c.ThresholdValue), nil
	case types.OperatorNotEqual:
		return !equal(value, c.ThresholdValue), nil
	case types.OperatorGreaterThan:
		n, ok := compare(value, c.ThresholdValue)
		return ok && n > 0, nil
	case types.OperatorGreaterThanOrEqual:
		n, ok := compare(value, c.ThresholdValue)
		return ok && n >= 0, nil
	case types.OperatorLessThan:
		n, ok := compare(value, c.ThresholdValue)
		return ok && n < 0, nil
	case types.OperatorLessThanOrEqual:
		n, ok := compare(value, c.ThresholdValue)
		return ok && n <= 0, nil
	}

	if c.ThresholdValueSecondary == nil {
		return false, nil
	}

	lower, okLower := compare(value, c.ThresholdValue)
	upper, okUpper := compare(value, c.ThresholdValueSecondary)
	if !okLower || !okUpper {
		return false, nil
	}

	inside := lower >= 0 && upper <= 0

	if c.Operator == types.OperatorBetween {
		return inside, nil
	}

	return !inside, nil
}

// Evaluate is Check without the error.
func Evaluate(c types.Condition, values map[string]any) bool {
	ok, _ := Check(c, values)
	return ok
}

// All evaluates the primary condition and then each additional condition,
// stopping at the first one that does not hold.
func All(primary types.Condition, additional []types.Condition, values map[string]any) (bool, error) {
	ok, err := Check(primary, values)
	if err != nil || !ok {
		return false, err
	}

	for _, c := range additional {
		ok, err = Check(c, values)
		if err != nil || !ok {
			return false, err
		}
	}

	return true, nil
}

func Validate(c types.Condition) error {
	if strings.TrimSpace(c.Field) == "" {
		return fmt.Errorf("%w: field is required", ErrInvalidCondition)
	}

	if !c.Operator.IsValid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidCondition, ErrUnknownOperator, c.Operator)
	}

	if c.ThresholdValue == nil {
		return fmt.Errorf("%w: threshold_value is required", ErrInvalidCondition)
	}

	if c.Operator.IsRange() && c.ThresholdValueSecondary == nil {
		return fmt.Errorf("%w: %s requires threshold_value_secondary", ErrInvalidCondition, c.Operator)
	}

	return nil
}

// ToFloat converts numbers, json.Number and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsNaN(f)
	}

	return 0, false
}

func equal(a, b any) bool {
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)

	if okA && okB {
		return fa == fb
	}

	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compare orders numerically when both sides are numeric and lexicographically
// when both are non-numeric strings. Any other pair of values, NaN included,
// is not comparable.
func compare(a, b any) (int, bool) {
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)

	if okA && okB {
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}

	if okA || okB {
		return 0, false
	}

	sa, isStrA := a.(string)
	sb, isStrB := b.(string)
	if !isStrA || !isStrB {
		return 0, false
	}

	return strings.Compare(sa, sb), true
}
