// pkg/transformer/coerce.go
package transformer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/transitops/wmata-ingress/pkg/contract"
)

// Accepted date/timestamp formats, tried in order
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// normalize trims whitespace from string inputs and turns empty strings
// into nulls before coercion
func normalize(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// coerceValue converts a raw JSON value into the canonical representation
// for the field type: int64, float64, string or time.Time. Nil passes
// through untouched; required-ness is the validator's concern.
func coerceValue(v interface{}, target contract.FieldType) (interface{}, error) {
	if v == nil {
		return nil, nil
	}

	switch target {
	case contract.TypeInteger:
		return toInt(v)
	case contract.TypeFloat:
		return toFloat(v)
	case contract.TypeTimestamp, contract.TypeDate:
		return toTime(v)
	default:
		return valueToString(v), nil
	}
}

// toInt attempts to convert a value to int64
func toInt(v interface{}) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("value %v has a fractional part", val)
		}
		return int64(val), nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

// toFloat attempts to convert a value to float64
func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case float64:
		return val, nil
	case string:
		return strconv.ParseFloat(val, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
}

// toTime attempts to convert a value to time.Time using the fixed set of
// accepted formats
func toTime(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, format := range timeFormats {
			if t, err := time.Parse(format, val); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time from '%s'", val)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

// valueToString renders a value the way it should be stored in a text column
func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// valueToFloat extracts a numeric value for bounds checks
func valueToFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}
