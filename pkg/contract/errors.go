// pkg/contract/errors.go
package contract

import "fmt"

// TypeCoercionError reports a value that could not be coerced to the
// field's declared type. Per-record and non-fatal: the record is rejected
// and the run continues.
type TypeCoercionError struct {
	Field      string
	RawValue   interface{}
	TargetType FieldType
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("cannot coerce field %s value %q to %s", e.Field, fmt.Sprintf("%v", e.RawValue), e.TargetType)
}

// ValidationError reports a rule violation on an otherwise well-typed value.
// Per-record and non-fatal.
type ValidationError struct {
	Field string
	Rule  string
	Value interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %s violates %s (value %v)", e.Field, e.Rule, e.Value)
}

// RejectReason returns a short label for grouping rejects in a run summary
func RejectReason(err error) string {
	switch err.(type) {
	case *TypeCoercionError:
		return "type_coercion"
	case *ValidationError:
		return "validation"
	default:
		return "other"
	}
}
