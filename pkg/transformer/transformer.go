// pkg/transformer/transformer.go
package transformer

import (
	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/contract"
)

// Transformer turns raw API records into clean records conforming to a
// single data contract
type Transformer struct {
	contract *contract.Contract
	logger   *zap.Logger
}

// New creates a transformer for the given contract
func New(c *contract.Contract, logger *zap.Logger) *Transformer {
	return &Transformer{
		contract: c,
		logger:   logger.Named("transformer").With(zap.String("contract", c.Table)),
	}
}

// Result holds the outcome of one transformation pass
type Result struct {
	Clean        []contract.CleanRecord
	Rejected     []contract.RejectedRecord
	Deduplicated int
}

// Transform applies normalization, coercion, validation and deduplication
// to the raw records, in extraction order. Every input record ends up in
// exactly one of Clean or Rejected; duplicates collapse into Clean with
// the later-seen record winning.
func (t *Transformer) Transform(raws []contract.RawRecord) Result {
	var result Result

	// Position of each natural key in the clean slice. Last-seen-wins:
	// a later duplicate overwrites the survivor in place, so output order
	// stays deterministic regardless of how many duplicates arrive.
	keyIndex := make(map[string]int)

	for _, raw := range raws {
		rec, err := t.transformRecord(raw)
		if err != nil {
			result.Rejected = append(result.Rejected, contract.RejectedRecord{Raw: raw, Reason: err})
			continue
		}

		key := t.contract.KeyOf(rec)
		if pos, seen := keyIndex[key]; seen {
			result.Clean[pos] = rec
			result.Deduplicated++
			continue
		}
		keyIndex[key] = len(result.Clean)
		result.Clean = append(result.Clean, rec)
	}

	t.logger.Info("Transformation completed",
		zap.Int("input", len(raws)),
		zap.Int("clean", len(result.Clean)),
		zap.Int("rejected", len(result.Rejected)),
		zap.Int("deduplicated", result.Deduplicated))

	return result
}

// transformRecord maps, normalizes, coerces and validates a single record
func (t *Transformer) transformRecord(raw contract.RawRecord) (contract.CleanRecord, error) {
	rec := make(contract.CleanRecord, len(t.contract.Fields))

	for _, field := range t.contract.Fields {
		value := normalize(raw[field.SourceName()])

		coerced, err := coerceValue(value, field.Type)
		if err != nil {
			return nil, &contract.TypeCoercionError{
				Field:      field.Name,
				RawValue:   raw[field.SourceName()],
				TargetType: field.Type,
			}
		}

		if err := validateValue(coerced, field); err != nil {
			return nil, err
		}

		rec[field.Name] = coerced
	}

	return rec, nil
}

// validateValue enforces required presence and domain constraints
func validateValue(value interface{}, field contract.Field) error {
	if value == nil {
		if field.Required {
			return &contract.ValidationError{Field: field.Name, Rule: "required", Value: nil}
		}
		return nil
	}

	if len(field.Enum) > 0 {
		str := valueToString(value)
		allowed := false
		for _, e := range field.Enum {
			if str == e {
				allowed = true
				break
			}
		}
		if !allowed {
			return &contract.ValidationError{Field: field.Name, Rule: "enum", Value: value}
		}
	}

	if field.Min != nil || field.Max != nil {
		num, ok := valueToFloat(value)
		if ok {
			if field.Min != nil && num < *field.Min {
				return &contract.ValidationError{Field: field.Name, Rule: "min", Value: value}
			}
			if field.Max != nil && num > *field.Max {
				return &contract.ValidationError{Field: field.Name, Rule: "max", Value: value}
			}
		}
	}

	return nil
}
