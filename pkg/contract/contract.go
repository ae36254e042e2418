// pkg/contract/contract.go
package contract

import (
	"fmt"
	"strings"
)

// FieldType is the semantic type of a contract field
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeFloat     FieldType = "float"
	TypeTimestamp FieldType = "timestamp"
	TypeDate      FieldType = "date"
)

// PostgresType maps a field type to its PostgreSQL column type
func (t FieldType) PostgresType() string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeFloat:
		return "DOUBLE PRECISION"
	case TypeTimestamp:
		return "TIMESTAMPTZ"
	case TypeDate:
		return "DATE"
	default:
		return "TEXT"
	}
}

// Field declares a single contract field
type Field struct {
	Name     string    // Contract (column) name
	Source   string    // Field name in the API payload; defaults to Name
	Type     FieldType // Semantic type
	Required bool      // Whether NULL/missing is rejected
	Enum     []string  // Allowed values, empty means unconstrained
	Min      *float64  // Lower bound for numeric fields
	Max      *float64  // Upper bound for numeric fields
}

// SourceName returns the payload field this contract field maps from
func (f Field) SourceName() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}

// ColumnDef returns the DDL fragment for this field
func (f Field) ColumnDef() string {
	def := fmt.Sprintf("%s %s", f.Name, f.Type.PostgresType())
	if f.Required {
		def += " NOT NULL"
	}
	return def
}

// Contract is the shared record schema every pipeline stage validates against
type Contract struct {
	Table      string   // Target table name
	Fields     []Field  // Ordered field definitions
	NaturalKey []string // Contract field names forming the natural key
}

// FieldByName returns the field with the given contract name, or nil
func (c *Contract) FieldByName(name string) *Field {
	for i := range c.Fields {
		if strings.EqualFold(c.Fields[i].Name, name) {
			return &c.Fields[i]
		}
	}
	return nil
}

// ColumnNames returns all contract column names in declaration order
func (c *Contract) ColumnNames() []string {
	names := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		names[i] = f.Name
	}
	return names
}

// NonKeyColumns returns the column names that are not part of the natural key
func (c *Contract) NonKeyColumns() []string {
	cols := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		if !c.isKeyColumn(f.Name) {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

func (c *Contract) isKeyColumn(name string) bool {
	for _, k := range c.NaturalKey {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// ColumnDefs returns the DDL fragments for all fields
func (c *Contract) ColumnDefs() []string {
	defs := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		defs[i] = f.ColumnDef()
	}
	return defs
}

// KeyOf derives the dedup/upsert key of a record under this contract.
// Key parts are joined in NaturalKey order so composite keys are stable.
func (c *Contract) KeyOf(rec CleanRecord) string {
	parts := make([]string, len(c.NaturalKey))
	for i, k := range c.NaturalKey {
		parts[i] = fmt.Sprintf("%v", rec[k])
	}
	return strings.Join(parts, "\x1f")
}

// Validate checks the contract definition itself
func (c *Contract) Validate() error {
	if c.Table == "" {
		return fmt.Errorf("contract has no table name")
	}
	if len(c.Fields) == 0 {
		return fmt.Errorf("contract %s has no fields", c.Table)
	}
	if len(c.NaturalKey) == 0 {
		return fmt.Errorf("contract %s has no natural key", c.Table)
	}
	for _, k := range c.NaturalKey {
		f := c.FieldByName(k)
		if f == nil {
			return fmt.Errorf("contract %s: natural key column %s is not a field", c.Table, k)
		}
		if !f.Required {
			return fmt.Errorf("contract %s: natural key column %s must be required", c.Table, k)
		}
	}
	return nil
}

// RawRecord is an untyped mapping parsed straight from the API payload
type RawRecord map[string]interface{}

// CleanRecord is a typed record conforming to a Contract.
// Values are int64, float64, string, time.Time or nil.
type CleanRecord map[string]interface{}

// RejectedRecord carries a record that failed transformation plus the reason
type RejectedRecord struct {
	Raw    RawRecord
	Reason error
}
