package contract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		contract Contract
		wantErr  string
	}{
		{
			name: "valid",
			contract: Contract{
				Table:      "stops",
				Fields:     []Field{{Name: "stop_id", Type: TypeText, Required: true}},
				NaturalKey: []string{"stop_id"},
			},
		},
		{
			name:     "missing table",
			contract: Contract{Fields: []Field{{Name: "id", Required: true}}, NaturalKey: []string{"id"}},
			wantErr:  "no table name",
		},
		{
			name:     "no fields",
			contract: Contract{Table: "stops", NaturalKey: []string{"id"}},
			wantErr:  "no fields",
		},
		{
			name:     "no natural key",
			contract: Contract{Table: "stops", Fields: []Field{{Name: "id", Required: true}}},
			wantErr:  "no natural key",
		},
		{
			name: "key column not a field",
			contract: Contract{
				Table:      "stops",
				Fields:     []Field{{Name: "stop_id", Required: true}},
				NaturalKey: []string{"vehicle_id"},
			},
			wantErr: "not a field",
		},
		{
			name: "key column not required",
			contract: Contract{
				Table:      "stops",
				Fields:     []Field{{Name: "stop_id", Type: TypeText}},
				NaturalKey: []string{"stop_id"},
			},
			wantErr: "must be required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.contract.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKeyOfComposite(t *testing.T) {
	c := StopRoutes()

	a := c.KeyOf(CleanRecord{"stop_id": "1001", "route_id": "70"})
	b := c.KeyOf(CleanRecord{"stop_id": "1001", "route_id": "74"})
	require.NotEqual(t, a, b)

	// Key parts are separated so "10"+"0170" cannot collide with "1001"+"70"
	x := c.KeyOf(CleanRecord{"stop_id": "10", "route_id": "0170"})
	require.NotEqual(t, a, x)

	require.Equal(t, a, c.KeyOf(CleanRecord{"stop_id": "1001", "route_id": "70"}))
}

func TestColumnDef(t *testing.T) {
	require.Equal(t, "stop_id TEXT NOT NULL",
		Field{Name: "stop_id", Type: TypeText, Required: true}.ColumnDef())
	require.Equal(t, "lat DOUBLE PRECISION",
		Field{Name: "lat", Type: TypeFloat}.ColumnDef())
	require.Equal(t, "date_time TIMESTAMPTZ NOT NULL",
		Field{Name: "date_time", Type: TypeTimestamp, Required: true}.ColumnDef())
	require.Equal(t, "deviation BIGINT",
		Field{Name: "deviation", Type: TypeInteger}.ColumnDef())
}

func TestSourceNameDefaultsToName(t *testing.T) {
	require.Equal(t, "Name", Field{Name: "stop_name", Source: "Name"}.SourceName())
	require.Equal(t, "lat", Field{Name: "lat"}.SourceName())
}

func TestFieldByNameIsCaseInsensitive(t *testing.T) {
	c := BusStops()
	require.NotNil(t, c.FieldByName("STOP_ID"))
	require.Nil(t, c.FieldByName("vehicle_id"))
}

func TestNonKeyColumns(t *testing.T) {
	c := BusPositions()
	require.NotContains(t, c.NonKeyColumns(), "vehicle_id")
	require.Contains(t, c.NonKeyColumns(), "route_id")

	// A contract of only key columns has none
	require.Empty(t, StopRoutes().NonKeyColumns())
}

func TestBuiltinContractsAreValid(t *testing.T) {
	for _, c := range []*Contract{BusStops(), BusPositions(), StopRoutes()} {
		require.NoError(t, c.Validate(), c.Table)
	}
}
