// pkg/contract/wmata.go
package contract

// Built-in contracts for the WMATA Bus API feeds.

// BusStops is the contract for the jStops feed (one row per stop)
func BusStops() *Contract {
	return &Contract{
		Table: "bus_stops",
		Fields: []Field{
			{Name: "stop_id", Source: "StopID", Type: TypeInteger, Required: true},
			{Name: "stop_name", Source: "Name", Type: TypeText, Required: true},
			{Name: "lat", Source: "Lat", Type: TypeFloat, Min: f(-90), Max: f(90)},
			{Name: "lon", Source: "Lon", Type: TypeFloat, Min: f(-180), Max: f(180)},
		},
		NaturalKey: []string{"stop_id"},
	}
}

// BusPositions is the contract for the jBusPositions feed (one row per vehicle)
func BusPositions() *Contract {
	return &Contract{
		Table: "bus_positions",
		Fields: []Field{
			{Name: "vehicle_id", Source: "VehicleID", Type: TypeInteger, Required: true},
			{Name: "trip_id", Source: "TripID", Type: TypeInteger},
			{Name: "route_id", Source: "RouteID", Type: TypeText},
			{Name: "direction_num", Source: "DirectionNum", Type: TypeInteger, Enum: []string{"0", "1"}},
			{Name: "direction_text", Source: "DirectionText", Type: TypeText},
			{Name: "lat", Source: "Lat", Type: TypeFloat, Min: f(-90), Max: f(90)},
			{Name: "lon", Source: "Lon", Type: TypeFloat, Min: f(-180), Max: f(180)},
			{Name: "deviation", Source: "Deviation", Type: TypeInteger},
			{Name: "date_time", Source: "DateTime", Type: TypeTimestamp, Required: true},
			{Name: "trip_start_time", Source: "TripStartTime", Type: TypeTimestamp},
			{Name: "trip_end_time", Source: "TripEndTime", Type: TypeTimestamp},
			{Name: "block_number", Source: "BlockNumber", Type: TypeText},
		},
		NaturalKey: []string{"vehicle_id"},
	}
}

// StopRoutes is the contract for the exploded stop-to-route relation.
// Records come from flattening the multivalued Routes field of a stop,
// so the natural key is composite.
func StopRoutes() *Contract {
	return &Contract{
		Table: "stop_routes",
		Fields: []Field{
			{Name: "stop_id", Source: "StopID", Type: TypeInteger, Required: true},
			{Name: "route_id", Source: "Routes", Type: TypeText, Required: true},
		},
		NaturalKey: []string{"stop_id", "route_id"},
	}
}

func f(v float64) *float64 { return &v }
