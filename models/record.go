package models

// Destination names the logical store a record is persisted to.
type Destination string

const (
	DestinationOptionTrades       Destination = "option_trades"
	DestinationFlowAlerts         Destination = "flow_alerts"
	DestinationSpotGreeks         Destination = "spot_greeks"
	DestinationStrikeExpiryGreeks Destination = "strike_expiry_greeks"
)

// Destinations lists every destination known to the router, in routing order.
var Destinations = []Destination{
	DestinationOptionTrades,
	DestinationFlowAlerts,
	DestinationStrikeExpiryGreeks,
	DestinationSpotGreeks,
}

// ColumnType is the logical type of a persisted column.
type ColumnType int

const (
	ColumnText ColumnType = iota
	ColumnInteger
	ColumnReal
	ColumnBool
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInteger:
		return "integer"
	case ColumnReal:
		return "real"
	case ColumnBool:
		return "bool"
	default:
		return "text"
	}
}

// Column is one field of a destination's fixed column set.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describes the persisted shape of one destination. Key names the
// column holding the dedup key; it is empty when the destination has none.
type Schema struct {
	Destination Destination
	Columns     []Column
	Key         string
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Record is a validated, typed projection of one payload. Values is aligned
// with Schema().Columns.
type Record interface {
	Schema() *Schema
	DedupKey() string
	Values() []any
}

// SchemaFor returns the schema of a destination, or nil when unknown.
func SchemaFor(d Destination) *Schema {
	switch d {
	case DestinationOptionTrades:
		return OptionTradeSchema
	case DestinationFlowAlerts:
		return FlowAlertSchema
	case DestinationSpotGreeks:
		return SpotGreeksSchema
	case DestinationStrikeExpiryGreeks:
		return StrikeExpiryGreeksSchema
	default:
		return nil
	}
}
