package types

// CounterDirection is the energy flow direction a counter accumulates.
type CounterDirection string

const (
	DirectionNone   CounterDirection = "none"
	DirectionImport CounterDirection = "import"
	DirectionExport CounterDirection = "export"
)

// Opposite returns the inverted direction. DirectionNone is its own
// opposite. Used when the meter reports reversed wiring.
func (d CounterDirection) Opposite() CounterDirection {
	switch d {
	case DirectionImport:
		return DirectionExport
	case DirectionExport:
		return DirectionImport
	default:
		return d
	}
}

// EnergyUnits is a counter's accumulation unit.
type EnergyUnits string

const (
	UnitsNone EnergyUnits = ""
	UnitsWh   EnergyUnits = "Wh"
	UnitsKWh  EnergyUnits = "kWh"
	UnitsMWh  EnergyUnits = "MWh"
	UnitsGWh  EnergyUnits = "GWh"
	UnitsVarh EnergyUnits = "varh"
	UnitsQKWh EnergyUnits = "kvarh"
	UnitsQMWh EnergyUnits = "Mvarh"
	UnitsQGWh EnergyUnits = "Gvarh"
	UnitsVAh  EnergyUnits = "VAh"
	UnitsKVAh EnergyUnits = "kVAh"
	UnitsMVAh EnergyUnits = "MVAh"
	UnitsGVAh EnergyUnits = "GVAh"
)

// counterUnitCodes maps the unit code from a counter settings register to
// its unit. Codes outside the table decode as UnitsNone.
var counterUnitCodes = [...]EnergyUnits{
	UnitsWh, UnitsKWh, UnitsMWh, UnitsGWh,
	UnitsVarh, UnitsQKWh, UnitsQMWh, UnitsQGWh,
	UnitsVAh, UnitsKVAh, UnitsMVAh, UnitsGVAh,
}

// CounterUnits decodes the unit code field of a counter settings register.
// Only the low 4 bits carry the code.
func CounterUnits(settings uint16) EnergyUnits {
	code := settings & 0x000F
	if int(code) >= len(counterUnitCodes) {
		return UnitsNone
	}
	return counterUnitCodes[code]
}

// CounterDirectionFromSettings decodes the direction field of a counter
// settings register (1 = import, 2 = export, anything else = none) and
// inverts it when the meter reports reversed wiring.
func CounterDirectionFromSettings(settings uint16, reversed bool) CounterDirection {
	var dir CounterDirection
	switch settings & 0x0003 {
	case 1:
		dir = DirectionImport
	case 2:
		dir = DirectionExport
	default:
		dir = DirectionNone
	}
	if reversed {
		dir = dir.Opposite()
	}
	return dir
}

// CounterType is the semantic classification of a counter, derived from its
// direction and units.
type CounterType string

const (
	CounterTypeUnknown        CounterType = "unknown"
	CounterTypeActiveImport   CounterType = "active_import"
	CounterTypeActiveExport   CounterType = "active_export"
	CounterTypeReactiveImport CounterType = "reactive_import"
	CounterTypeReactiveExport CounterType = "reactive_export"
	CounterTypeApparentImport CounterType = "apparent_import"
	CounterTypeApparentExport CounterType = "apparent_export"
)

// CounterTypeFor derives the counter type from direction and units.
func CounterTypeFor(dir CounterDirection, units EnergyUnits) CounterType {
	var kind string
	switch units {
	case UnitsWh, UnitsKWh, UnitsMWh, UnitsGWh:
		kind = "active"
	case UnitsVarh, UnitsQKWh, UnitsQMWh, UnitsQGWh:
		kind = "reactive"
	case UnitsVAh, UnitsKVAh, UnitsMVAh, UnitsGVAh:
		kind = "apparent"
	default:
		return CounterTypeUnknown
	}
	switch dir {
	case DirectionImport:
		return CounterType(kind + "_import")
	case DirectionExport:
		return CounterType(kind + "_export")
	default:
		return CounterTypeUnknown
	}
}

// Counter is one accumulated energy register.
type Counter struct {
	Value     float64          `json:"value"`
	Units     EnergyUnits      `json:"units"`
	Direction CounterDirection `json:"direction"`
	Type      CounterType      `json:"type"`
}

// Counters is one counter snapshot. NonResettable counters accumulate for
// the meter's lifetime; Resettable counters cover the current billing
// period. Lengths are fixed per model by the parameter table.
type Counters struct {
	NonResettable []Counter `json:"non_resettable"`
	Resettable    []Counter `json:"resettable"`
}
