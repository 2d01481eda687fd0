package types

// Measurement is a single physical quantity with its unit.
type Measurement struct {
	Value float64 `json:"value"`
	Units string  `json:"units"`
}

// PhaseMeasurements holds one phase's electrical quantities.
type PhaseMeasurements struct {
	Voltage       Measurement `json:"voltage"`
	Current       Measurement `json:"current"`
	ActivePower   Measurement `json:"active_power"`
	ReactivePower Measurement `json:"reactive_power"`
	ApparentPower Measurement `json:"apparent_power"`
	PowerFactor   Measurement `json:"power_factor"`
	PowerAngle    Measurement `json:"power_angle"`
	THDVoltage    Measurement `json:"thd_voltage"`
	THDCurrent    Measurement `json:"thd_current"`
}

// TotalMeasurements aggregates power quantities across all phases.
type TotalMeasurements struct {
	ActivePower   Measurement `json:"active_power"`
	ReactivePower Measurement `json:"reactive_power"`
	ApparentPower Measurement `json:"apparent_power"`
	PowerFactor   Measurement `json:"power_factor"`
	PowerAngle    Measurement `json:"power_angle"`
}

// IntervalStats describes the averaging interval behind non-actual
// measurement types. Durations are in seconds.
type IntervalStats struct {
	LastIntervalDuration     float64 `json:"last_interval_duration"`
	TimeSinceLastMeasurement float64 `json:"time_since_last_measurement"`
}

// Measurements is one measurement snapshot. Phase index equals slice index.
// IntervalStats is nil for MeasurementTypeActual.
type Measurements struct {
	Phases        []PhaseMeasurements `json:"phases"`
	Total         TotalMeasurements   `json:"total"`
	Frequency     Measurement         `json:"frequency"`
	Temperature   Measurement         `json:"temperature"`
	IntervalStats *IntervalStats      `json:"interval_stats,omitempty"`
}

// MeasurementType selects which measurement variant a read returns.
// The non-actual variants share the actual layout at shifted register
// windows.
type MeasurementType int

const (
	MeasurementTypeActual MeasurementType = iota
	MeasurementTypeAverage
	MeasurementTypeMaximum
	MeasurementTypeMinimum
)

// RegisterOffset returns the register window shift for this variant.
func (m MeasurementType) RegisterOffset() uint16 {
	switch m {
	case MeasurementTypeAverage:
		return 5400
	case MeasurementTypeMaximum:
		return 5500
	case MeasurementTypeMinimum:
		return 5600
	default:
		return 0
	}
}

// String returns the measurement type name.
func (m MeasurementType) String() string {
	switch m {
	case MeasurementTypeActual:
		return "actual"
	case MeasurementTypeAverage:
		return "average"
	case MeasurementTypeMaximum:
		return "maximum"
	case MeasurementTypeMinimum:
		return "minimum"
	default:
		return "unknown"
	}
}
