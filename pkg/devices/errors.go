package devices

import "errors"

var (
	// ErrNotSupported indicates the device model is not in the parameter
	// table and no Device can be constructed for it.
	ErrNotSupported = errors.New("device model not supported")

	// ErrMeasurementTypeNotSupported indicates a non-actual measurement
	// type was requested from a device without interval measurements.
	ErrMeasurementTypeNotSupported = errors.New("measurement type not supported")
)
