package adapters

import "errors"

// Adapter errors.
var (
	// ErrConnection indicates the transport is unreachable, timed out or
	// broke mid-read.
	ErrConnection = errors.New("device connection error")

	// ErrInvalidResponse indicates the transport reported a protocol-level
	// error for an otherwise successful exchange (Modbus exception code,
	// unexpected HTTP status).
	ErrInvalidResponse = errors.New("invalid response code")

	// ErrProtocolNotSupported indicates the device does not speak this
	// adapter's protocol.
	ErrProtocolNotSupported = errors.New("protocol not supported")

	// ErrNotAuthorised indicates the device rejected the credentials.
	ErrNotAuthorised = errors.New("not authorised")

	// ErrTimeout indicates the device did not answer within the deadline.
	ErrTimeout = errors.New("device timeout")
)
