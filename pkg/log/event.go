package log

import "time"

// Event represents one captured meter-communication event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Type classifies the event.
	Type EventType `cbor:"2,keyasint"`

	// Adapter indicates which transport produced the event.
	Adapter AdapterKind `cbor:"3,keyasint,omitempty"`

	// Target is the transport endpoint: "host:port" for TCP/REST,
	// the serial port path for RTU.
	Target string `cbor:"4,keyasint,omitempty"`

	// Model is the device model (populated once identity is known).
	Model string `cbor:"5,keyasint,omitempty"`

	// Serial is the device serial number.
	Serial string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (at most one of these is set).
	Registers *RegisterReadEvent `cbor:"7,keyasint,omitempty"`  // Modbus register read
	REST      *RESTCallEvent     `cbor:"8,keyasint,omitempty"`  // REST exchange
	Update    *UpdateEvent       `cbor:"9,keyasint,omitempty"`  // status update cycle
	Error     *ErrorEventData    `cbor:"10,keyasint,omitempty"` // failures at any layer
}

// EventType classifies a meter event.
type EventType uint8

const (
	// EventConnectionOpened indicates a Modbus connection was opened.
	EventConnectionOpened EventType = 0
	// EventConnectionClosed indicates a Modbus connection was closed.
	EventConnectionClosed EventType = 1
	// EventRegistersRead indicates a register window was read.
	EventRegistersRead EventType = 2
	// EventRESTCall indicates a REST exchange completed.
	EventRESTCall EventType = 3
	// EventUpdateStarted indicates a status update began.
	EventUpdateStarted EventType = 4
	// EventUpdateCompleted indicates a status update finished.
	EventUpdateCompleted EventType = 5
	// EventUpdateFailed indicates a status update aborted with an error.
	EventUpdateFailed EventType = 6
	// EventDeviceDiscovered indicates a discovery reply was received.
	EventDeviceDiscovered EventType = 7
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventConnectionOpened:
		return "CONNECTION_OPENED"
	case EventConnectionClosed:
		return "CONNECTION_CLOSED"
	case EventRegistersRead:
		return "REGISTERS_READ"
	case EventRESTCall:
		return "REST_CALL"
	case EventUpdateStarted:
		return "UPDATE_STARTED"
	case EventUpdateCompleted:
		return "UPDATE_COMPLETED"
	case EventUpdateFailed:
		return "UPDATE_FAILED"
	case EventDeviceDiscovered:
		return "DEVICE_DISCOVERED"
	default:
		return "UNKNOWN"
	}
}

// AdapterKind indicates which transport an event belongs to.
type AdapterKind uint8

const (
	// AdapterNone is used for events without a transport (discovery).
	AdapterNone AdapterKind = 0
	// AdapterModbus indicates a Modbus RTU/TCP adapter.
	AdapterModbus AdapterKind = 1
	// AdapterREST indicates a REST adapter.
	AdapterREST AdapterKind = 2
)

// String returns the adapter kind name.
func (k AdapterKind) String() string {
	switch k {
	case AdapterModbus:
		return "MODBUS"
	case AdapterREST:
		return "REST"
	default:
		return "NONE"
	}
}

// RegisterTable distinguishes holding from input register reads.
type RegisterTable uint8

const (
	// TableHolding is the holding register table (function code 3).
	TableHolding RegisterTable = 0
	// TableInput is the input register table (function code 4).
	TableInput RegisterTable = 1
)

// String returns the register table name.
func (t RegisterTable) String() string {
	switch t {
	case TableHolding:
		return "HOLDING"
	case TableInput:
		return "INPUT"
	default:
		return "UNKNOWN"
	}
}

// RegisterReadEvent captures one Modbus register window read.
type RegisterReadEvent struct {
	// Table is the register table that was read.
	Table RegisterTable `cbor:"1,keyasint"`

	// Start is the absolute address of the first register.
	Start uint16 `cbor:"2,keyasint"`

	// Count is the number of registers requested.
	Count uint16 `cbor:"3,keyasint"`

	// Duration is the round-trip time. Stored as nanoseconds.
	Duration time.Duration `cbor:"4,keyasint,omitempty"`
}

// RESTCallEvent captures one REST exchange.
type RESTCallEvent struct {
	// Method is the HTTP method.
	Method string `cbor:"1,keyasint"`

	// Path is the request path.
	Path string `cbor:"2,keyasint"`

	// Status is the HTTP status code (0 if the request never completed).
	Status int `cbor:"3,keyasint,omitempty"`

	// Duration is the round-trip time. Stored as nanoseconds.
	Duration time.Duration `cbor:"4,keyasint,omitempty"`
}

// UpdateEvent captures a status update cycle.
type UpdateEvent struct {
	// Categories lists the snapshot categories fetched
	// ("measurements", "counters", "time_blocks").
	Categories []string `cbor:"1,keyasint,omitempty"`

	// Duration is the total update time. Stored as nanoseconds.
	Duration time.Duration `cbor:"2,keyasint,omitempty"`

	// Coalesced reports whether this caller shared another caller's
	// in-flight update instead of fetching itself.
	Coalesced bool `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
