package adapters

import (
	"context"

	"github.com/iskramis/iskra-go/pkg/registers"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Adapter is the capability contract every transport satisfies.
// Exactly one adapter belongs to one Device; its lifetime is the device's.
type Adapter interface {
	// BasicInfo fetches the device identity used to select the decode
	// recipe at construction time.
	BasicInfo(ctx context.Context) (types.BasicInfo, error)

	// Close releases the transport resources.
	Close() error
}

// RegisterReader is the Modbus-side capability set: raw register window
// reads plus explicit connection control.
type RegisterReader interface {
	Adapter

	// Connect opens the transport connection. Reads between Connect and
	// Disconnect reuse it; reads on a closed adapter open and close
	// their own connection.
	Connect(ctx context.Context) error

	// Disconnect closes the transport connection.
	Disconnect() error

	// Connected reports whether a connection is currently open.
	Connected() bool

	// ReadHolding reads count holding registers starting at start.
	ReadHolding(ctx context.Context, start, count uint16) (*registers.Window, error)

	// ReadInput reads count input registers starting at start.
	ReadInput(ctx context.Context, start, count uint16) (*registers.Window, error)
}

// SnapshotReader is the REST-side capability set: the meter's web API does
// the register decoding, so reads return finished value objects.
type SnapshotReader interface {
	Adapter

	// Measurements fetches the current measurement snapshot.
	Measurements(ctx context.Context) (*types.Measurements, error)

	// Counters fetches the current counter snapshot.
	Counters(ctx context.Context) (*types.Counters, error)

	// TimeBlocks fetches the current time-block snapshot.
	TimeBlocks(ctx context.Context) (*types.TimeBlockMeasurements, error)

	// TimeBlocksSupported reports whether the device exposes time-block
	// accounting.
	TimeBlocksSupported(ctx context.Context) (bool, error)
}

// Auth carries the REST credentials supplied at adapter construction.
type Auth struct {
	Username string
	Password string
}
