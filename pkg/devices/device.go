package devices

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/log"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Device is the unified meter surface. Snapshot getters return the values
// cached by the last UpdateStatus; they never touch the transport.
type Device interface {
	// Identity, fixed at construction time.
	Model() string
	Serial() string
	Description() string
	Location() string
	SWVersion() float64

	// Init probes capabilities and performs the first status update.
	Init(ctx context.Context) error

	// UpdateStatus refreshes the cached snapshots. Concurrent calls
	// coalesce into one transport sequence.
	UpdateStatus(ctx context.Context) error

	// Cached snapshots. Nil until the first successful update, or when
	// the category is unsupported.
	Measurements() *types.Measurements
	Counters() *types.Counters
	TimeBlocks() *types.TimeBlockMeasurements

	// UpdateTimestamp is the completion time of the last successful
	// update, zero before the first one.
	UpdateTimestamp() time.Time

	// Capability flags, settled by Init.
	SupportsMeasurements() bool
	SupportsCounters() bool
	SupportsIntervalMeasurements() bool
	SupportsTimeBlocks() bool
	SupportsIMCFunctions() bool

	// IsGateway reports whether the device fronts child meters.
	IsGateway() bool

	// ChildDevices returns the gateway's children in index order, nil
	// for plain meters.
	ChildDevices() []Device

	// Close releases the adapter.
	Close() error
}

// Option configures device construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
	events log.Logger
}

// WithLogger attaches a debug logger to the device.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEvents attaches a structured event logger to the device.
func WithEvents(l log.Logger) Option {
	return func(o *options) { o.events = l }
}

func applyOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.events == nil {
		o.events = log.NoopLogger{}
	}
	return o
}

// CreateDevice fetches the device identity over the adapter and constructs
// the matching device type. The returned device is not yet initialized;
// call Init before reading snapshots. Models absent from the parameter
// table return ErrNotSupported and no device; adapters that provide neither
// register nor snapshot reads return adapters.ErrProtocolNotSupported.
func CreateDevice(ctx context.Context, adapter adapters.Adapter, opts ...Option) (Device, error) {
	o := applyOptions(opts)

	info, err := adapter.BasicInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch basic info: %w", err)
	}

	params, known := types.ParamsForModel(info.Model)
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrNotSupported, info.Model)
	}

	if params.Gateway {
		rest, ok := adapter.(childProvider)
		if !ok {
			return nil, fmt.Errorf("%w: gateway %q requires a REST adapter", ErrNotSupported, info.Model)
		}
		return newSmartGateway(info, rest, o), nil
	}

	switch adapter.(type) {
	case adapters.RegisterReader, adapters.SnapshotReader:
	default:
		return nil, fmt.Errorf("%w: adapter provides neither register nor snapshot reads", adapters.ErrProtocolNotSupported)
	}

	return newImpact(info, params, adapter, o), nil
}
