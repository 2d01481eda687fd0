package devices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/log"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Configuration registers probed during Init.
const (
	regConfigFlags     = 22514 // holding, bit 4 = iMC functions
	regCurrentScaling  = 148   // holding, /10000
	regVoltageScaling  = 149   // holding, /10000
	regUsedVoltage     = 15    // input, centivolt
	regUsedCurrent     = 17    // input, centiampere
	regSoftwareVersion = 13    // input, /100
)

// Impact is an IE-series energy meter. It reads either raw registers
// (Modbus) or finished snapshots (REST), depending on the adapter type.
type Impact struct {
	info    types.BasicInfo
	params  types.ModelParams
	adapter adapters.Adapter
	regs    adapters.RegisterReader // non-nil on the Modbus path
	snap    adapters.SnapshotReader // non-nil on the REST path
	logger  *slog.Logger
	events  log.Logger

	flight singleflight.Group

	mu                 sync.RWMutex
	measurements       *types.Measurements
	counters           *types.Counters
	timeBlocks         *types.TimeBlockMeasurements
	updateTime         time.Time
	supportsIMC        bool
	supportsTimeBlocks bool
	nominalPower       float64
}

func newImpact(info types.BasicInfo, params types.ModelParams, adapter adapters.Adapter, o options) *Impact {
	d := &Impact{
		info:    info,
		params:  params,
		adapter: adapter,
		logger:  o.logger.With("model", info.Model, "serial", info.Serial),
		events:  o.events,
	}
	if r, ok := adapter.(adapters.RegisterReader); ok {
		d.regs = r
	}
	if s, ok := adapter.(adapters.SnapshotReader); ok {
		d.snap = s
	}
	return d
}

func (d *Impact) Model() string       { return d.info.Model }
func (d *Impact) Serial() string      { return d.info.Serial }
func (d *Impact) Description() string { return d.info.Description }
func (d *Impact) Location() string    { return d.info.Location }
func (d *Impact) SWVersion() float64  { return d.info.SWVersion }

// The IE series always exposes measurements, counters and interval
// (average/min/max) measurement variants.
func (d *Impact) SupportsMeasurements() bool         { return true }
func (d *Impact) SupportsCounters() bool             { return true }
func (d *Impact) SupportsIntervalMeasurements() bool { return true }

// SupportsTimeBlocks reports whether the meter carries tariff time-block
// registers. Settled by Init.
func (d *Impact) SupportsTimeBlocks() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.supportsTimeBlocks
}

// SupportsIMCFunctions reports whether the meter's iMC function bit is
// set. Settled by Init.
func (d *Impact) SupportsIMCFunctions() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.supportsIMC
}

// NominalPower returns the nominal power derived from the meter's scaling
// configuration during Init, in watts. Zero on the REST path.
func (d *Impact) NominalPower() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nominalPower
}

func (d *Impact) IsGateway() bool        { return false }
func (d *Impact) ChildDevices() []Device { return nil }

// Init probes the meter's capability registers and performs the first
// status update.
func (d *Impact) Init(ctx context.Context) error {
	if d.regs != nil {
		if err := d.initModbus(ctx); err != nil {
			return err
		}
	} else {
		supported, err := d.snap.TimeBlocksSupported(ctx)
		if err != nil {
			return fmt.Errorf("probe time block support: %w", err)
		}
		d.mu.Lock()
		d.supportsIMC = supported
		d.supportsTimeBlocks = supported
		d.mu.Unlock()
	}

	if err := d.UpdateStatus(ctx); err != nil {
		return err
	}
	d.logger.Debug("initialized")
	return nil
}

func (d *Impact) initModbus(ctx context.Context) error {
	// One connection for all probes.
	if err := d.regs.Connect(ctx); err != nil {
		return err
	}
	defer d.regs.Disconnect()

	imc, err := d.probeIMCFunctions(ctx)
	if err != nil {
		return err
	}
	nominal, err := d.probeNominalPower(ctx)
	if err != nil {
		return err
	}
	timeBlocks := false
	if d.params.TimeBlockCount > 0 {
		if timeBlocks, err = d.probeTimeBlockSupport(ctx); err != nil {
			return err
		}
	}

	d.mu.Lock()
	d.supportsIMC = imc
	d.nominalPower = nominal
	d.supportsTimeBlocks = timeBlocks
	d.mu.Unlock()
	return nil
}

// probeIMCFunctions reads the configuration flag register and extracts the
// iMC function bit.
func (d *Impact) probeIMCFunctions(ctx context.Context) (bool, error) {
	w, err := d.regs.ReadHolding(ctx, regConfigFlags, 1)
	if err != nil {
		return false, fmt.Errorf("probe iMC functions: %w", err)
	}
	flags, err := w.Uint16(regConfigFlags)
	if err != nil {
		return false, err
	}
	return flags>>4&1 == 1, nil
}

// probeNominalPower derives the nominal power from the configured scaling
// factors and the used voltage/current registers (centivolt/centiampere).
func (d *Impact) probeNominalPower(ctx context.Context) (float64, error) {
	scaling, err := d.regs.ReadHolding(ctx, regCurrentScaling, 2)
	if err != nil {
		return 0, fmt.Errorf("probe nominal power: %w", err)
	}
	used, err := d.regs.ReadInput(ctx, regUsedVoltage, 4)
	if err != nil {
		return 0, fmt.Errorf("probe nominal power: %w", err)
	}

	currentScale, err := scaling.Uint16(regCurrentScaling)
	if err != nil {
		return 0, err
	}
	voltageScale, err := scaling.Uint16(regVoltageScaling)
	if err != nil {
		return 0, err
	}
	usedVoltage, err := used.Uint16(regUsedVoltage)
	if err != nil {
		return 0, err
	}
	usedCurrent, err := used.Uint16(regUsedCurrent)
	if err != nil {
		return 0, err
	}

	current := float64(currentScale) / 10000 * (float64(usedCurrent) / 100)
	voltage := float64(voltageScale) / 10000 * (float64(usedVoltage) / 100)
	return 3 * voltage * current, nil
}

// probeTimeBlockSupport checks the software version register; versions in
// [1.0, 1.5] predate time-block accounting.
func (d *Impact) probeTimeBlockSupport(ctx context.Context) (bool, error) {
	w, err := d.regs.ReadInput(ctx, regSoftwareVersion, 1)
	if err != nil {
		return false, fmt.Errorf("probe time block support: %w", err)
	}
	raw, err := w.Uint16(regSoftwareVersion)
	if err != nil {
		return false, err
	}
	sw := float64(raw) / 100
	return sw < 1 || sw > 1.5, nil
}

// UpdateStatus refreshes the cached snapshots. Concurrent callers share
// one in-flight update; coalesced callers observe the shared result and
// run under the first caller's context.
func (d *Impact) UpdateStatus(ctx context.Context) error {
	began := time.Now()
	_, err, shared := d.flight.Do("update", func() (any, error) {
		return nil, d.update(ctx)
	})
	if shared {
		d.logger.Debug("update coalesced", "waited", time.Since(began))
	}
	return err
}

func (d *Impact) update(ctx context.Context) error {
	began := time.Now()
	d.events.Log(log.Event{
		Timestamp: began,
		Type:      log.EventUpdateStarted,
		Model:     d.info.Model,
		Serial:    d.info.Serial,
	})

	err := d.updateSnapshots(ctx)
	if err != nil {
		d.events.Log(log.Event{
			Timestamp: time.Now(),
			Type:      log.EventUpdateFailed,
			Model:     d.info.Model,
			Serial:    d.info.Serial,
			Error:     &log.ErrorEventData{Message: err.Error(), Context: "update"},
		})
		return err
	}

	categories := []string{"measurements", "counters"}
	if d.SupportsTimeBlocks() {
		categories = append(categories, "time_blocks")
	}
	d.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventUpdateCompleted,
		Model:     d.info.Model,
		Serial:    d.info.Serial,
		Update:    &log.UpdateEvent{Categories: categories, Duration: time.Since(began)},
	})
	return nil
}

func (d *Impact) updateSnapshots(ctx context.Context) error {
	// One connection for the whole cycle on the Modbus path.
	if d.regs != nil {
		if err := d.regs.Connect(ctx); err != nil {
			return err
		}
		defer d.regs.Disconnect()
	}

	m, err := d.ReadMeasurements(ctx, types.MeasurementTypeActual)
	if err != nil {
		return fmt.Errorf("update measurements: %w", err)
	}
	d.mu.Lock()
	d.measurements = m
	d.mu.Unlock()

	c, err := d.ReadCounters(ctx)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	d.mu.Lock()
	d.counters = c
	d.mu.Unlock()

	if d.SupportsTimeBlocks() {
		tb, err := d.ReadTimeBlocks(ctx)
		if err != nil {
			return fmt.Errorf("update time blocks: %w", err)
		}
		d.mu.Lock()
		d.timeBlocks = tb
		d.mu.Unlock()
	}

	d.mu.Lock()
	d.updateTime = time.Now()
	d.mu.Unlock()
	return nil
}

// Measurements returns the cached measurement snapshot, nil before the
// first successful update.
func (d *Impact) Measurements() *types.Measurements {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.measurements
}

// Counters returns the cached counter snapshot, nil before the first
// successful update.
func (d *Impact) Counters() *types.Counters {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.counters
}

// TimeBlocks returns the cached time-block snapshot, nil before the first
// successful update or when the meter has no time-block registers.
func (d *Impact) TimeBlocks() *types.TimeBlockMeasurements {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.timeBlocks
}

// UpdateTimestamp returns the completion time of the last successful
// update, zero before the first one.
func (d *Impact) UpdateTimestamp() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.updateTime
}

// Close releases the adapter.
func (d *Impact) Close() error {
	return d.adapter.Close()
}

// ReadMeasurements fetches a live measurement snapshot of the given type,
// bypassing the cache. Non-actual types require interval measurement
// support.
func (d *Impact) ReadMeasurements(ctx context.Context, typ types.MeasurementType) (*types.Measurements, error) {
	if typ != types.MeasurementTypeActual && !d.SupportsIntervalMeasurements() {
		return nil, fmt.Errorf("%w: %s on %s", ErrMeasurementTypeNotSupported, typ, d.info.Model)
	}
	if d.regs != nil {
		return d.readMeasurementsModbus(ctx, typ)
	}
	if typ != types.MeasurementTypeActual {
		return nil, fmt.Errorf("%w: %s over REST", ErrMeasurementTypeNotSupported, typ)
	}
	return d.snap.Measurements(ctx)
}

// ReadCounters fetches a live counter snapshot, bypassing the cache.
func (d *Impact) ReadCounters(ctx context.Context) (*types.Counters, error) {
	if d.regs != nil {
		return d.readCountersModbus(ctx)
	}
	return d.snap.Counters(ctx)
}

// ReadTimeBlocks fetches a live time-block snapshot, bypassing the cache.
func (d *Impact) ReadTimeBlocks(ctx context.Context) (*types.TimeBlockMeasurements, error) {
	if d.regs != nil {
		return d.readTimeBlocksModbus(ctx)
	}
	return d.snap.TimeBlocks(ctx)
}

// Compile-time interface satisfaction check.
var _ Device = (*Impact)(nil)
