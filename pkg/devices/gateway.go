package devices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/log"
	"github.com/iskramis/iskra-go/pkg/types"
)

// childProvider is the gateway-side adapter surface: snapshot reads plus
// child enumeration. Satisfied by *adapters.RestAdapter.
type childProvider interface {
	adapters.SnapshotReader
	Children() []adapters.ChildInfo
	ChildAdapter(index int) *adapters.RestAdapter
}

// SmartGateway is an SG-series gateway fronting a set of child meters over
// its web API. The gateway itself also serves device-wide snapshots.
type SmartGateway struct {
	info    types.BasicInfo
	adapter childProvider
	logger  *slog.Logger
	events  log.Logger
	opts    options

	flight singleflight.Group

	mu                 sync.RWMutex
	children           []Device
	measurements       *types.Measurements
	counters           *types.Counters
	timeBlocks         *types.TimeBlockMeasurements
	updateTime         time.Time
	supportsTimeBlocks bool
}

func newSmartGateway(info types.BasicInfo, adapter childProvider, o options) *SmartGateway {
	return &SmartGateway{
		info:    info,
		adapter: adapter,
		logger:  o.logger.With("model", info.Model, "serial", info.Serial),
		events:  o.events,
		opts:    o,
	}
}

func (g *SmartGateway) Model() string       { return g.info.Model }
func (g *SmartGateway) Serial() string      { return g.info.Serial }
func (g *SmartGateway) Description() string { return g.info.Description }
func (g *SmartGateway) Location() string    { return g.info.Location }
func (g *SmartGateway) SWVersion() float64  { return g.info.SWVersion }

func (g *SmartGateway) SupportsMeasurements() bool         { return true }
func (g *SmartGateway) SupportsCounters() bool             { return true }
func (g *SmartGateway) SupportsIntervalMeasurements() bool { return false }
func (g *SmartGateway) SupportsIMCFunctions() bool         { return false }

// SupportsTimeBlocks reports whether the gateway serves time-block
// snapshots. Settled by Init.
func (g *SmartGateway) SupportsTimeBlocks() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.supportsTimeBlocks
}

func (g *SmartGateway) IsGateway() bool { return true }

// ChildDevices returns the initialized children in index order.
func (g *SmartGateway) ChildDevices() []Device {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Device, len(g.children))
	copy(out, g.children)
	return out
}

// Init constructs and initializes a Device for every child the gateway
// reported, probes the gateway's own time-block support, then performs
// the first status update. Children with unsupported models are skipped
// with a log line; any other child failure aborts.
func (g *SmartGateway) Init(ctx context.Context) error {
	descriptors := g.adapter.Children()
	children := make([]Device, 0, len(descriptors))
	for _, c := range descriptors {
		child, err := CreateDevice(ctx, g.adapter.ChildAdapter(c.Index),
			WithLogger(g.opts.logger), WithEvents(g.opts.events))
		if errors.Is(err, ErrNotSupported) {
			g.logger.Warn("skipping unsupported child", "index", c.Index, "model", c.Model)
			continue
		}
		if err != nil {
			return fmt.Errorf("create child %d: %w", c.Index, err)
		}
		if err := child.Init(ctx); err != nil {
			return fmt.Errorf("init child %d (%s): %w", c.Index, child.Serial(), err)
		}
		children = append(children, child)
	}

	supported, err := g.adapter.TimeBlocksSupported(ctx)
	if err != nil {
		return fmt.Errorf("probe time block support: %w", err)
	}

	g.mu.Lock()
	g.children = children
	g.supportsTimeBlocks = supported
	g.mu.Unlock()

	if err := g.UpdateStatus(ctx); err != nil {
		return err
	}
	g.logger.Debug("initialized", "children", len(children))
	return nil
}

// UpdateStatus refreshes the gateway's own snapshots. Concurrent callers
// share one in-flight update. Children update independently.
func (g *SmartGateway) UpdateStatus(ctx context.Context) error {
	_, err, _ := g.flight.Do("update", func() (any, error) {
		return nil, g.update(ctx)
	})
	return err
}

func (g *SmartGateway) update(ctx context.Context) error {
	began := time.Now()
	g.events.Log(log.Event{
		Timestamp: began,
		Type:      log.EventUpdateStarted,
		Model:     g.info.Model,
		Serial:    g.info.Serial,
	})

	m, err := g.adapter.Measurements(ctx)
	if err != nil {
		return g.failUpdate(fmt.Errorf("update measurements: %w", err))
	}
	g.mu.Lock()
	g.measurements = m
	g.mu.Unlock()

	c, err := g.adapter.Counters(ctx)
	if err != nil {
		return g.failUpdate(fmt.Errorf("update counters: %w", err))
	}
	g.mu.Lock()
	g.counters = c
	g.mu.Unlock()

	categories := []string{"measurements", "counters"}
	if g.SupportsTimeBlocks() {
		tb, err := g.adapter.TimeBlocks(ctx)
		if err != nil {
			return g.failUpdate(fmt.Errorf("update time blocks: %w", err))
		}
		g.mu.Lock()
		g.timeBlocks = tb
		g.mu.Unlock()
		categories = append(categories, "time_blocks")
	}

	g.mu.Lock()
	g.updateTime = time.Now()
	g.mu.Unlock()

	g.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventUpdateCompleted,
		Model:     g.info.Model,
		Serial:    g.info.Serial,
		Update:    &log.UpdateEvent{Categories: categories, Duration: time.Since(began)},
	})
	return nil
}

func (g *SmartGateway) failUpdate(err error) error {
	g.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventUpdateFailed,
		Model:     g.info.Model,
		Serial:    g.info.Serial,
		Error:     &log.ErrorEventData{Message: err.Error(), Context: "update"},
	})
	return err
}

// Measurements returns the gateway's cached measurement snapshot.
func (g *SmartGateway) Measurements() *types.Measurements {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.measurements
}

// Counters returns the gateway's cached counter snapshot.
func (g *SmartGateway) Counters() *types.Counters {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.counters
}

// TimeBlocks returns the gateway's cached time-block snapshot.
func (g *SmartGateway) TimeBlocks() *types.TimeBlockMeasurements {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.timeBlocks
}

// UpdateTimestamp returns the completion time of the last successful
// update, zero before the first one.
func (g *SmartGateway) UpdateTimestamp() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.updateTime
}

// Close closes the children first, then the gateway adapter.
func (g *SmartGateway) Close() error {
	var first error
	for _, c := range g.ChildDevices() {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := g.adapter.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Compile-time interface satisfaction check.
var _ Device = (*SmartGateway)(nil)
