package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/iskramis/iskra-go/pkg/log"
	"github.com/iskramis/iskra-go/pkg/registers"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Modbus defaults. The meters ship with RTU at 115200 8N2 and answer on
// unit address 33 out of the box.
const (
	DefaultUnit     = 33
	DefaultTimeout  = 1 * time.Second
	DefaultBaudRate = 115200
	DefaultDataBits = 8
	DefaultParity   = "N"
	DefaultStopBits = 2
)

// Basic-info register map, shared by the whole device family.
const (
	regModel       = 1   // 8 registers, packed ASCII
	regSerial      = 9   // 4 registers, packed ASCII
	regSWVersion   = 14  // value/100
	regDescription = 101 // 20 registers, packed ASCII
	regLocation    = 121 // 20 registers, packed ASCII
)

// TCPConfig configures a Modbus TCP adapter.
type TCPConfig struct {
	// Address is the "host:port" of the device or RS-485 gateway.
	Address string

	// Unit is the Modbus unit (slave) address. Defaults to DefaultUnit.
	Unit byte

	// Timeout bounds each transport exchange. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for debug output (optional).
	Logger *slog.Logger

	// Events receives structured transport events (optional).
	Events log.Logger
}

// RTUConfig configures a Modbus RTU adapter on a serial port.
type RTUConfig struct {
	// Port is the serial device path, e.g. "/dev/ttyUSB0".
	Port string

	// Unit is the Modbus unit (slave) address. Defaults to DefaultUnit.
	Unit byte

	// Serial parameters. Zero values take the meter factory defaults
	// (115200 8N2).
	BaudRate int
	DataBits int
	Parity   string
	StopBits int

	// Timeout bounds each transport exchange. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for debug output (optional).
	Logger *slog.Logger

	// Events receives structured transport events (optional).
	Events log.Logger
}

// connectCloser is the slice of the goburrow handler surface the adapter
// drives directly.
type connectCloser interface {
	Connect() error
	Close() error
}

// ModbusAdapter reads register windows over Modbus RTU or TCP.
// The wire protocol (framing, CRC, function codes) is delegated to
// github.com/goburrow/modbus; this type owns connection handling, unit
// addressing and the conversion to registers.Window.
type ModbusAdapter struct {
	target  string
	unit    byte
	handler connectCloser
	client  modbus.Client
	logger  *slog.Logger
	events  log.Logger

	mu        sync.Mutex
	connected bool
}

// NewModbusTCP creates a Modbus TCP adapter. No connection is made until
// the first read or an explicit Connect.
func NewModbusTCP(cfg TCPConfig) *ModbusAdapter {
	unit := cfg.Unit
	if unit == 0 {
		unit = DefaultUnit
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	h := modbus.NewTCPClientHandler(cfg.Address)
	h.Timeout = timeout
	h.SlaveId = unit

	return newModbusAdapter(cfg.Address, unit, h, modbus.NewClient(h), cfg.Logger, cfg.Events)
}

// NewModbusRTU creates a Modbus RTU adapter on a serial port. No connection
// is made until the first read or an explicit Connect.
func NewModbusRTU(cfg RTUConfig) *ModbusAdapter {
	unit := cfg.Unit
	if unit == 0 {
		unit = DefaultUnit
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	if h.BaudRate == 0 {
		h.BaudRate = DefaultBaudRate
	}
	h.DataBits = cfg.DataBits
	if h.DataBits == 0 {
		h.DataBits = DefaultDataBits
	}
	h.Parity = cfg.Parity
	if h.Parity == "" {
		h.Parity = DefaultParity
	}
	h.StopBits = cfg.StopBits
	if h.StopBits == 0 {
		h.StopBits = DefaultStopBits
	}
	h.SlaveId = unit
	h.Timeout = timeout

	return newModbusAdapter(cfg.Port, unit, h, modbus.NewClient(h), cfg.Logger, cfg.Events)
}

func newModbusAdapter(target string, unit byte, handler connectCloser, client modbus.Client, logger *slog.Logger, events log.Logger) *ModbusAdapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if events == nil {
		events = log.NoopLogger{}
	}
	return &ModbusAdapter{
		target:  target,
		unit:    unit,
		handler: handler,
		client:  client,
		logger:  logger,
		events:  events,
	}
}

// Target returns the transport endpoint (host:port or serial port path).
func (a *ModbusAdapter) Target() string {
	return a.target
}

// Unit returns the Modbus unit address.
func (a *ModbusAdapter) Unit() byte {
	return a.unit
}

// Connect opens the transport connection.
func (a *ModbusAdapter) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}

	a.logger.Debug("connecting", "target", a.target, "unit", a.unit)
	if err := a.handler.Connect(); err != nil {
		return fmt.Errorf("%w: connect %s: %v", ErrConnection, a.target, err)
	}
	a.connected = true
	a.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventConnectionOpened,
		Adapter:   log.AdapterModbus,
		Target:    a.target,
	})
	return nil
}

// Disconnect closes the transport connection.
func (a *ModbusAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}

	a.logger.Debug("disconnecting", "target", a.target)
	err := a.handler.Close()
	a.connected = false
	a.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventConnectionClosed,
		Adapter:   log.AdapterModbus,
		Target:    a.target,
	})
	return err
}

// Connected reports whether a connection is currently open.
func (a *ModbusAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Close releases the transport. Equivalent to Disconnect; the adapter can
// be reconnected afterwards, but devices treat Close as end of life.
func (a *ModbusAdapter) Close() error {
	return a.Disconnect()
}

// ReadHolding reads count holding registers starting at start.
func (a *ModbusAdapter) ReadHolding(ctx context.Context, start, count uint16) (*registers.Window, error) {
	return a.read(ctx, log.TableHolding, start, count)
}

// ReadInput reads count input registers starting at start.
func (a *ModbusAdapter) ReadInput(ctx context.Context, start, count uint16) (*registers.Window, error) {
	return a.read(ctx, log.TableInput, start, count)
}

func (a *ModbusAdapter) read(ctx context.Context, table log.RegisterTable, start, count uint16) (*registers.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Auto-connection: reuse an open connection, otherwise this read is
	// self-contained.
	handleConnection := !a.Connected()
	if handleConnection {
		if err := a.Connect(ctx); err != nil {
			return nil, err
		}
		defer a.Disconnect()
	}

	began := time.Now()
	var (
		raw []byte
		err error
	)
	switch table {
	case log.TableHolding:
		raw, err = a.client.ReadHoldingRegisters(start, count)
	default:
		raw, err = a.client.ReadInputRegisters(start, count)
	}
	if err != nil {
		var mbErr *modbus.ModbusError
		if errors.As(err, &mbErr) {
			return nil, fmt.Errorf("%w: read %s %d+%d: %v", ErrInvalidResponse, table, start, count, mbErr)
		}
		return nil, fmt.Errorf("%w: read %s %d+%d: %v", ErrConnection, table, start, count, err)
	}
	if len(raw) < int(count)*2 {
		return nil, fmt.Errorf("%w: read %s %d+%d: short response (%d bytes)", ErrInvalidResponse, table, start, count, len(raw))
	}

	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}

	a.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventRegistersRead,
		Adapter:   log.AdapterModbus,
		Target:    a.target,
		Registers: &log.RegisterReadEvent{
			Table:    table,
			Start:    start,
			Count:    count,
			Duration: time.Since(began),
		},
	})

	return registers.NewWindow(regs, start), nil
}

// BasicInfo reads the device identity registers: model and serial from the
// input table, description and location from the holding table, software
// version scaled by 1/100.
func (a *ModbusAdapter) BasicInfo(ctx context.Context) (types.BasicInfo, error) {
	handleConnection := !a.Connected()
	if handleConnection {
		if err := a.Connect(ctx); err != nil {
			return types.BasicInfo{}, err
		}
		defer a.Disconnect()
	}

	in, err := a.ReadInput(ctx, regModel, 14)
	if err != nil {
		return types.BasicInfo{}, err
	}
	hold, err := a.ReadHolding(ctx, regDescription, 40)
	if err != nil {
		return types.BasicInfo{}, err
	}

	var info types.BasicInfo
	if info.Model, err = in.String(regModel, 8); err != nil {
		return types.BasicInfo{}, err
	}
	if info.Serial, err = in.String(regSerial, 4); err != nil {
		return types.BasicInfo{}, err
	}
	swRaw, err := in.Uint16(regSWVersion)
	if err != nil {
		return types.BasicInfo{}, err
	}
	info.SWVersion = float64(swRaw) / 100

	if info.Description, err = hold.String(regDescription, 20); err != nil {
		return types.BasicInfo{}, err
	}
	if info.Location, err = hold.String(regLocation, 20); err != nil {
		return types.BasicInfo{}, err
	}

	return info, nil
}

// Compile-time interface satisfaction check.
var _ RegisterReader = (*ModbusAdapter)(nil)
