// Package mock provides scripted adapter implementations for testing.
package mock

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/registers"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Table selects the holding or input register table.
type Table int

const (
	// Holding is the holding register table.
	Holding Table = iota
	// Input is the input register table.
	Input
)

// ReadRecord captures one register read issued against the adapter.
type ReadRecord struct {
	Table Table
	Start uint16
	Count uint16
}

// Adapter is a scripted in-memory RegisterReader. Reads are served from a
// sparse register map; unset addresses read as zero, mirroring a real
// meter's reserved registers.
type Adapter struct {
	// Info is returned by BasicInfo.
	Info types.BasicInfo

	// InfoErr, when set, fails BasicInfo.
	InfoErr error

	// ReadErr, when set, fails every register read.
	ReadErr error

	// ReadDelay stalls each read, for exercising concurrent callers.
	ReadDelay time.Duration

	mu       sync.Mutex
	holding  map[uint16]uint16
	input    map[uint16]uint16
	reads    []ReadRecord
	connects int
	closes   int
	open     bool
}

// NewAdapter creates an empty scripted adapter.
func NewAdapter(info types.BasicInfo) *Adapter {
	return &Adapter{
		Info:    info,
		holding: make(map[uint16]uint16),
		input:   make(map[uint16]uint16),
	}
}

func (a *Adapter) table(t Table) map[uint16]uint16 {
	if t == Holding {
		return a.holding
	}
	return a.input
}

// SetUint16 scripts a single register.
func (a *Adapter) SetUint16(t Table, addr uint16, v uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.table(t)[addr] = v
}

// SetInt16 scripts a single register with a signed value.
func (a *Adapter) SetInt16(t Table, addr uint16, v int16) {
	a.SetUint16(t, addr, uint16(v))
}

// SetUint32 scripts a register pair, high register first.
func (a *Adapter) SetUint32(t Table, addr uint16, v uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.table(t)
	m[addr] = uint16(v >> 16)
	m[addr+1] = uint16(v)
}

// SetT5 scripts a register pair with the binary32 pattern of v.
func (a *Adapter) SetT5(t Table, addr uint16, v float32) {
	a.SetUint32(t, addr, math.Float32bits(v))
}

// SetString scripts count registers with s packed two ASCII bytes per
// register, NUL padded.
func (a *Adapter) SetString(t Table, addr uint16, count int, s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.table(t)
	b := []byte(s)
	for i := 0; i < count; i++ {
		var hi, lo byte
		if 2*i < len(b) {
			hi = b[2*i]
		}
		if 2*i+1 < len(b) {
			lo = b[2*i+1]
		}
		m[addr+uint16(i)] = uint16(hi)<<8 | uint16(lo)
	}
}

// Reads returns the reads issued so far.
func (a *Adapter) Reads() []ReadRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ReadRecord, len(a.reads))
	copy(out, a.reads)
	return out
}

// Connects returns how many times Connect actually opened the transport.
func (a *Adapter) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// Disconnects returns how many times Disconnect actually closed the transport.
func (a *Adapter) Disconnects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closes
}

// BasicInfo returns the scripted identity.
func (a *Adapter) BasicInfo(ctx context.Context) (types.BasicInfo, error) {
	if a.InfoErr != nil {
		return types.BasicInfo{}, a.InfoErr
	}
	return a.Info, nil
}

// Connect opens the scripted transport.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		a.open = true
		a.connects++
	}
	return nil
}

// Disconnect closes the scripted transport.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		a.open = false
		a.closes++
	}
	return nil
}

// Connected reports whether the scripted transport is open.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// Close releases the scripted transport.
func (a *Adapter) Close() error {
	return a.Disconnect()
}

// ReadHolding serves count holding registers starting at start.
func (a *Adapter) ReadHolding(ctx context.Context, start, count uint16) (*registers.Window, error) {
	return a.read(ctx, Holding, start, count)
}

// ReadInput serves count input registers starting at start.
func (a *Adapter) ReadInput(ctx context.Context, start, count uint16) (*registers.Window, error) {
	return a.read(ctx, Input, start, count)
}

func (a *Adapter) read(ctx context.Context, t Table, start, count uint16) (*registers.Window, error) {
	if a.ReadDelay > 0 {
		select {
		case <-time.After(a.ReadDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// A read on a closed adapter opens and closes its own connection.
	if !a.open {
		a.connects++
		a.closes++
	}
	if a.ReadErr != nil {
		return nil, a.ReadErr
	}

	a.reads = append(a.reads, ReadRecord{Table: t, Start: start, Count: count})

	m := a.table(t)
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = m[start+uint16(i)]
	}
	return registers.NewWindow(regs, start), nil
}

// Compile-time interface satisfaction check.
var _ adapters.RegisterReader = (*Adapter)(nil)
