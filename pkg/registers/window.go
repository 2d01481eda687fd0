package registers

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrOutOfRange indicates an accessor address outside the fetched window.
var ErrOutOfRange = errors.New("register address out of window")

// Window is a contiguous block of 16-bit registers anchored at the absolute
// address of its first register. The zero value is an empty window; use
// NewWindow. A Window is immutable after construction and safe for
// concurrent reads.
type Window struct {
	regs  []uint16
	start uint16
}

// NewWindow creates a window over regs starting at absolute address start.
// The register slice is copied so later mutation of regs cannot affect the
// window.
func NewWindow(regs []uint16, start uint16) *Window {
	w := &Window{
		regs:  make([]uint16, len(regs)),
		start: start,
	}
	copy(w.regs, regs)
	return w
}

// Start returns the absolute address of the first register.
func (w *Window) Start() uint16 {
	return w.start
}

// Len returns the number of registers in the window.
func (w *Window) Len() int {
	return len(w.regs)
}

// offset converts an absolute address spanning count registers into a local
// index, checking that the whole span lies inside the window.
func (w *Window) offset(addr uint16, count int) (int, error) {
	idx := int(addr) - int(w.start)
	if idx < 0 || idx+count > len(w.regs) {
		return 0, fmt.Errorf("%w: address %d span %d, window [%d, %d)",
			ErrOutOfRange, addr, count, w.start, int(w.start)+len(w.regs))
	}
	return idx, nil
}

// Uint16 returns the register at addr as an unsigned 16-bit value.
func (w *Window) Uint16(addr uint16) (uint16, error) {
	idx, err := w.offset(addr, 1)
	if err != nil {
		return 0, err
	}
	return w.regs[idx], nil
}

// Int16 returns the register at addr as a two's-complement signed value.
func (w *Window) Int16(addr uint16) (int16, error) {
	v, err := w.Uint16(addr)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

// Uint32 combines the registers at addr and addr+1, high register first,
// into an unsigned 32-bit value.
func (w *Window) Uint32(addr uint16) (uint32, error) {
	idx, err := w.offset(addr, 2)
	if err != nil {
		return 0, err
	}
	return uint32(w.regs[idx])<<16 | uint32(w.regs[idx+1]), nil
}

// T5 decodes the register pair at addr as the vendor t5 floating point
// format: the two registers concatenated (first register = most significant
// 16 bits) and reinterpreted as IEEE-754 binary32.
func (w *Window) T5(addr uint16) (float64, error) {
	bits, err := w.Uint32(addr)
	if err != nil {
		return 0, err
	}
	return float64(math.Float32frombits(bits)), nil
}

// T6 decodes the register pair at addr as the vendor t6 format. The bit
// layout is identical to t5; the separate accessor mirrors the register map,
// which uses t6 for signed power quantities.
func (w *Window) T6(addr uint16) (float64, error) {
	return w.T5(addr)
}

// T7Value is a t7 decode result: a t5-encoded value plus a validity flag.
// The reserved all-ones exponent patterns (NaN and infinities) mark a
// reading the meter could not produce.
type T7Value struct {
	Value float64
	Valid bool
}

// T7 decodes the register pair at addr as the vendor t7 format.
func (w *Window) T7(addr uint16) (T7Value, error) {
	bits, err := w.Uint32(addr)
	if err != nil {
		return T7Value{}, err
	}
	f := float64(math.Float32frombits(bits))
	return T7Value{
		Value: f,
		Valid: !math.IsNaN(f) && !math.IsInf(f, 0),
	}, nil
}

// String decodes count registers starting at addr as a packed ASCII string,
// two bytes per register (high byte first), cut at the first NUL and trimmed
// of surrounding whitespace.
func (w *Window) String(addr uint16, count int) (string, error) {
	idx, err := w.offset(addr, count)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(count * 2)
	for _, reg := range w.regs[idx : idx+count] {
		b.WriteByte(byte(reg >> 8))
		b.WriteByte(byte(reg))
	}

	s := b.String()
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s), nil
}

// Timestamp decodes the register pair at addr as 32-bit Unix epoch seconds.
func (w *Window) Timestamp(addr uint16) (time.Time, error) {
	secs, err := w.Uint32(addr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(int64(secs), 0).UTC(), nil
}
