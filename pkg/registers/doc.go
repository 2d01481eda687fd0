// Package registers decodes raw Modbus register windows into typed values.
//
// A Window is a contiguous block of 16-bit registers read from a meter in a
// single request, anchored at the absolute address of its first register.
// Accessors take absolute register addresses so decode recipes can be written
// directly against the published register map:
//
//	w := registers.NewWindow(regs, 100)
//	freq, err := w.T5(105) // IEEE-754 pair at registers 105..106
//
// # Encodings
//
// Multi-register quantities are transmitted high register first. The t5/t6/t7
// encodings are the vendor's 32-bit floating point formats: two registers
// concatenated (first register = upper 16 bits) and reinterpreted as IEEE-754
// binary32. t6 is bit-identical to t5 but names power quantities; t7 carries
// an additional validity flag derived from the reserved NaN/Inf bit patterns.
// Strings pack two ASCII bytes per register (high byte first) and terminate
// at the first NUL. Timestamps are 32-bit Unix epoch seconds.
//
// All accessors are pure: they never mutate the window, and an address
// outside [Start, Start+Len) fails with ErrOutOfRange rather than returning
// garbage. Such a failure indicates a register-map/model mismatch and should
// be treated as a bug, not retried.
package registers
