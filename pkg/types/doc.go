// Package types defines the value objects produced by meter reads.
//
// # Structure
//
// A status refresh yields up to three snapshot categories:
//
//	Measurements           per-phase and total electrical quantities
//	Counters               accumulated energy registers
//	TimeBlockMeasurements  tariff time-of-use accounting
//
// Measurement is the atomic unit: a numeric value plus its unit string.
// PhaseMeasurements groups one phase's quantities; three-phase meters carry
// three entries, single-phase meters one. Counters split into non-resettable
// (lifetime) and resettable (billing period) sequences whose lengths are
// fixed per model by the parameter table.
//
// All value objects are plain data, immutable by convention once returned,
// and safe to share across goroutines.
package types
