// Package devices models the supported meter family and drives the
// snapshot update cycle.
//
// CreateDevice inspects the adapter's identity registers (or REST info
// endpoint) and constructs the matching device type: Impact for the
// IE38/IE35/IE14 energy meters, SmartGateway for SG gateways fronting a
// set of child meters. Devices cache their last snapshot; UpdateStatus
// refreshes it, coalescing concurrent callers into a single transport
// sequence.
package devices
