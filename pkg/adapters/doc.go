// Package adapters implements the transport adapters a Device talks through.
//
// Two structurally different transports serve the same device model:
//
//	ModbusAdapter reads raw register windows over RTU or TCP; the device
//	library decodes them itself (see pkg/registers).
//
//	RestAdapter talks HTTP/JSON to a meter's (or gateway's) web API;
//	decoding happens server-side, so reads return finished value objects.
//
// Both satisfy Adapter; the transport-specific capabilities are split into
// RegisterReader and SnapshotReader so device code can branch on a
// capability check instead of a concrete type.
//
// # Connection handling
//
// ModbusAdapter auto-connects: a read on a closed adapter opens its own
// connection and closes it afterwards, while reads inside an explicitly
// opened connection reuse it. A status update therefore connects once for
// its whole read sequence, and a standalone read stays self-contained.
// The adapter is not safe for two concurrent update flows; the device
// update lock is the connection-ownership guard.
package adapters
