// Package discovery finds meters on the local network via the vendor's
// UDP broadcast protocol.
//
// A probe datagram is sent to one or more broadcast addresses on port
// 33333; every listening device answers with its model, serial number and
// Modbus unit address. Replies are collected for a fixed listen window and
// deduplicated, so overlapping broadcast domains do not produce double
// entries.
package discovery
