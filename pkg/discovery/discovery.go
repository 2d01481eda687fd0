package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/iskramis/iskra-go/pkg/log"
)

const (
	// DefaultPort is the UDP port the meters listen on.
	DefaultPort = 33333

	// DefaultTimeout is the reply listen window.
	DefaultTimeout = 3 * time.Second

	maxReplySize = 512
)

// probePayload is the fixed discovery datagram the meters answer to.
var probePayload = []byte("ISKRA")

// DiscoveredDevice is one discovery reply.
type DiscoveredDevice struct {
	// IPAddress is the replying device's address.
	IPAddress string

	// Model and Serial identify the device.
	Model  string
	Serial string

	// ModbusAddress is the device's Modbus unit address, for reaching it
	// over Modbus TCP instead of REST.
	ModbusAddress byte
}

// Config configures a Discovery.
type Config struct {
	// Port overrides the device listen port. Defaults to DefaultPort.
	Port int

	// Timeout is the reply listen window. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for debug output (optional).
	Logger *slog.Logger

	// Events receives a DeviceDiscovered event per reply (optional).
	Events log.Logger
}

// Discovery probes broadcast domains for meters.
type Discovery struct {
	port    int
	timeout time.Duration
	logger  *slog.Logger
	events  log.Logger
}

// New creates a Discovery.
func New(cfg Config) *Discovery {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events := cfg.Events
	if events == nil {
		events = log.NoopLogger{}
	}
	return &Discovery{port: port, timeout: timeout, logger: logger, events: events}
}

// Discover sends the probe to every broadcast address and collects replies
// until the listen window closes or ctx is cancelled. Addresses may carry
// an explicit ":port"; otherwise the configured port is appended.
// Duplicate replies (same address and serial) collapse to one entry.
func (d *Discovery) Discover(ctx context.Context, broadcastAddrs ...string) ([]DiscoveredDevice, error) {
	if len(broadcastAddrs) == 0 {
		return nil, errors.New("no broadcast addresses given")
	}

	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	for _, addr := range broadcastAddrs {
		if !strings.Contains(addr, ":") {
			addr = fmt.Sprintf("%s:%d", addr, d.port)
		}
		dst, err := net.ResolveUDPAddr("udp4", addr)
		if err != nil {
			return nil, fmt.Errorf("resolve broadcast address %q: %w", addr, err)
		}
		if _, err := conn.WriteTo(probePayload, dst); err != nil {
			return nil, fmt.Errorf("send probe to %s: %w", addr, err)
		}
		d.logger.Debug("sent discovery probe", "addr", addr)
	}

	deadline := time.Now().Add(d.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)

	// Cancellation unblocks the read by expiring the deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	seen := make(map[string]struct{})
	var devices []DiscoveredDevice
	buf := make([]byte, maxReplySize)

	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return devices, ctxErr
				}
				return devices, nil
			}
			return devices, fmt.Errorf("read discovery reply: %w", err)
		}

		dev, err := parseReply(buf[:n], from)
		if err != nil {
			d.logger.Debug("ignoring malformed discovery reply", "from", from, "err", err)
			continue
		}

		key := dev.IPAddress + "|" + dev.Serial
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		devices = append(devices, dev)

		d.logger.Debug("discovered device", "model", dev.Model, "serial", dev.Serial, "ip", dev.IPAddress)
		d.events.Log(log.Event{
			Timestamp: time.Now(),
			Type:      log.EventDeviceDiscovered,
			Target:    dev.IPAddress,
			Model:     dev.Model,
			Serial:    dev.Serial,
		})
	}
}

// parseReply decodes one reply datagram: model and serial as NUL-terminated
// strings, then the Modbus unit address byte.
func parseReply(data []byte, from net.Addr) (DiscoveredDevice, error) {
	parts := bytes.SplitN(data, []byte{0}, 3)
	if len(parts) != 3 || len(parts[2]) < 1 {
		return DiscoveredDevice{}, errors.New("short reply")
	}
	model := strings.TrimSpace(string(parts[0]))
	serial := strings.TrimSpace(string(parts[1]))
	if model == "" || serial == "" {
		return DiscoveredDevice{}, errors.New("empty model or serial")
	}

	ip := from.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	return DiscoveredDevice{
		IPAddress:     ip,
		Model:         model,
		Serial:        serial,
		ModbusAddress: parts[2][0],
	}, nil
}
