package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMeter answers every probe on a loopback UDP socket with the given
// reply, repeated count times.
func fakeMeter(t *testing.T, reply []byte, count int) string {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if string(buf[:n]) != string(probePayload) {
				continue
			}
			for i := 0; i < count; i++ {
				conn.WriteTo(reply, from)
			}
		}
	}()
	return conn.LocalAddr().String()
}

func meterReply(model, serial string, unit byte) []byte {
	out := append([]byte(model), 0)
	out = append(out, []byte(serial)...)
	out = append(out, 0, unit)
	return out
}

func TestDiscoverFindsDevice(t *testing.T) {
	addr := fakeMeter(t, meterReply("IE38 1.1", "IS123456", 33), 1)

	d := New(Config{Timeout: 300 * time.Millisecond})
	devices, err := d.Discover(context.Background(), addr)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	dev := devices[0]
	assert.Equal(t, "127.0.0.1", dev.IPAddress)
	assert.Equal(t, "IE38 1.1", dev.Model)
	assert.Equal(t, "IS123456", dev.Serial)
	assert.Equal(t, byte(33), dev.ModbusAddress)
}

func TestDiscoverDeduplicatesReplies(t *testing.T) {
	addr := fakeMeter(t, meterReply("IE14", "IS777777", 34), 3)

	d := New(Config{Timeout: 300 * time.Millisecond})
	devices, err := d.Discover(context.Background(), addr)
	require.NoError(t, err)
	assert.Len(t, devices, 1)
}

func TestDiscoverIgnoresMalformedReplies(t *testing.T) {
	addr := fakeMeter(t, []byte("garbage"), 1)

	d := New(Config{Timeout: 200 * time.Millisecond})
	devices, err := d.Discover(context.Background(), addr)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDiscoverNoAddresses(t *testing.T) {
	d := New(Config{})
	_, err := d.Discover(context.Background())
	assert.Error(t, err)
}

func TestDiscoverContextCancel(t *testing.T) {
	addr := fakeMeter(t, meterReply("IE38", "IS000001", 33), 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	d := New(Config{Timeout: 5 * time.Second})
	began := time.Now()
	devices, err := d.Discover(ctx, addr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(began), time.Second)
	// The reply collected before cancellation is still returned.
	assert.Len(t, devices, 1)
}

func TestParseReply(t *testing.T) {
	from := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 33333}

	dev, err := parseReply(meterReply("IE35", "IS424242", 40), from)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", dev.IPAddress)
	assert.Equal(t, byte(40), dev.ModbusAddress)

	_, err = parseReply([]byte("IE35"), from)
	assert.Error(t, err)

	_, err = parseReply([]byte{0, 0, 33}, from)
	assert.Error(t, err)
}
