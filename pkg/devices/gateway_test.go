package devices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskramis/iskra-go/internal/testharness/mock"
	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/types"
)

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/api/v1/info": `{"model":"SG-W1","serial":"SG000001","gateway":true,
			"children":[{"index":0,"model":"IE38 1.1","serial":"IS111111"},{"index":1,"model":"IE14","serial":"IS222222"}]}`,
		"/api/v1/measurements":          `{"frequency":{"value":50.0,"units":"Hz"}}`,
		"/api/v1/counters":              `{"non_resettable":[],"resettable":[]}`,
		"/api/v1/time-blocks/supported": `{"supported":false}`,

		"/api/v1/devices/0/info":                  `{"model":"IE38 1.1","serial":"IS111111"}`,
		"/api/v1/devices/0/measurements":          `{"frequency":{"value":49.97,"units":"Hz"}}`,
		"/api/v1/devices/0/counters":              `{"non_resettable":[{"value":10.5,"units":"kWh","direction":"import","type":"active_import"}]}`,
		"/api/v1/devices/0/time-blocks/supported": `{"supported":true}`,
		"/api/v1/devices/0/time-blocks":           `{"active_block_index":{"value":3}}`,

		"/api/v1/devices/1/info":                  `{"model":"IE14","serial":"IS222222"}`,
		"/api/v1/devices/1/measurements":          `{"frequency":{"value":50.01,"units":"Hz"}}`,
		"/api/v1/devices/1/counters":              `{}`,
		"/api/v1/devices/1/time-blocks/supported": `{"supported":false}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSmartGatewayInit(t *testing.T) {
	srv := newGatewayServer(t)
	a := adapters.NewRest(adapters.RestConfig{Endpoint: srv.URL})

	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	defer dev.Close()

	gw, ok := dev.(*SmartGateway)
	require.True(t, ok)
	assert.True(t, gw.IsGateway())
	assert.Equal(t, "SG000001", gw.Serial())
	assert.False(t, gw.SupportsTimeBlocks())

	require.NotNil(t, gw.Measurements())
	assert.InDelta(t, 50.0, gw.Measurements().Frequency.Value, 1e-9)
	assert.Nil(t, gw.TimeBlocks())
	assert.False(t, gw.UpdateTimestamp().IsZero())
}

func TestSmartGatewayChildren(t *testing.T) {
	srv := newGatewayServer(t)
	a := adapters.NewRest(adapters.RestConfig{Endpoint: srv.URL})

	dev, err := CreateDevice(context.Background(), a)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	defer dev.Close()

	children := dev.ChildDevices()
	require.Len(t, children, 2)

	first := children[0]
	assert.Equal(t, "IE38 1.1", first.Model())
	assert.Equal(t, "IS111111", first.Serial())
	assert.False(t, first.IsGateway())
	assert.True(t, first.SupportsTimeBlocks())
	require.NotNil(t, first.Measurements())
	assert.InDelta(t, 49.97, first.Measurements().Frequency.Value, 1e-9)
	require.NotNil(t, first.Counters())
	require.Len(t, first.Counters().NonResettable, 1)
	require.NotNil(t, first.TimeBlocks())
	assert.InDelta(t, 3, first.TimeBlocks().ActiveBlockIndex.Value, 1e-9)

	second := children[1]
	assert.Equal(t, "IS222222", second.Serial())
	assert.False(t, second.SupportsTimeBlocks())
	assert.Nil(t, second.TimeBlocks())
}

func TestSmartGatewayRequiresRestAdapter(t *testing.T) {
	// A gateway model behind a register adapter cannot enumerate
	// children.
	a := mock.NewAdapter(types.BasicInfo{Model: "SG-W1", Serial: "SG000002"})
	dev, err := CreateDevice(context.Background(), a)
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.Nil(t, dev)
}
