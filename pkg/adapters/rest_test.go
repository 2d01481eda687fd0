package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskramis/iskra-go/pkg/log"
)

func newRestServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "iskra" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, found := routes[r.URL.Path]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRestAdapter(srv *httptest.Server) *RestAdapter {
	return NewRest(RestConfig{
		Endpoint: srv.URL,
		Auth:     Auth{Username: "admin", Password: "iskra"},
	})
}

func TestRestBasicInfo(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/info": `{"model":"IE38 1.1","serial":"IS123456","description":"Main feed","location":"Cabinet 3","sw_version":2.05}`,
	})
	a := newRestAdapter(srv)
	defer a.Close()

	info, err := a.BasicInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "IE38 1.1", info.Model)
	assert.Equal(t, "IS123456", info.Serial)
	assert.InDelta(t, 2.05, info.SWVersion, 1e-9)
	assert.False(t, a.Gateway())
	assert.Empty(t, a.Children())
}

func TestRestGatewayChildren(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/info": `{"model":"SG-W1","serial":"SG000001","gateway":true,
			"children":[{"index":0,"model":"IE38","serial":"IS111111"},{"index":1,"model":"IE14","serial":"IS222222"}]}`,
		"/api/v1/devices/1/measurements": `{"frequency":{"value":50.02,"units":"Hz"}}`,
	})
	a := newRestAdapter(srv)
	defer a.Close()

	_, err := a.BasicInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, a.Gateway())

	children := a.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "IS222222", children[1].Serial)

	child := a.ChildAdapter(1)
	m, err := child.Measurements(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 50.02, m.Frequency.Value, 1e-9)
}

func TestRestMeasurements(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/measurements": `{
			"frequency":{"value":49.98,"units":"Hz"},
			"temperature":{"value":31.5,"units":"C"},
			"phases":[{"voltage":{"value":230.1,"units":"V"},"current":{"value":1.2,"units":"A"}}]
		}`,
	})
	a := newRestAdapter(srv)
	defer a.Close()

	m, err := a.Measurements(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 49.98, m.Frequency.Value, 1e-9)
	require.Len(t, m.Phases, 1)
	assert.Equal(t, "V", m.Phases[0].Voltage.Units)
}

func TestRestCounters(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/counters": `{
			"non_resettable":[{"value":1523.7,"units":"kWh","direction":"import","type":"active_import"}],
			"resettable":[{"value":12.3,"units":"kvarh","direction":"export","type":"reactive_export"}]
		}`,
	})
	a := newRestAdapter(srv)
	defer a.Close()

	c, err := a.Counters(context.Background())
	require.NoError(t, err)
	require.Len(t, c.NonResettable, 1)
	assert.InDelta(t, 1523.7, c.NonResettable[0].Value, 1e-9)
	require.Len(t, c.Resettable, 1)
	assert.Equal(t, "reactive_export", string(c.Resettable[0].Type))
}

func TestRestTimeBlocksSupported(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/time-blocks/supported": `{"supported":true}`,
	})
	a := newRestAdapter(srv)
	defer a.Close()

	ok, err := a.TimeBlocksSupported(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/info":
			w.WriteHeader(http.StatusUnauthorized)
		case "/api/v1/measurements":
			w.WriteHeader(http.StatusNotFound)
		case "/api/v1/counters":
			w.WriteHeader(http.StatusInternalServerError)
		case "/api/v1/time-blocks":
			w.Write([]byte(`{broken`))
		}
	}))
	defer srv.Close()

	a := NewRest(RestConfig{Endpoint: srv.URL})
	defer a.Close()

	ctx := context.Background()

	_, err := a.BasicInfo(ctx)
	assert.ErrorIs(t, err, ErrNotAuthorised)

	_, err = a.Measurements(ctx)
	assert.ErrorIs(t, err, ErrProtocolNotSupported)

	_, err = a.Counters(ctx)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = a.TimeBlocks(ctx)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestRestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	a := NewRest(RestConfig{Endpoint: srv.URL})
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.Measurements(ctx)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestRestEvents(t *testing.T) {
	srv := newRestServer(t, map[string]string{
		"/api/v1/measurements": `{}`,
	})
	events := &captureLogger{}
	a := NewRest(RestConfig{
		Endpoint: srv.URL,
		Auth:     Auth{Username: "admin", Password: "iskra"},
		Events:   events,
	})
	defer a.Close()

	_, err := a.Measurements(context.Background())
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	e := events.events[0]
	assert.Equal(t, log.EventRESTCall, e.Type)
	assert.Equal(t, log.AdapterREST, e.Adapter)
	require.NotNil(t, e.REST)
	assert.Equal(t, "/api/v1/measurements", e.REST.Path)
	assert.Equal(t, http.StatusOK, e.REST.Status)
}
