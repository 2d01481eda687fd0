package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iskramis/iskra-go/pkg/log"
	"github.com/iskramis/iskra-go/pkg/types"
)

// DefaultRestTimeout bounds each REST exchange.
const DefaultRestTimeout = 10 * time.Second

// restBasePath is the API root on the meter's web server.
const restBasePath = "/api/v1"

// RestConfig configures a REST adapter.
type RestConfig struct {
	// Endpoint is the device base URL, e.g. "http://10.0.0.5".
	Endpoint string

	// Auth are the HTTP basic-auth credentials.
	Auth Auth

	// Timeout bounds each exchange. Defaults to DefaultRestTimeout.
	Timeout time.Duration

	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client

	// Logger for debug output (optional).
	Logger *slog.Logger

	// Events receives structured transport events (optional).
	Events log.Logger
}

// ChildInfo describes one child device behind a gateway.
type ChildInfo struct {
	Index  int    `json:"index"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
}

// restInfo is the wire shape of the info endpoint. Gateways additionally
// enumerate their children.
type restInfo struct {
	types.BasicInfo
	Gateway  bool        `json:"gateway,omitempty"`
	Children []ChildInfo `json:"children,omitempty"`
}

// restSupported is the wire shape of the time-block capability probe.
type restSupported struct {
	Supported bool `json:"supported"`
}

// RestAdapter fetches already-decoded snapshots from a meter's (or
// gateway's) web API. It is a pure pass-through: no register math happens
// on this side.
type RestAdapter struct {
	endpoint string
	basePath string
	auth     Auth
	client   *http.Client
	logger   *slog.Logger
	events   log.Logger

	mu       sync.Mutex
	gateway  bool
	children []ChildInfo
}

// NewRest creates a REST adapter for the device at cfg.Endpoint.
func NewRest(cfg RestConfig) *RestAdapter {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultRestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events := cfg.Events
	if events == nil {
		events = log.NoopLogger{}
	}
	return &RestAdapter{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		basePath: restBasePath,
		auth:     cfg.Auth,
		client:   client,
		logger:   logger,
		events:   events,
	}
}

// Endpoint returns the device base URL.
func (a *RestAdapter) Endpoint() string {
	return a.endpoint
}

// BasicInfo fetches the device identity. For gateways it also records the
// child descriptors, available through Children afterwards.
func (a *RestAdapter) BasicInfo(ctx context.Context) (types.BasicInfo, error) {
	var info restInfo
	if err := a.getJSON(ctx, "/info", &info); err != nil {
		return types.BasicInfo{}, err
	}

	a.mu.Lock()
	a.gateway = info.Gateway
	a.children = info.Children
	a.mu.Unlock()

	return info.BasicInfo, nil
}

// Gateway reports whether the last BasicInfo identified a gateway.
func (a *RestAdapter) Gateway() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gateway
}

// Children returns the child descriptors recorded by the last BasicInfo.
func (a *RestAdapter) Children() []ChildInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ChildInfo, len(a.children))
	copy(out, a.children)
	return out
}

// ChildAdapter derives an adapter for the child device at the given index.
// The child shares endpoint and credentials but no mutable state with the
// parent.
func (a *RestAdapter) ChildAdapter(index int) *RestAdapter {
	return &RestAdapter{
		endpoint: a.endpoint,
		basePath: fmt.Sprintf("%s/devices/%d", restBasePath, index),
		auth:     a.auth,
		client:   a.client,
		logger:   a.logger,
		events:   a.events,
	}
}

// Measurements fetches the current measurement snapshot.
func (a *RestAdapter) Measurements(ctx context.Context) (*types.Measurements, error) {
	var m types.Measurements
	if err := a.getJSON(ctx, "/measurements", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Counters fetches the current counter snapshot.
func (a *RestAdapter) Counters(ctx context.Context) (*types.Counters, error) {
	var c types.Counters
	if err := a.getJSON(ctx, "/counters", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// TimeBlocks fetches the current time-block snapshot.
func (a *RestAdapter) TimeBlocks(ctx context.Context) (*types.TimeBlockMeasurements, error) {
	var tb types.TimeBlockMeasurements
	if err := a.getJSON(ctx, "/time-blocks", &tb); err != nil {
		return nil, err
	}
	return &tb, nil
}

// TimeBlocksSupported reports whether the device exposes time-block
// accounting.
func (a *RestAdapter) TimeBlocksSupported(ctx context.Context) (bool, error) {
	var s restSupported
	if err := a.getJSON(ctx, "/time-blocks/supported", &s); err != nil {
		return false, err
	}
	return s.Supported, nil
}

// Close releases idle connections held by the HTTP client.
func (a *RestAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// getJSON performs one authenticated GET and decodes the JSON body into v.
func (a *RestAdapter) getJSON(ctx context.Context, path string, v any) error {
	url := a.endpoint + a.basePath + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.SetBasicAuth(a.auth.Username, a.auth.Password)
	req.Header.Set("Accept", "application/json")

	began := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: GET %s: %v", ErrTimeout, url, err)
		}
		return fmt.Errorf("%w: GET %s: %v", ErrConnection, url, err)
	}
	defer resp.Body.Close()

	a.events.Log(log.Event{
		Timestamp: time.Now(),
		Type:      log.EventRESTCall,
		Adapter:   log.AdapterREST,
		Target:    a.endpoint,
		REST: &log.RESTCallEvent{
			Method:   http.MethodGet,
			Path:     a.basePath + path,
			Status:   resp.StatusCode,
			Duration: time.Since(began),
		},
	})

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: GET %s: status %d", ErrNotAuthorised, url, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s: status %d", ErrProtocolNotSupported, url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: GET %s: status %d", ErrInvalidResponse, url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: GET %s: decode: %v", ErrInvalidResponse, url, err)
	}
	return nil
}

// Compile-time interface satisfaction check.
var _ SnapshotReader = (*RestAdapter)(nil)
