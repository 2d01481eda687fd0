package mock

import (
	"context"
	"sync"

	"github.com/iskramis/iskra-go/pkg/adapters"
	"github.com/iskramis/iskra-go/pkg/types"
)

// Snapshot is a scripted SnapshotReader serving canned payloads.
type Snapshot struct {
	// Info is returned by BasicInfo.
	Info types.BasicInfo

	// Canned payloads.
	MeasurementsData types.Measurements
	CountersData     types.Counters
	TimeBlocksData   types.TimeBlockMeasurements
	Supported        bool

	// Errs fail the matching call when set.
	InfoErr         error
	MeasurementsErr error
	CountersErr     error
	TimeBlocksErr   error
	SupportedErr    error

	mu    sync.Mutex
	calls map[string]int
}

// NewSnapshot creates a scripted snapshot reader.
func NewSnapshot(info types.BasicInfo) *Snapshot {
	return &Snapshot{Info: info, calls: make(map[string]int)}
}

func (s *Snapshot) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

// Calls returns how often the named method was invoked.
func (s *Snapshot) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// BasicInfo returns the scripted identity.
func (s *Snapshot) BasicInfo(ctx context.Context) (types.BasicInfo, error) {
	s.record("BasicInfo")
	if s.InfoErr != nil {
		return types.BasicInfo{}, s.InfoErr
	}
	return s.Info, nil
}

// Measurements returns the canned measurement snapshot.
func (s *Snapshot) Measurements(ctx context.Context) (*types.Measurements, error) {
	s.record("Measurements")
	if s.MeasurementsErr != nil {
		return nil, s.MeasurementsErr
	}
	m := s.MeasurementsData
	return &m, nil
}

// Counters returns the canned counter snapshot.
func (s *Snapshot) Counters(ctx context.Context) (*types.Counters, error) {
	s.record("Counters")
	if s.CountersErr != nil {
		return nil, s.CountersErr
	}
	c := s.CountersData
	return &c, nil
}

// TimeBlocks returns the canned time block snapshot.
func (s *Snapshot) TimeBlocks(ctx context.Context) (*types.TimeBlockMeasurements, error) {
	s.record("TimeBlocks")
	if s.TimeBlocksErr != nil {
		return nil, s.TimeBlocksErr
	}
	tb := s.TimeBlocksData
	return &tb, nil
}

// TimeBlocksSupported reports the canned support flag.
func (s *Snapshot) TimeBlocksSupported(ctx context.Context) (bool, error) {
	s.record("TimeBlocksSupported")
	if s.SupportedErr != nil {
		return false, s.SupportedErr
	}
	return s.Supported, nil
}

// Close is a no-op.
func (s *Snapshot) Close() error { return nil }

var _ adapters.SnapshotReader = (*Snapshot)(nil)
