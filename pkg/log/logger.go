package log

// Logger receives meter events from adapters and devices. Log runs inline
// on the update path, so implementations must tolerate concurrent calls
// and slow sinks should queue instead of block.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. It is the sink devices fall back to when
// no event capture is configured.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

var _ Logger = NoopLogger{}
