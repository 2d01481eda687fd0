package log

// MultiLogger fans one event out to several sinks, typically a console
// SlogAdapter next to a FileLogger capture.
type MultiLogger []Logger

// NewMultiLogger combines sinks into a single Logger. Events are
// delivered in argument order.
func NewMultiLogger(sinks ...Logger) MultiLogger {
	return MultiLogger(sinks)
}

// Log delivers the event to every sink.
func (m MultiLogger) Log(event Event) {
	for _, sink := range m {
		sink.Log(event)
	}
}

var _ Logger = MultiLogger(nil)
