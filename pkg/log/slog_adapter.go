package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes meter events to an slog.Logger.
// Useful for development when you want to see exchanges in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("type", event.Type.String()),
		slog.String("adapter", event.Adapter.String()),
	}

	// Add optional identifiers
	if event.Target != "" {
		attrs = append(attrs, slog.String("target", event.Target))
	}
	if event.Model != "" {
		attrs = append(attrs, slog.String("model", event.Model))
	}
	if event.Serial != "" {
		attrs = append(attrs, slog.String("serial", event.Serial))
	}

	// Add type-specific attributes
	switch {
	case event.Registers != nil:
		attrs = append(attrs,
			slog.String("table", event.Registers.Table.String()),
			slog.Uint64("start", uint64(event.Registers.Start)),
			slog.Uint64("count", uint64(event.Registers.Count)),
		)
		if event.Registers.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Registers.Duration))
		}
	case event.REST != nil:
		attrs = append(attrs,
			slog.String("method", event.REST.Method),
			slog.String("path", event.REST.Path),
			slog.Int("status", event.REST.Status),
		)
		if event.REST.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.REST.Duration))
		}
	case event.Update != nil:
		if len(event.Update.Categories) > 0 {
			attrs = append(attrs, slog.Any("categories", event.Update.Categories))
		}
		if event.Update.Duration > 0 {
			attrs = append(attrs, slog.Duration("duration", event.Update.Duration))
		}
		if event.Update.Coalesced {
			attrs = append(attrs, slog.Bool("coalesced", true))
		}
	case event.Error != nil:
		attrs = append(attrs, slog.String("error_msg", event.Error.Message))
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "meter", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
