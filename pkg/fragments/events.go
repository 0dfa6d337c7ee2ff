package fragments

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) FragmentCreated(ctx context.Context, fragment *Fragment) error {
	return nil
}

func (n *NoopEventSink) FragmentUpdated(ctx context.Context, fragment *Fragment) error {
	return nil
}

func (n *NoopEventSink) FragmentDeleted(ctx context.Context, ownerID, id string) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default.
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) FragmentCreated(ctx context.Context, fragment *Fragment) error {
	l.logger.InfoContext(ctx, "Fragment created", "id", fragment.ID, "owner_id", fragment.OwnerID, "type", fragment.Type, "size", fragment.Size)
	return nil
}

func (l *LoggingEventSink) FragmentUpdated(ctx context.Context, fragment *Fragment) error {
	l.logger.InfoContext(ctx, "Fragment updated", "id", fragment.ID, "owner_id", fragment.OwnerID, "size", fragment.Size)
	return nil
}

func (l *LoggingEventSink) FragmentDeleted(ctx context.Context, ownerID, id string) error {
	l.logger.InfoContext(ctx, "Fragment deleted", "id", id, "owner_id", ownerID)
	return nil
}
