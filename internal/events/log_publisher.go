package events

import (
	"context"
	"log/slog"
)

// LogPublisher logs every event and fans it out to an inner publisher,
// typically the MemoryPublisher backing the websocket stream.
type LogPublisher struct {
	inner  Publisher
	logger *slog.Logger
	level  slog.Level
}

// LogPublisherOption configures a LogPublisher.
type LogPublisherOption func(*LogPublisher)

// WithInnerPublisher sets an inner publisher to fan out events to.
func WithInnerPublisher(p Publisher) LogPublisherOption {
	return func(l *LogPublisher) {
		l.inner = p
	}
}

// WithLogLevel sets the level events are logged at. Defaults to Info.
func WithLogLevel(level slog.Level) LogPublisherOption {
	return func(l *LogPublisher) {
		l.level = level
	}
}

// NewLogPublisher creates a publisher that logs events to logger.
func NewLogPublisher(logger *slog.Logger, opts ...LogPublisherOption) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &LogPublisher{
		logger: logger,
		level:  slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish logs the event and forwards it to the inner publisher.
func (p *LogPublisher) Publish(event Event) {
	if p.inner != nil {
		p.inner.Publish(event)
	}

	attrs := []any{"type", string(event.Type), "project", event.ProjectID}
	if event.TaskID != "" {
		attrs = append(attrs, "task", event.TaskID)
	}
	switch d := event.Data.(type) {
	case ApprovalData:
		attrs = append(attrs, "approved", d.Approved)
	case MoveData:
		attrs = append(attrs, "placement", d.Placement, "from", d.From, "to", d.To)
		if d.Renumbered {
			attrs = append(attrs, "renumbered", true)
		}
	case RenumberData:
		attrs = append(attrs, "entries", d.Entries)
	}
	p.logger.Log(context.Background(), p.level, "queue event", attrs...)
}

// Subscribe delegates to inner publisher or returns closed channel.
func (p *LogPublisher) Subscribe(projectID string) <-chan Event {
	if p.inner != nil {
		return p.inner.Subscribe(projectID)
	}
	return closedChan()
}

// Unsubscribe delegates to inner publisher.
func (p *LogPublisher) Unsubscribe(projectID string, ch <-chan Event) {
	if p.inner != nil {
		p.inner.Unsubscribe(projectID, ch)
	}
}

// Close delegates to inner publisher.
func (p *LogPublisher) Close() {
	if p.inner != nil {
		p.inner.Close()
	}
}
