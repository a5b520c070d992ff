package events

import "sync"

// GlobalProjectID subscribes to the events of every project.
const GlobalProjectID = "*"

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 100

// Publisher fans queue events out to per-project subscribers.
type Publisher interface {
	Publish(event Event)
	// Subscribe returns a channel of events for projectID, or for every
	// project when projectID is GlobalProjectID.
	Subscribe(projectID string) <-chan Event
	// Unsubscribe closes ch and stops delivery to it.
	Unsubscribe(projectID string, ch <-chan Event)
	Close()
}

// MemoryPublisher is the in-process Publisher. Delivery never blocks: a
// subscriber whose buffer is full misses the event.
type MemoryPublisher struct {
	mu     sync.RWMutex
	subs   map[string]map[<-chan Event]chan Event
	buffer int
	closed bool
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the channel capacity of new subscriptions.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) { p.buffer = size }
}

// NewMemoryPublisher creates an empty publisher.
func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{
		subs:   make(map[string]map[<-chan Event]chan Event),
		buffer: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	deliver(p.subs[event.ProjectID], event)
	if event.ProjectID != GlobalProjectID {
		deliver(p.subs[GlobalProjectID], event)
	}
}

func deliver(set map[<-chan Event]chan Event, event Event) {
	for _, ch := range set {
		select {
		case ch <- event:
		default:
		}
	}
}

func (p *MemoryPublisher) Subscribe(projectID string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return closedChan()
	}

	ch := make(chan Event, p.buffer)
	set, ok := p.subs[projectID]
	if !ok {
		set = make(map[<-chan Event]chan Event)
		p.subs[projectID] = set
	}
	set[ch] = ch
	return ch
}

func (p *MemoryPublisher) Unsubscribe(projectID string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.subs[projectID]
	if send, ok := set[ch]; ok {
		delete(set, ch)
		close(send)
	}
	if len(set) == 0 {
		delete(p.subs, projectID)
	}
}

// Close closes every subscription. Later Subscribe calls get a closed
// channel and Publish becomes a no-op.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	for _, set := range p.subs {
		for _, send := range set {
			close(send)
		}
	}
	p.subs = nil
}

// SubscriberCount returns the number of live subscriptions for projectID.
func (p *MemoryPublisher) SubscriberCount(projectID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs[projectID])
}

func closedChan() <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}
