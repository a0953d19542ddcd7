package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

const DefaultBuffer = 256

// Queue is a subscriber backed by a bounded channel. The consumer reads
// Events until Done is closed.
type Queue struct {
	id     string
	viewer domain.Viewer
	ch     chan domain.Event

	once sync.Once
	done chan struct{}
}

var _ ports.Subscriber = (*Queue)(nil)

// NewQueue creates a subscriber for viewer. buffer <= 0 uses DefaultBuffer.
func NewQueue(viewer domain.Viewer, buffer int) *Queue {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Queue{
		id:     uuid.NewString(),
		viewer: viewer,
		ch:     make(chan domain.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (q *Queue) ID() string                  { return q.id }
func (q *Queue) Viewer() domain.Viewer       { return q.viewer }
func (q *Queue) Events() <-chan domain.Event { return q.ch }
func (q *Queue) Done() <-chan struct{}       { return q.done }

func (q *Queue) Deliver(ev domain.Event) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Close marks the queue as dropped. Buffered events stay readable.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
}
