package ports

import (
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Publisher fans events out to subscribed audiences. Implementations
// must not block the caller on slow subscribers.
type Publisher interface {
	// Publish routes each event to the rooms allowed to see it.
	Publish(auctionID string, events []domain.Event)

	// Join registers a subscriber and delivers the snapshot to it before any
	// event published afterwards.
	Join(auctionID string, sub Subscriber, snapshot domain.Event)

	// Leave removes a subscriber.
	Leave(auctionID string, sub Subscriber)
}

// Subscriber is one connected client.
type Subscriber interface {
	ID() string
	Viewer() domain.Viewer
	// Deliver enqueues an event without blocking; false means the subscriber
	// cannot keep up and should be dropped.
	Deliver(ev domain.Event) bool
	// Close is called once when the subscriber is dropped.
	Close()
}
