// Package broadcast fans auction events out to connected clients, one room
// per auction, filtering each event by what the subscriber may see.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

// Hub implements ports.Publisher in memory.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[string]ports.Subscriber // auctionID → subscriberID → sub
}

var _ ports.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]ports.Subscriber)}
}

// Join adds sub to the auction room and hands it the snapshot first.
func (h *Hub) Join(auctionID string, sub ports.Subscriber, snapshot domain.Event) {
	h.mu.Lock()
	room, ok := h.rooms[auctionID]
	if !ok {
		room = make(map[string]ports.Subscriber)
		h.rooms[auctionID] = room
	}
	if !sub.Deliver(snapshot) {
		h.mu.Unlock()
		slog.Warn("broadcast: subscriber refused snapshot", "auction_id", auctionID, "subscriber", sub.ID())
		sub.Close()
		return
	}
	room[sub.ID()] = sub
	n := len(room)
	h.mu.Unlock()

	slog.Debug("broadcast: joined", "auction_id", auctionID, "subscriber", sub.ID(), "room_size", n)
}

// Leave removes sub from the room and closes it.
func (h *Hub) Leave(auctionID string, sub ports.Subscriber) {
	h.mu.Lock()
	room := h.rooms[auctionID]
	_, ok := room[sub.ID()]
	if ok {
		delete(room, sub.ID())
		if len(room) == 0 {
			delete(h.rooms, auctionID)
		}
	}
	h.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Publish delivers each event to every subscriber allowed to see it.
// Subscribers whose buffers are full are dropped.
func (h *Hub) Publish(auctionID string, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	var dropped []ports.Subscriber

	h.mu.Lock()
	room := h.rooms[auctionID]
	for id, sub := range room {
		v := sub.Viewer()
		for _, ev := range events {
			out, ok := ev.For(v)
			if !ok {
				continue
			}
			if !sub.Deliver(out) {
				delete(room, id)
				dropped = append(dropped, sub)
				break
			}
		}
	}
	if room != nil && len(room) == 0 {
		delete(h.rooms, auctionID)
	}
	h.mu.Unlock()

	for _, sub := range dropped {
		slog.Warn("broadcast: dropping slow subscriber", "auction_id", auctionID, "subscriber", sub.ID())
		sub.Close()
	}
}

// RoomSize returns the number of subscribers in an auction room.
func (h *Hub) RoomSize(auctionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[auctionID])
}
