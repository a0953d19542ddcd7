package auction

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

const (
	defaultPersistAttempts = 4
	defaultPersistBackoff  = 100 * time.Millisecond
	maxPersistBackoff      = 5 * time.Second
)

// persister writes batches behind the controller loop. Enqueue never blocks:
// batches merge into one pending set, newest values winning, and a single
// writer goroutine applies them in order.
type persister struct {
	store     ports.AuctionStore
	auctionID string
	attempts  int
	backoff   time.Duration

	mu      sync.Mutex
	pending *pendingBatch

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

type pendingBatch struct {
	auction *domain.Auction
	teams   map[string]domain.Team
	items   map[string]domain.Item
	trades  map[string]domain.Trade
	actions map[int64]domain.ActionEvent
	bids    map[int64]domain.BidAudit
}

func newPendingBatch() *pendingBatch {
	return &pendingBatch{
		teams:   make(map[string]domain.Team),
		items:   make(map[string]domain.Item),
		trades:  make(map[string]domain.Trade),
		actions: make(map[int64]domain.ActionEvent),
		bids:    make(map[int64]domain.BidAudit),
	}
}

// merge folds b in. With overwrite false, entries already pending are kept:
// used to requeue a failed batch underneath newer writes.
func (p *pendingBatch) merge(b ports.Batch, overwrite bool) {
	if b.Auction != nil && (overwrite || p.auction == nil) {
		a := *b.Auction
		p.auction = &a
	}
	for _, t := range b.Teams {
		if _, ok := p.teams[t.ID]; overwrite || !ok {
			p.teams[t.ID] = t
		}
	}
	for _, it := range b.Items {
		if _, ok := p.items[it.ID]; overwrite || !ok {
			p.items[it.ID] = it
		}
	}
	for _, tr := range b.Trades {
		if _, ok := p.trades[tr.ID]; overwrite || !ok {
			p.trades[tr.ID] = tr
		}
	}
	for _, ev := range b.Actions {
		if _, ok := p.actions[ev.Seq]; overwrite || !ok {
			p.actions[ev.Seq] = ev
		}
	}
	for _, bid := range b.Bids {
		p.bids[bid.Seq] = bid
	}
}

func (p *pendingBatch) batch() ports.Batch {
	b := ports.Batch{Auction: p.auction}
	for _, t := range p.teams {
		b.Teams = append(b.Teams, t)
	}
	for _, it := range p.items {
		b.Items = append(b.Items, it)
	}
	for _, tr := range p.trades {
		b.Trades = append(b.Trades, tr)
	}
	for _, ev := range p.actions {
		b.Actions = append(b.Actions, ev)
	}
	for _, bid := range p.bids {
		b.Bids = append(b.Bids, bid)
	}
	return b
}

func newPersister(store ports.AuctionStore, auctionID string, attempts int, backoff time.Duration) *persister {
	if attempts <= 0 {
		attempts = defaultPersistAttempts
	}
	if backoff <= 0 {
		backoff = defaultPersistBackoff
	}
	return &persister{
		store:     store,
		auctionID: auctionID,
		attempts:  attempts,
		backoff:   backoff,
		pending:   newPendingBatch(),
		signal:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (p *persister) enqueue(b ports.Batch) {
	if b.Empty() {
		return
	}
	p.mu.Lock()
	p.pending.merge(b, true)
	p.mu.Unlock()
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.signal:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

// close stops the writer after a final flush, or when ctx expires.
func (p *persister) close(ctx context.Context) error {
	close(p.stop)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *persister) flush() {
	p.mu.Lock()
	pb := p.pending
	p.pending = newPendingBatch()
	p.mu.Unlock()

	b := pb.batch()
	if b.Empty() {
		return
	}

	wait := p.backoff
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.store.Apply(ctx, p.auctionID, b)
		cancel()
		if err == nil {
			return
		}
		if attempt >= p.attempts {
			slog.Error("persister: giving up on batch, requeued",
				"auction_id", p.auctionID, "attempts", attempt, "err", err)
			p.mu.Lock()
			p.pending.merge(b, false)
			p.mu.Unlock()
			return
		}
		slog.Warn("persister: apply failed, retrying",
			"auction_id", p.auctionID, "attempt", attempt, "backoff", wait, "err", err)

		select {
		case <-time.After(wait):
		case <-p.stop:
			// shutting down: one last immediate try
		}
		wait = min(wait*2, maxPersistBackoff)
	}
}
