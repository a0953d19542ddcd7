package ports

import (
	"context"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Batch is the set of entities changed by one or more commands.
// Entities are full values; applying a batch upserts them.
type Batch struct {
	Auction *domain.Auction
	Teams   []domain.Team
	Items   []domain.Item
	Trades  []domain.Trade
	Actions []domain.ActionEvent
	Bids    []domain.BidAudit
}

// Empty reports whether the batch carries nothing to write.
func (b Batch) Empty() bool {
	return b.Auction == nil && len(b.Teams) == 0 && len(b.Items) == 0 &&
		len(b.Trades) == 0 && len(b.Actions) == 0 && len(b.Bids) == 0
}

// AuctionStore persists auction state. Reads reflect the last applied write.
type AuctionStore interface {
	// Apply upserts every entity in the batch atomically.
	Apply(ctx context.Context, auctionID string, batch Batch) error

	// Load returns the full durable state of an auction.
	Load(ctx context.Context, auctionID string) (domain.AuctionRecord, error)

	// ListAuctionIDs returns the IDs of every persisted auction.
	ListAuctionIDs(ctx context.Context) ([]string, error)

	// Close releases the underlying connection.
	Close() error
}
