package domain

import "time"

// Phase is a sub-state of the per-item bidding machine.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseRevealed   Phase = "revealed"
	PhaseOpen       Phase = "open"
	PhaseGoingOnce  Phase = "going_once"
	PhaseGoingTwice Phase = "going_twice"
	PhaseSold       Phase = "sold"
	PhaseUnsold     Phase = "unsold"
)

// AcceptsBids reports whether bids are evaluated in this phase.
func (p Phase) AcceptsBids() bool {
	return p == PhaseOpen || p == PhaseGoingOnce || p == PhaseGoingTwice
}

// Idle reports whether the bidding slot is free for the next pick.
func (p Phase) Idle() bool {
	return p == PhaseWaiting || p == PhaseSold || p == PhaseUnsold
}

// Timed reports whether the phase ends on a server timer.
func (p Phase) Timed() bool {
	return p == PhaseRevealed || p.AcceptsBids()
}

// Bid is one accepted bid on the active item.
type Bid struct {
	TeamID string    `json:"teamId"`
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
}

// BiddingState is the single active bidding slot of a live auction.
type BiddingState struct {
	ItemID           string
	Phase            Phase
	CurrentBid       int64
	CurrentBidTeamID string
	BidHistory       []Bid
	PhaseExpiresAt   time.Time
}

func (b *BiddingState) Clone() *BiddingState {
	if b == nil {
		return nil
	}
	c := *b
	c.BidHistory = append([]Bid(nil), b.BidHistory...)
	return &c
}

// RejectReason is the disclosed cause of a bid rejection.
type RejectReason string

const (
	RejectBiddingClosed     RejectReason = "bidding_closed"
	RejectAlreadyHighest    RejectReason = "already_highest_bidder"
	RejectIncorrectAmount   RejectReason = "incorrect_increment"
	RejectExceedsMaxBid     RejectReason = "exceeds_max_bid"
	RejectPurseBelowBase    RejectReason = "purse_below_base_price"
	RejectSquadFull         RejectReason = "squad_full"
	RejectUnknownTeam       RejectReason = "unknown_team"
	RejectAuctionNotRunning RejectReason = "auction_not_live"
)

// BidAudit is the append-only record of a bid submission, accepted or not.
type BidAudit struct {
	Seq      int64        `json:"seq"`
	ItemID   string       `json:"itemId,omitempty"`
	TeamID   string       `json:"teamId"`
	Amount   int64        `json:"amount"`
	Required int64        `json:"required,omitempty"`
	Accepted bool         `json:"accepted"`
	Reason   RejectReason `json:"reason,omitempty"`
	Round    int          `json:"round"`
	At       time.Time    `json:"at"`
}
