package domain

import "time"

// ActionType classifies an action log entry.
type ActionType string

const (
	ActionPlayerSold         ActionType = "PLAYER_SOLD"
	ActionPlayerUnsold       ActionType = "PLAYER_UNSOLD"
	ActionPlayerDisqualified ActionType = "PLAYER_DISQUALIFIED"
	ActionTradeExecuted      ActionType = "TRADE_EXECUTED"
	ActionAuctionPaused      ActionType = "AUCTION_PAUSED"
	ActionAuctionResumed     ActionType = "AUCTION_RESUMED"
	ActionAnnouncement       ActionType = "ANNOUNCEMENT"
	ActionUndoApplied        ActionType = "UNDO_APPLIED"
)

// Undoable reports whether the action can be reversed by undo.
// Administrative safety actions are logged but never reversed.
func (t ActionType) Undoable() bool {
	switch t {
	case ActionPlayerSold, ActionPlayerUnsold, ActionPlayerDisqualified, ActionTradeExecuted:
		return true
	}
	return false
}

// PoolSlot records which collection held an item.
type PoolSlot string

const (
	SlotNone      PoolSlot = ""
	SlotCurrent   PoolSlot = "current"
	SlotNextRound PoolSlot = "next_round"
	SlotBidding   PoolSlot = "bidding"
)

// ActionPayload carries either the forward effect or the data needed to reverse it.
type ActionPayload struct {
	ItemID      string        `json:"itemId,omitempty"`
	TeamID      string        `json:"teamId,omitempty"`
	Amount      int64         `json:"amount,omitempty"`
	Round       int           `json:"round,omitempty"`
	Status      ItemStatus    `json:"status,omitempty"`
	Slot        PoolSlot      `json:"slot,omitempty"`
	Skipped     bool          `json:"skipped,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Message     string        `json:"message,omitempty"`
	TradeID     string        `json:"tradeId,omitempty"`
	PayerTeamID string        `json:"payerTeamId,omitempty"`
	PayeeTeamID string        `json:"payeeTeamId,omitempty"`
	Settlement  int64         `json:"settlement,omitempty"`
	UndoneSeq   int64         `json:"undoneSeq,omitempty"`
	Description string        `json:"description,omitempty"`
	Prior       *RoundOutcome `json:"prior,omitempty"`
}

// ActionEvent is one entry of the append-only action log.
type ActionEvent struct {
	Seq         int64
	Type        ActionType
	Forward     ActionPayload
	Reversal    ActionPayload
	PerformedBy string
	IsUndone    bool
	At          time.Time
}
