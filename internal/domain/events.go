package domain

import "time"

// EventType names an outbound event.
type EventType string

const (
	EventStateSnapshot    EventType = "state_snapshot"
	EventStatusChanged    EventType = "status_changed"
	EventItemRevealed     EventType = "item_revealed"
	EventPhaseChanged     EventType = "phase_changed"
	EventBidAccepted      EventType = "bid_accepted"
	EventBidRejected      EventType = "bid_rejected"
	EventItemSold         EventType = "item_sold"
	EventItemUnsold       EventType = "item_unsold"
	EventItemDisqualified EventType = "item_disqualified"
	EventUndoApplied      EventType = "undo_applied"
	EventAnnouncement     EventType = "announcement"
	EventTeamUpdated      EventType = "team_updated"
	EventTradeProposed    EventType = "trade_proposed"
	EventTradeAccepted    EventType = "trade_accepted"
	EventTradeRejected    EventType = "trade_rejected"
	EventTradeWithdrawn   EventType = "trade_withdrawn"
	EventTradeCancelled   EventType = "trade_cancelled"
	EventTradeExecuted    EventType = "trade_executed"
	EventTradeExpired     EventType = "trade_expired"
)

// Audience is the room class an event is routed to.
type Audience string

const (
	AudiencePublic Audience = "public"
	AudienceTeam   Audience = "team"  // listed teams plus admins
	AudienceAdmin  Audience = "admin" // admins only
)

// Event is an outbound state delta.
type Event struct {
	Seq       int64     `json:"seq"`
	Type      EventType `json:"type"`
	AuctionID string    `json:"auctionId"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload,omitempty"`
	Audience  Audience  `json:"-"`
	Teams     []string  `json:"-"`
	Private   any       `json:"-"` // replaces Payload for admins and listed teams
}

// VisibleTo reports whether the viewer receives the event.
func (e Event) VisibleTo(v Viewer) bool {
	switch e.Audience {
	case AudiencePublic:
		return true
	case AudienceAdmin:
		return v.Role == RoleAdmin
	case AudienceTeam:
		return e.privileged(v)
	}
	return false
}

// For projects the event for one viewer.
func (e Event) For(v Viewer) (Event, bool) {
	if !e.VisibleTo(v) {
		return Event{}, false
	}
	if e.Private != nil && e.privileged(v) {
		e.Payload = e.Private
	}
	e.Private = nil
	return e, true
}

func (e Event) privileged(v Viewer) bool {
	if v.Role == RoleAdmin {
		return true
	}
	if v.Role != RoleTeam {
		return false
	}
	for _, id := range e.Teams {
		if id == v.TeamID {
			return true
		}
	}
	return false
}

type StatusPayload struct {
	Status       Status `json:"status"`
	Previous     Status `json:"previous"`
	Reason       string `json:"reason,omitempty"`
	VoidedItemID string `json:"voidedItemId,omitempty"`
	Round        int    `json:"round"`
}

type RevealPayload struct {
	Item           ItemView  `json:"item"`
	Round          int       `json:"round"`
	OpeningBid     int64     `json:"openingBid"`
	Phase          Phase     `json:"phase"`
	PhaseExpiresAt time.Time `json:"phaseExpiresAt"`
}

type PhasePayload struct {
	ItemID           string    `json:"itemId"`
	Phase            Phase     `json:"phase"`
	PhaseExpiresAt   time.Time `json:"phaseExpiresAt"`
	CurrentBid       int64     `json:"currentBid"`
	CurrentBidTeamID string    `json:"currentBidTeamId,omitempty"`
	NextRequired     int64     `json:"nextRequired"`
}

type BidPayload struct {
	ItemID         string       `json:"itemId,omitempty"`
	TeamID         string       `json:"teamId"`
	Amount         int64        `json:"amount"`
	NextRequired   int64        `json:"nextRequired,omitempty"`
	Phase          Phase        `json:"phase,omitempty"`
	PhaseExpiresAt time.Time    `json:"phaseExpiresAt,omitzero"`
	Reason         RejectReason `json:"reason,omitempty"`
	Detail         string       `json:"detail,omitempty"`
}

type OutcomePayload struct {
	ItemID    string `json:"itemId"`
	TeamID    string `json:"teamId,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Round     int    `json:"round"`
	Skipped   bool   `json:"skipped,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type UndoPayload struct {
	Seq         int64      `json:"seq"`
	ActionType  ActionType `json:"actionType"`
	Description string     `json:"description"`
}

type AnnouncementPayload struct {
	Message string `json:"message"`
	By      string `json:"by"`
}

type TradePayload struct {
	Trade   TradeView          `json:"trade"`
	Reason  string             `json:"reason,omitempty"`
	Warning *SettlementWarning `json:"warning,omitempty"`
}
