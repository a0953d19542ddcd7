package domain

import "time"

// Role is the audience class of a connected client.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleTeam      Role = "team"
	RoleSpectator Role = "spectator"
)

// Viewer identifies who a projection is built for.
type Viewer struct {
	Role   Role   `json:"role"`
	TeamID string `json:"teamId,omitempty"`
}

type ItemView struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Status       ItemStatus        `json:"status"`
	BasePrice    int64             `json:"basePrice"`
	SoldTo       string            `json:"soldTo,omitempty"`
	SoldAmount   int64             `json:"soldAmount,omitempty"`
	SoldInRound  int               `json:"soldInRound,omitempty"`
	RoundHistory []RoundOutcome    `json:"roundHistory,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

type TeamView struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	PurseInitial   int64          `json:"purseInitial"`
	PurseRemaining int64          `json:"purseRemaining"`
	RosterSize     int            `json:"rosterSize"`
	Squad          []SquadEntry   `json:"squad"`
	Retained       []RetainedItem `json:"retained,omitempty"`
	TradesExecuted int            `json:"tradesExecuted"`
	MaxBid         *int64         `json:"maxBid,omitempty"` // own team and admins only
}

type BiddingView struct {
	ItemID           string    `json:"itemId,omitempty"`
	Phase            Phase     `json:"phase"`
	CurrentBid       int64     `json:"currentBid"`
	CurrentBidTeamID string    `json:"currentBidTeamId,omitempty"`
	BidHistory       []Bid     `json:"bidHistory"`
	PhaseExpiresAt   time.Time `json:"phaseExpiresAt,omitzero"`
	NextRequired     int64     `json:"nextRequired,omitempty"`
}

type TradeView struct {
	ID                  string              `json:"id"`
	InitiatorTeamID     string              `json:"initiatorTeamId"`
	CounterpartyTeamID  string              `json:"counterpartyTeamId"`
	InitiatorItems      []TradeItem         `json:"initiatorItems"`
	CounterpartyItems   []TradeItem         `json:"counterpartyItems"`
	SettlementAmount    int64               `json:"settlementAmount"`
	SettlementDirection SettlementDirection `json:"settlementDirection"`
	Status              TradeStatus         `json:"status"`
	Reason              string              `json:"reason,omitempty"`
	SettlementWaived    bool                `json:"settlementWaived,omitempty"`
	Reversed            bool                `json:"reversed,omitempty"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

type ActionView struct {
	Seq         int64         `json:"seq"`
	Type        ActionType    `json:"type"`
	Forward     ActionPayload `json:"forward"`
	PerformedBy string        `json:"performedBy"`
	IsUndone    bool          `json:"isUndone"`
	At          time.Time     `json:"at"`
}

type ConfigView struct {
	BasePrice           int64           `json:"basePrice"`
	Purse               int64           `json:"purse"`
	MinSquad            int             `json:"minSquad"`
	MaxSquad            int             `json:"maxSquad"`
	Increments          []IncrementTier `json:"increments"`
	MaxConsecutiveUndos int             `json:"maxConsecutiveUndos"`
	MaxTradesPerTeam    int             `json:"maxTradesPerTeam"`
	SettlementEnabled   bool            `json:"settlementEnabled"`
	MaxRounds           int             `json:"maxRounds"`
}

// Snapshot is the full state projected for one viewer.
type Snapshot struct {
	AuctionID         string            `json:"auctionId"`
	Name              string            `json:"name"`
	Status            Status            `json:"status"`
	Round             int               `json:"round"`
	Config            ConfigView        `json:"config"`
	Fields            []FieldDescriptor `json:"fields"`
	Bidding           *BiddingView      `json:"bidding,omitempty"`
	Teams             []TeamView        `json:"teams"`
	Items             []ItemView        `json:"items"`
	RemainingPool     int               `json:"remainingPool"`
	NextRoundPool     int               `json:"nextRoundPool"`
	Trades            []TradeView       `json:"trades"`
	Actions           []ActionView      `json:"actions,omitempty"` // admins only
	RecentBids        []BidAudit        `json:"recentBids"`
	TradeWindowEndsAt time.Time         `json:"tradeWindowEndsAt,omitzero"`
	ServerTime        time.Time         `json:"serverTime"`
	Viewer            Viewer            `json:"viewer"`
	LastEventSeq      int64             `json:"lastEventSeq"`
}
