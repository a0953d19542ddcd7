package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusConfigured  Status = "configured"
	StatusLive        Status = "live"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusTradeWindow Status = "trade_window"
	StatusFinalized   Status = "finalized"
)

// IncrementTier maps a band of current-bid magnitude to the required step-up.
type IncrementTier struct {
	Below int64 `json:"below"` // tier applies while the current bid is below this amount; 0 = no upper bound
	Step  int64 `json:"step"`
}

// Timers holds per-phase durations of the bidding sub-machine.
type Timers struct {
	Reveal       time.Duration // revealed → open, no bids accepted
	Open         time.Duration // open phase before the first bid
	BidReset     time.Duration // open phase after each accepted bid
	GoingOnce    time.Duration
	GoingTwice   time.Duration
	Intermission time.Duration // delay before the next pick when AutoAdvance is on
}

// Config is the per-auction rule set.
type Config struct {
	BasePrice           int64
	Purse               int64
	MinSquad            int
	MaxSquad            int
	Increments          []IncrementTier
	Timers              Timers
	MaxConsecutiveUndos int
	TradeWindow         time.Duration
	MaxTradesPerTeam    int
	SettlementEnabled   bool
	MaxRounds           int
	AutoAdvance         bool
}

const (
	DefaultMaxConsecutiveUndos = 3
	DefaultMaxRounds           = 2
)

// WithDefaults fills zero values that have a sensible default.
func (c Config) WithDefaults() Config {
	if c.MaxConsecutiveUndos <= 0 {
		c.MaxConsecutiveUndos = DefaultMaxConsecutiveUndos
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	return c
}

// Validate checks the rule set is internally consistent.
func (c Config) Validate() error {
	switch {
	case c.BasePrice <= 0:
		return fmt.Errorf("%w: base price must be positive", ErrValidation)
	case c.Purse < c.BasePrice:
		return fmt.Errorf("%w: purse %d below base price %d", ErrValidation, c.Purse, c.BasePrice)
	case c.MinSquad < 0 || c.MaxSquad <= 0:
		return fmt.Errorf("%w: squad bounds must be positive", ErrValidation)
	case c.MinSquad > c.MaxSquad:
		return fmt.Errorf("%w: min squad %d exceeds max squad %d", ErrValidation, c.MinSquad, c.MaxSquad)
	case len(c.Increments) == 0:
		return fmt.Errorf("%w: increment table is empty", ErrValidation)
	}

	var prev int64
	for i, t := range c.Increments {
		if t.Step <= 0 {
			return fmt.Errorf("%w: increment tier %d has non-positive step", ErrValidation, i)
		}
		last := i == len(c.Increments)-1
		if last && t.Below != 0 {
			return fmt.Errorf("%w: last increment tier must be unbounded", ErrValidation)
		}
		if !last && t.Below <= prev {
			return fmt.Errorf("%w: increment tier %d bound not ascending", ErrValidation, i)
		}
		prev = t.Below
	}
	return nil
}

// TierIncrement returns the required step-up above the current bid.
func (c Config) TierIncrement(current int64) int64 {
	for _, t := range c.Increments {
		if t.Below == 0 || current < t.Below {
			return t.Step
		}
	}
	if n := len(c.Increments); n > 0 {
		return c.Increments[n-1].Step
	}
	return 0
}

// FieldType describes how a dynamic item attribute should be rendered.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldURL    FieldType = "url"
)

// FieldDescriptor declares one imported item column.
type FieldDescriptor struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// Auction is the canonical state of one bidding event.
type Auction struct {
	ID                string
	Name              string
	Status            Status
	Config            Config
	Fields            []FieldDescriptor
	RemainingPool     []string // unresolved items of the current round, order irrelevant
	NextRoundPool     []string // unsold items carried into the next round
	CurrentRound      int
	Bidding           *BiddingState // non-nil iff Status == live
	TradeWindowEndsAt time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a deep copy safe to hand to other goroutines.
func (a Auction) Clone() Auction {
	c := a
	c.Config.Increments = append([]IncrementTier(nil), a.Config.Increments...)
	c.Fields = append([]FieldDescriptor(nil), a.Fields...)
	c.RemainingPool = append([]string(nil), a.RemainingPool...)
	c.NextRoundPool = append([]string(nil), a.NextRoundPool...)
	c.Bidding = a.Bidding.Clone()
	return c
}

// AuctionRecord is the full durable state of an auction.
type AuctionRecord struct {
	Auction Auction
	Teams   []Team
	Items   []Item
	Trades  []Trade
	Actions []ActionEvent
	Bids    []BidAudit
}

// Setup describes a new auction before it is configured.
type Setup struct {
	ID     string
	Name   string
	Config Config
	Fields []FieldDescriptor
	Teams  []TeamSetup
	Items  []Item
}

// TeamSetup is a participating team. Retained entries reference items in Setup.Items.
type TeamSetup struct {
	ID       string
	Name     string
	Retained []RetainedItem
}
