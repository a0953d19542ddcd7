package domain

// ItemStatus is the lifecycle of an item in the pool.
type ItemStatus string

const (
	ItemPool         ItemStatus = "pool"
	ItemInAuction    ItemStatus = "in_auction"
	ItemSold         ItemStatus = "sold"
	ItemUnsold       ItemStatus = "unsold"
	ItemDisqualified ItemStatus = "disqualified"
)

// RoundOutcome is the result of one round for an item.
type RoundOutcome struct {
	Round   int        `json:"round"`
	Outcome ItemStatus `json:"outcome"`
	TeamID  string     `json:"teamId,omitempty"`
	Amount  int64      `json:"amount,omitempty"`
}

// Item is one lot ("player"). Items are never removed, only status-transitioned.
type Item struct {
	ID           string
	Name         string
	Status       ItemStatus
	BasePrice    int64 // 0 uses the auction base price
	SoldTo       string
	SoldAmount   int64
	SoldInRound  int
	RoundHistory []RoundOutcome
	Attributes   map[string]string // keyed by FieldDescriptor.Key
}

// OpeningBid is the amount the first bid on this item must match.
func (i Item) OpeningBid(cfg Config) int64 {
	if i.BasePrice > 0 {
		return i.BasePrice
	}
	return cfg.BasePrice
}

func (i Item) Clone() Item {
	c := i
	c.RoundHistory = append([]RoundOutcome(nil), i.RoundHistory...)
	if i.Attributes != nil {
		c.Attributes = make(map[string]string, len(i.Attributes))
		for k, v := range i.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}
