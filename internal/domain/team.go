package domain

// SquadEntry is an item won in the auction or received through a trade.
type SquadEntry struct {
	ItemID string `json:"itemId"`
	Price  int64  `json:"price"` // original acquisition price
	Round  int    `json:"round"`
}

// RetainedItem is acquired outside the bidding flow. Retained items are not tradeable.
type RetainedItem struct {
	ItemID  string `json:"itemId"`
	Price   int64  `json:"price"`
	Captain bool   `json:"captain"`
}

// Team is a bidder.
type Team struct {
	ID             string
	Name           string
	PurseInitial   int64
	PurseRemaining int64
	Squad          []SquadEntry
	Retained       []RetainedItem
	TradesExecuted int
}

// RosterSize counts squad and retained items together.
func (t Team) RosterSize() int {
	return len(t.Squad) + len(t.Retained)
}

// SquadEntry returns the squad entry for an item, if the team won or received it.
func (t Team) SquadEntry(itemID string) (SquadEntry, bool) {
	for _, e := range t.Squad {
		if e.ItemID == itemID {
			return e, true
		}
	}
	return SquadEntry{}, false
}

// RemoveSquadEntry drops an item from the squad and reports whether it was present.
func (t *Team) RemoveSquadEntry(itemID string) bool {
	for i, e := range t.Squad {
		if e.ItemID == itemID {
			t.Squad = append(t.Squad[:i:i], t.Squad[i+1:]...)
			return true
		}
	}
	return false
}

// MaxBid is the largest legal bid the team may place right now.
func (t Team) MaxBid(cfg Config) int64 {
	return MaxBid(t.PurseRemaining, t.RosterSize(), cfg)
}

func (t Team) Clone() Team {
	c := t
	c.Squad = append([]SquadEntry(nil), t.Squad...)
	c.Retained = append([]RetainedItem(nil), t.Retained...)
	return c
}
