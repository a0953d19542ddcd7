package auction

import (
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// recentBids is how much of the bid audit log a snapshot carries.
const recentBids = 50

// Snapshot projects the canonical state for one viewer. Administrators see
// everything; a team additionally sees its own maxBid and its trades;
// spectators see public state and executed trades only.
func (m *Machine) Snapshot(v domain.Viewer) domain.Snapshot {
	cfg := m.a.Config
	s := domain.Snapshot{
		AuctionID: m.a.ID,
		Name:      m.a.Name,
		Status:    m.a.Status,
		Round:     m.a.CurrentRound,
		Config: domain.ConfigView{
			BasePrice:           cfg.BasePrice,
			Purse:               cfg.Purse,
			MinSquad:            cfg.MinSquad,
			MaxSquad:            cfg.MaxSquad,
			Increments:          append([]domain.IncrementTier(nil), cfg.Increments...),
			MaxConsecutiveUndos: cfg.MaxConsecutiveUndos,
			MaxTradesPerTeam:    cfg.MaxTradesPerTeam,
			SettlementEnabled:   cfg.SettlementEnabled,
			MaxRounds:           cfg.MaxRounds,
		},
		Fields:            append([]domain.FieldDescriptor(nil), m.a.Fields...),
		RemainingPool:     len(m.a.RemainingPool),
		NextRoundPool:     len(m.a.NextRoundPool),
		TradeWindowEndsAt: m.a.TradeWindowEndsAt,
		ServerTime:        m.now(),
		Viewer:            v,
		LastEventSeq:      m.eventSeq,
		Teams:             make([]domain.TeamView, 0, len(m.teamIDs)),
		Items:             make([]domain.ItemView, 0, len(m.itemIDs)),
		Trades:            []domain.TradeView{},
	}

	if b := m.a.Bidding; b != nil {
		bv := &domain.BiddingView{
			ItemID:           b.ItemID,
			Phase:            b.Phase,
			CurrentBid:       b.CurrentBid,
			CurrentBidTeamID: b.CurrentBidTeamID,
			BidHistory:       append([]domain.Bid{}, b.BidHistory...),
			PhaseExpiresAt:   b.PhaseExpiresAt,
		}
		if b.ItemID != "" {
			bv.NextRequired = domain.RequiredBid(b, m.items[b.ItemID].OpeningBid(cfg), cfg)
		}
		s.Bidding = bv
	}

	for _, id := range m.teamIDs {
		t := m.teams[id]
		private := v.Role == domain.RoleAdmin || (v.Role == domain.RoleTeam && v.TeamID == id)
		s.Teams = append(s.Teams, m.teamView(t, private))
	}
	for _, id := range m.itemIDs {
		s.Items = append(s.Items, m.itemView(m.items[id]))
	}
	for _, id := range m.tradeIDs {
		tr := m.trades[id]
		switch {
		case v.Role == domain.RoleAdmin,
			v.Role == domain.RoleTeam && tr.Involves(v.TeamID),
			tr.Status == domain.TradeExecuted:
			s.Trades = append(s.Trades, tradeView(tr))
		}
	}
	if v.Role == domain.RoleAdmin {
		for _, ev := range m.log.events {
			s.Actions = append(s.Actions, domain.ActionView{
				Seq:         ev.Seq,
				Type:        ev.Type,
				Forward:     ev.Forward,
				PerformedBy: ev.PerformedBy,
				IsUndone:    ev.IsUndone,
				At:          ev.At,
			})
		}
	}

	from := max(0, len(m.bids)-recentBids)
	s.RecentBids = append([]domain.BidAudit{}, m.bids[from:]...)
	return s
}

// Team returns a copy of a team's state.
func (m *Machine) Team(id string) (domain.Team, bool) {
	t, ok := m.teams[id]
	if !ok {
		return domain.Team{}, false
	}
	return t.Clone(), true
}

// Item returns a copy of an item's state.
func (m *Machine) Item(id string) (domain.Item, bool) {
	it, ok := m.items[id]
	if !ok {
		return domain.Item{}, false
	}
	return it.Clone(), true
}

// Trade returns a copy of a trade.
func (m *Machine) Trade(id string) (domain.Trade, bool) {
	tr, ok := m.trades[id]
	if !ok {
		return domain.Trade{}, false
	}
	return tr.Clone(), true
}

// Auction returns a copy of the auction state.
func (m *Machine) Auction() domain.Auction { return m.a.Clone() }

// Actions returns a copy of the action log.
func (m *Machine) Actions() []domain.ActionEvent {
	return append([]domain.ActionEvent(nil), m.log.events...)
}

// Bids returns a copy of the bid audit log.
func (m *Machine) Bids() []domain.BidAudit {
	return append([]domain.BidAudit(nil), m.bids...)
}

func (m *Machine) teamView(t *domain.Team, private bool) domain.TeamView {
	tv := domain.TeamView{
		ID:             t.ID,
		Name:           t.Name,
		PurseInitial:   t.PurseInitial,
		PurseRemaining: t.PurseRemaining,
		RosterSize:     t.RosterSize(),
		Squad:          append([]domain.SquadEntry{}, t.Squad...),
		Retained:       append([]domain.RetainedItem(nil), t.Retained...),
		TradesExecuted: t.TradesExecuted,
	}
	if private {
		mb := t.MaxBid(m.a.Config)
		tv.MaxBid = &mb
	}
	return tv
}

func (m *Machine) itemView(it *domain.Item) domain.ItemView {
	c := it.Clone()
	return domain.ItemView{
		ID:           c.ID,
		Name:         c.Name,
		Status:       c.Status,
		BasePrice:    c.OpeningBid(m.a.Config),
		SoldTo:       c.SoldTo,
		SoldAmount:   c.SoldAmount,
		SoldInRound:  c.SoldInRound,
		RoundHistory: c.RoundHistory,
		Attributes:   c.Attributes,
	}
}

func tradeView(tr *domain.Trade) domain.TradeView {
	return domain.TradeView{
		ID:                  tr.ID,
		InitiatorTeamID:     tr.InitiatorTeamID,
		CounterpartyTeamID:  tr.CounterpartyTeamID,
		InitiatorItems:      append([]domain.TradeItem{}, tr.InitiatorItems...),
		CounterpartyItems:   append([]domain.TradeItem{}, tr.CounterpartyItems...),
		SettlementAmount:    tr.SettlementAmount,
		SettlementDirection: tr.SettlementDirection,
		Status:              tr.Status,
		Reason:              tr.Reason,
		SettlementWaived:    tr.SettlementWaived,
		Reversed:            tr.Reversed,
		UpdatedAt:           tr.UpdatedAt,
	}
}
