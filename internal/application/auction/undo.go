package auction

import (
	"fmt"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// actionLog is the append-only ledger behind undo. Entries are never
// removed; undone entries are flagged.
type actionLog struct {
	events []domain.ActionEvent
}

func newActionLog(events []domain.ActionEvent) actionLog {
	return actionLog{events: append([]domain.ActionEvent(nil), events...)}
}

func (l *actionLog) append(ev domain.ActionEvent) domain.ActionEvent {
	ev.Seq = 1
	if n := len(l.events); n > 0 {
		ev.Seq = l.events[n-1].Seq + 1
	}
	l.events = append(l.events, ev)
	return ev
}

// top returns the most recent undoable entry that has not been undone.
func (l *actionLog) top() *domain.ActionEvent {
	for i := len(l.events) - 1; i >= 0; i-- {
		ev := &l.events[i]
		if ev.Type.Undoable() && !ev.IsUndone {
			return ev
		}
	}
	return nil
}

// consecutiveUndos counts undos since the last undoable action was logged.
// Pause, resume and announcements do not break the streak.
func (l *actionLog) consecutiveUndos() int {
	n := 0
	for i := len(l.events) - 1; i >= 0; i-- {
		switch t := l.events[i].Type; {
		case t == domain.ActionUndoApplied:
			n++
		case t.Undoable():
			return n
		}
	}
	return n
}

func (l *actionLog) last(t domain.ActionType) (domain.ActionEvent, bool) {
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Type == t {
			return l.events[i], true
		}
	}
	return domain.ActionEvent{}, false
}

// Undo reverses the most recent undoable action. Failures are returned to
// the caller only and change nothing.
func (m *Machine) Undo(actor domain.Actor) (string, error) {
	if limit := m.a.Config.MaxConsecutiveUndos; m.log.consecutiveUndos() >= limit {
		return "", fmt.Errorf("%w: limit of %d consecutive undos reached", domain.ErrUndo, limit)
	}
	ev := m.log.top()
	if ev == nil {
		return "", fmt.Errorf("%w: nothing to undo", domain.ErrUndo)
	}
	if err := m.checkReversal(*ev); err != nil {
		return "", err
	}

	var desc string
	switch ev.Type {
	case domain.ActionPlayerSold:
		desc = m.reverseSold(ev.Reversal)
	case domain.ActionPlayerUnsold:
		desc = m.reverseUnsold(ev.Reversal)
	case domain.ActionPlayerDisqualified:
		desc = m.reverseDisqualified(ev.Reversal)
	case domain.ActionTradeExecuted:
		desc = m.reverseTrade(ev.Reversal)
	}
	ev.IsUndone = true
	undone := *ev
	m.fx.actions[undone.Seq] = true
	m.touchAuction()

	undo := m.appendAction(domain.ActionEvent{
		Type:        domain.ActionUndoApplied,
		Forward:     domain.ActionPayload{UndoneSeq: undone.Seq, Description: desc},
		PerformedBy: actor.Label(),
	})
	m.emit(domain.EventUndoApplied, domain.AudiencePublic, domain.UndoPayload{
		Seq:         undo.Seq,
		ActionType:  undone.Type,
		Description: desc,
	})
	return desc, nil
}

// checkReversal verifies the reversal still applies to current state.
func (m *Machine) checkReversal(ev domain.ActionEvent) error {
	rev := ev.Reversal
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: cannot undo %s #%d: %s", domain.ErrUndo, ev.Type, ev.Seq, fmt.Sprintf(format, args...))
	}

	switch ev.Type {
	case domain.ActionPlayerSold, domain.ActionPlayerUnsold, domain.ActionPlayerDisqualified:
		if m.a.Status != domain.StatusLive && m.a.Status != domain.StatusPaused {
			return m.violation("undo "+string(ev.Type), "item outcomes can only be undone during bidding")
		}
	case domain.ActionTradeExecuted:
		if m.a.Status != domain.StatusTradeWindow {
			return m.violation("undo "+string(ev.Type), "trades can only be undone during the trade window")
		}
	}

	item := m.items[rev.ItemID]
	switch ev.Type {
	case domain.ActionPlayerSold:
		team := m.teams[rev.TeamID]
		if item == nil || team == nil {
			return fail("unknown item or team")
		}
		if item.Status != domain.ItemSold || item.SoldTo != team.ID {
			return fail("item %s is no longer held by %s", item.ID, team.ID)
		}
		if _, ok := m.locks[item.ID]; ok {
			return fail("item %s is locked by a trade", item.ID)
		}
	case domain.ActionPlayerUnsold:
		if item == nil || item.Status != domain.ItemUnsold {
			return fail("item is no longer unsold")
		}
	case domain.ActionPlayerDisqualified:
		if item == nil || item.Status != domain.ItemDisqualified {
			return fail("item is no longer disqualified")
		}
		if rev.Status == domain.ItemSold {
			team := m.teams[rev.TeamID]
			if team == nil {
				return fail("unknown team %s", rev.TeamID)
			}
			if team.PurseRemaining < rev.Amount {
				return fail("team %s cannot cover %d", team.ID, rev.Amount)
			}
			if team.RosterSize() >= m.a.Config.MaxSquad {
				return fail("team %s squad is full", team.ID)
			}
			if err := m.checkHeldBid(team, rev.Amount); err != nil {
				return fail("%v", err)
			}
		}
	case domain.ActionTradeExecuted:
		tr := m.trades[rev.TradeID]
		if tr == nil || tr.Status != domain.TradeExecuted || tr.Reversed {
			return fail("trade %s is not reversible", rev.TradeID)
		}
		for _, it := range tr.InitiatorItems {
			if m.items[it.ItemID].SoldTo != tr.CounterpartyTeamID {
				return fail("item %s changed hands since", it.ItemID)
			}
		}
		for _, it := range tr.CounterpartyItems {
			if m.items[it.ItemID].SoldTo != tr.InitiatorTeamID {
				return fail("item %s changed hands since", it.ItemID)
			}
		}
		for _, id := range append(itemIDs(tr.InitiatorItems), itemIDs(tr.CounterpartyItems)...) {
			if holder, ok := m.locks[id]; ok {
				return fail("item %s is locked by trade %s", id, holder)
			}
		}
		if rev.Settlement > 0 && m.teams[rev.PayeeTeamID].PurseRemaining < rev.Settlement {
			return fail("team %s cannot return settlement of %d", rev.PayeeTeamID, rev.Settlement)
		}
	}
	return nil
}

// checkHeldBid refuses to charge a team that holds the high bid on the live
// item when the bid would no longer fit its purse or squad after the charge.
func (m *Machine) checkHeldBid(team *domain.Team, charge int64) error {
	b := m.a.Bidding
	if b == nil || b.Phase.Idle() || b.CurrentBidTeamID != team.ID {
		return nil
	}
	roster := team.RosterSize() + 1
	if roster+1 > m.a.Config.MaxSquad {
		return fmt.Errorf("team %s holds the high bid and its squad would overflow", team.ID)
	}
	if limit := domain.MaxBid(team.PurseRemaining-charge, roster, m.a.Config); b.CurrentBid > limit {
		return fmt.Errorf("team %s holds the high bid of %d, above its limit of %d", team.ID, b.CurrentBid, limit)
	}
	return nil
}

func (m *Machine) reverseSold(rev domain.ActionPayload) string {
	item := m.items[rev.ItemID]
	team := m.teams[rev.TeamID]

	team.RemoveSquadEntry(item.ID)
	team.PurseRemaining += rev.Amount
	item.SoldTo, item.SoldAmount, item.SoldInRound = "", 0, 0
	popOutcome(item, domain.ItemSold)
	m.touchTeam(team.ID)

	if b := m.a.Bidding; b != nil && b.ItemID == item.ID {
		m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
	}
	m.returnToPool(item)
	m.emitTeam(team.ID)
	return fmt.Sprintf("Sale of %s to %s for %d reversed; %s refunded and %s returned to the pool",
		item.Name, team.Name, rev.Amount, team.Name, item.Name)
}

// reverseUnsold puts the item back under the hammer when the slot is free,
// otherwise into the pool.
func (m *Machine) reverseUnsold(rev domain.ActionPayload) string {
	item := m.items[rev.ItemID]
	if rev.Slot == domain.SlotNextRound {
		m.a.NextRoundPool, _ = removeID(m.a.NextRoundPool, item.ID)
	}
	popOutcome(item, domain.ItemUnsold)

	if m.a.Status == domain.StatusLive && m.a.Bidding != nil && m.a.Bidding.Phase.Idle() {
		m.reveal(item)
		return fmt.Sprintf("%s is back under the hammer", item.Name)
	}
	m.returnToPool(item)
	return fmt.Sprintf("Unsold result for %s reversed; returned to the pool", item.Name)
}

func (m *Machine) reverseDisqualified(rev domain.ActionPayload) string {
	item := m.items[rev.ItemID]
	item.Status = rev.Status
	m.touchItem(item.ID)

	switch {
	case rev.Status == domain.ItemSold:
		team := m.teams[rev.TeamID]
		team.PurseRemaining -= rev.Amount
		team.Squad = append(team.Squad, domain.SquadEntry{ItemID: item.ID, Price: rev.Amount, Round: rev.Round})
		item.SoldTo, item.SoldAmount, item.SoldInRound = team.ID, rev.Amount, rev.Round
		m.touchTeam(team.ID)
		m.emitTeam(team.ID)
		return fmt.Sprintf("Disqualification of %s reversed; back with %s", item.Name, team.Name)
	case rev.Slot == domain.SlotCurrent:
		m.returnToPool(item)
	case rev.Slot == domain.SlotNextRound && (rev.Round < m.a.CurrentRound || m.a.CurrentRound >= m.a.Config.MaxRounds):
		// its round has already started
		m.returnToPool(item)
	case rev.Slot == domain.SlotNextRound:
		m.a.NextRoundPool = append(m.a.NextRoundPool, item.ID)
		m.touchAuction()
	}
	return fmt.Sprintf("Disqualification of %s reversed", item.Name)
}

func (m *Machine) reverseTrade(rev domain.ActionPayload) string {
	tr := m.trades[rev.TradeID]
	ini, cp := m.teams[tr.InitiatorTeamID], m.teams[tr.CounterpartyTeamID]

	m.moveItems(tr.InitiatorItems, cp, ini)
	m.moveItems(tr.CounterpartyItems, ini, cp)
	if rev.Settlement > 0 {
		m.teams[rev.PayerTeamID].PurseRemaining += rev.Settlement
		m.teams[rev.PayeeTeamID].PurseRemaining -= rev.Settlement
	}
	ini.TradesExecuted--
	cp.TradesExecuted--
	tr.Reversed = true
	tr.UpdatedAt = m.now()

	m.touchTeam(ini.ID)
	m.touchTeam(cp.ID)
	m.touchTrade(tr.ID)
	m.emitTeam(ini.ID)
	m.emitTeam(cp.ID)
	return fmt.Sprintf("Trade between %s and %s reversed", ini.Name, cp.Name)
}

func (m *Machine) returnToPool(item *domain.Item) {
	item.Status = domain.ItemPool
	m.a.RemainingPool = append(m.a.RemainingPool, item.ID)
	m.touchItem(item.ID)
	m.touchAuction()
}

// popOutcome drops the latest round outcome if it matches.
func popOutcome(item *domain.Item, outcome domain.ItemStatus) {
	if n := len(item.RoundHistory); n > 0 && item.RoundHistory[n-1].Outcome == outcome {
		item.RoundHistory = item.RoundHistory[:n-1]
	}
}
