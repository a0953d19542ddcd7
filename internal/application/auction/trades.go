package auction

import (
	"fmt"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Proposal is a trade offer from the initiating team.
type Proposal struct {
	InitiatorTeamID    string
	CounterpartyTeamID string
	Offer              []string // items the initiator gives
	Request            []string // items the initiator asks for
}

// ProposeTrade opens a negotiation. The offered items lock at once; the
// requested ones stay free until the counterparty accepts. Any other pending
// proposal asking for an item this offer locks is cancelled.
func (m *Machine) ProposeTrade(p Proposal) (string, error) {
	if m.a.Status != domain.StatusTradeWindow {
		return "", m.violation("propose trade", "")
	}
	ini, err := m.team(p.InitiatorTeamID)
	if err != nil {
		return "", err
	}
	cp, err := m.team(p.CounterpartyTeamID)
	if err != nil {
		return "", err
	}
	if ini.ID == cp.ID {
		return "", fmt.Errorf("%w: a team cannot trade with itself", domain.ErrValidation)
	}
	if len(p.Offer) == 0 || len(p.Request) == 0 {
		return "", fmt.Errorf("%w: both sides of a trade need at least one item", domain.ErrValidation)
	}

	offered, err := m.tradeItems(ini, p.Offer)
	if err != nil {
		return "", err
	}
	requested, err := m.tradeItems(cp, p.Request)
	if err != nil {
		return "", err
	}
	for _, it := range append(append([]domain.TradeItem(nil), offered...), requested...) {
		if holder, locked := m.locks[it.ItemID]; locked {
			return "", fmt.Errorf("%w: item %s is locked by trade %s", domain.ErrValidation, it.ItemID, holder)
		}
	}
	if err := m.checkQuota(ini, cp); err != nil {
		return "", err
	}
	if err := m.checkRosters(ini, cp, len(offered), len(requested)); err != nil {
		return "", err
	}

	s := domain.ComputeSettlement(ini.ID, cp.ID, offered, requested)
	now := m.now()
	tr := &domain.Trade{
		ID:                  m.opts.NewID(),
		InitiatorTeamID:     ini.ID,
		CounterpartyTeamID:  cp.ID,
		InitiatorItems:      offered,
		CounterpartyItems:   requested,
		SettlementAmount:    s.Amount,
		SettlementDirection: s.Direction,
		Status:              domain.TradePendingCounterparty,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	m.trades[tr.ID] = tr
	m.tradeIDs = append(m.tradeIDs, tr.ID)
	m.lock(offered, tr.ID)
	m.touchTrade(tr.ID)
	m.emitTrade(domain.EventTradeProposed, tr, "")

	m.cancelRequesting(itemIDs(offered), tr.ID, "")
	return tr.ID, nil
}

// AcceptTrade is the counterparty's agreement. The requested items lock and
// every other pending proposal asking for them is cancelled. If a requested
// item was locked elsewhere in the meantime, this trade is cancelled instead.
func (m *Machine) AcceptTrade(teamID, tradeID string) error {
	tr, err := m.pendingTrade("accept trade", tradeID)
	if err != nil {
		return err
	}
	if tr.CounterpartyTeamID != teamID {
		return fmt.Errorf("%w: only team %s may accept trade %s", domain.ErrForbidden, tr.CounterpartyTeamID, tr.ID)
	}
	for _, it := range tr.CounterpartyItems {
		holder, locked := m.locks[it.ItemID]
		if !locked && m.items[it.ItemID].SoldTo == tr.CounterpartyTeamID {
			continue
		}
		reason := fmt.Sprintf("item %s is no longer available", it.ItemID)
		if locked {
			reason = fmt.Sprintf("item %s is locked by trade %s", it.ItemID, holder)
		}
		m.closeTrade(tr, domain.TradeCancelled, reason, domain.EventTradeCancelled)
		return fmt.Errorf("%w: %s; trade %s cancelled", domain.ErrValidation, reason, tr.ID)
	}

	m.lock(tr.CounterpartyItems, tr.ID)
	tr.Status = domain.TradeBothAgreed
	tr.UpdatedAt = m.now()
	m.touchTrade(tr.ID)
	m.emitTrade(domain.EventTradeAccepted, tr, "")

	m.cancelRequesting(itemIDs(tr.CounterpartyItems), tr.ID, "")
	return nil
}

// RejectTrade is the counterparty's refusal of a pending proposal.
func (m *Machine) RejectTrade(teamID, tradeID, reason string) error {
	tr, err := m.pendingTrade("reject trade", tradeID)
	if err != nil {
		return err
	}
	if tr.CounterpartyTeamID != teamID {
		return fmt.Errorf("%w: only team %s may reject trade %s", domain.ErrForbidden, tr.CounterpartyTeamID, tr.ID)
	}
	m.closeTrade(tr, domain.TradeRejected, reason, domain.EventTradeRejected)
	return nil
}

// WithdrawTrade lets the initiator take back a proposal not yet accepted.
func (m *Machine) WithdrawTrade(teamID, tradeID string) error {
	tr, err := m.pendingTrade("withdraw trade", tradeID)
	if err != nil {
		return err
	}
	if tr.InitiatorTeamID != teamID {
		return fmt.Errorf("%w: only team %s may withdraw trade %s", domain.ErrForbidden, tr.InitiatorTeamID, tr.ID)
	}
	m.closeTrade(tr, domain.TradeWithdrawn, "", domain.EventTradeWithdrawn)
	return nil
}

// AdminRejectTrade rejects any trade that has not executed.
func (m *Machine) AdminRejectTrade(actor domain.Actor, tradeID, reason string) error {
	if m.a.Status != domain.StatusTradeWindow {
		return m.violation("reject trade", "")
	}
	tr, err := m.trade(tradeID)
	if err != nil {
		return err
	}
	if tr.Status.Terminal() {
		return fmt.Errorf("%w: trade %s is %s", domain.ErrValidation, tr.ID, tr.Status)
	}
	m.closeTrade(tr, domain.TradeRejected, reason, domain.EventTradeRejected)
	return nil
}

// ApproveTrade executes an agreed trade: items swap owners and, when enabled,
// the settlement moves between purses. If the payer cannot cover the
// settlement, the returned warning describes the shortfall and nothing
// changes unless acknowledge is set, in which case the trade executes with
// the settlement waived.
func (m *Machine) ApproveTrade(actor domain.Actor, tradeID string, acknowledge bool) (*domain.SettlementWarning, error) {
	if m.a.Status != domain.StatusTradeWindow {
		return nil, m.violation("approve trade", "")
	}
	tr, err := m.trade(tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != domain.TradeBothAgreed {
		return nil, fmt.Errorf("%w: trade %s is %s, not both_agreed", domain.ErrValidation, tr.ID, tr.Status)
	}
	ini, cp := m.teams[tr.InitiatorTeamID], m.teams[tr.CounterpartyTeamID]
	if err := m.checkQuota(ini, cp); err != nil {
		return nil, err
	}
	if err := m.checkRosters(ini, cp, len(tr.InitiatorItems), len(tr.CounterpartyItems)); err != nil {
		return nil, err
	}

	var warning *domain.SettlementWarning
	s := domain.ComputeSettlement(ini.ID, cp.ID, tr.InitiatorItems, tr.CounterpartyItems)
	applied := int64(0)
	if m.a.Config.SettlementEnabled && s.Amount > 0 {
		payer := m.teams[s.PayerTeamID]
		if payer.PurseRemaining < s.Amount {
			warning = &domain.SettlementWarning{
				TradeID:     tr.ID,
				PayerTeamID: payer.ID,
				Required:    s.Amount,
				Available:   payer.PurseRemaining,
			}
			if !acknowledge {
				return warning, nil
			}
			tr.SettlementWaived = true
		} else {
			applied = s.Amount
		}
	}

	m.moveItems(tr.InitiatorItems, ini, cp)
	m.moveItems(tr.CounterpartyItems, cp, ini)
	if applied > 0 {
		m.teams[s.PayerTeamID].PurseRemaining -= applied
		m.teams[s.PayeeTeamID].PurseRemaining += applied
	}
	ini.TradesExecuted++
	cp.TradesExecuted++
	m.unlock(tr.ID)
	tr.Status = domain.TradeExecuted
	tr.UpdatedAt = m.now()

	m.touchTeam(ini.ID)
	m.touchTeam(cp.ID)
	m.touchTrade(tr.ID)
	payload := domain.ActionPayload{
		TradeID:     tr.ID,
		PayerTeamID: s.PayerTeamID,
		PayeeTeamID: s.PayeeTeamID,
		Settlement:  applied,
	}
	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionTradeExecuted,
		Forward:     payload,
		Reversal:    payload,
		PerformedBy: actor.Label(),
	})
	m.emit(domain.EventTradeExecuted, domain.AudiencePublic, domain.TradePayload{Trade: tradeView(tr), Warning: warning}, ini.ID, cp.ID)
	m.emitTeam(ini.ID)
	m.emitTeam(cp.ID)
	return warning, nil
}

func (m *Machine) pendingTrade(action, tradeID string) (*domain.Trade, error) {
	if m.a.Status != domain.StatusTradeWindow {
		return nil, m.violation(action, "")
	}
	tr, err := m.trade(tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != domain.TradePendingCounterparty {
		return nil, fmt.Errorf("%w: trade %s is %s", domain.ErrValidation, tr.ID, tr.Status)
	}
	return tr, nil
}

// tradeItems resolves items a team puts into a trade. Only items won at
// auction or received by trade qualify; retained items stay put.
func (m *Machine) tradeItems(team *domain.Team, ids []string) ([]domain.TradeItem, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]domain.TradeItem, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: item %s listed twice", domain.ErrValidation, id)
		}
		seen[id] = true
		if _, err := m.item(id); err != nil {
			return nil, err
		}
		entry, ok := team.SquadEntry(id)
		if !ok {
			return nil, fmt.Errorf("%w: item %s is not in the tradeable squad of %s", domain.ErrValidation, id, team.ID)
		}
		out = append(out, domain.TradeItem{ItemID: id, Price: entry.Price})
	}
	return out, nil
}

func (m *Machine) checkQuota(teams ...*domain.Team) error {
	limit := m.a.Config.MaxTradesPerTeam
	if limit <= 0 {
		return nil
	}
	for _, t := range teams {
		if t.TradesExecuted >= limit {
			return fmt.Errorf("%w: team %s has used its %d trades", domain.ErrValidation, t.ID, limit)
		}
	}
	return nil
}

func (m *Machine) checkRosters(ini, cp *domain.Team, gives, gets int) error {
	limit := m.a.Config.MaxSquad
	if ini.RosterSize()-gives+gets > limit {
		return fmt.Errorf("%w: trade would push %s above %d items", domain.ErrValidation, ini.ID, limit)
	}
	if cp.RosterSize()-gets+gives > limit {
		return fmt.Errorf("%w: trade would push %s above %d items", domain.ErrValidation, cp.ID, limit)
	}
	return nil
}

// moveItems transfers squad entries, keeping their acquisition price and round.
func (m *Machine) moveItems(items []domain.TradeItem, from, to *domain.Team) {
	for _, it := range items {
		entry, _ := from.SquadEntry(it.ItemID)
		from.RemoveSquadEntry(it.ItemID)
		to.Squad = append(to.Squad, entry)
		m.items[it.ItemID].SoldTo = to.ID
		m.touchItem(it.ItemID)
	}
}

func (m *Machine) lock(items []domain.TradeItem, tradeID string) {
	for _, it := range items {
		m.locks[it.ItemID] = tradeID
	}
}

func (m *Machine) unlock(tradeID string) {
	for item, holder := range m.locks {
		if holder == tradeID {
			delete(m.locks, item)
		}
	}
}

// closeTrade moves a live trade to a terminal status and frees its items.
func (m *Machine) closeTrade(tr *domain.Trade, status domain.TradeStatus, reason string, ev domain.EventType) {
	tr.Status = status
	tr.Reason = reason
	tr.UpdatedAt = m.now()
	m.unlock(tr.ID)
	m.touchTrade(tr.ID)
	m.emitTrade(ev, tr, reason)
}

// cancelRequesting cancels every pending proposal, other than except, that
// asks for one of the given items.
func (m *Machine) cancelRequesting(items []string, except, reason string) {
	for _, id := range m.tradeIDs {
		tr := m.trades[id]
		if id == except || tr.Status != domain.TradePendingCounterparty {
			continue
		}
		for _, item := range items {
			if !tr.Requests(item) {
				continue
			}
			why := reason
			if why == "" {
				why = fmt.Sprintf("requested item %s was committed to another trade", item)
			}
			m.closeTrade(tr, domain.TradeCancelled, why, domain.EventTradeCancelled)
			break
		}
	}
}

func (m *Machine) emitTrade(typ domain.EventType, tr *domain.Trade, reason string) {
	m.emit(typ, domain.AudienceTeam, domain.TradePayload{Trade: tradeView(tr), Reason: reason}, tr.InitiatorTeamID, tr.CounterpartyTeamID)
}

func itemIDs(items []domain.TradeItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	return ids
}
