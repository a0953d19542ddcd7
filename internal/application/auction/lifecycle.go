package auction

import (
	"fmt"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Configure validates the rule set and moves a draft auction to configured.
// A nil cfg keeps the rules the auction was created with. Reconfiguring an
// already configured auction is allowed until it goes live.
func (m *Machine) Configure(actor domain.Actor, cfg *domain.Config) error {
	if m.a.Status != domain.StatusDraft && m.a.Status != domain.StatusConfigured {
		return m.violation("configure", "")
	}
	next := m.a.Config
	if cfg != nil {
		next = cfg.WithDefaults()
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if len(m.teamIDs) < 2 {
		return m.violation("configure", "at least two teams are required")
	}
	if len(m.a.RemainingPool) == 0 {
		return m.violation("configure", "the pool is empty")
	}
	for _, id := range m.teamIDs {
		t := m.teams[id]
		var retained int64
		for _, r := range t.Retained {
			retained += r.Price
		}
		if retained > next.Purse {
			return fmt.Errorf("%w: retained items of team %q cost %d, above purse %d", domain.ErrValidation, id, retained, next.Purse)
		}
		if t.RosterSize() > next.MaxSquad {
			return fmt.Errorf("%w: team %q retains more than %d items", domain.ErrValidation, id, next.MaxSquad)
		}
	}

	prev := m.a.Status
	m.a.Config = next
	m.a.Status = domain.StatusConfigured
	m.resetPurses()
	for _, id := range m.teamIDs {
		m.touchTeam(id)
		m.emitTeam(id)
	}
	m.touchAuction()
	m.emitStatus(prev, "", "")
	return nil
}

// GoLive opens the auction floor with an empty bidding slot.
func (m *Machine) GoLive(actor domain.Actor) error {
	if m.a.Status != domain.StatusConfigured {
		return m.violation("go live", "")
	}
	m.a.Status = domain.StatusLive
	m.a.CurrentRound = 1
	m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
	m.touchAuction()
	m.emitStatus(domain.StatusConfigured, "", "")
	return nil
}

// Pause halts a live auction. An item under the hammer is voided: its bids
// are discarded and it goes back to the pool.
func (m *Machine) Pause(actor domain.Actor, reason string) error {
	if m.a.Status != domain.StatusLive {
		return m.violation("pause", "")
	}
	voided := m.voidActive()
	m.a.Bidding = nil
	m.a.Status = domain.StatusPaused
	m.touchAuction()
	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionAuctionPaused,
		Forward:     domain.ActionPayload{Reason: reason, ItemID: voided},
		PerformedBy: actor.Label(),
	})
	m.emitStatus(domain.StatusLive, reason, voided)
	return nil
}

// Resume returns a paused auction to live. If the pause voided an item, a
// new one is drawn at random right away.
func (m *Machine) Resume(actor domain.Actor) error {
	if m.a.Status != domain.StatusPaused {
		return m.violation("resume", "")
	}
	m.a.Status = domain.StatusLive
	m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
	m.touchAuction()
	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionAuctionResumed,
		PerformedBy: actor.Label(),
	})
	m.emitStatus(domain.StatusPaused, "", "")

	if last, ok := m.log.last(domain.ActionAuctionPaused); ok && last.Forward.ItemID != "" && m.canPick() {
		return m.pickNext()
	}
	return nil
}

// Complete closes the bidding floor. It requires an exhausted pool, every
// roster at the minimum size, or force. Force also voids an item in flight.
func (m *Machine) Complete(actor domain.Actor, force bool) error {
	if m.a.Status != domain.StatusLive && m.a.Status != domain.StatusPaused {
		return m.violation("complete", "")
	}
	active := m.a.Bidding != nil && !m.a.Bidding.Phase.Idle()
	if active && !force {
		return m.violation("complete", "an item is under the hammer")
	}
	if !force && m.canPick() && !m.allSquadsMet() {
		return m.violation("complete", "pool not exhausted and squads below minimum")
	}

	prev := m.a.Status
	voided := ""
	if m.a.Status == domain.StatusLive {
		voided = m.voidActive()
	}
	m.a.Bidding = nil
	m.a.Status = domain.StatusCompleted
	m.touchAuction()
	m.emitStatus(prev, "", voided)
	return nil
}

// OpenTradeWindow starts post-auction negotiation. When the configured
// window elapses the auction finalizes on its own.
func (m *Machine) OpenTradeWindow(actor domain.Actor) error {
	if m.a.Status != domain.StatusCompleted {
		return m.violation("open trade window", "")
	}
	m.a.Status = domain.StatusTradeWindow
	if m.a.Config.TradeWindow > 0 {
		m.a.TradeWindowEndsAt = m.now().Add(m.a.Config.TradeWindow)
	}
	m.touchAuction()
	m.emitStatus(domain.StatusCompleted, "", "")
	return nil
}

// Finalize expires every trade that has not executed and closes the auction.
func (m *Machine) Finalize(actor domain.Actor) error {
	if m.a.Status != domain.StatusTradeWindow {
		return m.violation("finalize", "")
	}
	for _, id := range m.tradeIDs {
		tr := m.trades[id]
		if tr.Status.Terminal() {
			continue
		}
		m.closeTrade(tr, domain.TradeExpired, "trade window closed", domain.EventTradeExpired)
	}
	m.a.Status = domain.StatusFinalized
	m.a.TradeWindowEndsAt = m.now()
	m.touchAuction()
	m.emitStatus(domain.StatusTradeWindow, "", "")
	return nil
}

// Announce broadcasts an administrator message and records it in the log.
func (m *Machine) Announce(actor domain.Actor, message string) error {
	if message == "" {
		return fmt.Errorf("%w: announcement is empty", domain.ErrValidation)
	}
	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionAnnouncement,
		Forward:     domain.ActionPayload{Message: message},
		PerformedBy: actor.Label(),
	})
	m.emit(domain.EventAnnouncement, domain.AudiencePublic, domain.AnnouncementPayload{Message: message, By: actor.Label()})
	return nil
}

func (m *Machine) emitStatus(prev domain.Status, reason, voided string) {
	m.emit(domain.EventStatusChanged, domain.AudiencePublic, domain.StatusPayload{
		Status:       m.a.Status,
		Previous:     prev,
		Reason:       reason,
		VoidedItemID: voided,
		Round:        m.a.CurrentRound,
	})
}

func (m *Machine) allSquadsMet() bool {
	for _, id := range m.teamIDs {
		if m.teams[id].RosterSize() < m.a.Config.MinSquad {
			return false
		}
	}
	return true
}
