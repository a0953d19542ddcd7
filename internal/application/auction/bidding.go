package auction

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// PickNext draws the next item uniformly at random from the pool and reveals
// it. When the current round is exhausted, unsold items carried over start
// the next round.
func (m *Machine) PickNext(actor domain.Actor) error {
	if m.a.Status != domain.StatusLive {
		return m.violation("pick next", "")
	}
	if !m.a.Bidding.Phase.Idle() {
		return m.violation("pick next", "an item is under the hammer")
	}
	if !m.canPick() {
		return m.violation("pick next", "pool exhausted")
	}
	return m.pickNext()
}

func (m *Machine) canPick() bool {
	return len(m.a.RemainingPool) > 0 || len(m.a.NextRoundPool) > 0
}

func (m *Machine) pickNext() error {
	if len(m.a.RemainingPool) == 0 {
		if len(m.a.NextRoundPool) == 0 {
			return m.violation("pick next", "pool exhausted")
		}
		m.a.CurrentRound++
		m.a.RemainingPool, m.a.NextRoundPool = m.a.NextRoundPool, nil
		for _, id := range m.a.RemainingPool {
			m.items[id].Status = domain.ItemPool
			m.touchItem(id)
		}
	}

	idx := m.opts.Rand.IntN(len(m.a.RemainingPool))
	id := m.a.RemainingPool[idx]
	m.a.RemainingPool = append(m.a.RemainingPool[:idx], m.a.RemainingPool[idx+1:]...)
	m.reveal(m.items[id])
	return nil
}

// reveal puts an item into the bidding slot. No bids are taken until the
// reveal delay elapses.
func (m *Machine) reveal(item *domain.Item) {
	item.Status = domain.ItemInAuction
	m.touchItem(item.ID)
	m.a.Bidding = &domain.BiddingState{
		ItemID:         item.ID,
		Phase:          domain.PhaseRevealed,
		PhaseExpiresAt: m.now().Add(m.a.Config.Timers.Reveal),
	}
	m.touchAuction()
	m.emit(domain.EventItemRevealed, domain.AudiencePublic, domain.RevealPayload{
		Item:           m.itemView(item),
		Round:          m.a.CurrentRound,
		OpeningBid:     item.OpeningBid(m.a.Config),
		Phase:          domain.PhaseRevealed,
		PhaseExpiresAt: m.a.Bidding.PhaseExpiresAt,
	})
}

// SubmitBid evaluates one bid. Every submission lands in the bid audit log;
// a refused bid returns *domain.BidRejection and leaves the auction untouched.
func (m *Machine) SubmitBid(teamID string, amount int64) error {
	b := m.a.Bidding
	in := BidInput{
		Status: m.a.Status,
		State:  b,
		Config: m.a.Config,
		Amount: amount,
	}
	if t, ok := m.teams[teamID]; ok {
		in.Team = t
	}
	itemID := ""
	if b != nil && b.ItemID != "" {
		itemID = b.ItemID
		in.Opening = m.items[itemID].OpeningBid(m.a.Config)
	}

	audit := domain.BidAudit{
		ItemID: itemID,
		TeamID: teamID,
		Amount: amount,
		Round:  m.a.CurrentRound,
		At:     m.now(),
	}
	if rej := ValidateBid(in); rej != nil {
		rej.TeamID = teamID
		audit.Reason = rej.Reason
		audit.Required = rej.Required
		m.recordBid(audit)
		m.emit(domain.EventBidRejected, domain.AudiencePublic, domain.BidPayload{
			ItemID: itemID,
			TeamID: teamID,
			Amount: amount,
			Reason: rej.Reason,
			Detail: rej.Error(),
		})
		return rej
	}

	audit.Accepted = true
	audit.Required = amount
	m.recordBid(audit)

	b.BidHistory = append(b.BidHistory, domain.Bid{TeamID: teamID, Amount: amount, At: audit.At})
	b.CurrentBid = amount
	b.CurrentBidTeamID = teamID
	b.Phase = domain.PhaseOpen
	b.PhaseExpiresAt = m.now().Add(m.a.Config.Timers.BidReset)
	m.touchAuction()
	m.emit(domain.EventBidAccepted, domain.AudiencePublic, domain.BidPayload{
		ItemID:         itemID,
		TeamID:         teamID,
		Amount:         amount,
		NextRequired:   domain.RequiredBid(b, in.Opening, m.a.Config),
		Phase:          b.Phase,
		PhaseExpiresAt: b.PhaseExpiresAt,
	})
	return nil
}

func (m *Machine) recordBid(audit domain.BidAudit) {
	audit.Seq = 1
	if n := len(m.bids); n > 0 {
		audit.Seq = m.bids[n-1].Seq + 1
	}
	m.bids = append(m.bids, audit)
	m.fx.bids = append(m.fx.bids, audit)
}

// expirePhase advances the bidding slot when its timer runs out.
func (m *Machine) expirePhase() {
	b := m.a.Bidding
	t := m.a.Config.Timers
	switch b.Phase {
	case domain.PhaseRevealed:
		m.setPhase(domain.PhaseOpen, t.Open)
	case domain.PhaseOpen:
		m.setPhase(domain.PhaseGoingOnce, t.GoingOnce)
	case domain.PhaseGoingOnce:
		m.setPhase(domain.PhaseGoingTwice, t.GoingTwice)
	case domain.PhaseGoingTwice:
		if len(b.BidHistory) > 0 {
			m.resolveSold()
		} else {
			m.resolveUnsold(domain.SystemActor, false)
		}
	case domain.PhaseSold, domain.PhaseUnsold:
		// auto-advance intermission
		b.PhaseExpiresAt = time.Time{}
		m.touchAuction()
		if m.canPick() {
			_ = m.pickNext()
		}
	default:
		b.PhaseExpiresAt = time.Time{}
	}
}

func (m *Machine) setPhase(p domain.Phase, d time.Duration) {
	b := m.a.Bidding
	b.Phase = p
	b.PhaseExpiresAt = m.now().Add(d)
	m.touchAuction()
	m.emit(domain.EventPhaseChanged, domain.AudiencePublic, domain.PhasePayload{
		ItemID:           b.ItemID,
		Phase:            p,
		PhaseExpiresAt:   b.PhaseExpiresAt,
		CurrentBid:       b.CurrentBid,
		CurrentBidTeamID: b.CurrentBidTeamID,
		NextRequired:     domain.RequiredBid(b, m.items[b.ItemID].OpeningBid(m.a.Config), m.a.Config),
	})
}

// resolveSold hands the item to the highest bidder.
func (m *Machine) resolveSold() {
	b := m.a.Bidding
	item := m.items[b.ItemID]
	team := m.teams[b.CurrentBidTeamID]
	round := m.a.CurrentRound

	team.PurseRemaining -= b.CurrentBid
	team.Squad = append(team.Squad, domain.SquadEntry{ItemID: item.ID, Price: b.CurrentBid, Round: round})
	item.Status = domain.ItemSold
	item.SoldTo = team.ID
	item.SoldAmount = b.CurrentBid
	item.SoldInRound = round
	item.RoundHistory = append(item.RoundHistory, domain.RoundOutcome{
		Round: round, Outcome: domain.ItemSold, TeamID: team.ID, Amount: b.CurrentBid,
	})
	m.finishSlot(domain.PhaseSold)
	m.touchTeam(team.ID)
	m.touchItem(item.ID)

	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionPlayerSold,
		Forward:     domain.ActionPayload{ItemID: item.ID, TeamID: team.ID, Amount: b.CurrentBid, Round: round},
		Reversal:    domain.ActionPayload{ItemID: item.ID, TeamID: team.ID, Amount: b.CurrentBid, Status: domain.ItemPool, Slot: domain.SlotCurrent},
		PerformedBy: domain.SystemActor.Label(),
	})
	m.emit(domain.EventItemSold, domain.AudiencePublic, domain.OutcomePayload{
		ItemID: item.ID, TeamID: team.ID, Amount: b.CurrentBid, Round: round,
	})
	m.emitTeam(team.ID)
}

// resolveUnsold closes the slot without a sale. The item waits for the next
// round unless this was the last one.
func (m *Machine) resolveUnsold(actor domain.Actor, skipped bool) {
	b := m.a.Bidding
	item := m.items[b.ItemID]
	round := m.a.CurrentRound
	permanent := round >= m.a.Config.MaxRounds

	item.Status = domain.ItemUnsold
	item.RoundHistory = append(item.RoundHistory, domain.RoundOutcome{Round: round, Outcome: domain.ItemUnsold})
	slot := domain.SlotNone
	if !permanent {
		m.a.NextRoundPool = append(m.a.NextRoundPool, item.ID)
		slot = domain.SlotNextRound
	}
	b.BidHistory = nil
	b.CurrentBid = 0
	b.CurrentBidTeamID = ""
	m.finishSlot(domain.PhaseUnsold)
	m.touchItem(item.ID)

	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionPlayerUnsold,
		Forward:     domain.ActionPayload{ItemID: item.ID, Round: round, Slot: slot, Skipped: skipped},
		Reversal:    domain.ActionPayload{ItemID: item.ID, Status: domain.ItemInAuction, Slot: slot},
		PerformedBy: actor.Label(),
	})
	m.emit(domain.EventItemUnsold, domain.AudiencePublic, domain.OutcomePayload{
		ItemID: item.ID, Round: round, Skipped: skipped, Permanent: permanent,
	})
}

// finishSlot parks the slot in a terminal phase, arming the intermission
// timer when auto-advance is on.
func (m *Machine) finishSlot(p domain.Phase) {
	b := m.a.Bidding
	b.Phase = p
	b.PhaseExpiresAt = time.Time{}
	if m.a.Config.AutoAdvance && m.canPick() {
		b.PhaseExpiresAt = m.now().Add(m.a.Config.Timers.Intermission)
	}
	m.touchAuction()
}

// SkipCurrent ends the active item as unsold without waiting for the timers.
// Any bids already placed are voided.
func (m *Machine) SkipCurrent(actor domain.Actor) error {
	if m.a.Status != domain.StatusLive {
		return m.violation("skip", "")
	}
	if m.a.Bidding.Phase.Idle() {
		return m.violation("skip", "no item is under the hammer")
	}
	m.resolveUnsold(actor, true)
	return nil
}

// voidActive discards the item under the hammer and returns it to the pool.
func (m *Machine) voidActive() string {
	b := m.a.Bidding
	if b == nil || b.Phase.Idle() {
		return ""
	}
	item := m.items[b.ItemID]
	item.Status = domain.ItemPool
	m.a.RemainingPool = append(m.a.RemainingPool, item.ID)
	m.touchItem(item.ID)
	m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
	m.touchAuction()
	return item.ID
}

// Disqualify withdraws an item from the auction wherever it is. A sold item
// is taken back from its team and the price refunded.
func (m *Machine) Disqualify(actor domain.Actor, itemID, reason string) error {
	if m.a.Status == domain.StatusDraft || m.a.Status == domain.StatusFinalized {
		return m.violation("disqualify", "")
	}
	item, err := m.item(itemID)
	if err != nil {
		return err
	}
	if item.Status == domain.ItemDisqualified {
		return fmt.Errorf("%w: item %q is already disqualified", domain.ErrValidation, itemID)
	}
	if tradeID, locked := m.locks[itemID]; locked {
		return fmt.Errorf("%w: item %q is locked by trade %s", domain.ErrValidation, itemID, tradeID)
	}
	if item.Status == domain.ItemSold {
		team := m.teams[item.SoldTo]
		if _, ok := team.SquadEntry(itemID); !ok {
			return fmt.Errorf("%w: retained item %q cannot be disqualified", domain.ErrValidation, itemID)
		}
	}

	rev := domain.ActionPayload{ItemID: itemID, Status: item.Status}
	fwd := domain.ActionPayload{ItemID: itemID, Reason: reason}
	var ok bool
	switch item.Status {
	case domain.ItemPool:
		m.a.RemainingPool, _ = removeID(m.a.RemainingPool, itemID)
		rev.Slot = domain.SlotCurrent
	case domain.ItemUnsold:
		if m.a.NextRoundPool, ok = removeID(m.a.NextRoundPool, itemID); ok {
			rev.Slot = domain.SlotNextRound
			rev.Round = m.a.CurrentRound
		}
	case domain.ItemInAuction:
		m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
		rev.Status = domain.ItemPool
		rev.Slot = domain.SlotCurrent
	case domain.ItemSold:
		team := m.teams[item.SoldTo]
		team.RemoveSquadEntry(itemID)
		team.PurseRemaining += item.SoldAmount
		rev.TeamID, rev.Amount, rev.Round = team.ID, item.SoldAmount, item.SoldInRound
		fwd.TeamID, fwd.Amount = team.ID, item.SoldAmount
		item.SoldTo, item.SoldAmount, item.SoldInRound = "", 0, 0
		m.touchTeam(team.ID)
		if b := m.a.Bidding; b != nil && b.ItemID == itemID {
			m.a.Bidding = &domain.BiddingState{Phase: domain.PhaseWaiting}
		}
	}
	item.Status = domain.ItemDisqualified
	m.touchItem(itemID)
	m.touchAuction()

	m.appendAction(domain.ActionEvent{
		Type:        domain.ActionPlayerDisqualified,
		Forward:     fwd,
		Reversal:    rev,
		PerformedBy: actor.Label(),
	})
	m.emit(domain.EventItemDisqualified, domain.AudiencePublic, domain.OutcomePayload{
		ItemID: itemID, TeamID: fwd.TeamID, Amount: fwd.Amount, Round: m.a.CurrentRound, Reason: reason,
	})
	if fwd.TeamID != "" {
		m.emitTeam(fwd.TeamID)
	}
	m.cancelRequesting([]string{itemID}, "", fmt.Sprintf("item %s was disqualified", itemID))
	return nil
}
