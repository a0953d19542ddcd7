package auction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

func TestUndo_Sale(t *testing.T) {
	h := newHarness(t).live()
	itemID, price := h.buy("a", "b", 2)
	require.Equal(t, int64(800_000), h.team("a").PurseRemaining)
	h.m.Drain()

	desc, err := h.m.Undo(admin)
	require.NoError(t, err)
	assert.Contains(t, desc, "Player")
	assert.Contains(t, desc, "Alpha")

	a := h.team("a")
	assert.Equal(t, int64(1_000_000), a.PurseRemaining)
	assert.Empty(t, a.Squad)

	it := h.item(itemID)
	assert.Equal(t, domain.ItemPool, it.Status)
	assert.Empty(t, it.SoldTo)
	assert.Empty(t, it.RoundHistory)
	assert.Contains(t, h.m.Auction().RemainingPool, itemID)
	assert.Equal(t, domain.PhaseWaiting, h.bidding().Phase)

	actions := h.m.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionPlayerSold, actions[0].Type)
	assert.Equal(t, price, actions[0].Forward.Amount)
	assert.True(t, actions[0].IsUndone)
	assert.Equal(t, domain.ActionUndoApplied, actions[1].Type)
	assert.Equal(t, actions[0].Seq, actions[1].Forward.UndoneSeq)

	events, batch := h.m.Drain()
	assert.Contains(t, eventTypes(events), domain.EventUndoApplied)
	assert.Len(t, batch.Actions, 2, "the undone flag and the undo entry")
}

func TestUndo_NothingToUndo(t *testing.T) {
	h := newHarness(t).live()
	_, err := h.m.Undo(admin)
	assert.ErrorIs(t, err, domain.ErrUndo)
	events, _ := h.m.Drain()
	assert.Empty(t, events, "failures are not broadcast")
}

func TestUndo_ConsecutiveLimit(t *testing.T) {
	h := newHarness(t).live()
	for range 4 {
		h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}

	// the most recent unsold item goes straight back under the hammer
	_, err := h.m.Undo(admin)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseRevealed, h.bidding().Phase)

	for range 2 {
		_, err = h.m.Undo(admin)
		require.NoError(t, err)
	}
	assert.Len(t, h.m.Auction().RemainingPool, 3)

	_, err = h.m.Undo(admin)
	require.ErrorIs(t, err, domain.ErrUndo)
	assert.Contains(t, err.Error(), "3 consecutive undos")

	// a fresh undoable action resets the streak
	require.NoError(t, h.m.SkipCurrent(admin))
	_, err = h.m.Undo(admin)
	assert.NoError(t, err)
}

func TestUndo_StreakSurvivesPauseAndAnnouncements(t *testing.T) {
	h := newHarness(t).live()
	for range 4 {
		h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}
	for range 3 {
		_, err := h.m.Undo(admin)
		require.NoError(t, err)
	}
	require.NoError(t, h.m.Announce(admin, "checking"))
	require.NoError(t, h.m.Pause(admin, ""))
	require.NoError(t, h.m.Resume(admin))

	_, err := h.m.Undo(admin)
	assert.ErrorIs(t, err, domain.ErrUndo)
}

func TestUndo_Disqualification(t *testing.T) {
	h := newHarness(t).live()
	itemID, _ := h.buy("a", "b", 0)
	require.NoError(t, h.m.Disqualify(admin, itemID, "eligibility"))
	require.Equal(t, int64(1_000_000), h.team("a").PurseRemaining)

	_, err := h.m.Undo(admin)
	require.NoError(t, err)

	it := h.item(itemID)
	assert.Equal(t, domain.ItemSold, it.Status)
	assert.Equal(t, "a", it.SoldTo)
	assert.Equal(t, int64(900_000), h.team("a").PurseRemaining)
	_, ok := h.team("a").SquadEntry(itemID)
	assert.True(t, ok)
}

// Re-charging a team must leave room for the bid it holds on the live item.
func TestUndo_DisqualificationRespectsHeldBid(t *testing.T) {
	h := newHarness(t, func(s *domain.Setup) {
		s.Config.MinSquad = 0
		s.Config.Purse = 300_000
	}).live()
	first, _ := h.buy("a", "b", 0)
	require.NoError(t, h.m.Disqualify(admin, first, ""))
	require.Equal(t, int64(300_000), h.team("a").PurseRemaining)

	h.open()
	bidders := []string{"a", "b"}
	for i := range 5 {
		require.NoError(t, h.m.SubmitBid(bidders[i%2], h.required()))
	}
	require.Equal(t, "a", h.bidding().CurrentBidTeamID)
	require.Equal(t, int64(300_000), h.bidding().CurrentBid)
	h.m.Drain()

	_, err := h.m.Undo(admin)
	require.ErrorIs(t, err, domain.ErrUndo)
	assert.Contains(t, err.Error(), "high bid")
	assert.Equal(t, domain.ItemDisqualified, h.item(first).Status)
	events, batch := h.m.Drain()
	assert.Empty(t, events)
	assert.True(t, batch.Empty())

	h.hammer()
	a := h.team("a")
	assert.Equal(t, int64(0), a.PurseRemaining)
	assert.Len(t, a.Squad, 1)
}

func TestUndo_DisqualificationRespectsSquadLimit(t *testing.T) {
	h := newHarness(t, func(s *domain.Setup) {
		s.Config.MinSquad = 0
		s.Config.MaxSquad = 2
	}).live()
	first, _ := h.buy("a", "b", 0)
	h.buy("a", "b", 0)
	require.NoError(t, h.m.Disqualify(admin, first, ""))

	h.open()
	require.NoError(t, h.m.SubmitBid("a", h.required()))

	_, err := h.m.Undo(admin)
	require.ErrorIs(t, err, domain.ErrUndo)
	assert.Contains(t, err.Error(), "overflow")

	h.hammer()
	assert.Equal(t, 2, h.team("a").RosterSize())
}

func TestUndo_DisqualificationAfterRoundAdvanced(t *testing.T) {
	h := newHarness(t).live()
	var carried string
	for range 5 {
		carried = h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}
	require.NoError(t, h.m.Disqualify(admin, carried, ""))
	require.Len(t, h.m.Auction().NextRoundPool, 4)

	h.open()
	require.Equal(t, 2, h.m.Auction().CurrentRound)

	_, err := h.m.Undo(admin)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemPool, h.item(carried).Status)
	assert.Contains(t, h.m.Auction().RemainingPool, carried)
	assert.Empty(t, h.m.Auction().NextRoundPool)

	require.NoError(t, h.m.SkipCurrent(admin))
	for range 4 {
		h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}
	assert.Equal(t, 2, h.m.Auction().CurrentRound, "no round past the last")
	require.NoError(t, h.m.Complete(admin, false))
}

func TestUndo_SaleAfterBiddingClosedFails(t *testing.T) {
	h := newHarness(t).live()
	h.buy("a", "b", 0)
	require.NoError(t, h.m.Complete(admin, true))
	require.NoError(t, h.m.OpenTradeWindow(admin))
	h.m.Drain()
	before := h.team("a")

	_, err := h.m.Undo(admin)
	require.ErrorIs(t, err, domain.ErrLifecycleViolation)

	assert.Equal(t, before, h.team("a"))
	assert.False(t, h.m.Actions()[0].IsUndone)
	events, batch := h.m.Drain()
	assert.Empty(t, events)
	assert.True(t, batch.Empty())
}
