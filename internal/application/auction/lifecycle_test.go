package auction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/application/auction"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

func TestNewMachine_RetainedItemsLeaveThePool(t *testing.T) {
	h := newHarness(t)

	a := h.m.Auction()
	assert.Equal(t, domain.StatusDraft, a.Status)
	assert.Len(t, a.RemainingPool, 5)
	assert.NotContains(t, a.RemainingPool, "i6")

	c := h.team("c")
	assert.Equal(t, 1, c.RosterSize())
	assert.Equal(t, int64(800_000), c.PurseRemaining)
	assert.Equal(t, domain.ItemSold, h.item("i6").Status)
}

func TestNewMachine_RejectsBadSetup(t *testing.T) {
	_, err := auction.NewMachine(domain.Setup{}, auction.Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	s := testSetup()
	s.Items = append(s.Items, s.Items[0])
	_, err = auction.NewMachine(s, auction.Options{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	s = testSetup()
	s.Teams[0].Retained = []domain.RetainedItem{{ItemID: "nope", Price: 1}}
	_, err = auction.NewMachine(s, auction.Options{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycle_FullPath(t *testing.T) {
	h := newHarness(t)
	m := h.m

	require.NoError(t, m.Configure(admin, nil))
	assert.Equal(t, domain.StatusConfigured, m.Status())
	require.NoError(t, m.GoLive(admin))
	assert.Equal(t, domain.StatusLive, m.Status())
	assert.Equal(t, 1, m.Auction().CurrentRound)
	assert.Equal(t, domain.PhaseWaiting, h.bidding().Phase)

	require.NoError(t, m.Pause(admin, "coffee"))
	assert.Equal(t, domain.StatusPaused, m.Status())
	assert.Nil(t, m.Auction().Bidding)
	require.NoError(t, m.Resume(admin))
	assert.Equal(t, domain.StatusLive, m.Status())

	require.NoError(t, m.Complete(admin, true))
	assert.Equal(t, domain.StatusCompleted, m.Status())
	require.NoError(t, m.OpenTradeWindow(admin))
	assert.Equal(t, domain.StatusTradeWindow, m.Status())
	assert.Equal(t, t0.Add(testConfig().TradeWindow), m.Auction().TradeWindowEndsAt)
	require.NoError(t, m.Finalize(admin))
	assert.Equal(t, domain.StatusFinalized, m.Status())
}

func TestLifecycle_IllegalTransitionHasNoEffect(t *testing.T) {
	h := newHarness(t)
	before := h.m.Auction()

	err := h.m.GoLive(admin)
	require.ErrorIs(t, err, domain.ErrLifecycleViolation)
	var le *domain.LifecycleError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, domain.StatusDraft, le.From)

	for _, f := range []func() error{
		func() error { return h.m.Pause(admin, "") },
		func() error { return h.m.Resume(admin) },
		func() error { return h.m.PickNext(admin) },
		func() error { return h.m.Complete(admin, true) },
		func() error { return h.m.OpenTradeWindow(admin) },
		func() error { return h.m.Finalize(admin) },
	} {
		assert.ErrorIs(t, f(), domain.ErrLifecycleViolation)
	}

	events, batch := h.m.Drain()
	assert.Empty(t, events)
	assert.True(t, batch.Empty())
	assert.Equal(t, before, h.m.Auction())
}

func TestConfigure_Guards(t *testing.T) {
	h := newHarness(t, func(s *domain.Setup) { s.Teams = s.Teams[:1] })
	assert.ErrorIs(t, h.m.Configure(admin, nil), domain.ErrLifecycleViolation)

	h = newHarness(t, func(s *domain.Setup) {
		s.Items = s.Items[5:] // only the retained item
	})
	assert.ErrorIs(t, h.m.Configure(admin, nil), domain.ErrLifecycleViolation)

	h = newHarness(t)
	bad := testConfig()
	bad.MinSquad = 10
	assert.ErrorIs(t, h.m.Configure(admin, &bad), domain.ErrValidation)
	assert.Equal(t, domain.StatusDraft, h.m.Status())

	cheaper := testConfig()
	cheaper.Purse = 150_000
	assert.ErrorIs(t, h.m.Configure(admin, &cheaper), domain.ErrValidation, "c retains 200k")
}

func TestConfigure_NewPurseResetsTeams(t *testing.T) {
	h := newHarness(t)
	cfg := testConfig()
	cfg.Purse = 2_000_000
	require.NoError(t, h.m.Configure(admin, &cfg))

	assert.Equal(t, int64(2_000_000), h.team("a").PurseRemaining)
	assert.Equal(t, int64(1_800_000), h.team("c").PurseRemaining)
	assert.Equal(t, int64(2_000_000), h.team("c").PurseInitial)
}

func TestComplete_Guards(t *testing.T) {
	h := newHarness(t).live()

	err := h.m.Complete(admin, false)
	assert.ErrorIs(t, err, domain.ErrLifecycleViolation, "pool not exhausted")

	h.open()
	assert.ErrorIs(t, h.m.Complete(admin, false), domain.ErrLifecycleViolation, "item under the hammer")

	require.NoError(t, h.m.Complete(admin, true))
	a := h.m.Auction()
	assert.Len(t, a.RemainingPool, 5, "forced completion returns the active item")
}

func TestComplete_WhenPoolExhausted(t *testing.T) {
	h := newHarness(t).live()
	for range 5 {
		h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}
	// the round-two pool still has items
	assert.ErrorIs(t, h.m.Complete(admin, false), domain.ErrLifecycleViolation)
	for range 5 {
		h.open()
		require.NoError(t, h.m.SkipCurrent(admin))
	}
	assert.Equal(t, 2, h.m.Auction().CurrentRound)
	require.NoError(t, h.m.Complete(admin, false))
}

func TestPause_VoidsActiveItem(t *testing.T) {
	h := newHarness(t).live()
	itemID := h.open()
	require.NoError(t, h.m.SubmitBid("a", 100_000))
	h.m.Drain()

	require.NoError(t, h.m.Pause(admin, "dispute"))

	it := h.item(itemID)
	assert.Equal(t, domain.ItemPool, it.Status)
	assert.Contains(t, h.m.Auction().RemainingPool, itemID)
	assert.Equal(t, int64(1_000_000), h.team("a").PurseRemaining)
	assert.Empty(t, h.team("a").Squad)

	events, _ := h.m.Drain()
	require.Len(t, events, 1)
	p := events[0].Payload.(domain.StatusPayload)
	assert.Equal(t, itemID, p.VoidedItemID)
	assert.Equal(t, "dispute", p.Reason)

	_, armed := h.m.Deadline()
	assert.False(t, armed, "no timer while paused")

	require.NoError(t, h.m.Resume(admin))
	b := h.bidding()
	assert.Equal(t, domain.PhaseRevealed, b.Phase, "resume draws a fresh item")
	assert.Empty(t, b.BidHistory)
}

// The voided item goes back into the draw; resume does not hand it straight
// back to the floor.
func TestResume_RedrawsFromWholePool(t *testing.T) {
	drawn := map[string]int{}
	redrawn := 0
	for seed := uint64(1); seed <= 50; seed++ {
		h := newSeededHarness(t, seed).live()
		require.NoError(t, h.m.PickNext(admin))
		voided := h.bidding().ItemID
		require.NoError(t, h.m.Pause(admin, ""))
		require.Contains(t, h.m.Auction().RemainingPool, voided)
		require.Len(t, h.m.Auction().RemainingPool, 5)

		require.NoError(t, h.m.Resume(admin))
		b := h.bidding()
		require.Equal(t, domain.PhaseRevealed, b.Phase)
		assert.NotContains(t, h.m.Auction().RemainingPool, b.ItemID)
		drawn[b.ItemID]++
		if b.ItemID == voided {
			redrawn++
		}
	}
	assert.Greater(t, len(drawn), 1, "the item drawn on resume depends on the seed")
	assert.Positive(t, redrawn, "the voided item is a candidate")
	assert.Less(t, redrawn, 50, "the voided item is not always redrawn")
}

func TestPause_IsLoggedButNotUndoable(t *testing.T) {
	h := newHarness(t).live()
	require.NoError(t, h.m.Pause(admin, ""))
	require.NoError(t, h.m.Resume(admin))

	actions := h.m.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, domain.ActionAuctionPaused, actions[0].Type)
	assert.Equal(t, domain.ActionAuctionResumed, actions[1].Type)

	_, err := h.m.Undo(admin)
	assert.ErrorIs(t, err, domain.ErrUndo)
}

func TestTradeWindow_ClosesOnTimer(t *testing.T) {
	h := newHarness(t).live()
	require.NoError(t, h.m.Complete(admin, true))
	require.NoError(t, h.m.OpenTradeWindow(admin))

	at, ok := h.m.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(testConfig().TradeWindow), at)

	h.advance(testConfig().TradeWindow - 1)
	assert.Equal(t, domain.StatusTradeWindow, h.m.Status())
	h.advance(1)
	assert.Equal(t, domain.StatusFinalized, h.m.Status())
}

func TestAnnounce(t *testing.T) {
	h := newHarness(t).live()
	assert.ErrorIs(t, h.m.Announce(admin, ""), domain.ErrValidation)
	require.NoError(t, h.m.Announce(admin, "ten minute break"))

	events, _ := h.m.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventAnnouncement, events[0].Type)
	assert.Equal(t, domain.AnnouncementPayload{Message: "ten minute break", By: "admin"}, events[0].Payload)
}

func TestRestoreMachine_LiveComesBackPaused(t *testing.T) {
	h := newHarness(t).live()
	itemID := h.open()
	require.NoError(t, h.m.SubmitBid("b", 100_000))

	rec := domain.AuctionRecord{Auction: h.m.Auction(), Actions: h.m.Actions(), Bids: h.m.Bids()}
	for _, id := range []string{"a", "b", "c"} {
		rec.Teams = append(rec.Teams, h.team(id))
	}
	for _, id := range []string{"i1", "i2", "i3", "i4", "i5", "i6"} {
		rec.Items = append(rec.Items, h.item(id))
	}

	m := auction.RestoreMachine(rec, machineOptions(h.clk))
	assert.Equal(t, domain.StatusPaused, m.Status())
	it, _ := m.Item(itemID)
	assert.Equal(t, domain.ItemPool, it.Status)
	assert.Len(t, m.Bids(), 1)

	require.NoError(t, m.Resume(admin))
	assert.Equal(t, domain.PhaseRevealed, m.Auction().Bidding.Phase)
}
