package auction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

func TestDispatch_Roles(t *testing.T) {
	h := newHarness(t)
	teamA := domain.Actor{Role: domain.RoleTeam, TeamID: "a"}
	spectator := domain.Actor{Role: domain.RoleSpectator}

	res := h.m.Dispatch(teamA, domain.Command{Type: domain.CmdConfigure, Ref: "r1"})
	assert.False(t, res.OK)
	assert.Equal(t, "forbidden", res.Code)
	assert.Equal(t, "r1", res.Ref)
	assert.Equal(t, domain.CmdConfigure, res.Command)

	for _, c := range []domain.CommandType{domain.CmdConfigure, domain.CmdGoLive, domain.CmdPickNext} {
		res = h.m.Dispatch(admin, domain.Command{Type: c})
		require.True(t, res.OK, "%s: %s", c, res.Error)
	}
	h.advance(testConfig().Timers.Reveal)

	res = h.m.Dispatch(spectator, domain.Command{Type: domain.CmdSubmitBid, Amount: 100_000})
	assert.Equal(t, "forbidden", res.Code)

	res = h.m.Dispatch(teamA, domain.Command{Type: domain.CmdSubmitBid, TeamID: "b", Amount: 100_000})
	assert.Equal(t, "forbidden", res.Code, "a team bids for itself only")

	res = h.m.Dispatch(admin, domain.Command{Type: domain.CmdSubmitBid, Amount: 100_000})
	assert.Equal(t, "validation_error", res.Code, "proxy bid needs a team")

	res = h.m.Dispatch(admin, domain.Command{Type: domain.CmdSubmitBid, TeamID: "b", Amount: 100_000})
	assert.True(t, res.OK)
	assert.Equal(t, "b", h.bidding().CurrentBidTeamID)

	res = h.m.Dispatch(teamA, domain.Command{Type: domain.CmdSubmitBid, Amount: 120_000})
	assert.False(t, res.OK)
	assert.Equal(t, string(domain.RejectIncorrectAmount), res.Code)
	assert.Contains(t, res.Error, "required 150000")

	res = h.m.Dispatch(admin, domain.Command{Type: "shuffle"})
	assert.Equal(t, "validation_error", res.Code)
}

func TestDispatch_UndoReportsDescription(t *testing.T) {
	h := newHarness(t).live()
	h.buy("a", "b", 0)

	res := h.m.Dispatch(admin, domain.Command{Type: domain.CmdUndo})
	require.True(t, res.OK)
	assert.Contains(t, res.Description, "reversed")

	res = h.m.Dispatch(admin, domain.Command{Type: domain.CmdDisqualify})
	assert.Equal(t, "validation_error", res.Code)
}

func TestDispatch_TradeCommands(t *testing.T) {
	mk := newMarket(t)
	teamA := domain.Actor{Role: domain.RoleTeam, TeamID: "a"}
	teamB := domain.Actor{Role: domain.RoleTeam, TeamID: "b"}

	res := mk.m.Dispatch(teamA, domain.Command{
		Type:               domain.CmdProposeTrade,
		CounterpartyTeamID: "b",
		OfferItemIDs:       []string{mk.x1},
		RequestItemIDs:     []string{mk.y1},
	})
	require.True(t, res.OK, res.Error)
	require.NotEmpty(t, res.TradeID)

	res = mk.m.Dispatch(teamB, domain.Command{Type: domain.CmdAcceptTrade, TradeID: res.TradeID})
	require.True(t, res.OK, res.Error)

	res = mk.m.Dispatch(admin, domain.Command{Type: domain.CmdAdminApproveTrade, TradeID: res.TradeID})
	require.True(t, res.OK, res.Error)
	assert.Nil(t, res.Warning)

	res = mk.m.Dispatch(admin, domain.Command{Type: domain.CmdProposeTrade})
	assert.Equal(t, "forbidden", res.Code, "admins do not negotiate")
}

func TestSnapshot_Visibility(t *testing.T) {
	mk := newMarket(t)
	mk.propose("a", "b", []string{mk.x1}, []string{mk.y1})

	adminView := mk.m.Snapshot(domain.Viewer{Role: domain.RoleAdmin})
	assert.Len(t, adminView.Trades, 1)
	assert.NotEmpty(t, adminView.Actions)
	for _, tv := range adminView.Teams {
		assert.NotNil(t, tv.MaxBid, tv.ID)
	}

	own := mk.m.Snapshot(domain.Viewer{Role: domain.RoleTeam, TeamID: "a"})
	assert.Len(t, own.Trades, 1)
	assert.Empty(t, own.Actions)
	for _, tv := range own.Teams {
		if tv.ID == "a" {
			require.NotNil(t, tv.MaxBid)
			assert.Equal(t, tv.PurseRemaining, *tv.MaxBid, "last mandatory slot needs no reserve")
		} else {
			assert.Nil(t, tv.MaxBid, tv.ID)
		}
	}

	other := mk.m.Snapshot(domain.Viewer{Role: domain.RoleTeam, TeamID: "c"})
	assert.Empty(t, other.Trades, "pending trades stay between the parties")

	public := mk.m.Snapshot(domain.Viewer{Role: domain.RoleSpectator})
	assert.Empty(t, public.Trades)
	for _, tv := range public.Teams {
		assert.Nil(t, tv.MaxBid)
	}
	assert.Equal(t, 6, len(public.Items))
	assert.Equal(t, domain.StatusTradeWindow, public.Status)
}

func TestSnapshot_BiddingView(t *testing.T) {
	h := newHarness(t).live()
	itemID := h.open()
	require.NoError(t, h.m.SubmitBid("a", 100_000))

	s := h.m.Snapshot(domain.Viewer{Role: domain.RoleSpectator})
	require.NotNil(t, s.Bidding)
	assert.Equal(t, itemID, s.Bidding.ItemID)
	assert.Equal(t, domain.PhaseOpen, s.Bidding.Phase)
	assert.Equal(t, int64(150_000), s.Bidding.NextRequired)
	assert.Equal(t, h.clk.Now(), s.ServerTime)
	assert.Len(t, s.RecentBids, 1)
	assert.Equal(t, 4, s.RemainingPool)
}

func TestEventFor_PrivateTeamPayload(t *testing.T) {
	h := newHarness(t).live()
	h.open()
	require.NoError(t, h.m.SubmitBid("a", 100_000))
	h.hammer()

	events, _ := h.m.Drain()
	var teamEv domain.Event
	for _, ev := range events {
		if ev.Type == domain.EventTeamUpdated {
			teamEv = ev
		}
	}
	require.Equal(t, domain.EventTeamUpdated, teamEv.Type)

	pub, ok := teamEv.For(domain.Viewer{Role: domain.RoleSpectator})
	require.True(t, ok)
	assert.Nil(t, pub.Payload.(domain.TeamView).MaxBid)

	mine, ok := teamEv.For(domain.Viewer{Role: domain.RoleTeam, TeamID: "a"})
	require.True(t, ok)
	require.NotNil(t, mine.Payload.(domain.TeamView).MaxBid)
	assert.Equal(t, int64(800_000), *mine.Payload.(domain.TeamView).MaxBid)
	assert.Nil(t, mine.Private)
}
