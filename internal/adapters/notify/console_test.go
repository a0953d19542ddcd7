package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/adapters/notify"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

var at = time.Date(2026, 3, 1, 18, 30, 5, 0, time.UTC)

func makeSnapshot() domain.Snapshot {
	return domain.Snapshot{
		AuctionID: "cup",
		Name:      "Cup Auction",
		Status:    domain.StatusLive,
		Round:     1,
		Teams: []domain.TeamView{
			{
				ID: "a", Name: "Alpha", PurseInitial: 1_000_000, PurseRemaining: 750_000, RosterSize: 2,
				Squad:    []domain.SquadEntry{{ItemID: "i1", Price: 250_000}},
				Retained: []domain.RetainedItem{{ItemID: "i9", Price: 0, Captain: true}},
			},
			{ID: "b", Name: "Bravo", PurseInitial: 1_000_000, PurseRemaining: 1_000_000},
		},
		Items: []domain.ItemView{
			{ID: "i1", Name: "Ada", Status: domain.ItemSold, SoldTo: "a", SoldAmount: 250_000, SoldInRound: 1},
			{ID: "i2", Name: "Grace", Status: domain.ItemPool},
			{ID: "i9", Name: "Linus", Status: domain.ItemSold, SoldTo: "a"},
		},
		RemainingPool: 1,
	}
}

func TestConsole_PrintEvent(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintEvent(domain.Event{Seq: 3, At: at, Type: domain.EventStateSnapshot, Payload: makeSnapshot()})
	c.PrintEvent(domain.Event{Seq: 4, At: at, Type: domain.EventBidAccepted, Payload: domain.BidPayload{
		ItemID: "i2", TeamID: "b", Amount: 1_250_000, NextRequired: 1_350_000,
	}})
	c.PrintEvent(domain.Event{Seq: 5, At: at, Type: domain.EventItemSold, Payload: domain.OutcomePayload{
		ItemID: "i2", TeamID: "b", Amount: 1_250_000, Round: 1,
	}})
	c.PrintEvent(domain.Event{Seq: 6, At: at, Type: domain.EventItemUnsold, Payload: domain.OutcomePayload{
		ItemID: "i3", Skipped: true, Permanent: true,
	}})
	c.PrintEvent(domain.Event{Seq: 7, At: at, Type: domain.EventStatusChanged, Payload: domain.StatusPayload{
		Status: domain.StatusPaused, Previous: domain.StatusLive, Reason: "dispute", VoidedItemID: "i2",
	}})

	out := buf.String()
	assert.Contains(t, out, "[18:30:05] #3    snapshot: Cup Auction (live) round 1, 2 teams, 3 items, 1 in pool")
	assert.Contains(t, out, "bid: Bravo 1,250,000, next 1,350,000")
	assert.Contains(t, out, "SOLD: Grace to Bravo for 1,250,000")
	assert.Contains(t, out, "UNSOLD: i3 (skipped), no more rounds")
	assert.Contains(t, out, "status: live → paused (dispute), voided Grace")
}

func TestConsole_PrintEvent_SkipsOpenPhase(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintEvent(domain.Event{Seq: 1, At: at, Type: domain.EventPhaseChanged, Payload: domain.PhasePayload{Phase: domain.PhaseOpen}})
	assert.Empty(t, buf.String())

	c.PrintEvent(domain.Event{Seq: 2, At: at, Type: domain.EventPhaseChanged, Payload: domain.PhasePayload{
		ItemID: "i2", Phase: domain.PhaseGoingTwice, CurrentBid: 100_000,
	}})
	assert.Contains(t, buf.String(), "GOING TWICE: i2, 100,000 on -")
}

func TestConsole_Run_StopsOnDone(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	events := make(chan domain.Event, 2)
	done := make(chan struct{})
	events <- domain.Event{Seq: 1, At: at, Type: domain.EventAnnouncement, Payload: domain.AnnouncementPayload{Message: "break", By: "admin"}}
	close(events)

	c.Run(context.Background(), events, done)
	assert.Contains(t, buf.String(), "announcement from admin: break")
}

func TestConsole_PrintRosters(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintRosters(makeSnapshot())

	out := buf.String()
	assert.Contains(t, out, "Cup Auction: live, round 1")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "750,000")
	assert.Contains(t, out, "Linus (C) [R]")
	assert.Contains(t, out, "Ada 250,000")
}

func TestConsole_PrintItems(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintItems(makeSnapshot())

	out := buf.String()
	require.Contains(t, out, "Ada")
	require.Contains(t, out, "Grace")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Ada")), bytes.Index(buf.Bytes(), []byte("Grace")),
		"most expensive first")
}

func TestConsole_PrintTrades(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	s := makeSnapshot()
	c.PrintTrades(s)
	assert.Contains(t, buf.String(), "No trades.")

	buf.Reset()
	s.Trades = []domain.TradeView{{
		ID:                  "0f3c2a9e-1111-2222-3333-444455556666",
		InitiatorTeamID:     "a",
		CounterpartyTeamID:  "b",
		InitiatorItems:      []domain.TradeItem{{ItemID: "i1", Price: 250_000}},
		CounterpartyItems:   []domain.TradeItem{{ItemID: "i2", Price: 100_000}},
		SettlementAmount:    150_000,
		SettlementDirection: domain.SettlementCounterpartyPays,
		Status:              domain.TradeExecuted,
		SettlementWaived:    true,
	}}
	c.PrintTrades(s)

	out := buf.String()
	assert.Contains(t, out, "0f3c2a9e")
	assert.Contains(t, out, "Bravo pays 150,000 (waived)")
	assert.Contains(t, out, "executed")
}
