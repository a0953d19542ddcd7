package auction_test

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/adapters/clock"
	"github.com/alejandrodnm/auctionroom/internal/application/auction"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

var (
	t0    = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	admin = domain.Actor{Role: domain.RoleAdmin, Name: "admin"}
)

func testConfig() domain.Config {
	return domain.Config{
		BasePrice: 100_000,
		Purse:     1_000_000,
		MinSquad:  3,
		MaxSquad:  5,
		Increments: []domain.IncrementTier{
			{Below: 500_000, Step: 50_000},
			{Below: 0, Step: 100_000},
		},
		Timers: domain.Timers{
			Reveal:       time.Second,
			Open:         10 * time.Second,
			BidReset:     5 * time.Second,
			GoingOnce:    2 * time.Second,
			GoingTwice:   2 * time.Second,
			Intermission: 3 * time.Second,
		},
		TradeWindow:       time.Hour,
		MaxTradesPerTeam:  2,
		SettlementEnabled: true,
	}.WithDefaults()
}

// testSetup: three teams, five items in the pool, c retains i6 as captain.
func testSetup() domain.Setup {
	s := domain.Setup{
		ID:     "cup",
		Name:   "Cup Auction",
		Config: testConfig(),
		Fields: []domain.FieldDescriptor{{Key: "role", Label: "Role", Type: domain.FieldText}},
		Teams: []domain.TeamSetup{
			{ID: "a", Name: "Alpha"},
			{ID: "b", Name: "Bravo"},
			{ID: "c", Name: "Charlie", Retained: []domain.RetainedItem{{ItemID: "i6", Price: 200_000, Captain: true}}},
		},
	}
	for i := 1; i <= 6; i++ {
		s.Items = append(s.Items, domain.Item{
			ID:         fmt.Sprintf("i%d", i),
			Name:       fmt.Sprintf("Player %d", i),
			Attributes: map[string]string{"role": "forward"},
		})
	}
	return s
}

// testingT is satisfied by *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type harness struct {
	t   testingT
	clk *clock.Manual
	m   *auction.Machine
}

func machineOptions(clk *clock.Manual) auction.Options {
	n := 0
	return auction.Options{
		Now:  clk.Now,
		Rand: rand.New(rand.NewPCG(1, 2)),
		NewID: func() string {
			n++
			return fmt.Sprintf("tr-%d", n)
		},
	}
}

func newHarness(t testingT, mutate ...func(*domain.Setup)) *harness {
	t.Helper()
	return newSeededHarness(t, 1, mutate...)
}

// newSeededHarness draws pool items from a PCG stream seeded with seed.
func newSeededHarness(t testingT, seed uint64, mutate ...func(*domain.Setup)) *harness {
	t.Helper()
	setup := testSetup()
	for _, f := range mutate {
		f(&setup)
	}
	clk := clock.NewManual(t0)
	opts := machineOptions(clk)
	opts.Rand = rand.New(rand.NewPCG(seed, 2))
	m, err := auction.NewMachine(setup, opts)
	require.NoError(t, err)
	m.Drain()
	return &harness{t: t, clk: clk, m: m}
}

// live configures the auction and opens the floor.
func (h *harness) live() *harness {
	h.t.Helper()
	require.NoError(h.t, h.m.Configure(admin, nil))
	require.NoError(h.t, h.m.GoLive(admin))
	h.m.Drain()
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clk.Advance(d)
	h.m.Tick()
}

func (h *harness) bidding() domain.BiddingState {
	h.t.Helper()
	b := h.m.Auction().Bidding
	require.NotNil(h.t, b, "auction has no bidding slot")
	return *b
}

// open picks the next item and waits out the reveal delay.
func (h *harness) open() string {
	h.t.Helper()
	require.NoError(h.t, h.m.PickNext(admin))
	h.advance(testConfig().Timers.Reveal)
	b := h.bidding()
	require.Equal(h.t, domain.PhaseOpen, b.Phase)
	return b.ItemID
}

// hammer runs the clock through going once and going twice.
func (h *harness) hammer() {
	tm := testConfig().Timers
	h.advance(tm.BidReset)
	h.advance(tm.GoingOnce)
	h.advance(tm.GoingTwice)
}

// required is the amount the next bid must carry.
func (h *harness) required() int64 {
	h.t.Helper()
	s := h.m.Snapshot(domain.Viewer{Role: domain.RoleAdmin})
	require.NotNil(h.t, s.Bidding)
	return s.Bidding.NextRequired
}

// buy sells the next item to team. rival and team alternate raises; raises
// must be even so that team ends on top.
func (h *harness) buy(team, rival string, raises int) (itemID string, price int64) {
	h.t.Helper()
	itemID = h.open()
	bidders := []string{team, rival}
	for i := 0; i <= raises; i++ {
		amount := h.required()
		require.NoError(h.t, h.m.SubmitBid(bidders[i%2], amount))
		price = amount
	}
	h.hammer()
	it, _ := h.m.Item(itemID)
	require.Equal(h.t, domain.ItemSold, it.Status)
	require.Equal(h.t, team, it.SoldTo)
	return itemID, price
}

func (h *harness) team(id string) domain.Team {
	h.t.Helper()
	t, ok := h.m.Team(id)
	require.True(h.t, ok)
	return t
}

func (h *harness) item(id string) domain.Item {
	h.t.Helper()
	it, ok := h.m.Item(id)
	require.True(h.t, ok)
	return it
}

func eventTypes(events []domain.Event) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
