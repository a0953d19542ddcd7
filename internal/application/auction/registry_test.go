package auction_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/adapters/broadcast"
	"github.com/alejandrodnm/auctionroom/internal/adapters/clock"
	"github.com/alejandrodnm/auctionroom/internal/application/auction"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

func newRegistry(clk *clock.Manual, store *memStore) *auction.Registry {
	cfg := auction.RegistryConfig{Clock: clk, Publisher: broadcast.NewHub()}
	if store != nil {
		cfg.Store = store
	}
	return auction.NewRegistry(cfg)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(clock.NewManual(t0), nil)
	t.Cleanup(func() { _ = r.Shutdown(ctx) })

	c, err := r.Create(ctx, testSetup())
	require.NoError(t, err)
	assert.Equal(t, "cup", c.ID())

	_, err = r.Create(ctx, testSetup())
	assert.ErrorIs(t, err, domain.ErrValidation, "duplicate id")

	anon := testSetup()
	anon.ID = ""
	c2, err := r.Create(ctx, anon)
	require.NoError(t, err)
	assert.NotEmpty(t, c2.ID())

	got, err := r.Get("cup")
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ids := r.IDs()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "cup")
	assert.Contains(t, ids, c2.ID())

	_, err = r.Create(ctx, domain.Setup{ID: "empty"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegistry_ShutdownRejectsNewAuctions(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(clock.NewManual(t0), nil)
	c, err := r.Create(ctx, testSetup())
	require.NoError(t, err)

	require.NoError(t, r.Shutdown(ctx))

	res := c.Dispatch(ctx, admin, domain.Command{Type: domain.CmdConfigure})
	assert.Equal(t, "closed", res.Code)

	s := testSetup()
	s.ID = "late"
	_, err = r.Create(ctx, s)
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestRegistry_RestoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(t0)
	store := newMemStore()

	r := newRegistry(clk, store)
	c, err := r.Create(ctx, testSetup())
	require.NoError(t, err)
	for _, typ := range []domain.CommandType{domain.CmdConfigure, domain.CmdGoLive, domain.CmdPickNext} {
		res := c.Dispatch(ctx, admin, domain.Command{Type: typ})
		require.True(t, res.OK, "%s: %s", typ, res.Error)
	}
	clk.Advance(testConfig().Timers.Reveal)
	s, err := c.Snapshot(ctx, domain.Viewer{Role: domain.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, domain.PhaseOpen, s.Bidding.Phase)
	itemID := s.Bidding.ItemID
	require.NoError(t, c.SubmitBid(ctx, "a", 100_000))
	require.NoError(t, r.Shutdown(ctx))

	restarted := newRegistry(clk, store)
	t.Cleanup(func() { _ = restarted.Shutdown(ctx) })
	n, err := restarted.RestoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err = restarted.Get("cup")
	require.NoError(t, err)
	s, err = c.Snapshot(ctx, domain.Viewer{Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, s.Status, "an interrupted live auction waits for the admin")
	assert.Nil(t, s.Bidding)

	var it domain.Item
	var bids []domain.BidAudit
	require.NoError(t, c.Inspect(ctx, func(m *auction.Machine) {
		it, _ = m.Item(itemID)
		bids = m.Bids()
	}))
	assert.Equal(t, domain.ItemPool, it.Status, "the interrupted item goes back to the pool")
	require.Len(t, bids, 1)
	assert.Equal(t, int64(100_000), bids[0].Amount)

	again, err := restarted.Restore(ctx, "cup")
	require.NoError(t, err)
	assert.Same(t, c, again, "restoring a running auction returns it")

	_, err = restarted.Restore(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRegistry_RestoreNeedsAStore(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(clock.NewManual(t0), nil)

	_, err := r.Restore(ctx, "cup")
	assert.ErrorIs(t, err, domain.ErrValidation)

	n, err := r.RestoreAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
