package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

// flakyStore fails the first `fail` calls to Apply and records the rest.
type flakyStore struct {
	mu      sync.Mutex
	fail    int
	calls   int
	batches []ports.Batch
}

func (s *flakyStore) Apply(_ context.Context, _ string, b ports.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail > 0 {
		s.fail--
		return errors.New("connection reset")
	}
	s.batches = append(s.batches, b)
	return nil
}

func (s *flakyStore) Load(context.Context, string) (domain.AuctionRecord, error) {
	return domain.AuctionRecord{}, domain.ErrNotFound
}

func (s *flakyStore) ListAuctionIDs(context.Context) ([]string, error) { return nil, nil }
func (s *flakyStore) Close() error                                    { return nil }

func (s *flakyStore) snapshot() (calls int, batches []ports.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]ports.Batch(nil), s.batches...)
}

func teamBatch(id string, purse int64) ports.Batch {
	return ports.Batch{Teams: []domain.Team{{ID: id, PurseRemaining: purse}}}
}

func TestPendingBatch_Merge(t *testing.T) {
	p := newPendingBatch()
	p.merge(teamBatch("a", 900), true)
	p.merge(teamBatch("a", 800), true)
	assert.Equal(t, int64(800), p.teams["a"].PurseRemaining, "newest write wins")

	p.merge(teamBatch("a", 1_000), false)
	p.merge(ports.Batch{Items: []domain.Item{{ID: "i1"}}}, false)
	assert.Equal(t, int64(800), p.teams["a"].PurseRemaining, "requeued data never overwrites newer")
	assert.Contains(t, p.items, "i1")

	b := p.batch()
	assert.Len(t, b.Teams, 1)
	assert.Len(t, b.Items, 1)
	assert.Nil(t, b.Auction)
}

func TestPersister_RetriesUntilApplied(t *testing.T) {
	store := &flakyStore{fail: 2}
	p := newPersister(store, "cup", 4, time.Millisecond)

	p.enqueue(teamBatch("a", 900))
	p.flush()

	calls, batches := store.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, batches, 1)
	assert.Equal(t, int64(900), batches[0].Teams[0].PurseRemaining)
	assert.True(t, p.pending.batch().Empty())
}

func TestPersister_GivesUpAndRequeues(t *testing.T) {
	store := &flakyStore{fail: 3}
	p := newPersister(store, "cup", 2, time.Millisecond)

	p.enqueue(ports.Batch{
		Teams: []domain.Team{{ID: "a", PurseRemaining: 900}},
		Items: []domain.Item{{ID: "i1", Status: domain.ItemSold}},
	})
	p.flush()
	_, batches := store.snapshot()
	require.Empty(t, batches)

	// a newer write lands on top of the requeued batch
	p.enqueue(teamBatch("a", 700))
	p.flush()

	calls, batches := store.snapshot()
	assert.Equal(t, 4, calls)
	require.Len(t, batches, 1)
	assert.Equal(t, int64(700), batches[0].Teams[0].PurseRemaining)
	require.Len(t, batches[0].Items, 1)
	assert.Equal(t, domain.ItemSold, batches[0].Items[0].Status)
}

func TestPersister_CloseFlushes(t *testing.T) {
	store := &flakyStore{}
	p := newPersister(store, "cup", 0, 0)
	assert.Equal(t, defaultPersistAttempts, p.attempts)
	assert.Equal(t, defaultPersistBackoff, p.backoff)
	go p.run()

	p.enqueue(ports.Batch{})
	p.enqueue(teamBatch("b", 500))
	require.NoError(t, p.close(context.Background()))

	_, batches := store.snapshot()
	var teams []domain.Team
	for _, b := range batches {
		teams = append(teams, b.Teams...)
	}
	require.Len(t, teams, 1)
	assert.Equal(t, "b", teams[0].ID)
}
