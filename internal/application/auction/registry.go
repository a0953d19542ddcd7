package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

// RegistryConfig holds the shared collaborators of every auction.
type RegistryConfig struct {
	Clock     ports.Clock
	Publisher ports.Publisher
	Store     ports.AuctionStore // nil runs in memory

	QueueSize       int
	PersistAttempts int
	PersistBackoff  time.Duration

	// Machine options; Now is always taken from Clock.
	Machine Options
}

// Registry keeps one running Controller per auction.
type Registry struct {
	cfg RegistryConfig

	mu          sync.RWMutex
	controllers map[string]*Controller
	closed      bool
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	cfg.Machine.Now = cfg.Clock.Now
	return &Registry{cfg: cfg, controllers: make(map[string]*Controller)}
}

func (r *Registry) controllerConfig() ControllerConfig {
	return ControllerConfig{
		Clock:           r.cfg.Clock,
		Publisher:       r.cfg.Publisher,
		Store:           r.cfg.Store,
		QueueSize:       r.cfg.QueueSize,
		PersistAttempts: r.cfg.PersistAttempts,
		PersistBackoff:  r.cfg.PersistBackoff,
	}
}

// Create starts a new draft auction. An empty setup ID gets a generated one.
func (r *Registry) Create(ctx context.Context, setup domain.Setup) (*Controller, error) {
	if setup.ID == "" {
		setup.ID = uuid.NewString()
	}
	m, err := NewMachine(setup, r.cfg.Machine)
	if err != nil {
		return nil, fmt.Errorf("registry.Create: %w", err)
	}
	c, err := r.add(m)
	if err != nil {
		return nil, fmt.Errorf("registry.Create: %w", err)
	}
	slog.Info("registry: auction created",
		"auction_id", c.ID(), "name", setup.Name, "teams", len(setup.Teams), "items", len(setup.Items))
	return c, nil
}

// Restore loads a persisted auction and starts its controller.
func (r *Registry) Restore(ctx context.Context, id string) (*Controller, error) {
	if r.cfg.Store == nil {
		return nil, fmt.Errorf("registry.Restore: %w: no store configured", domain.ErrValidation)
	}
	if c, err := r.Get(id); err == nil {
		return c, nil
	}
	rec, err := r.cfg.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("registry.Restore: load %s: %w", id, err)
	}
	m := RestoreMachine(rec, r.cfg.Machine)
	c, err := r.add(m)
	if err != nil {
		return nil, fmt.Errorf("registry.Restore: %w", err)
	}
	slog.Info("registry: auction restored",
		"auction_id", id, "status", m.Status(), "actions", len(rec.Actions), "bids", len(rec.Bids))
	return c, nil
}

// RestoreAll restores every persisted auction. Auctions that fail to load are
// logged and skipped.
func (r *Registry) RestoreAll(ctx context.Context) (int, error) {
	if r.cfg.Store == nil {
		return 0, nil
	}
	ids, err := r.cfg.Store.ListAuctionIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("registry.RestoreAll: %w", err)
	}
	n := 0
	for _, id := range ids {
		if _, err := r.Restore(ctx, id); err != nil {
			slog.Warn("registry: skipping auction", "auction_id", id, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (r *Registry) add(m *Machine) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrClosed
	}
	if _, dup := r.controllers[m.ID()]; dup {
		return nil, fmt.Errorf("%w: auction %q already exists", domain.ErrValidation, m.ID())
	}
	c := NewController(m, r.controllerConfig())
	r.controllers[m.ID()] = c
	c.Start()
	return c, nil
}

// Get returns the controller of a running auction.
func (r *Registry) Get(id string) (*Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.controllers[id]
	if !ok {
		return nil, fmt.Errorf("%w: auction %q", domain.ErrNotFound, id)
	}
	return c, nil
}

// IDs lists running auctions in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every controller concurrently and flushes their writes.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	all := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		all = append(all, c)
	}
	r.mu.Unlock()

	var g errgroup.Group
	var mu sync.Mutex
	var errs []error
	for _, c := range all {
		g.Go(func() error {
			if err := c.Close(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", c.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		return fmt.Errorf("registry.Shutdown: %w", errors.Join(errs...))
	}
	slog.Info("registry: shut down", "auctions", len(all))
	return nil
}
