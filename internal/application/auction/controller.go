package auction

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

const defaultQueueSize = 256

// ControllerConfig holds the collaborators of a Controller.
type ControllerConfig struct {
	Clock     ports.Clock
	Publisher ports.Publisher
	Store     ports.AuctionStore // nil disables persistence

	QueueSize       int
	PersistAttempts int
	PersistBackoff  time.Duration
}

// Controller owns one auction. Every command, timer expiry and subscription
// runs on a single goroutine in arrival order, so two bids racing for the
// same amount are decided by which reached the queue first.
type Controller struct {
	id      string
	m       *Machine
	clock   ports.Clock
	pub     ports.Publisher
	persist *persister

	jobs chan job
	quit chan struct{}
	done chan struct{}

	// owned by the loop goroutine
	timer    ports.Timer
	timerAt  time.Time
	timerGen uint64

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
}

type job struct {
	fn    func()
	reply chan struct{}
}

// NewController wraps a machine. The machine must read time from cfg.Clock.
func NewController(m *Machine, cfg ControllerConfig) *Controller {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	c := &Controller{
		id:    m.ID(),
		m:     m,
		clock: cfg.Clock,
		pub:   cfg.Publisher,
		jobs:  make(chan job, cfg.QueueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if cfg.Store != nil {
		c.persist = newPersister(cfg.Store, c.id, cfg.PersistAttempts, cfg.PersistBackoff)
	}
	return c
}

// Start launches the command loop and the persistence writer.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		if c.persist != nil {
			go c.persist.run()
		}
		go c.loop()
	})
}

// ID returns the auction identifier.
func (c *Controller) ID() string { return c.id }

func (c *Controller) loop() {
	defer close(c.done)
	// initial state and any timer restored with the machine
	c.commit()
	for {
		select {
		case j := <-c.jobs:
			j.fn()
			c.commit()
			if j.reply != nil {
				close(j.reply)
			}
		case <-c.quit:
			if c.timer != nil {
				c.timer.Stop()
			}
			return
		}
	}
}

// commit hands accumulated effects to storage and subscribers, then re-arms
// the phase timer.
func (c *Controller) commit() {
	events, batch := c.m.Drain()
	if c.persist != nil {
		c.persist.enqueue(batch)
	}
	if len(events) > 0 && c.pub != nil {
		c.pub.Publish(c.id, events)
	}
	c.reschedule()
}

func (c *Controller) reschedule() {
	at, ok := c.m.Deadline()
	if !ok {
		c.stopTimer()
		return
	}
	if c.timer != nil && c.timerAt.Equal(at) {
		return
	}
	c.stopTimer()
	c.timerGen++
	gen := c.timerGen
	c.timerAt = at
	c.timer = c.clock.AfterFunc(at.Sub(c.clock.Now()), func() { c.fire(gen) })
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
		c.timerAt = time.Time{}
	}
}

// fire runs on the timer goroutine and queues the expiry like any command.
// A generation mismatch means the timer was replaced after it fired.
func (c *Controller) fire(gen uint64) {
	tick := job{fn: func() {
		if gen != c.timerGen {
			return
		}
		c.timer = nil
		c.timerAt = time.Time{}
		c.m.Tick()
	}}
	select {
	case c.jobs <- tick:
	case <-c.quit:
	}
}

// do runs fn on the loop and waits until its effects are committed.
func (c *Controller) do(ctx context.Context, fn func()) error {
	j := job{fn: fn, reply: make(chan struct{})}
	select {
	case <-c.quit:
		return domain.ErrClosed
	default:
	}
	select {
	case c.jobs <- j:
	case <-c.quit:
		return domain.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-j.reply:
		return nil
	case <-c.done:
		return domain.ErrClosed
	case <-ctx.Done():
		// the command is queued and will still apply
		return ctx.Err()
	}
}

// Dispatch applies a command for an actor.
func (c *Controller) Dispatch(ctx context.Context, actor domain.Actor, cmd domain.Command) domain.CommandResult {
	var res domain.CommandResult
	err := c.do(ctx, func() { res = c.m.Dispatch(actor, cmd) })
	if err != nil {
		return domain.CommandResult{
			Ref:     cmd.Ref,
			Command: cmd.Type,
			Code:    domain.Code(err),
			Error:   err.Error(),
		}
	}
	if !res.OK && res.Code != "" {
		slog.Debug("controller: command refused",
			"auction_id", c.id, "command", cmd.Type, "actor", actor.Label(), "code", res.Code)
	}
	return res
}

// SubmitBid places a bid for a team.
func (c *Controller) SubmitBid(ctx context.Context, teamID string, amount int64) error {
	var err error
	if qerr := c.do(ctx, func() { err = c.m.SubmitBid(teamID, amount) }); qerr != nil {
		return qerr
	}
	return err
}

// Snapshot returns the viewer's projection of current state.
func (c *Controller) Snapshot(ctx context.Context, v domain.Viewer) (domain.Snapshot, error) {
	var s domain.Snapshot
	if err := c.do(ctx, func() { s = c.m.Snapshot(v) }); err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}

// Inspect runs fn against the machine on the loop. fn must not retain m.
func (c *Controller) Inspect(ctx context.Context, fn func(m *Machine)) error {
	return c.do(ctx, func() { fn(c.m) })
}

// Subscribe joins a subscriber. The snapshot is taken and delivered on the
// loop, so the subscriber sees every later event exactly once after it.
func (c *Controller) Subscribe(ctx context.Context, sub ports.Subscriber) error {
	return c.do(ctx, func() {
		snap := c.m.Snapshot(sub.Viewer())
		c.pub.Join(c.id, sub, domain.Event{
			Seq:       snap.LastEventSeq,
			Type:      domain.EventStateSnapshot,
			AuctionID: c.id,
			At:        snap.ServerTime,
			Payload:   snap,
			Audience:  domain.AudiencePublic,
		})
		slog.Debug("controller: subscriber joined",
			"auction_id", c.id, "subscriber", sub.ID(), "role", sub.Viewer().Role)
	})
}

// Unsubscribe removes a subscriber.
func (c *Controller) Unsubscribe(sub ports.Subscriber) {
	c.pub.Leave(c.id, sub)
}

// Close stops the loop and flushes pending writes.
func (c *Controller) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.quit)
		if !c.started.Load() {
			return
		}
		select {
		case <-c.done:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		if c.persist != nil {
			err = c.persist.close(ctx)
		}
		slog.Info("controller: closed", "auction_id", c.id)
	})
	return err
}
