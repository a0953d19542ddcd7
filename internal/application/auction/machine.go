// Package auction runs live auctions: the lifecycle controller, the per-item
// bidding machine, bid validation, the undo log, trade negotiation and the
// per-audience projections of state.
package auction

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

// Options tunes a Machine. Zero values use the wall clock, a random seed and
// uuid identifiers.
type Options struct {
	Now   func() time.Time
	Rand  *rand.Rand
	NewID func() string
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.New().String() }
	}
	return o
}

// Machine is the synchronous state machine of one auction. It is not safe
// for concurrent use; Controller serializes every call.
//
// Every mutating method either fails before touching state or applies fully.
// Changes and outbound events accumulate until Drain is called.
type Machine struct {
	a        domain.Auction
	teams    map[string]*domain.Team
	teamIDs  []string
	items    map[string]*domain.Item
	itemIDs  []string
	trades   map[string]*domain.Trade
	tradeIDs []string
	locks    map[string]string // itemID → ID of the trade holding it
	log      actionLog
	bids     []domain.BidAudit
	eventSeq int64

	opts Options
	fx   effects
}

type effects struct {
	events  []domain.Event
	auction bool
	teams   map[string]bool
	items   map[string]bool
	trades  map[string]bool
	actions map[int64]bool
	bids    []domain.BidAudit
}

func newMachine(opts Options) *Machine {
	return &Machine{
		teams:  make(map[string]*domain.Team),
		items:  make(map[string]*domain.Item),
		trades: make(map[string]*domain.Trade),
		locks:  make(map[string]string),
		opts:   opts.withDefaults(),
		fx:     newEffects(),
	}
}

func newEffects() effects {
	return effects{
		teams:   make(map[string]bool),
		items:   make(map[string]bool),
		trades:  make(map[string]bool),
		actions: make(map[int64]bool),
	}
}

// NewMachine builds a draft auction from its setup. Retained items are
// assigned to their teams immediately and never enter the pool.
func NewMachine(setup domain.Setup, opts Options) (*Machine, error) {
	if setup.ID == "" {
		return nil, fmt.Errorf("%w: auction id is required", domain.ErrValidation)
	}
	m := newMachine(opts)
	now := m.opts.Now()
	m.a = domain.Auction{
		ID:        setup.ID,
		Name:      setup.Name,
		Status:    domain.StatusDraft,
		Config:    setup.Config.WithDefaults(),
		Fields:    append([]domain.FieldDescriptor(nil), setup.Fields...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, it := range setup.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item without id", domain.ErrValidation)
		}
		if _, dup := m.items[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", domain.ErrValidation, it.ID)
		}
		item := it.Clone()
		item.Status = domain.ItemPool
		item.SoldTo, item.SoldAmount, item.SoldInRound = "", 0, 0
		m.items[item.ID] = &item
		m.itemIDs = append(m.itemIDs, item.ID)
	}

	for _, ts := range setup.Teams {
		if ts.ID == "" {
			return nil, fmt.Errorf("%w: team without id", domain.ErrValidation)
		}
		if _, dup := m.teams[ts.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate team %q", domain.ErrValidation, ts.ID)
		}
		t := &domain.Team{ID: ts.ID, Name: ts.Name}
		for _, r := range ts.Retained {
			item, ok := m.items[r.ItemID]
			if !ok {
				return nil, fmt.Errorf("%w: retained item %q of team %q", domain.ErrNotFound, r.ItemID, ts.ID)
			}
			if item.Status != domain.ItemPool {
				return nil, fmt.Errorf("%w: item %q retained twice", domain.ErrValidation, r.ItemID)
			}
			item.Status = domain.ItemSold
			item.SoldTo = t.ID
			item.SoldAmount = r.Price
			t.Retained = append(t.Retained, r)
		}
		m.teams[t.ID] = t
		m.teamIDs = append(m.teamIDs, t.ID)
	}

	for _, id := range m.itemIDs {
		if m.items[id].Status == domain.ItemPool {
			m.a.RemainingPool = append(m.a.RemainingPool, id)
		}
	}
	m.resetPurses()
	m.markAll()
	return m, nil
}

// RestoreMachine rebuilds a machine from persisted state. An auction that was
// live when it was persisted comes back paused with its in-flight item voided.
func RestoreMachine(rec domain.AuctionRecord, opts Options) *Machine {
	m := newMachine(opts)
	m.a = rec.Auction.Clone()
	for _, t := range rec.Teams {
		t := t.Clone()
		m.teams[t.ID] = &t
		m.teamIDs = append(m.teamIDs, t.ID)
	}
	for _, it := range rec.Items {
		it := it.Clone()
		m.items[it.ID] = &it
		m.itemIDs = append(m.itemIDs, it.ID)
	}
	for _, tr := range rec.Trades {
		tr := tr.Clone()
		m.trades[tr.ID] = &tr
		m.tradeIDs = append(m.tradeIDs, tr.ID)
		switch tr.Status {
		case domain.TradePendingCounterparty:
			m.lock(tr.InitiatorItems, tr.ID)
		case domain.TradeBothAgreed:
			m.lock(tr.InitiatorItems, tr.ID)
			m.lock(tr.CounterpartyItems, tr.ID)
		}
	}
	m.log = newActionLog(rec.Actions)
	m.bids = append([]domain.BidAudit(nil), rec.Bids...)

	if m.a.Status == domain.StatusLive {
		_ = m.Pause(domain.SystemActor, "restored after restart")
	}
	return m
}

// ID returns the auction identifier.
func (m *Machine) ID() string { return m.a.ID }

// Status returns the lifecycle state.
func (m *Machine) Status() domain.Status { return m.a.Status }

// Drain returns the events and the persistence batch accumulated since the
// previous call.
func (m *Machine) Drain() ([]domain.Event, ports.Batch) {
	fx := m.fx
	m.fx = newEffects()

	var b ports.Batch
	if fx.auction {
		a := m.a.Clone()
		b.Auction = &a
	}
	for _, id := range m.teamIDs {
		if fx.teams[id] {
			b.Teams = append(b.Teams, m.teams[id].Clone())
		}
	}
	for _, id := range m.itemIDs {
		if fx.items[id] {
			b.Items = append(b.Items, m.items[id].Clone())
		}
	}
	for _, id := range m.tradeIDs {
		if fx.trades[id] {
			b.Trades = append(b.Trades, m.trades[id].Clone())
		}
	}
	for _, ev := range m.log.events {
		if fx.actions[ev.Seq] {
			b.Actions = append(b.Actions, ev)
		}
	}
	b.Bids = fx.bids
	return fx.events, b
}

// Deadline is the next instant at which Tick has work to do.
func (m *Machine) Deadline() (time.Time, bool) {
	switch m.a.Status {
	case domain.StatusLive:
		b := m.a.Bidding
		if b == nil || b.PhaseExpiresAt.IsZero() {
			return time.Time{}, false
		}
		return b.PhaseExpiresAt, true
	case domain.StatusTradeWindow:
		if m.a.TradeWindowEndsAt.IsZero() {
			return time.Time{}, false
		}
		return m.a.TradeWindowEndsAt, true
	}
	return time.Time{}, false
}

// Tick performs every timer-driven transition that has come due.
func (m *Machine) Tick() {
	for {
		at, ok := m.Deadline()
		if !ok || m.opts.Now().Before(at) {
			return
		}
		if m.a.Status == domain.StatusTradeWindow {
			_ = m.Finalize(domain.SystemActor)
			continue
		}
		m.expirePhase()
	}
}

// ─── helpers ───────────────────────────────────────────────────────────────

func (m *Machine) now() time.Time { return m.opts.Now() }

func (m *Machine) violation(action, detail string) error {
	return &domain.LifecycleError{Action: action, From: m.a.Status, Detail: detail}
}

func (m *Machine) team(id string) (*domain.Team, error) {
	t, ok := m.teams[id]
	if !ok {
		return nil, fmt.Errorf("%w: team %q", domain.ErrNotFound, id)
	}
	return t, nil
}

func (m *Machine) item(id string) (*domain.Item, error) {
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: item %q", domain.ErrNotFound, id)
	}
	return it, nil
}

func (m *Machine) trade(id string) (*domain.Trade, error) {
	tr, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("%w: trade %q", domain.ErrNotFound, id)
	}
	return tr, nil
}

func (m *Machine) resetPurses() {
	for _, id := range m.teamIDs {
		t := m.teams[id]
		t.PurseInitial = m.a.Config.Purse
		t.PurseRemaining = m.a.Config.Purse
		for _, r := range t.Retained {
			t.PurseRemaining -= r.Price
		}
	}
}

func (m *Machine) emit(typ domain.EventType, aud domain.Audience, payload any, teams ...string) *domain.Event {
	m.eventSeq++
	m.fx.events = append(m.fx.events, domain.Event{
		Seq:       m.eventSeq,
		Type:      typ,
		AuctionID: m.a.ID,
		At:        m.now(),
		Payload:   payload,
		Audience:  aud,
		Teams:     teams,
	})
	return &m.fx.events[len(m.fx.events)-1]
}

// emitTeam publishes a team's public state, with maxBid for the team itself.
func (m *Machine) emitTeam(id string) {
	t := m.teams[id]
	if t == nil {
		return
	}
	ev := m.emit(domain.EventTeamUpdated, domain.AudiencePublic, m.teamView(t, false), id)
	ev.Private = m.teamView(t, true)
}

func (m *Machine) touchAuction() {
	m.a.UpdatedAt = m.now()
	m.fx.auction = true
}

func (m *Machine) touchTeam(id string)  { m.fx.teams[id] = true }
func (m *Machine) touchItem(id string)  { m.fx.items[id] = true }
func (m *Machine) touchTrade(id string) { m.fx.trades[id] = true }

func (m *Machine) appendAction(ev domain.ActionEvent) domain.ActionEvent {
	ev.At = m.now()
	ev = m.log.append(ev)
	m.fx.actions[ev.Seq] = true
	return ev
}

func (m *Machine) markAll() {
	m.fx.auction = true
	for _, id := range m.teamIDs {
		m.fx.teams[id] = true
	}
	for _, id := range m.itemIDs {
		m.fx.items[id] = true
	}
	for _, id := range m.tradeIDs {
		m.fx.trades[id] = true
	}
}

func removeID(ids []string, id string) ([]string, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...), true
		}
	}
	return ids, false
}
