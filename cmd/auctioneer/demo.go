package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/auctionroom/config"
	"github.com/alejandrodnm/auctionroom/internal/adapters/broadcast"
	"github.com/alejandrodnm/auctionroom/internal/adapters/clock"
	"github.com/alejandrodnm/auctionroom/internal/adapters/notify"
	"github.com/alejandrodnm/auctionroom/internal/adapters/seed"
	"github.com/alejandrodnm/auctionroom/internal/application/auction"
	"github.com/alejandrodnm/auctionroom/internal/domain"
)

var admin = domain.Actor{Role: domain.RoleAdmin, Name: "demo-admin"}

// runDemo runs one auction in memory on short timers: bots bid, the admin
// undoes one sale, then a trade is negotiated and executed.
func runDemo(ctx context.Context, cfg *config.Config, seedPath string) error {
	rules := cfg.Auction
	rules.Timers = config.TimersConfig{
		Reveal:       300 * time.Millisecond,
		Open:         1500 * time.Millisecond,
		BidReset:     900 * time.Millisecond,
		GoingOnce:    400 * time.Millisecond,
		GoingTwice:   400 * time.Millisecond,
		Intermission: 300 * time.Millisecond,
	}
	rules.AutoAdvance = true
	rules.TradeWindow = 5 * time.Second

	setup, err := seed.LoadFile(seedPath, rules)
	if err != nil {
		return err
	}

	hub := broadcast.NewHub()
	reg := auction.NewRegistry(auction.RegistryConfig{Clock: clock.System{}, Publisher: hub})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(shutdownCtx)
	}()

	ctl, err := reg.Create(ctx, setup)
	if err != nil {
		return err
	}

	console := notify.NewConsole()
	feed := broadcast.NewQueue(domain.Viewer{Role: domain.RoleAdmin}, 4096)
	if err := ctl.Subscribe(ctx, feed); err != nil {
		return err
	}
	go console.Run(ctx, feed.Events(), feed.Done())
	defer ctl.Unsubscribe(feed)

	for _, c := range []domain.CommandType{domain.CmdConfigure, domain.CmdGoLive, domain.CmdPickNext} {
		if err := command(ctx, ctl, admin, domain.Command{Type: c}); err != nil {
			return err
		}
	}

	botCtx, stopBots := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for i, t := range setup.Teams {
		b := &bot{
			ctl:    ctl,
			actor:  domain.Actor{Role: domain.RoleTeam, TeamID: t.ID, Name: t.Name},
			rng:    rand.New(rand.NewPCG(uint64(i)+1, 7)),
			appeal: 0.8 + 0.2*float64(i),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.run(botCtx)
		}()
	}

	err = driveFloor(ctx, ctl)
	stopBots()
	wg.Wait()
	if err != nil {
		return err
	}

	if err := runTrades(ctx, ctl); err != nil {
		return err
	}

	final, err := ctl.Snapshot(ctx, domain.Viewer{Role: domain.RoleAdmin})
	if err != nil {
		return err
	}
	// let the console catch up before the tables
	time.Sleep(200 * time.Millisecond)
	console.PrintRosters(final)
	console.PrintItems(final)
	console.PrintTrades(final)
	return nil
}

// driveFloor watches the auction until every item is resolved, undoing the
// second sale along the way, then completes it.
func driveFloor(ctx context.Context, ctl *auction.Controller) error {
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()
	undone := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s, err := ctl.Snapshot(ctx, domain.Viewer{Role: domain.RoleAdmin})
		if err != nil {
			return err
		}
		if !undone && auctionSales(s) == 2 {
			undone = true
			_ = command(ctx, ctl, admin, domain.Command{Type: domain.CmdAnnounce, Message: "second sale under review"})
			_ = command(ctx, ctl, admin, domain.Command{Type: domain.CmdUndo})
			continue
		}
		b := s.Bidding
		if b == nil || !b.Phase.Idle() {
			continue
		}
		if s.RemainingPool > 0 || s.NextRoundPool > 0 {
			if b.Phase == domain.PhaseWaiting {
				_ = command(ctx, ctl, admin, domain.Command{Type: domain.CmdPickNext})
			}
			continue
		}
		return command(ctx, ctl, admin, domain.Command{Type: domain.CmdComplete})
	}
}

func auctionSales(s domain.Snapshot) int {
	n := 0
	for _, it := range s.Items {
		if it.Status == domain.ItemSold && it.SoldInRound > 0 {
			n++
		}
	}
	return n
}

// runTrades swaps the first bought item of two teams, then finalizes.
func runTrades(ctx context.Context, ctl *auction.Controller) error {
	if err := command(ctx, ctl, admin, domain.Command{Type: domain.CmdOpenTradeWindow}); err != nil {
		return err
	}
	s, err := ctl.Snapshot(ctx, domain.Viewer{Role: domain.RoleAdmin})
	if err != nil {
		return err
	}

	var parties []domain.TeamView
	for _, t := range s.Teams {
		if len(t.Squad) > 0 {
			parties = append(parties, t)
		}
	}
	if len(parties) < 2 {
		slog.Info("demo: not enough bought items for a trade")
		return command(ctx, ctl, admin, domain.Command{Type: domain.CmdFinalize})
	}
	a, b := parties[0], parties[1]

	res := ctl.Dispatch(ctx, domain.Actor{Role: domain.RoleTeam, TeamID: a.ID}, domain.Command{
		Type:               domain.CmdProposeTrade,
		CounterpartyTeamID: b.ID,
		OfferItemIDs:       []string{a.Squad[0].ItemID},
		RequestItemIDs:     []string{b.Squad[0].ItemID},
	})
	if !res.OK {
		return fmt.Errorf("propose: %s", res.Error)
	}
	tradeID := res.TradeID

	if err := command(ctx, ctl, domain.Actor{Role: domain.RoleTeam, TeamID: b.ID},
		domain.Command{Type: domain.CmdAcceptTrade, TradeID: tradeID}); err != nil {
		return err
	}

	res = ctl.Dispatch(ctx, admin, domain.Command{Type: domain.CmdAdminApproveTrade, TradeID: tradeID})
	if !res.OK && res.Warning != nil {
		slog.Warn("demo: settlement warning, approving anyway", "warning", res.Description)
		res = ctl.Dispatch(ctx, admin, domain.Command{Type: domain.CmdAdminApproveTrade, TradeID: tradeID, Acknowledge: true})
	}
	if !res.OK {
		return fmt.Errorf("approve: %s", res.Error)
	}
	return command(ctx, ctl, admin, domain.Command{Type: domain.CmdFinalize})
}

func command(ctx context.Context, ctl *auction.Controller, actor domain.Actor, cmd domain.Command) error {
	res := ctl.Dispatch(ctx, actor, cmd)
	if !res.OK {
		return fmt.Errorf("%s: %s (%s)", cmd.Type, res.Error, res.Code)
	}
	return nil
}

// bot bids the next required amount while the price stays under its
// valuation of the item.
type bot struct {
	ctl    *auction.Controller
	actor  domain.Actor
	rng    *rand.Rand
	appeal float64 // valuation multiplier
}

func (b *bot) run(ctx context.Context) {
	viewer := domain.Viewer{Role: domain.RoleTeam, TeamID: b.actor.TeamID}
	for {
		wait := time.Duration(80+b.rng.IntN(400)) * time.Millisecond
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		s, err := b.ctl.Snapshot(ctx, viewer)
		if err != nil {
			return
		}
		bid := s.Bidding
		if s.Status != domain.StatusLive || bid == nil || !bid.Phase.AcceptsBids() || bid.CurrentBidTeamID == b.actor.TeamID {
			continue
		}
		me := findTeam(s, b.actor.TeamID)
		if me == nil || me.MaxBid == nil || bid.NextRequired > *me.MaxBid {
			continue
		}
		if float64(bid.NextRequired) > b.valuation(s, bid.ItemID) {
			continue
		}
		if b.rng.Float64() < 0.35 {
			continue
		}
		res := b.ctl.Dispatch(ctx, b.actor, domain.Command{Type: domain.CmdSubmitBid, Amount: bid.NextRequired})
		if !res.OK {
			slog.Debug("demo: bot bid refused", "team", b.actor.TeamID, "code", res.Code)
		}
	}
}

func (b *bot) valuation(s domain.Snapshot, itemID string) float64 {
	for _, it := range s.Items {
		if it.ID != itemID {
			continue
		}
		rating, err := strconv.ParseFloat(it.Attributes["rating"], 64)
		if err != nil {
			rating = 70
		}
		return float64(it.BasePrice) * rating / 30 * b.appeal
	}
	return 0
}

func findTeam(s domain.Snapshot, id string) *domain.TeamView {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i]
		}
	}
	return nil
}
