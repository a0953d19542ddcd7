package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/auctionroom/internal/domain"
)

// Console prints an auction event stream and summary tables.
type Console struct {
	out   io.Writer
	teams map[string]string // teamID → name
	items map[string]string // itemID → name
}

// NewConsole returns a notifier writing to stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter returns a notifier writing to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, teams: make(map[string]string), items: make(map[string]string)}
}

// Run prints events until the channel, done or ctx closes.
func (c *Console) Run(ctx context.Context, events <-chan domain.Event, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.PrintEvent(ev)
		}
	}
}

// PrintEvent prints one event on one line.
func (c *Console) PrintEvent(ev domain.Event) {
	ts := ev.At.Format("15:04:05")
	line := c.describe(ev)
	if line == "" {
		return
	}
	fmt.Fprintf(c.out, "[%s] #%-4d %s\n", ts, ev.Seq, line)
}

func (c *Console) describe(ev domain.Event) string {
	switch p := ev.Payload.(type) {
	case domain.Snapshot:
		c.learn(p)
		return fmt.Sprintf("snapshot: %s (%s) round %d, %d teams, %d items, %d in pool",
			p.Name, p.Status, p.Round, len(p.Teams), len(p.Items), p.RemainingPool)
	case domain.StatusPayload:
		s := fmt.Sprintf("status: %s → %s", p.Previous, p.Status)
		if p.Reason != "" {
			s += " (" + p.Reason + ")"
		}
		if p.VoidedItemID != "" {
			s += ", voided " + c.item(p.VoidedItemID)
		}
		return s
	case domain.RevealPayload:
		c.items[p.Item.ID] = p.Item.Name
		return fmt.Sprintf("up next: %s, round %d, opening at %s", p.Item.Name, p.Round, money(p.OpeningBid))
	case domain.PhasePayload:
		if p.Phase == domain.PhaseOpen {
			return ""
		}
		return fmt.Sprintf("%s: %s, %s on %s", strings.ToUpper(strings.ReplaceAll(string(p.Phase), "_", " ")),
			c.item(p.ItemID), money(p.CurrentBid), c.team(p.CurrentBidTeamID))
	case domain.BidPayload:
		if ev.Type == domain.EventBidRejected {
			return fmt.Sprintf("bid rejected: %s %s (%s)", c.team(p.TeamID), money(p.Amount), p.Reason)
		}
		return fmt.Sprintf("bid: %s %s, next %s", c.team(p.TeamID), money(p.Amount), money(p.NextRequired))
	case domain.OutcomePayload:
		switch ev.Type {
		case domain.EventItemSold:
			return fmt.Sprintf("SOLD: %s to %s for %s", c.item(p.ItemID), c.team(p.TeamID), money(p.Amount))
		case domain.EventItemUnsold:
			s := "UNSOLD: " + c.item(p.ItemID)
			if p.Skipped {
				s += " (skipped)"
			}
			if p.Permanent {
				s += ", no more rounds"
			}
			return s
		default:
			return fmt.Sprintf("DISQUALIFIED: %s (%s)", c.item(p.ItemID), p.Reason)
		}
	case domain.UndoPayload:
		return fmt.Sprintf("undo %s: %s", p.ActionType, p.Description)
	case domain.AnnouncementPayload:
		return fmt.Sprintf("announcement from %s: %s", p.By, p.Message)
	case domain.TeamView:
		c.teams[p.ID] = p.Name
		return fmt.Sprintf("team %s: purse %s, roster %d", p.Name, money(p.PurseRemaining), p.RosterSize)
	case domain.TradePayload:
		tr := p.Trade
		s := fmt.Sprintf("%s: %s ⇄ %s [%s]", strings.ReplaceAll(string(ev.Type), "_", " "),
			c.team(tr.InitiatorTeamID), c.team(tr.CounterpartyTeamID), tr.Status)
		if p.Reason != "" {
			s += " (" + p.Reason + ")"
		}
		return s
	}
	return string(ev.Type)
}

func (c *Console) learn(s domain.Snapshot) {
	for _, t := range s.Teams {
		c.teams[t.ID] = t.Name
	}
	for _, it := range s.Items {
		c.items[it.ID] = it.Name
	}
}

func (c *Console) team(id string) string {
	if id == "" {
		return "-"
	}
	if n, ok := c.teams[id]; ok {
		return n
	}
	return id
}

func (c *Console) item(id string) string {
	if n, ok := c.items[id]; ok {
		return n
	}
	return id
}

// PrintRosters prints one table per team with its squad and purse.
func (c *Console) PrintRosters(s domain.Snapshot) {
	c.learn(s)
	fmt.Fprintf(c.out, "\n%s: %s, round %d\n", s.Name, s.Status, s.Round)

	table := tablewriter.NewWriter(c.out)
	table.Header("Team", "Purse", "Spent", "Roster", "Trades", "Players")
	for _, t := range s.Teams {
		names := make([]string, 0, len(t.Retained)+len(t.Squad))
		for _, r := range t.Retained {
			n := c.item(r.ItemID)
			if r.Captain {
				n += " (C)"
			}
			names = append(names, n+" [R]")
		}
		for _, e := range t.Squad {
			names = append(names, fmt.Sprintf("%s %s", c.item(e.ItemID), money(e.Price)))
		}
		table.Append(
			t.Name,
			money(t.PurseRemaining),
			money(t.PurseInitial-t.PurseRemaining),
			fmt.Sprintf("%d", t.RosterSize),
			fmt.Sprintf("%d", t.TradesExecuted),
			strings.Join(names, ", "),
		)
	}
	table.Render()
}

// PrintItems prints sold, unsold and disqualified items.
func (c *Console) PrintItems(s domain.Snapshot) {
	c.learn(s)
	items := append([]domain.ItemView(nil), s.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].SoldAmount > items[j].SoldAmount })

	table := tablewriter.NewWriter(c.out)
	table.Header("Item", "Status", "Team", "Price", "Round")
	for _, it := range items {
		price, round := "-", "-"
		if it.Status == domain.ItemSold {
			price = money(it.SoldAmount)
			round = fmt.Sprintf("%d", it.SoldInRound)
		}
		table.Append(it.Name, string(it.Status), c.team(it.SoldTo), price, round)
	}
	table.Render()
}

// PrintTrades prints the trades visible in the snapshot.
func (c *Console) PrintTrades(s domain.Snapshot) {
	if len(s.Trades) == 0 {
		fmt.Fprintln(c.out, "No trades.")
		return
	}
	c.learn(s)
	table := tablewriter.NewWriter(c.out)
	table.Header("Trade", "From", "Gives", "To", "Gives", "Settlement", "Status")
	for _, tr := range s.Trades {
		settle := "-"
		if tr.SettlementAmount > 0 {
			payer := tr.InitiatorTeamID
			if tr.SettlementDirection == domain.SettlementCounterpartyPays {
				payer = tr.CounterpartyTeamID
			}
			settle = fmt.Sprintf("%s pays %s", c.team(payer), money(tr.SettlementAmount))
			if tr.SettlementWaived {
				settle += " (waived)"
			}
		}
		status := string(tr.Status)
		if tr.Reversed {
			status += " (reversed)"
		}
		table.Append(
			shortID(tr.ID),
			c.team(tr.InitiatorTeamID),
			c.tradeItems(tr.InitiatorItems),
			c.team(tr.CounterpartyTeamID),
			c.tradeItems(tr.CounterpartyItems),
			settle,
			status,
		)
	}
	table.Render()
}

func (c *Console) tradeItems(items []domain.TradeItem) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = c.item(it.ItemID)
	}
	return strings.Join(names, ", ")
}

// money formats whole units with thousands separators: 1250000 → 1,250,000.
func money(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
