package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

type auctionRow struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID        string         `bun:"id,pk"`
	Name      string         `bun:"name,notnull"`
	Status    string         `bun:"status,notnull"`
	Data      domain.Auction `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time      `bun:"updated_at,notnull"`
}

type teamRow struct {
	bun.BaseModel `bun:"table:auction_teams,alias:t"`

	AuctionID string      `bun:"auction_id,pk"`
	ID        string      `bun:"id,pk"`
	Ord       int         `bun:"ord,notnull"`
	Purse     int64       `bun:"purse,notnull"`
	Data      domain.Team `bun:"data,type:jsonb,notnull"`
}

type itemRow struct {
	bun.BaseModel `bun:"table:auction_items,alias:i"`

	AuctionID string      `bun:"auction_id,pk"`
	ID        string      `bun:"id,pk"`
	Ord       int         `bun:"ord,notnull"`
	Status    string      `bun:"status,notnull"`
	SoldTo    string      `bun:"sold_to"`
	Data      domain.Item `bun:"data,type:jsonb,notnull"`
}

type tradeRow struct {
	bun.BaseModel `bun:"table:auction_trades,alias:tr"`

	AuctionID string       `bun:"auction_id,pk"`
	ID        string       `bun:"id,pk"`
	Status    string       `bun:"status,notnull"`
	CreatedAt time.Time    `bun:"created_at,notnull"`
	Data      domain.Trade `bun:"data,type:jsonb,notnull"`
}

type actionRow struct {
	bun.BaseModel `bun:"table:auction_actions,alias:ac"`

	AuctionID string             `bun:"auction_id,pk"`
	Seq       int64              `bun:"seq,pk"`
	Type      string             `bun:"type,notnull"`
	Undone    bool               `bun:"undone,notnull"`
	Data      domain.ActionEvent `bun:"data,type:jsonb,notnull"`
}

type bidRow struct {
	bun.BaseModel `bun:"table:auction_bids,alias:b"`

	AuctionID string          `bun:"auction_id,pk"`
	Seq       int64           `bun:"seq,pk"`
	ItemID    string          `bun:"item_id"`
	TeamID    string          `bun:"team_id,notnull"`
	Accepted  bool            `bun:"accepted,notnull"`
	Data      domain.BidAudit `bun:"data,type:jsonb,notnull"`
}

// PostgresStore implements ports.AuctionStore on PostgreSQL through bun.
type PostgresStore struct {
	db *bun.DB
}

var _ ports.AuctionStore = (*PostgresStore)(nil)

// NewPostgresStore connects with a postgres:// DSN and creates missing tables.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: ping: %w", err)
	}

	models := []any{
		(*auctionRow)(nil),
		(*teamRow)(nil),
		(*itemRow)(nil),
		(*tradeRow)(nil),
		(*actionRow)(nil),
		(*bidRow)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewPostgresStore: create table: %w", err)
		}
	}
	if _, err := db.NewCreateIndex().
		Model((*bidRow)(nil)).
		Index("idx_auction_bids_item").
		IfNotExists().
		Column("auction_id", "item_id").
		Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewPostgresStore: create index: %w", err)
	}

	slog.Info("storage: postgres ready")
	return &PostgresStore{db: db}, nil
}

// Apply upserts the batch in one transaction.
func (s *PostgresStore) Apply(ctx context.Context, auctionID string, b ports.Batch) error {
	if b.Empty() {
		return nil
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if a := b.Auction; a != nil {
			row := &auctionRow{ID: auctionID, Name: a.Name, Status: string(a.Status), Data: *a, UpdatedAt: a.UpdatedAt.UTC()}
			if _, err := tx.NewInsert().Model(row).
				On("CONFLICT (id) DO UPDATE").
				Set("name = EXCLUDED.name").
				Set("status = EXCLUDED.status").
				Set("data = EXCLUDED.data").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert auction: %w", err)
			}
		}

		if len(b.Teams) > 0 {
			rows := make([]teamRow, len(b.Teams))
			for i, t := range b.Teams {
				rows[i] = teamRow{AuctionID: auctionID, ID: t.ID, Ord: i, Purse: t.PurseRemaining, Data: t}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (auction_id, id) DO UPDATE").
				Set("purse = EXCLUDED.purse").
				Set("data = EXCLUDED.data").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert teams: %w", err)
			}
		}

		if len(b.Items) > 0 {
			rows := make([]itemRow, len(b.Items))
			for i, it := range b.Items {
				rows[i] = itemRow{AuctionID: auctionID, ID: it.ID, Ord: i, Status: string(it.Status), SoldTo: it.SoldTo, Data: it}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (auction_id, id) DO UPDATE").
				Set("status = EXCLUDED.status").
				Set("sold_to = EXCLUDED.sold_to").
				Set("data = EXCLUDED.data").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert items: %w", err)
			}
		}

		if len(b.Trades) > 0 {
			rows := make([]tradeRow, len(b.Trades))
			for i, tr := range b.Trades {
				rows[i] = tradeRow{AuctionID: auctionID, ID: tr.ID, Status: string(tr.Status), CreatedAt: tr.CreatedAt.UTC(), Data: tr}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (auction_id, id) DO UPDATE").
				Set("status = EXCLUDED.status").
				Set("data = EXCLUDED.data").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert trades: %w", err)
			}
		}

		if len(b.Actions) > 0 {
			rows := make([]actionRow, len(b.Actions))
			for i, ev := range b.Actions {
				rows[i] = actionRow{AuctionID: auctionID, Seq: ev.Seq, Type: string(ev.Type), Undone: ev.IsUndone, Data: ev}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (auction_id, seq) DO UPDATE").
				Set("undone = EXCLUDED.undone").
				Set("data = EXCLUDED.data").
				Exec(ctx); err != nil {
				return fmt.Errorf("upsert actions: %w", err)
			}
		}

		if len(b.Bids) > 0 {
			rows := make([]bidRow, len(b.Bids))
			for i, bid := range b.Bids {
				rows[i] = bidRow{AuctionID: auctionID, Seq: bid.Seq, ItemID: bid.ItemID, TeamID: bid.TeamID, Accepted: bid.Accepted, Data: bid}
			}
			if _, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (auction_id, seq) DO NOTHING").
				Exec(ctx); err != nil {
				return fmt.Errorf("insert bids: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storage.Apply: %w", err)
	}
	return nil
}

// Load returns the full durable state of an auction.
func (s *PostgresStore) Load(ctx context.Context, auctionID string) (domain.AuctionRecord, error) {
	var rec domain.AuctionRecord

	a := new(auctionRow)
	err := s.db.NewSelect().Model(a).Where("id = ?", auctionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("storage.Load: %w: auction %q", domain.ErrNotFound, auctionID)
	}
	if err != nil {
		return rec, fmt.Errorf("storage.Load: auction: %w", err)
	}
	rec.Auction = a.Data

	var teams []teamRow
	if err := s.db.NewSelect().Model(&teams).Where("auction_id = ?", auctionID).Order("ord ASC").Scan(ctx); err != nil {
		return rec, fmt.Errorf("storage.Load: teams: %w", err)
	}
	for _, r := range teams {
		rec.Teams = append(rec.Teams, r.Data)
	}

	var items []itemRow
	if err := s.db.NewSelect().Model(&items).Where("auction_id = ?", auctionID).Order("ord ASC").Scan(ctx); err != nil {
		return rec, fmt.Errorf("storage.Load: items: %w", err)
	}
	for _, r := range items {
		rec.Items = append(rec.Items, r.Data)
	}

	var trades []tradeRow
	if err := s.db.NewSelect().Model(&trades).Where("auction_id = ?", auctionID).Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return rec, fmt.Errorf("storage.Load: trades: %w", err)
	}
	for _, r := range trades {
		rec.Trades = append(rec.Trades, r.Data)
	}

	var actions []actionRow
	if err := s.db.NewSelect().Model(&actions).Where("auction_id = ?", auctionID).Order("seq ASC").Scan(ctx); err != nil {
		return rec, fmt.Errorf("storage.Load: actions: %w", err)
	}
	for _, r := range actions {
		rec.Actions = append(rec.Actions, r.Data)
	}

	var bids []bidRow
	if err := s.db.NewSelect().Model(&bids).Where("auction_id = ?", auctionID).Order("seq ASC").Scan(ctx); err != nil {
		return rec, fmt.Errorf("storage.Load: bids: %w", err)
	}
	for _, r := range bids {
		rec.Bids = append(rec.Bids, r.Data)
	}
	return rec, nil
}

// ListAuctionIDs returns persisted auctions, most recently updated first.
func (s *PostgresStore) ListAuctionIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().
		Model((*auctionRow)(nil)).
		Column("id").
		Order("updated_at DESC", "id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAuctionIDs: %w", err)
	}
	return ids, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
