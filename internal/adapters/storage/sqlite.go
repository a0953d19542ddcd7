package storage

// sqlite.go: durable auction state in a single SQLite file.
//
// Layout:
//   - one row per entity (auction, team, item, trade), upserted on every batch.
//     The entity itself lives in a JSON `data` column; the indexed columns are
//     only there for ad-hoc queries.
//   - `actions` and `bids` are append-mostly logs keyed by (auction_id, seq).
//     Action rows are rewritten when undo flags them.
//   - Load returns rows in insertion order (rowid), which is the order the
//     auction listed its teams and items in.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/auctionroom/internal/domain"
	"github.com/alejandrodnm/auctionroom/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
    id         TEXT PRIMARY KEY,
    name       TEXT     NOT NULL DEFAULT '',
    status     TEXT     NOT NULL,
    data       TEXT     NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS teams (
    auction_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    purse      INTEGER NOT NULL DEFAULT 0,
    data       TEXT NOT NULL,
    PRIMARY KEY (auction_id, id)
);

CREATE TABLE IF NOT EXISTS items (
    auction_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    status     TEXT NOT NULL,
    sold_to    TEXT NOT NULL DEFAULT '',
    data       TEXT NOT NULL,
    PRIMARY KEY (auction_id, id)
);

CREATE TABLE IF NOT EXISTS trades (
    auction_id TEXT NOT NULL,
    id         TEXT NOT NULL,
    status     TEXT NOT NULL,
    data       TEXT NOT NULL,
    PRIMARY KEY (auction_id, id)
);

CREATE TABLE IF NOT EXISTS actions (
    auction_id TEXT    NOT NULL,
    seq        INTEGER NOT NULL,
    type       TEXT    NOT NULL,
    undone     INTEGER NOT NULL DEFAULT 0,
    data       TEXT    NOT NULL,
    PRIMARY KEY (auction_id, seq)
);

CREATE TABLE IF NOT EXISTS bids (
    auction_id TEXT    NOT NULL,
    seq        INTEGER NOT NULL,
    item_id    TEXT    NOT NULL DEFAULT '',
    team_id    TEXT    NOT NULL,
    accepted   INTEGER NOT NULL DEFAULT 0,
    data       TEXT    NOT NULL,
    PRIMARY KEY (auction_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(auction_id, status);
CREATE INDEX IF NOT EXISTS idx_bids_item    ON bids(auction_id, item_id);
`

// SQLiteStore implements ports.AuctionStore on SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.AuctionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Apply upserts the batch in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, auctionID string, b ports.Batch) error {
	if b.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.Apply: begin tx: %w", err)
	}
	defer tx.Rollback()

	if a := b.Auction; a != nil {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("storage.Apply: encode auction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO auctions (id, name, status, data, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name       = excluded.name,
				status     = excluded.status,
				data       = excluded.data,
				updated_at = excluded.updated_at`,
			auctionID, a.Name, string(a.Status), string(data), a.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("storage.Apply: upsert auction: %w", err)
		}
	}

	for _, t := range b.Teams {
		if err := upsert(ctx, tx, `
			INSERT INTO teams (auction_id, id, purse, data) VALUES (?, ?, ?, ?)
			ON CONFLICT(auction_id, id) DO UPDATE SET purse = excluded.purse, data = excluded.data`,
			t, auctionID, t.ID, t.PurseRemaining); err != nil {
			return fmt.Errorf("storage.Apply: team %s: %w", t.ID, err)
		}
	}
	for _, it := range b.Items {
		if err := upsert(ctx, tx, `
			INSERT INTO items (auction_id, id, status, sold_to, data) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(auction_id, id) DO UPDATE SET
				status = excluded.status, sold_to = excluded.sold_to, data = excluded.data`,
			it, auctionID, it.ID, string(it.Status), it.SoldTo); err != nil {
			return fmt.Errorf("storage.Apply: item %s: %w", it.ID, err)
		}
	}
	for _, tr := range b.Trades {
		if err := upsert(ctx, tx, `
			INSERT INTO trades (auction_id, id, status, data) VALUES (?, ?, ?, ?)
			ON CONFLICT(auction_id, id) DO UPDATE SET status = excluded.status, data = excluded.data`,
			tr, auctionID, tr.ID, string(tr.Status)); err != nil {
			return fmt.Errorf("storage.Apply: trade %s: %w", tr.ID, err)
		}
	}
	for _, ev := range b.Actions {
		if err := upsert(ctx, tx, `
			INSERT INTO actions (auction_id, seq, type, undone, data) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(auction_id, seq) DO UPDATE SET undone = excluded.undone, data = excluded.data`,
			ev, auctionID, ev.Seq, string(ev.Type), boolInt(ev.IsUndone)); err != nil {
			return fmt.Errorf("storage.Apply: action %d: %w", ev.Seq, err)
		}
	}
	for _, bid := range b.Bids {
		if err := upsert(ctx, tx, `
			INSERT INTO bids (auction_id, seq, item_id, team_id, accepted, data) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(auction_id, seq) DO NOTHING`,
			bid, auctionID, bid.Seq, bid.ItemID, bid.TeamID, boolInt(bid.Accepted)); err != nil {
			return fmt.Errorf("storage.Apply: bid %d: %w", bid.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.Apply: commit: %w", err)
	}
	return nil
}

// upsert runs query with args followed by v encoded as JSON.
func upsert(ctx context.Context, tx *sql.Tx, query string, v any, args ...any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	_, err = tx.ExecContext(ctx, query, append(args, string(data))...)
	return err
}

// Load reads the full state of one auction.
func (s *SQLiteStore) Load(ctx context.Context, auctionID string) (domain.AuctionRecord, error) {
	var rec domain.AuctionRecord

	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM auctions WHERE id = ?`, auctionID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("storage.Load: %w: auction %q", domain.ErrNotFound, auctionID)
	}
	if err != nil {
		return rec, fmt.Errorf("storage.Load: auction: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Auction); err != nil {
		return rec, fmt.Errorf("storage.Load: decode auction: %w", err)
	}

	if rec.Teams, err = loadRows[domain.Team](ctx, s.db, `SELECT data FROM teams WHERE auction_id = ? ORDER BY rowid`, auctionID); err != nil {
		return rec, fmt.Errorf("storage.Load: teams: %w", err)
	}
	if rec.Items, err = loadRows[domain.Item](ctx, s.db, `SELECT data FROM items WHERE auction_id = ? ORDER BY rowid`, auctionID); err != nil {
		return rec, fmt.Errorf("storage.Load: items: %w", err)
	}
	if rec.Trades, err = loadRows[domain.Trade](ctx, s.db, `SELECT data FROM trades WHERE auction_id = ? ORDER BY rowid`, auctionID); err != nil {
		return rec, fmt.Errorf("storage.Load: trades: %w", err)
	}
	if rec.Actions, err = loadRows[domain.ActionEvent](ctx, s.db, `SELECT data FROM actions WHERE auction_id = ? ORDER BY seq`, auctionID); err != nil {
		return rec, fmt.Errorf("storage.Load: actions: %w", err)
	}
	if rec.Bids, err = loadRows[domain.BidAudit](ctx, s.db, `SELECT data FROM bids WHERE auction_id = ? ORDER BY seq`, auctionID); err != nil {
		return rec, fmt.Errorf("storage.Load: bids: %w", err)
	}
	return rec, nil
}

func loadRows[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListAuctionIDs returns stored auctions, most recently updated first.
func (s *SQLiteStore) ListAuctionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM auctions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListAuctionIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.ListAuctionIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
