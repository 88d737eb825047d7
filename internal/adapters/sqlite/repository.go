package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mattn/go-sqlite3"

	"sniperBot/internal/domain"
	"sniperBot/internal/ports"
)

// Repository implements the ports.EventSink and ports.TradeRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// Watermark is the persisted price extreme of a position.
type Watermark struct {
	PositionID string
	TokenID    string
	HighPrice  float64
	LowPrice   float64
	MaxROI     float64
	UpdatedAt  time.Time
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/sniper.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %w", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		token TEXT NOT NULL,
		side TEXT NOT NULL,
		signature TEXT NOT NULL,
		base_amount REAL NOT NULL,
		token_amount TEXT NOT NULL,
		price REAL NOT NULL,
		sold_percent REAL NOT NULL DEFAULT 0,
		profit_percent REAL NOT NULL DEFAULT 0,
		pnl REAL NOT NULL DEFAULT 0,
		usd_value REAL NOT NULL DEFAULT 0,
		reason TEXT NULL,
		source TEXT NULL,
		paper INTEGER NOT NULL DEFAULT 0,
		executed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		position_id TEXT NOT NULL,
		token TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watermarks (
		position_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		high_price REAL NOT NULL,
		low_price REAL NOT NULL,
		max_roi_reached REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS blacklist (
		token TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		added_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_token_side ON trades (token, side);
	CREATE INDEX IF NOT EXISTS idx_trades_executed_at ON trades (executed_at);
	CREATE INDEX IF NOT EXISTS idx_events_position ON events (position_id, occurred_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- EventSink Implementation ---

// Record stores a lifecycle event together with its trade or watermark in one transaction.
func (r *Repository) Record(ctx context.Context, event domain.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", ports.ErrDBConnection, err)
	}
	defer tx.Rollback()

	const insertEvent = `
	INSERT INTO events (id, type, position_id, token, occurred_at, payload)
	VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertEvent,
		event.ID, string(event.Type), event.PositionID, event.TokenID, event.Time.UTC(), string(payload)); err != nil {
		return wrapExecErr(err, "failed to insert event %s", event.ID)
	}

	switch event.Type {
	case domain.EventBuyRecorded, domain.EventSellRecorded:
		if event.Trade == nil {
			return fmt.Errorf("%w: %s event %s without trade", ports.ErrInvalidRequest, event.Type, event.ID)
		}
		if err := insertTrade(ctx, tx, event.Trade); err != nil {
			return err
		}
		if event.Type == domain.EventSellRecorded && event.HighPrice > 0 {
			if err := upsertWatermark(ctx, tx, event); err != nil {
				return err
			}
		}
	case domain.EventWatermarkUpdated:
		if err := upsertWatermark(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit event %s: %w", ports.ErrQueryFailed, event.ID, err)
	}
	r.logger.Debug(ctx, "Lifecycle event recorded", map[string]interface{}{"type": string(event.Type), "token": event.TokenID})
	return nil
}

func insertTrade(ctx context.Context, tx *sql.Tx, t *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, position_id, token, side, signature, base_amount, token_amount, price,
	                    sold_percent, profit_percent, pnl, usd_value, reason, source, paper, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := tx.ExecContext(ctx, query,
		t.ID, t.PositionID, t.TokenID, string(t.Side), t.Signature, t.BaseAmount,
		strconv.FormatUint(t.TokenAmount, 10), t.Price, t.SoldPercent, t.ProfitPercent, t.PNL, t.USDValue,
		nullString(string(t.Reason)), nullString(t.Source), t.Paper, t.ExecutedAt.UTC())
	if err != nil {
		return wrapExecErr(err, "failed to insert trade %s for token %s", t.ID, t.TokenID)
	}
	return nil
}

// upsertWatermark keeps the highest high, lowest low and highest max ROI seen.
func upsertWatermark(ctx context.Context, tx *sql.Tx, e domain.LifecycleEvent) error {
	const query = `
	INSERT INTO watermarks (position_id, token, high_price, low_price, max_roi_reached, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(position_id) DO UPDATE SET
		high_price = MAX(high_price, excluded.high_price),
		low_price = MIN(low_price, excluded.low_price),
		max_roi_reached = MAX(max_roi_reached, excluded.max_roi_reached),
		updated_at = excluded.updated_at`

	_, err := tx.ExecContext(ctx, query, e.PositionID, e.TokenID, e.HighPrice, e.LowPrice, e.MaxROI, e.Time.UTC())
	if err != nil {
		return wrapExecErr(err, "failed to upsert watermark for position %s", e.PositionID)
	}
	return nil
}

// --- TradeRepository Implementation ---

// FindTrades returns trades executed at or after since, oldest first.
func (r *Repository) FindTrades(ctx context.Context, since time.Time) ([]*domain.Trade, error) {
	const query = `
	SELECT id, position_id, token, side, signature, base_amount, token_amount, price,
	       sold_percent, profit_percent, pnl, usd_value, reason, source, paper, executed_at
	FROM trades
	WHERE executed_at >= ?
	ORDER BY executed_at ASC, rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query trades: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during FindTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CountTodayBuys counts buys executed since local midnight.
func (r *Repository) CountTodayBuys(ctx context.Context) (int, error) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	const query = `SELECT COUNT(*) FROM trades WHERE side = ? AND executed_at >= ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, string(domain.Buy), midnight.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count today's buys: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// HasBought reports whether a buy was ever recorded for the token.
func (r *Repository) HasBought(ctx context.Context, token string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM trades WHERE token = ? AND side = ?)`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, token, string(domain.Buy)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check trades for token %s: %w", ports.ErrQueryFailed, token, err)
	}
	return exists, nil
}

// Watermarks returns persisted watermarks keyed by position ID.
func (r *Repository) Watermarks(ctx context.Context) (map[string]Watermark, error) {
	const query = `
	SELECT position_id, token, high_price, low_price, max_roi_reached, updated_at
	FROM watermarks`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query watermarks: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make(map[string]Watermark)
	for rows.Next() {
		var w Watermark
		if err := rows.Scan(&w.PositionID, &w.TokenID, &w.HighPrice, &w.LowPrice, &w.MaxROI, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watermark: %w", err)
		}
		out[w.PositionID] = w
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watermark rows: %w", err)
	}
	return out, nil
}

// CountEvents counts recorded events of the given type.
func (r *Repository) CountEvents(ctx context.Context, eventType domain.EventType) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, string(eventType)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count %s events: %w", ports.ErrQueryFailed, eventType, err)
	}
	return count, nil
}

// --- TokenBlacklist Implementation ---

// IsBlacklisted reports whether the token was marked unsafe.
func (r *Repository) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM blacklist WHERE token = ?)`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check blacklist for token %s: %w", ports.ErrQueryFailed, token, err)
	}
	return exists, nil
}

// Blacklist marks the token unsafe. Marking it again keeps the first reason.
func (r *Repository) Blacklist(ctx context.Context, token, reason string) error {
	const query = `INSERT INTO blacklist (token, reason, added_at) VALUES (?, ?, ?) ON CONFLICT(token) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, token, reason, time.Now().UTC()); err != nil {
		return wrapExecErr(err, "failed to blacklist token %s", token)
	}
	r.logger.Warn(ctx, "Token blacklisted", map[string]interface{}{"token": token, "reason": reason})
	return nil
}

// --- Helper Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, tokenAmount string
	var reason, source sql.NullString
	err := s.Scan(
		&t.ID, &t.PositionID, &t.TokenID, &side, &t.Signature, &t.BaseAmount, &tokenAmount, &t.Price,
		&t.SoldPercent, &t.ProfitPercent, &t.PNL, &t.USDValue, &reason, &source, &t.Paper, &t.ExecutedAt)
	if err != nil {
		return nil, err
	}
	t.Side = domain.OrderSide(side)
	if t.TokenAmount, err = strconv.ParseUint(tokenAmount, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid token amount %q: %w", tokenAmount, err)
	}
	if reason.Valid {
		t.Reason = domain.ExitReason(reason.String)
	}
	if source.Valid {
		t.Source = source.String
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrapExecErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return fmt.Errorf("%w: %s: %w", ports.ErrDuplicateEntry, msg, err)
	}
	return fmt.Errorf("%w: %s: %w", ports.ErrQueryFailed, msg, err)
}
