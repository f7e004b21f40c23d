package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solSniperBot/internal/domain"
	"solSniperBot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.Ledger using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

var _ ports.Ledger = (*Repository)(nil)

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trades.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
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
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		side TEXT NOT NULL CHECK (side IN ('BUY', 'SELL')),
		amount_sol REAL NOT NULL DEFAULT 0,
		amount_tokens REAL NOT NULL DEFAULT 0,
		price REAL NOT NULL DEFAULT 0,
		tx_ref TEXT DEFAULT NULL,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'failed')),
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id TEXT NOT NULL,
		symbol TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		entry_price REAL NOT NULL,
		amount_tokens REAL NOT NULL,
		amount_sol_spent REAL NOT NULL,
		current_price REAL NOT NULL DEFAULT 0,
		pnl_percent REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
		entry_reason TEXT NOT NULL DEFAULT '',
		exit_reason TEXT DEFAULT NULL,
		created_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		trades_count INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		total_pnl_sol REAL NOT NULL DEFAULT 0,
		volume_sol REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS token_blacklist (
		asset_id TEXT PRIMARY KEY,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	-- At most one open position per asset; closed rows are history.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_asset ON positions (asset_id) WHERE status = 'open';
	CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades (created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades (asset_id);
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

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// withTx runs fn inside a transaction, committing on success.
func (r *Repository) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Error(ctx, rbErr, op+": rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// --- TradeRepository Implementation ---

// InsertTrade saves a new trade attempt and returns its assigned ID.
func (r *Repository) InsertTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (attempt_id, asset_id, symbol, name, side, amount_sol, amount_tokens, price, tx_ref, status, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if trade.Status == "" {
		trade.Status = domain.TradePending
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.AttemptID, trade.AssetID, trade.Symbol, trade.Name, trade.Side, trade.AmountSol, trade.AmountTokens,
		trade.Price, nullString(trade.TxRef), trade.Status, trade.Reason, trade.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s trade for asset %s: %w", trade.Side, trade.AssetID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.AssetID, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": id, "asset": trade.AssetID, "side": trade.Side, "status": trade.Status})
	return id, nil
}

// SetTradeTxRef records the transaction signature of a pending trade.
func (r *Repository) SetTradeTxRef(ctx context.Context, id int64, txRef string) error {
	const query = `UPDATE trades SET tx_ref = ? WHERE id = ? AND status = ?`
	return r.expectOneRow(ctx, r.db, "set trade tx_ref", id, query, txRef, id, domain.TradePending)
}

// FailTrade moves a pending trade to failed with the causing message.
func (r *Repository) FailTrade(ctx context.Context, id int64, reason string) error {
	const query = `UPDATE trades SET status = ?, reason = ? WHERE id = ? AND status = ?`
	return r.expectOneRow(ctx, r.db, "fail trade", id, query, domain.TradeFailed, reason, id, domain.TradePending)
}

// RecentTrades retrieves the most recent trades, newest first.
func (r *Repository) RecentTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, attempt_id, asset_id, symbol, name, side, amount_sol, amount_tokens, price,
	       tx_ref, status, reason, created_at
	FROM trades
	ORDER BY created_at DESC, id DESC LIMIT ?`

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during RecentTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// PendingTrades returns trades that never reached confirmed or failed, oldest first.
func (r *Repository) PendingTrades(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT id, attempt_id, asset_id, symbol, name, side, amount_sol, amount_tokens, price,
	       tx_ref, status, reason, created_at
	FROM trades
	WHERE status = ?
	ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, domain.TradePending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during PendingTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// --- PositionRepository Implementation ---

const positionColumns = `
	id, asset_id, symbol, name, entry_price, amount_tokens, amount_sol_spent, current_price,
	pnl_percent, status, entry_reason, exit_reason, created_at, closed_at`

// FindOpenByAsset retrieves the open position for a token, if any.
func (r *Repository) FindOpenByAsset(ctx context.Context, assetID string) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE asset_id = ? AND status = ?`

	row := r.db.QueryRowContext(ctx, query, assetID, domain.StatusOpen)
	pos, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query open position for asset %s: %w", assetID, err)
	}
	return pos, nil
}

// ListOpen retrieves all open positions, oldest first.
func (r *Repository) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE status = ? ORDER BY created_at ASC, id ASC`
	return r.queryPositions(ctx, "ListOpen", query, domain.StatusOpen)
}

// ListAll retrieves positions of any status, newest first. limit <= 0 means no limit.
func (r *Repository) ListAll(ctx context.Context, limit int) ([]*domain.Position, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}
	query := `SELECT ` + positionColumns + ` FROM positions ORDER BY created_at DESC, id DESC LIMIT ?`
	return r.queryPositions(ctx, "ListAll", query, limit)
}

// CountOpen counts open positions.
func (r *Repository) CountOpen(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM positions WHERE status = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, domain.StatusOpen).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open positions: %w", err)
	}
	return count, nil
}

// UpdateValuation stores the latest price and unrealized PnL of an open position.
func (r *Repository) UpdateValuation(ctx context.Context, assetID string, price, pnlPercent float64) error {
	const query = `UPDATE positions SET current_price = ?, pnl_percent = ? WHERE asset_id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, query, price, pnlPercent, assetID, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to update valuation for asset %s: %w", assetID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected for valuation %s: %w", assetID, err)
	} else if n == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ports.ErrNoOpenPosition)
	}
	return nil
}

func (r *Repository) queryPositions(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions (%s): %w", op, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during %s: %w", op, err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// --- StatsRepository Implementation ---

// AddDailyStat adds delta onto the row for date, creating it if needed.
func (r *Repository) AddDailyStat(ctx context.Context, date string, delta domain.DailyStatDelta) error {
	return addDailyStat(ctx, r.db, date, delta)
}

// GetDailyStat returns the row for date, or a zero row if none exists.
func (r *Repository) GetDailyStat(ctx context.Context, date string) (*domain.DailyStat, error) {
	const query = `
	SELECT date, trades_count, wins, losses, total_pnl_sol, volume_sol
	FROM daily_stats WHERE date = ?`

	stat, err := scanDailyStat(r.db.QueryRowContext(ctx, query, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.DailyStat{Date: date}, nil
		}
		return nil, fmt.Errorf("failed to query daily stats for %s: %w", date, err)
	}
	return stat, nil
}

// RecentDailyStats returns up to days rows, newest first.
func (r *Repository) RecentDailyStats(ctx context.Context, days int) ([]*domain.DailyStat, error) {
	const query = `
	SELECT date, trades_count, wins, losses, total_pnl_sol, volume_sol
	FROM daily_stats ORDER BY date DESC LIMIT ?`

	if days <= 0 {
		days = 7
	}
	rows, err := r.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	stats := make([]*domain.DailyStat, 0, days)
	for rows.Next() {
		stat, err := scanDailyStat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stat rows: %w", err)
	}
	return stats, nil
}

func addDailyStat(ctx context.Context, ex execer, date string, delta domain.DailyStatDelta) error {
	const query = `
	INSERT INTO daily_stats (date, trades_count, wins, losses, total_pnl_sol, volume_sol)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(date) DO UPDATE SET
		trades_count = daily_stats.trades_count + excluded.trades_count,
		wins = daily_stats.wins + excluded.wins,
		losses = daily_stats.losses + excluded.losses,
		total_pnl_sol = daily_stats.total_pnl_sol + excluded.total_pnl_sol,
		volume_sol = daily_stats.volume_sol + excluded.volume_sol`

	_, err := ex.ExecContext(ctx, query, date, delta.Trades, delta.Wins, delta.Losses, delta.PnLSol, delta.VolumeSol)
	if err != nil {
		return fmt.Errorf("failed to accumulate daily stats for %s: %w", date, err)
	}
	return nil
}

// --- BlacklistRepository Implementation ---

// IsBlacklisted reports whether the token was blacklisted.
func (r *Repository) IsBlacklisted(ctx context.Context, assetID string) (bool, error) {
	const query = `SELECT 1 FROM token_blacklist WHERE asset_id = ?`
	var one int
	err := r.db.QueryRowContext(ctx, query, assetID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query blacklist for %s: %w", assetID, err)
	}
	return true, nil
}

// AddToBlacklist records the token. The first reason wins.
func (r *Repository) AddToBlacklist(ctx context.Context, assetID, reason string) error {
	const query = `INSERT OR IGNORE INTO token_blacklist (asset_id, reason, created_at) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, assetID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to blacklist %s: %w", assetID, err)
	}
	r.logger.Info(ctx, "Token blacklisted", map[string]interface{}{"asset": assetID, "reason": reason})
	return nil
}

// --- Atomic ledger transitions ---

// ConfirmBuy marks the pending trade confirmed, upserts the open position and accumulates stats.
func (r *Repository) ConfirmBuy(ctx context.Context, tradeID int64, pos *domain.Position, date string, delta domain.DailyStatDelta) error {
	return r.withTx(ctx, "ConfirmBuy", func(tx *sql.Tx) error {
		if err := r.confirmTrade(ctx, tx, tradeID); err != nil {
			return err
		}
		if err := upsertOpenPosition(ctx, tx, pos); err != nil {
			return err
		}
		return addDailyStat(ctx, tx, date, delta)
	})
}

// ConfirmSell marks the pending trade confirmed, closes the open position and accumulates stats.
func (r *Repository) ConfirmSell(ctx context.Context, tradeID int64, closing domain.PositionClose, date string, delta domain.DailyStatDelta) error {
	return r.withTx(ctx, "ConfirmSell", func(tx *sql.Tx) error {
		if err := r.confirmTrade(ctx, tx, tradeID); err != nil {
			return err
		}
		if err := closeOpenPosition(ctx, tx, closing); err != nil {
			return err
		}
		return addDailyStat(ctx, tx, date, delta)
	})
}

// CloseEmptyPosition closes an open position without a trade and accumulates stats.
func (r *Repository) CloseEmptyPosition(ctx context.Context, closing domain.PositionClose, date string, delta domain.DailyStatDelta) error {
	return r.withTx(ctx, "CloseEmptyPosition", func(tx *sql.Tx) error {
		if err := closeOpenPosition(ctx, tx, closing); err != nil {
			return err
		}
		return addDailyStat(ctx, tx, date, delta)
	})
}

func (r *Repository) confirmTrade(ctx context.Context, ex execer, tradeID int64) error {
	const query = `UPDATE trades SET status = ? WHERE id = ? AND status = ?`
	return r.expectOneRow(ctx, ex, "confirm trade", tradeID, query, domain.TradeConfirmed, tradeID, domain.TradePending)
}

// upsertOpenPosition inserts the open position or merges into the existing one:
// spend and tokens accumulate and entry_price becomes the average cost.
func upsertOpenPosition(ctx context.Context, ex execer, pos *domain.Position) error {
	const query = `
	INSERT INTO positions (asset_id, symbol, name, entry_price, amount_tokens, amount_sol_spent,
	                       current_price, pnl_percent, status, entry_reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0, 'open', ?, ?)
	ON CONFLICT(asset_id) WHERE status = 'open' DO UPDATE SET
		amount_sol_spent = positions.amount_sol_spent + excluded.amount_sol_spent,
		amount_tokens = positions.amount_tokens + excluded.amount_tokens,
		entry_price = CASE
			WHEN positions.amount_tokens + excluded.amount_tokens > 0
			THEN (positions.amount_sol_spent + excluded.amount_sol_spent) / (positions.amount_tokens + excluded.amount_tokens)
			ELSE positions.entry_price END,
		symbol = CASE WHEN excluded.symbol <> '' THEN excluded.symbol ELSE positions.symbol END,
		name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE positions.name END,
		entry_reason = excluded.entry_reason`

	createdAt := pos.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := ex.ExecContext(ctx, query,
		pos.AssetID, pos.Symbol, pos.Name, pos.EntryPrice, pos.AmountTokens, pos.AmountSolSpent,
		pos.EntryPrice, pos.EntryReason, createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert position for asset %s: %w", pos.AssetID, err)
	}
	return nil
}

func closeOpenPosition(ctx context.Context, ex execer, c domain.PositionClose) error {
	const query = `
	UPDATE positions
	SET status = 'closed', current_price = ?, pnl_percent = ?, exit_reason = ?, closed_at = ?
	WHERE asset_id = ? AND status = 'open'`

	closedAt := c.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}
	result, err := ex.ExecContext(ctx, query, c.ExitPrice, c.PnLPercent, c.ExitReason, closedAt, c.AssetID)
	if err != nil {
		return fmt.Errorf("failed to close position for asset %s: %w", c.AssetID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected closing %s: %w", c.AssetID, err)
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", c.AssetID, ports.ErrNoOpenPosition)
	}
	return nil
}

// expectOneRow executes a guarded update that must touch exactly one row.
func (r *Repository) expectOneRow(ctx context.Context, ex execer, op string, id int64, query string, args ...interface{}) error {
	result, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s %d: %w: %w", op, id, ports.ErrUpdateFailed, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected (%s %d): %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, ports.ErrInvalidState)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var status string
	var exitReason sql.NullString
	var closedAt sql.NullTime
	err := s.Scan(
		&p.ID, &p.AssetID, &p.Symbol, &p.Name, &p.EntryPrice, &p.AmountTokens, &p.AmountSolSpent,
		&p.CurrentPrice, &p.PnLPercent, &status, &p.EntryReason, &exitReason, &p.CreatedAt, &closedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	p.Status = domain.PositionStatus(status)
	if exitReason.Valid {
		p.ExitReason = domain.CloseReason(exitReason.String)
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	return p, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status string
	var txRef sql.NullString
	err := s.Scan(
		&t.ID, &t.AttemptID, &t.AssetID, &t.Symbol, &t.Name, &side, &t.AmountSol, &t.AmountTokens,
		&t.Price, &txRef, &status, &t.Reason, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(status)
	if txRef.Valid {
		t.TxRef = txRef.String
	}
	return t, nil
}

func scanDailyStat(s scanner) (*domain.DailyStat, error) {
	d := &domain.DailyStat{}
	if err := s.Scan(&d.Date, &d.TradesCount, &d.Wins, &d.Losses, &d.TotalPnLSol, &d.VolumeSol); err != nil {
		return nil, err
	}
	return d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
