package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/trade_signal_engine/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			instrument TEXT PRIMARY KEY,
			initial_balance REAL NOT NULL,
			current_balance REAL NOT NULL,
			max_balance REAL NOT NULL,
			drawdown_pct REAL NOT NULL DEFAULT 0,
			blocked BOOLEAN NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL DEFAULT 0,
			size REAL NOT NULL,
			stop_loss REAL NOT NULL,
			take_profit REAL NOT NULL,
			status TEXT NOT NULL,
			profit_loss REAL NOT NULL DEFAULT 0,
			commission REAL NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			potential_total REAL NOT NULL DEFAULT 0,
			opened_at DATETIME,
			closed_at DATETIME,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_instrument ON trades(instrument);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_status ON trades(status);`,
		`CREATE TABLE IF NOT EXISTS signal_states (
			instrument TEXT NOT NULL,
			mode TEXT NOT NULL,
			direction TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (instrument, mode)
		);`,
		`CREATE TABLE IF NOT EXISTS engine_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			instrument TEXT NOT NULL,
			message TEXT NOT NULL,
			data TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_engine_log_instrument ON engine_log(instrument);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// AccountRepository Implementation

func (s *SQLiteStore) SaveAccount(ctx context.Context, acc *domain.Account) error {
	query := `INSERT INTO accounts (instrument, initial_balance, current_balance, max_balance, drawdown_pct, blocked, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(instrument) DO UPDATE SET
			  initial_balance=excluded.initial_balance,
			  current_balance=excluded.current_balance,
			  max_balance=excluded.max_balance,
			  drawdown_pct=excluded.drawdown_pct,
			  blocked=excluded.blocked,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		acc.Instrument, acc.InitialBalance, acc.CurrentBalance, acc.MaxBalance,
		acc.DrawdownPct, acc.Blocked, acc.UpdatedAt)
	return err
}

func (s *SQLiteStore) GetAccount(ctx context.Context, instrument string) (*domain.Account, error) {
	query := `SELECT instrument, initial_balance, current_balance, max_balance, drawdown_pct, blocked, updated_at
			  FROM accounts WHERE instrument = ?`
	row := s.db.QueryRowContext(ctx, query, instrument)

	var a domain.Account
	err := row.Scan(&a.Instrument, &a.InitialBalance, &a.CurrentBalance, &a.MaxBalance, &a.DrawdownPct, &a.Blocked, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT instrument, initial_balance, current_balance, max_balance, drawdown_pct, blocked, updated_at
			  FROM accounts ORDER BY instrument`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.Instrument, &a.InitialBalance, &a.CurrentBalance, &a.MaxBalance, &a.DrawdownPct, &a.Blocked, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// TradeRepository Implementation

func (s *SQLiteStore) InsertTrade(ctx context.Context, t *domain.Trade) error {
	query := `INSERT INTO trades (instrument, direction, entry_price, exit_price, size, stop_loss, take_profit, status, profit_loss, commission, confidence, potential_total, opened_at, closed_at, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		t.Instrument, string(t.Direction), t.EntryPrice, t.ExitPrice, t.Size,
		t.StopLoss, t.TakeProfit, string(t.Status), t.ProfitLoss, t.Commission,
		t.Confidence, t.PotentialTotal, nullTime(t.OpenedAt), nullTime(t.ClosedAt), t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (s *SQLiteStore) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	query := `UPDATE trades SET exit_price = ?, status = ?, profit_loss = ?, commission = ?, opened_at = ?, closed_at = ?
			  WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query,
		t.ExitPrice, string(t.Status), t.ProfitLoss, t.Commission,
		nullTime(t.OpenedAt), nullTime(t.ClosedAt), t.ID)
	return err
}

func (s *SQLiteStore) ListTrades(ctx context.Context, instrument string, limit int) ([]*domain.Trade, error) {
	query := `SELECT id, instrument, direction, entry_price, exit_price, size, stop_loss, take_profit, status, profit_loss, commission, confidence, potential_total, opened_at, closed_at, created_at
			  FROM trades WHERE instrument = ? ORDER BY id DESC`
	args := []any{instrument}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func (s *SQLiteStore) ListActiveTrades(ctx context.Context) ([]*domain.Trade, error) {
	query := `SELECT id, instrument, direction, entry_price, exit_price, size, stop_loss, take_profit, status, profit_loss, commission, confidence, potential_total, opened_at, closed_at, created_at
			  FROM trades WHERE status IN (?, ?) ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, string(domain.StatusPending), string(domain.StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction, status string
		var openedAt, closedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Instrument, &direction, &t.EntryPrice, &t.ExitPrice, &t.Size,
			&t.StopLoss, &t.TakeProfit, &status, &t.ProfitLoss, &t.Commission,
			&t.Confidence, &t.PotentialTotal, &openedAt, &closedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Direction = domain.Direction(direction)
		t.Status = domain.TradeStatus(status)
		if openedAt.Valid {
			t.OpenedAt = openedAt.Time
		}
		if closedAt.Valid {
			t.ClosedAt = closedAt.Time
		}
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// SignalStateRepository Implementation

func (s *SQLiteStore) SaveSignalState(ctx context.Context, instrument, mode string, dir domain.Direction) error {
	query := `INSERT INTO signal_states (instrument, mode, direction, updated_at)
			  VALUES (?, ?, ?, ?)
			  ON CONFLICT(instrument, mode) DO UPDATE SET
			  direction=excluded.direction,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, instrument, mode, string(dir), time.Now().UTC())
	return err
}

func (s *SQLiteStore) GetSignalState(ctx context.Context, instrument, mode string) (domain.Direction, error) {
	query := `SELECT direction FROM signal_states WHERE instrument = ? AND mode = ?`
	row := s.db.QueryRowContext(ctx, query, instrument, mode)

	var direction string
	err := row.Scan(&direction)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return domain.Direction(direction), nil
}

// EventLogger Implementation

func (s *SQLiteStore) AppendLog(ctx context.Context, event, instrument, message string, data map[string]any) error {
	var payload any
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal log data: %w", err)
		}
		payload = string(b)
	}
	query := `INSERT INTO engine_log (event, instrument, message, data, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, event, instrument, message, payload, time.Now().UTC())
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
