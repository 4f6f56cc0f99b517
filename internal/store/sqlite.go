package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/dexbot/goswap/internal/domain"
)

// SQLiteStore keeps orders in a single-connection sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  token_address TEXT NOT NULL,
  amount_in TEXT NOT NULL,
  slippage TEXT NOT NULL,
  selected_dex TEXT,
  tx_hash TEXT,
  error_message TEXT,
  attempts INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (id, status, token_address, amount_in, slippage, attempts, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?)
`, order.ID, string(order.Status), order.TokenAddress, order.AmountIn.String(), order.Slippage.String(),
		order.Attempts, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Update applies a sparse change-set. Repeating the same update is a no-op
// beyond touching updated_at, which keeps pipeline retries safe.
func (s *SQLiteStore) Update(ctx context.Context, orderID string, upd domain.Update) error {
	if upd.IsEmpty() {
		return nil
	}
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if upd.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*upd.Status))
	}
	// An empty string clears the column. Retries rely on this to drop a
	// previous run's error_message.
	if upd.SelectedDex != nil {
		sets = append(sets, "selected_dex=?")
		args = append(args, nullable(*upd.SelectedDex))
	}
	if upd.TxHash != nil {
		sets = append(sets, "tx_hash=?")
		args = append(args, nullable(*upd.TxHash))
	}
	if upd.ErrorMessage != nil {
		sets = append(sets, "error_message=?")
		args = append(args, nullable(*upd.ErrorMessage))
	}
	if upd.Attempts != nil {
		sets = append(sets, "attempts=?")
		args = append(args, *upd.Attempts)
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, orderID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, status, token_address, amount_in, slippage, selected_dex, tx_hash, error_message, attempts, created_at, updated_at
FROM orders
WHERE id=?
`, orderID)
	order, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return order, nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, status, token_address, amount_in, slippage, selected_dex, tx_hash, error_message, attempts, created_at, updated_at
FROM orders
ORDER BY created_at DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

func scanOrder(scan func(dest ...any) error) (*domain.Order, error) {
	var (
		o         domain.Order
		status    string
		amountIn  string
		slippage  string
		dex       sql.NullString
		txHash    sql.NullString
		errMsg    sql.NullString
		createdAt string
		updatedAt string
	)
	if err := scan(&o.ID, &status, &o.TokenAddress, &amountIn, &slippage,
		&dex, &txHash, &errMsg, &o.Attempts, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	var err error
	if o.AmountIn, err = decimal.NewFromString(amountIn); err != nil {
		return nil, fmt.Errorf("bad amount_in %q: %w", amountIn, err)
	}
	if o.Slippage, err = decimal.NewFromString(slippage); err != nil {
		return nil, fmt.Errorf("bad slippage %q: %w", slippage, err)
	}
	if dex.Valid {
		v := dex.String
		o.SelectedDex = &v
	}
	if txHash.Valid {
		v := txHash.String
		o.TxHash = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		o.ErrorMessage = &v
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &o, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
