// Package sqlite is a single-file order store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/antonminaichev/linkcard/internal/storage"
	"github.com/antonminaichev/linkcard/internal/types/order"

	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// Store provides a SQLite-backed order store.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer keeps compare-and-swap updates from tripping SQLITE_BUSY
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.initSchema(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			seq INTEGER PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			number TEXT UNIQUE NOT NULL,
			status TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			email TEXT NOT NULL,
			card_config TEXT NOT NULL,
			total REAL NOT NULL,
			tracking_number TEXT,
			created_at TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS order_emails (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL REFERENCES orders(id),
			kind TEXT NOT NULL,
			sent_at TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS order_emails_order_id_idx ON order_emails(order_id)`,
	}
	for _, q := range stmts {
		if _, err := s.sqlDB.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	cfg, err := json.Marshal(o.CardConfig)
	if err != nil {
		return fmt.Errorf("encode card config: %w", err)
	}
	var tracking sql.NullString
	if o.TrackingNumber != nil {
		tracking = sql.NullString{String: *o.TrackingNumber, Valid: true}
	}
	q := `
		INSERT INTO orders (seq, id, number, status, customer_name, email, card_config, total, tracking_number, created_at)
		SELECT next, ?, ? || next, ?, ?, ?, ?, ?, ?, ?
		FROM (SELECT COALESCE(MAX(seq) + 1, ?) AS next FROM orders)
		RETURNING number, version`
	return s.sqlDB.QueryRowContext(ctx, q,
		o.ID, storage.OrderNumberPrefix, string(o.Status), o.CustomerName, o.Email,
		string(cfg), o.Pricing.Total, tracking, o.CreatedAt.UTC().Format(timeFormat),
		storage.FirstOrderNumber,
	).Scan(&o.Number, &o.Version)
}

const selectOrder = `
	SELECT id, number, status, customer_name, email, card_config, total, tracking_number, created_at, version
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (order.Order, error) {
	var (
		o         order.Order
		status    string
		cfg       string
		tracking  sql.NullString
		createdAt string
	)
	if err := row.Scan(&o.ID, &o.Number, &status, &o.CustomerName, &o.Email,
		&cfg, &o.Pricing.Total, &tracking, &createdAt, &o.Version); err != nil {
		return o, err
	}
	o.Status = order.OrderStatus(status)
	if err := json.Unmarshal([]byte(cfg), &o.CardConfig); err != nil {
		return o, fmt.Errorf("decode card config of %s: %w", o.ID, err)
	}
	if tracking.Valid {
		o.TrackingNumber = &tracking.String
	}
	t, err := time.Parse(timeFormat, createdAt)
	if err != nil {
		return o, fmt.Errorf("parse created_at of %s: %w", o.ID, err)
	}
	o.CreatedAt = t
	o.EmailsSent = []order.EmailSend{}
	return o, nil
}

func (s *Store) FindOrder(ctx context.Context, ref string) (*order.Order, error) {
	o, err := scanOrder(s.sqlDB.QueryRowContext(ctx, selectOrder+` WHERE id = ?1 OR number = ?1`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emails, err := s.emailsFor(ctx, `WHERE order_id = ?`, o.ID)
	if err != nil {
		return nil, err
	}
	o.EmailsSent = append(o.EmailsSent, emails[o.ID]...)
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.sqlDB.QueryContext(ctx, selectOrder+` ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	err = rows.Err()
	// release the only connection before the next query
	rows.Close()
	if err != nil {
		return nil, err
	}

	emails, err := s.emailsFor(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].EmailsSent = append(out[i].EmailsSent, emails[out[i].ID]...)
	}
	return out, nil
}

func (s *Store) emailsFor(ctx context.Context, where string, args ...any) (map[string][]order.EmailSend, error) {
	q := `SELECT order_id, kind, sent_at, success, error FROM order_emails ` + where + ` ORDER BY id`
	rows, err := s.sqlDB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]order.EmailSend)
	for rows.Next() {
		var (
			id     string
			kind   string
			sentAt string
			rec    order.EmailSend
			errMsg sql.NullString
		)
		if err := rows.Scan(&id, &kind, &sentAt, &rec.Success, &errMsg); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeFormat, sentAt)
		if err != nil {
			return nil, fmt.Errorf("parse sent_at: %w", err)
		}
		rec.Kind = order.NotificationKind(kind)
		rec.SentAt = t
		rec.Error = errMsg.String
		out[id] = append(out[id], rec)
	}
	return out, rows.Err()
}

func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, expected int64, status order.OrderStatus) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE orders SET status = ?, version = version + 1 WHERE id = ? AND version = ?`,
		string(status), id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) AppendEmailSend(ctx context.Context, id string, rec order.EmailSend) error {
	var errMsg sql.NullString
	if rec.Error != "" {
		errMsg = sql.NullString{String: rec.Error, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO order_emails (order_id, kind, sent_at, success, error) VALUES (?, ?, ?, ?, ?)`,
		id, string(rec.Kind), rec.SentAt.UTC().Format(timeFormat), rec.Success, errMsg)
	return err
}

var _ storage.Storage = (*Store)(nil)
