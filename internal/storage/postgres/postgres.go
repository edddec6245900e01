package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antonminaichev/linkcard/internal/storage"
	"github.com/antonminaichev/linkcard/internal/types/order"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS order_number_seq START %d`, storage.FirstOrderNumber),
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            number TEXT UNIQUE NOT NULL,
            status TEXT NOT NULL,
            customer_name TEXT NOT NULL,
            email TEXT NOT NULL,
            card_config JSONB NOT NULL,
            total DOUBLE PRECISION NOT NULL,
            tracking_number TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            version BIGINT NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS order_emails (
            id BIGSERIAL PRIMARY KEY,
            order_id TEXT NOT NULL REFERENCES orders(id),
            kind TEXT NOT NULL,
            sent_at TIMESTAMPTZ NOT NULL,
            success BOOLEAN NOT NULL,
            error TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS order_emails_order_id_idx ON order_emails(order_id)`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order) error {
	cfg, err := json.Marshal(o.CardConfig)
	if err != nil {
		return fmt.Errorf("encode card config: %w", err)
	}
	q := `
        INSERT INTO orders (id, number, status, customer_name, email, card_config, total, tracking_number, created_at)
        VALUES ($1, $2::text || nextval('order_number_seq')::text, $3, $4, $5, $6, $7, $8, $9)
        RETURNING number, version`
	return s.db.QueryRowContext(ctx, q,
		o.ID, storage.OrderNumberPrefix, o.Status, o.CustomerName, o.Email,
		string(cfg), o.Pricing.Total, o.TrackingNumber, o.CreatedAt,
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
		o        order.Order
		cfg      []byte
		tracking sql.NullString
	)
	if err := row.Scan(&o.ID, &o.Number, &o.Status, &o.CustomerName, &o.Email,
		&cfg, &o.Pricing.Total, &tracking, &o.CreatedAt, &o.Version); err != nil {
		return o, err
	}
	if err := json.Unmarshal(cfg, &o.CardConfig); err != nil {
		return o, fmt.Errorf("decode card config of %s: %w", o.ID, err)
	}
	if tracking.Valid {
		o.TrackingNumber = &tracking.String
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.EmailsSent = []order.EmailSend{}
	return o, nil
}

func (s *PostgresStorage) FindOrder(ctx context.Context, ref string) (*order.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1 OR number = $1`, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	emails, err := s.emailsFor(ctx, `WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, err
	}
	o.EmailsSent = append(o.EmailsSent, emails[o.ID]...)
	return &o, nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrder+` ORDER BY created_at DESC, number DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
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

func (s *PostgresStorage) emailsFor(ctx context.Context, where string, args ...any) (map[string][]order.EmailSend, error) {
	q := `SELECT order_id, kind, sent_at, success, error FROM order_emails ` + where + ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]order.EmailSend)
	for rows.Next() {
		var (
			id     string
			rec    order.EmailSend
			errMsg sql.NullString
		)
		if err := rows.Scan(&id, &rec.Kind, &rec.SentAt, &rec.Success, &errMsg); err != nil {
			return nil, err
		}
		rec.SentAt = rec.SentAt.UTC()
		rec.Error = errMsg.String
		out[id] = append(out[id], rec)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) CompareAndSwapStatus(ctx context.Context, id string, expected int64, status order.OrderStatus) (bool, error) {
	q := `
        UPDATE orders
        SET status = $1, version = version + 1
        WHERE id = $2 AND version = $3`
	res, err := s.db.ExecContext(ctx, q, status, id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStorage) AppendEmailSend(ctx context.Context, id string, rec order.EmailSend) error {
	q := `
        INSERT INTO order_emails (order_id, kind, sent_at, success, error)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''))`
	_, err := s.db.ExecContext(ctx, q, id, rec.Kind, rec.SentAt, rec.Success, rec.Error)
	return err
}

var _ storage.Storage = (*PostgresStorage)(nil)
