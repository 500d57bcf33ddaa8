package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karobar-pk/karobar/internal/gateway"
)

// PostgresStore persists payment records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed payment store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, buyer_id, resource_id, amount, currency, method, transaction_id, status, purpose, created_at`

// Create inserts a payment record.
func (s *PostgresStore) Create(ctx context.Context, rec Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, rec.BuyerID, rec.ResourceID, rec.Amount, rec.Currency, string(rec.Method),
		rec.TransactionID, string(rec.Status), rec.Purpose, rec.CreatedAt.UTC())
	return err
}

// Get fetches a payment by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID)
	return scanRecord(row)
}

// FindPendingByOrderRef locates the pending payment a gateway callback refers to.
func (s *PostgresStore) FindPendingByOrderRef(ctx context.Context, orderRef string) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE transaction_id = $1 AND status = $2`, orderRef, string(StatusPending))
	return scanRecord(row)
}

// UpdateStatus advances a pending payment. Completed and failed records are final.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, transactionID string) error {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE payments SET status = $1, transaction_id = COALESCE(NULLIF($2, ''), transaction_id)
		WHERE id = $3 AND status = $4`, string(status), transactionID, paymentID, string(StatusPending))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrImmutable
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		id        uuid.UUID
		method    string
		status    string
		createdAt time.Time
		rec       Record
	)
	err := row.Scan(&id, &rec.BuyerID, &rec.ResourceID, &rec.Amount, &rec.Currency,
		&method, &rec.TransactionID, &status, &rec.Purpose, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.ID = id.String()
	rec.Method = gateway.Method(method)
	rec.Status = Status(status)
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}
