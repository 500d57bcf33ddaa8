package unlock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karobar-pk/karobar/internal/payment"
)

// PostgresRepository persists unlock rows in PostgreSQL. The unique index on
// (buyer_id, resource_id) makes concurrent unlock attempts safe: the losing
// transaction rolls back entirely, so no orphaned completed payment remains.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a Postgres-backed unlock repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Find returns the unlock row for the pair if one exists.
func (r *PostgresRepository) Find(ctx context.Context, buyerID, resourceID string) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT buyer_id, resource_id, payment_id, unlocked_at
		FROM unlocks WHERE buyer_id = $1 AND resource_id = $2`, buyerID, resourceID)
	var (
		rec        Record
		paymentID  uuid.UUID
		unlockedAt time.Time
	)
	if err := row.Scan(&rec.BuyerID, &rec.ResourceID, &paymentID, &unlockedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.PaymentID = paymentID.String()
	rec.UnlockedAt = unlockedAt.UTC()
	return rec, nil
}

// Create inserts the completed payment and the unlock row in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, pay payment.Record, rec Record) error {
	paymentID, err := uuid.Parse(pay.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := insertUnlock(ctx, tx, rec); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO payments (id, buyer_id, resource_id, amount, currency, method, transaction_id, status, purpose, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		paymentID, pay.BuyerID, pay.ResourceID, pay.Amount, pay.Currency, string(pay.Method),
		pay.TransactionID, string(pay.Status), pay.Purpose, pay.CreatedAt.UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Finalize completes the pending payment and inserts the unlock row in one transaction.
func (r *PostgresRepository) Finalize(ctx context.Context, paymentID string, rec Record) error {
	payID, err := uuid.Parse(paymentID)
	if err != nil {
		return payment.ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := insertUnlock(ctx, tx, rec); err != nil {
		return err
	}

	cmd, err := tx.Exec(ctx, `UPDATE payments SET status = $1 WHERE id = $2 AND status = $3`,
		string(payment.StatusCompleted), payID, string(payment.StatusPending))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return payment.ErrImmutable
	}

	return tx.Commit(ctx)
}

func insertUnlock(ctx context.Context, tx pgx.Tx, rec Record) error {
	paymentID, err := uuid.Parse(rec.PaymentID)
	if err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `INSERT INTO unlocks (buyer_id, resource_id, payment_id, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (buyer_id, resource_id) DO NOTHING`,
		rec.BuyerID, rec.ResourceID, paymentID, rec.UnlockedAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyUnlocked
	}
	return nil
}
