package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karobar-pk/karobar/internal/access"
	"github.com/karobar-pk/karobar/internal/otp"
)

var (
	// ErrNotFound indicates no identity matched the lookup.
	ErrNotFound = errors.New("identity not found")

	// ErrDuplicate indicates the email or username is already taken for the role.
	ErrDuplicate = errors.New("identity already exists")
)

// Repository persists identity records.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, role Role, email string) (User, error)
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	SaveOTP(ctx context.Context, id string, rec otp.Record) error
	ClearOTP(ctx context.Context, id string) error
	UpdateTrial(ctx context.Context, id string, state access.TrialState) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, role, username, email, phone, password_hash, status,
	otp_hash, otp_salt, otp_expires_at, otp_attempts, otp_max_attempts,
	verification_status, trial_expires_at, identity_number, doc_front, doc_back,
	doc_selfie, submitted_at, decided_by, decided_at, reject_reason, created_at`

// Create inserts a new identity record.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, role, username, email, phone, password_hash, status,
		verification_status, trial_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		userID, string(user.Role), user.Username, user.Email, user.Phone, user.PasswordHash,
		user.Status, string(user.Trial.Status), nullableTime(user.Trial.DashboardAccessExpiry), user.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// FindByID fetches an identity by its primary key.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

// FindByEmail fetches an identity by role-scoped email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, role Role, email string) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND email = $2`, string(role), email)
	return scanUser(row)
}

// UpdatePassword replaces the stored credential hash.
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, hash, id)
}

// SaveOTP stores the hashed code on the identity, superseding any previous one.
func (r *PostgresRepository) SaveOTP(ctx context.Context, id string, rec otp.Record) error {
	return r.exec(ctx, `UPDATE users SET otp_hash = $1, otp_salt = $2, otp_expires_at = $3,
		otp_attempts = $4, otp_max_attempts = $5 WHERE id = $6`,
		rec.Hash, rec.Salt, rec.ExpiresAt.UTC(), rec.Attempts, rec.MaxAttempts, id)
}

// ClearOTP removes the pending code so it cannot be replayed.
func (r *PostgresRepository) ClearOTP(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET otp_hash = NULL, otp_salt = NULL, otp_expires_at = NULL,
		otp_attempts = 0, otp_max_attempts = 0 WHERE id = $1`, id)
}

// UpdateTrial persists the seller's verification state.
func (r *PostgresRepository) UpdateTrial(ctx context.Context, id string, state access.TrialState) error {
	return r.exec(ctx, `UPDATE users SET verification_status = $1, trial_expires_at = $2,
		identity_number = $3, doc_front = $4, doc_back = $5, doc_selfie = $6,
		submitted_at = $7, decided_by = $8, decided_at = $9, reject_reason = $10 WHERE id = $11`,
		string(state.Status), nullableTime(state.DashboardAccessExpiry),
		state.Documents.IdentityNumber, state.Documents.FrontImage, state.Documents.BackImage,
		state.Documents.SelfieImage, nullableTime(state.SubmittedAt), state.DecidedBy,
		nullableTime(state.DecidedAt), state.RejectReason, id)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	if id, ok := args[len(args)-1].(string); ok {
		userID, err := uuid.Parse(id)
		if err != nil {
			return ErrNotFound
		}
		args[len(args)-1] = userID
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id          uuid.UUID
		role        string
		status      string
		otpHash     []byte
		otpSalt     []byte
		otpExpires  *time.Time
		trialStatus string
		trialExpiry *time.Time
		submittedAt *time.Time
		decidedAt   *time.Time
		createdAt   time.Time
		user        User
	)
	err := row.Scan(&id, &role, &user.Username, &user.Email, &user.Phone, &user.PasswordHash, &status,
		&otpHash, &otpSalt, &otpExpires, &user.OTP.Attempts, &user.OTP.MaxAttempts,
		&trialStatus, &trialExpiry, &user.Trial.Documents.IdentityNumber,
		&user.Trial.Documents.FrontImage, &user.Trial.Documents.BackImage,
		&user.Trial.Documents.SelfieImage, &submittedAt, &user.Trial.DecidedBy,
		&decidedAt, &user.Trial.RejectReason, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.Role = Role(role)
	user.Status = status
	user.OTP.Hash = otpHash
	user.OTP.Salt = otpSalt
	if otpExpires != nil {
		user.OTP.ExpiresAt = otpExpires.UTC()
	}
	user.Trial.Status = access.Status(trialStatus)
	if trialExpiry != nil {
		user.Trial.DashboardAccessExpiry = trialExpiry.UTC()
	}
	if submittedAt != nil {
		user.Trial.SubmittedAt = submittedAt.UTC()
	}
	if decidedAt != nil {
		user.Trial.DecidedAt = decidedAt.UTC()
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
