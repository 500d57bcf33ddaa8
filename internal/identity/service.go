package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/karobar-pk/karobar/internal/access"
	"github.com/karobar-pk/karobar/internal/notification"
	"github.com/karobar-pk/karobar/internal/otp"
)

// ErrInvalidCredentials indicates a failed email/password check.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service manages identity lifecycle: registration, authentication, step-up
// OTP verification and the seller trial state machine.
type Service struct {
	repo      Repository
	otps      *otp.Service
	generator otp.Generator
	notifier  notification.Notifier
	logger    *slog.Logger
	trialDays int
	now       func() time.Time
}

// NewService creates a new identity service. The OTP generator and clock are
// injected so tests can bind deterministic implementations.
func NewService(repo Repository, otps *otp.Service, generator otp.Generator, notifier notification.Notifier, logger *slog.Logger, trialDays int, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		otps:      otps,
		generator: generator,
		notifier:  notifier,
		logger:    logger,
		trialDays: trialDays,
		now:       now,
	}
}

// RegisterInput captures data required to create an identity.
type RegisterInput struct {
	Role     Role
	Username string
	Email    string
	Phone    string
	Password string
}

// Register creates a new identity. Sellers start their 15-day trial window here.
func (s *Service) Register(ctx context.Context, input RegisterInput) (User, error) {
	if len(input.Password) < 8 {
		return User{}, errors.New("password must be at least 8 characters")
	}
	if input.Email == "" {
		return User{}, errors.New("email is required")
	}
	switch input.Role {
	case RoleBuyer, RoleSeller, RoleAdmin:
	default:
		return User{}, fmt.Errorf("unknown role %q", input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Role:         input.Role,
		Username:     input.Username,
		Email:        input.Email,
		Phone:        input.Phone,
		PasswordHash: hash,
		Status:       statusActive,
		CreatedAt:    s.now().UTC(),
	}
	if input.Role == RoleSeller {
		user.Trial = access.NewTrialState(s.now(), s.trialDays)
	} else {
		user.Trial.Status = access.StatusNotRequired
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials against the stored hash.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByEmail(ctx, creds.Role, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}

// OTPRequestResult reports where the code was sent, partially redacted.
type OTPRequestResult struct {
	MaskedContact string
	ExpiresAt     time.Time
}

// RequestOTP generates a fresh code, stores its hash on the identity and
// delivers it synchronously. A delivery failure fails the whole request so
// the caller never reports success for a code that was not sent.
func (s *Service) RequestOTP(ctx context.Context, role Role, email, channel string) (OTPRequestResult, error) {
	user, err := s.repo.FindByEmail(ctx, role, email)
	if err != nil {
		return OTPRequestResult{}, err
	}

	code, err := s.generator.Code()
	if err != nil {
		return OTPRequestResult{}, err
	}
	rec, err := s.otps.New(code)
	if err != nil {
		return OTPRequestResult{}, err
	}
	if err := s.repo.SaveOTP(ctx, user.ID, rec); err != nil {
		return OTPRequestResult{}, err
	}

	destination, masked := user.Email, otp.MaskEmail(user.Email)
	if channel == notification.ChannelWhatsApp {
		destination, masked = user.Phone, otp.MaskPhone(user.Phone)
	}

	msg := notification.Message{
		Kind:        notification.KindOTP,
		Channel:     channel,
		Destination: destination,
		Body:        fmt.Sprintf("Your Karobar verification code is %s. It expires in 5 minutes.", code),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return OTPRequestResult{}, fmt.Errorf("deliver verification code: %w", err)
	}

	return OTPRequestResult{MaskedContact: masked, ExpiresAt: rec.ExpiresAt}, nil
}

// VerifyResult is the structured outcome of an OTP verification. Wrong codes,
// expired records and exhausted attempts are results, not errors.
type VerifyResult struct {
	Success           bool
	Reason            string
	RemainingAttempts int
	Message           string
}

const (
	reasonExpired         = "expired"
	reasonTooManyAttempts = "too_many_attempts"
	reasonNotFound        = "not_found"
	reasonWrongCode       = "wrong_code"
)

// VerifyOTP checks a submitted code. On success the record is cleared so the
// code cannot be replayed; on mismatch the attempt counter is persisted.
func (s *Service) VerifyOTP(ctx context.Context, role Role, email, code string) (VerifyResult, error) {
	user, err := s.repo.FindByEmail(ctx, role, email)
	if err != nil {
		return VerifyResult{}, err
	}
	return s.verifyAndPersist(ctx, user, code, true)
}

// ResetPassword verifies the submitted code and, on success, replaces the
// credential hash in the same operation. The OTP is single use either way.
func (s *Service) ResetPassword(ctx context.Context, role Role, email, code, newPassword string) (VerifyResult, error) {
	if len(newPassword) < 8 {
		return VerifyResult{Success: false, Message: "password must be at least 8 characters"}, nil
	}
	user, err := s.repo.FindByEmail(ctx, role, email)
	if err != nil {
		return VerifyResult{}, err
	}

	result, err := s.verifyAndPersist(ctx, user, code, true)
	if err != nil || !result.Success {
		return result, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return VerifyResult{}, err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return VerifyResult{}, err
	}

	result.Message = "password updated"
	return result, nil
}

func (s *Service) verifyAndPersist(ctx context.Context, user User, code string, clearOnSuccess bool) (VerifyResult, error) {
	outcome, rec, err := s.otps.Verify(code, user.OTP)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			return VerifyResult{Reason: reasonExpired, Message: "verification code expired, request a new one"}, nil
		case errors.Is(err, otp.ErrTooManyAttempts):
			return VerifyResult{Reason: reasonTooManyAttempts, Message: "too many attempts, request a new code"}, nil
		case errors.Is(err, otp.ErrNotFound):
			return VerifyResult{Reason: reasonNotFound, Message: "no verification code pending"}, nil
		}
		return VerifyResult{}, err
	}

	if !outcome.OK {
		if err := s.repo.SaveOTP(ctx, user.ID, rec); err != nil {
			return VerifyResult{}, err
		}
		return VerifyResult{
			Reason:            reasonWrongCode,
			RemainingAttempts: outcome.RemainingAttempts,
			Message:           fmt.Sprintf("incorrect code, %d attempts remaining", outcome.RemainingAttempts),
		}, nil
	}

	if clearOnSuccess {
		if err := s.repo.ClearOTP(ctx, user.ID); err != nil {
			return VerifyResult{}, err
		}
	}
	return VerifyResult{Success: true, Message: "verified"}, nil
}

// DashboardAccess evaluates the seller's trial state at the current instant.
// Pure read, never mutates stored status.
func (s *Service) DashboardAccess(ctx context.Context, sellerID string) (access.Decision, error) {
	user, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		return access.Decision{}, err
	}
	if user.Role != RoleSeller {
		return access.Decision{}, fmt.Errorf("identity %s is not a seller", sellerID)
	}
	return access.Evaluate(user.Trial, s.now()), nil
}

// SubmitDocuments moves the seller into review.
func (s *Service) SubmitDocuments(ctx context.Context, sellerID string, docs access.Documents) (access.TrialState, error) {
	return s.transitionTrial(ctx, sellerID, func(state access.TrialState) (access.TrialState, error) {
		return state.SubmitDocuments(docs, s.now())
	})
}

// ApproveSeller records an admin approval, a one-way permanent grant.
func (s *Service) ApproveSeller(ctx context.Context, adminID, sellerID string) (access.TrialState, error) {
	return s.transitionTrial(ctx, sellerID, func(state access.TrialState) (access.TrialState, error) {
		return state.Approve(adminID, s.now())
	})
}

// RejectSeller records an admin rejection with a reason.
func (s *Service) RejectSeller(ctx context.Context, adminID, sellerID, reason string) (access.TrialState, error) {
	return s.transitionTrial(ctx, sellerID, func(state access.TrialState) (access.TrialState, error) {
		return state.Reject(adminID, reason, s.now())
	})
}

// ForceVerificationStatus sets a seller's status outside the transition table.
// Privileged escape hatch: every use is written to the audit log.
func (s *Service) ForceVerificationStatus(ctx context.Context, adminID, sellerID string, status access.Status) (access.TrialState, error) {
	user, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		return access.TrialState{}, err
	}
	if user.Role != RoleSeller {
		return access.TrialState{}, fmt.Errorf("identity %s is not a seller", sellerID)
	}

	previous := user.Trial.Status
	user.Trial.Status = status
	user.Trial.DecidedBy = adminID
	user.Trial.DecidedAt = s.now().UTC()
	if err := s.repo.UpdateTrial(ctx, sellerID, user.Trial); err != nil {
		return access.TrialState{}, err
	}

	s.logger.Warn("verification status forced outside transition table",
		"admin_id", adminID,
		"seller_id", sellerID,
		"previous", string(previous),
		"forced", string(status),
	)
	return user.Trial, nil
}

func (s *Service) transitionTrial(ctx context.Context, sellerID string, apply func(access.TrialState) (access.TrialState, error)) (access.TrialState, error) {
	user, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		return access.TrialState{}, err
	}
	if user.Role != RoleSeller {
		return access.TrialState{}, fmt.Errorf("identity %s is not a seller", sellerID)
	}

	next, err := apply(user.Trial)
	if err != nil {
		return access.TrialState{}, err
	}
	if err := s.repo.UpdateTrial(ctx, sellerID, next); err != nil {
		return access.TrialState{}, err
	}

	s.notifyDecision(ctx, user, next)
	return next, nil
}

// notifyDecision tells the seller about a review outcome. Best effort; the
// decision is already persisted.
func (s *Service) notifyDecision(ctx context.Context, user User, state access.TrialState) {
	var body string
	switch state.Status {
	case access.StatusApproved:
		body = "Your seller verification was approved. Your dashboard access is now permanent."
	case access.StatusRejected:
		body = fmt.Sprintf("Your seller verification was rejected: %s. Your access continues while the decision is under appeal.", state.RejectReason)
	default:
		return
	}

	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindVerificationDecision,
		Channel:     notification.ChannelEmail,
		Destination: user.Email,
		Body:        body,
	})
	if err != nil {
		s.logger.Warn("verification decision delivery failed", "seller_id", user.ID, "error", err)
	}
}
