package unlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/karobar-pk/karobar/internal/gateway"
	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/notification"
	"github.com/karobar-pk/karobar/internal/payment"
)

// ContactDetails is what a successful unlock reveals.
type ContactDetails struct {
	Email    string
	Phone    string
	WhatsApp string
}

// Outcome is the structured result of an unlock attempt. Declines and repeat
// unlocks are outcomes, never errors.
type Outcome struct {
	Success         bool
	AlreadyUnlocked bool
	Message         string
	PaymentID       string
	Contact         *ContactDetails
}

// Service coordinates a single buyer-to-supplier unlock: at most one unlock
// per (buyer, resource), exactly one charge per successful unlock.
type Service struct {
	repo       Repository
	payments   payment.Store
	adapters   map[gateway.Method]gateway.Adapter
	wallet     *gateway.RedirectWalletAdapter
	identities identity.Repository
	notifier   notification.Notifier
	logger     *slog.Logger
	price      int64
	currency   string
	now        func() time.Time
}

// NewService constructs the unlock coordinator.
func NewService(repo Repository, payments payment.Store, adapters map[gateway.Method]gateway.Adapter, wallet *gateway.RedirectWalletAdapter, identities identity.Repository, notifier notification.Notifier, logger *slog.Logger, price int64, currency string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:       repo,
		payments:   payments,
		adapters:   adapters,
		wallet:     wallet,
		identities: identities,
		notifier:   notifier,
		logger:     logger,
		price:      price,
		currency:   currency,
		now:        now,
	}
}

// Input captures an unlock attempt through a synchronous payment channel.
type Input struct {
	BuyerID    string
	ResourceID string
	Method     gateway.Method
	Manual     *gateway.ManualDetails
	Card       *gateway.CardDetails
}

// Unlock runs the full flow for manual-reference and card payments:
// idempotency pre-check, charge, then the atomic payment+unlock append.
// No lock is held across the gateway round trip; the storage constraint is
// what makes the concurrent case safe.
func (s *Service) Unlock(ctx context.Context, input Input) (Outcome, error) {
	supplier, err := s.supplier(ctx, input.ResourceID)
	if err != nil {
		return Outcome{}, err
	}

	if existing, err := s.repo.Find(ctx, input.BuyerID, input.ResourceID); err == nil {
		return s.alreadyUnlocked(existing, supplier), nil
	} else if !errors.Is(err, ErrNotFound) {
		return Outcome{}, err
	}

	adapter, ok := s.adapters[input.Method]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", gateway.ErrUnsupportedMethod, input.Method)
	}

	result, err := adapter.Charge(ctx, gateway.ChargeRequest{
		Method:     input.Method,
		BuyerID:    input.BuyerID,
		ResourceID: input.ResourceID,
		Amount:     s.price,
		Currency:   s.currency,
		Manual:     input.Manual,
		Card:       input.Card,
	})
	if err != nil {
		return Outcome{}, err
	}

	rec := payment.Record{
		ID:            uuid.NewString(),
		BuyerID:       input.BuyerID,
		ResourceID:    input.ResourceID,
		Amount:        s.price,
		Currency:      s.currency,
		Method:        input.Method,
		TransactionID: result.TransactionID,
		Purpose:       payment.PurposeContactUnlock,
		CreatedAt:     s.now().UTC(),
	}

	if !result.Success {
		rec.Status = payment.StatusFailed
		if err := s.payments.Create(ctx, rec); err != nil {
			return Outcome{}, err
		}
		return Outcome{Success: false, Message: result.Message, PaymentID: rec.ID}, nil
	}

	rec.Status = payment.StatusCompleted
	unlockRec := Record{
		BuyerID:    input.BuyerID,
		ResourceID: input.ResourceID,
		PaymentID:  rec.ID,
		UnlockedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, rec, unlockRec); err != nil {
		if errors.Is(err, ErrAlreadyUnlocked) {
			// A concurrent request won the constraint race after our charge
			// went through. Nothing extra was persisted.
			s.logger.Warn("concurrent unlock lost constraint race after charge",
				"buyer_id", input.BuyerID, "resource_id", input.ResourceID, "transaction_id", result.TransactionID)
			existing, findErr := s.repo.Find(ctx, input.BuyerID, input.ResourceID)
			if findErr != nil {
				return Outcome{}, findErr
			}
			return s.alreadyUnlocked(existing, supplier), nil
		}
		return Outcome{}, err
	}

	s.sendReceipt(ctx, input.BuyerID, supplier)

	return Outcome{
		Success:   true,
		Message:   "supplier contact unlocked",
		PaymentID: rec.ID,
		Contact:   contactOf(supplier),
	}, nil
}

// RedirectOutcome is the first half of the redirect-wallet flow.
type RedirectOutcome struct {
	AlreadyUnlocked bool
	PaymentID       string
	Redirect        *gateway.RedirectPayload
	Contact         *ContactDetails
}

// BeginRedirect starts an Easypay unlock: it records a pending payment keyed
// by the order reference and returns the signed form payload.
func (s *Service) BeginRedirect(ctx context.Context, buyerID, resourceID, mobileNumber, email string) (RedirectOutcome, error) {
	supplier, err := s.supplier(ctx, resourceID)
	if err != nil {
		return RedirectOutcome{}, err
	}

	if _, err := s.repo.Find(ctx, buyerID, resourceID); err == nil {
		return RedirectOutcome{AlreadyUnlocked: true, Contact: contactOf(supplier)}, nil
	} else if !errors.Is(err, ErrNotFound) {
		return RedirectOutcome{}, err
	}

	payload, err := s.wallet.Initiate(gateway.InitiateInput{
		Amount:       s.price,
		MobileNumber: mobileNumber,
		Email:        email,
	})
	if err != nil {
		return RedirectOutcome{}, err
	}

	rec := payment.Record{
		ID:            uuid.NewString(),
		BuyerID:       buyerID,
		ResourceID:    resourceID,
		Amount:        s.price,
		Currency:      s.currency,
		Method:        gateway.MethodEasypay,
		TransactionID: payload.OrderRef,
		Status:        payment.StatusPending,
		Purpose:       payment.PurposeContactUnlock,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.payments.Create(ctx, rec); err != nil {
		return RedirectOutcome{}, err
	}

	return RedirectOutcome{PaymentID: rec.ID, Redirect: &payload}, nil
}

// CompleteCallback finishes an Easypay unlock from the wallet's postback.
// A success marker finalizes payment and unlock atomically; anything else
// marks the pending payment failed.
func (s *Service) CompleteCallback(ctx context.Context, cb gateway.CallbackFields) (Outcome, error) {
	verdict := s.wallet.VerifyCallback(cb)
	if verdict.OrderRef == "" {
		return Outcome{Success: false, Message: verdict.Message}, nil
	}

	pending, err := s.payments.FindPendingByOrderRef(ctx, verdict.OrderRef)
	if err != nil {
		return Outcome{}, err
	}

	if !verdict.Success {
		if err := s.payments.UpdateStatus(ctx, pending.ID, payment.StatusFailed, ""); err != nil {
			return Outcome{}, err
		}
		return Outcome{Success: false, Message: verdict.Message, PaymentID: pending.ID}, nil
	}

	supplier, err := s.supplier(ctx, pending.ResourceID)
	if err != nil {
		return Outcome{}, err
	}

	unlockRec := Record{
		BuyerID:    pending.BuyerID,
		ResourceID: pending.ResourceID,
		PaymentID:  pending.ID,
		UnlockedAt: s.now().UTC(),
	}
	if err := s.repo.Finalize(ctx, pending.ID, unlockRec); err != nil {
		if errors.Is(err, ErrAlreadyUnlocked) {
			existing, findErr := s.repo.Find(ctx, pending.BuyerID, pending.ResourceID)
			if findErr != nil {
				return Outcome{}, findErr
			}
			return s.alreadyUnlocked(existing, supplier), nil
		}
		return Outcome{}, err
	}

	s.sendReceipt(ctx, pending.BuyerID, supplier)

	return Outcome{
		Success:   true,
		Message:   "supplier contact unlocked",
		PaymentID: pending.ID,
		Contact:   contactOf(supplier),
	}, nil
}

func (s *Service) supplier(ctx context.Context, resourceID string) (identity.User, error) {
	supplier, err := s.identities.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.User{}, ErrResourceNotFound
		}
		return identity.User{}, err
	}
	if supplier.Role != identity.RoleSeller {
		return identity.User{}, ErrResourceNotFound
	}
	return supplier, nil
}

func (s *Service) alreadyUnlocked(rec Record, supplier identity.User) Outcome {
	return Outcome{
		Success:         true,
		AlreadyUnlocked: true,
		Message:         "contact already unlocked",
		PaymentID:       rec.PaymentID,
		Contact:         contactOf(supplier),
	}
}

func (s *Service) sendReceipt(ctx context.Context, buyerID string, supplier identity.User) {
	if s.notifier == nil {
		return
	}
	// Receipt delivery is best effort; the unlock already happened.
	err := s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindUnlockReceipt,
		Channel:     notification.ChannelEmail,
		Destination: buyerID,
		Body:        fmt.Sprintf("You unlocked %s's contact details.", supplier.Username),
	})
	if err != nil {
		s.logger.Warn("unlock receipt delivery failed", "buyer_id", buyerID, "error", err)
	}
}

func contactOf(supplier identity.User) *ContactDetails {
	return &ContactDetails{
		Email:    supplier.Email,
		Phone:    supplier.Phone,
		WhatsApp: supplier.Phone,
	}
}
