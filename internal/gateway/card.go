package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// CardProcessor is the connector to the external card network. The live
// client and the simulated one are interchangeable behind this interface;
// selection happens in configuration, never inside the adapter.
type CardProcessor interface {
	Pay(ctx context.Context, payment CardPayment) (ProcessorDecision, error)
}

// CardPayment is the processor-bound payload after local validation passed.
type CardPayment struct {
	Amount   int64
	Currency string
	Number   string
	Expiry   string
	CVV      string
	Billing  BillingDetails
}

// ProcessorDecision is the processor's answer. A decline is a decision, not an error.
type ProcessorDecision struct {
	Approved      bool
	TransactionID string
	DeclineReason string
}

// CardAdapter validates card input locally before delegating to the processor.
type CardAdapter struct {
	processor CardProcessor
	logger    *slog.Logger
	now       func() time.Time
}

// NewCardAdapter builds the card adapter around the configured processor.
func NewCardAdapter(processor CardProcessor, logger *slog.Logger, now func() time.Time) *CardAdapter {
	if now == nil {
		now = time.Now
	}
	return &CardAdapter{processor: processor, logger: logger, now: now}
}

// Charge validates the card fields and, only if they pass, calls the
// processor. Validation failures and declines come back as results; processor
// detail is logged server-side and surfaced as a generic message.
func (a *CardAdapter) Charge(ctx context.Context, req ChargeRequest) (Result, error) {
	if req.Method != MethodCard {
		return Result{}, ErrUnsupportedMethod
	}
	if req.Card == nil {
		return Result{Success: false, Message: "card details are required"}, nil
	}

	if msg := validateCard(*req.Card, a.now()); msg != "" {
		return Result{Success: false, Message: msg}, nil
	}

	decision, err := a.processor.Pay(ctx, CardPayment{
		Amount:   req.Amount,
		Currency: req.Currency,
		Number:   strings.ReplaceAll(req.Card.Number, " ", ""),
		Expiry:   req.Card.Expiry,
		CVV:      req.Card.CVV,
		Billing:  req.Card.Billing,
	})
	if err != nil {
		a.logger.Error("card processor call failed", "error", err)
		return Result{Success: false, Message: "payment could not be processed, please try again"}, nil
	}
	if !decision.Approved {
		a.logger.Info("card payment declined", "reason", decision.DeclineReason)
		return Result{Success: false, Message: "payment was declined by your bank"}, nil
	}

	return Result{Success: true, TransactionID: decision.TransactionID, Message: "payment approved"}, nil
}

// validateCard returns an empty string when the input is acceptable.
func validateCard(card CardDetails, now time.Time) string {
	digits := strings.ReplaceAll(card.Number, " ", "")
	if len(digits) < 13 || len(digits) > 19 {
		return "card number must be between 13 and 19 digits"
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "card number must be numeric"
		}
	}

	if msg := validateExpiry(card.Expiry, now); msg != "" {
		return msg
	}

	if len(card.CVV) != 3 {
		return "CVV must be exactly 3 digits"
	}
	for _, r := range card.CVV {
		if r < '0' || r > '9' {
			return "CVV must be numeric"
		}
	}
	return ""
}

func validateExpiry(expiry string, now time.Time) string {
	parts := strings.Split(expiry, "/")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return "expiry must be in MM/YY format"
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return "expiry month is invalid"
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return "expiry year is invalid"
	}
	year += 2000

	// The card is valid through the last day of its expiry month.
	endOfMonth := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if !now.Before(endOfMonth) {
		return fmt.Sprintf("card expired %02d/%02d", month, year%100)
	}
	return ""
}
