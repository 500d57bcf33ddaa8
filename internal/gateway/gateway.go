package gateway

import (
	"context"
	"errors"
)

// Method tags a charge request with its payment channel.
type Method string

const (
	// MethodJazzCash is a manual mobile-wallet transfer identified by reference.
	MethodJazzCash Method = "jazzcash"
	// MethodBankTransfer is a manual bank transfer identified by reference.
	MethodBankTransfer Method = "bank_transfer"
	// MethodCard is a Visa/Mastercard payment through the card processor.
	MethodCard Method = "card"
	// MethodEasypay is the redirect-based Easypay wallet flow.
	MethodEasypay Method = "easypay"
)

// ErrUnsupportedMethod indicates the adapter cannot serve the request's method.
var ErrUnsupportedMethod = errors.New("unsupported payment method")

// ManualDetails carries the externally obtained transfer reference.
type ManualDetails struct {
	ReferenceID string
}

// CardDetails carries raw card input. Never persisted, never logged.
type CardDetails struct {
	Number  string
	Expiry  string
	CVV     string
	Billing BillingDetails
}

// BillingDetails is the billing data the card processor requires.
type BillingDetails struct {
	Email     string
	Phone     string
	City      string
	Country   string
	FirstName string
	LastName  string
}

// ChargeRequest is a tagged union: only the detail struct matching Method is
// set. Adapters reject requests whose variant does not match.
type ChargeRequest struct {
	Method     Method
	BuyerID    string
	ResourceID string
	Amount     int64
	Currency   string

	Manual *ManualDetails
	Card   *CardDetails
}

// Result is the uniform outcome of a charge attempt. Ordinary declines are
// results with Success=false; only infrastructure faults surface as errors.
type Result struct {
	Success       bool
	TransactionID string
	Message       string
}

// Adapter is the single interface over all payment channels.
type Adapter interface {
	Charge(ctx context.Context, req ChargeRequest) (Result, error)
}
