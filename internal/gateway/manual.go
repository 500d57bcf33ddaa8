package gateway

import (
	"context"
	"strings"
)

// ManualWalletAdapter accepts manual-reference payments (JazzCash transfers,
// bank transfers). It validates only that a reference id was supplied and
// marks the attempt completed; the reference is NOT verified against the
// issuing network. Known weak point, accepted for these channels.
type ManualWalletAdapter struct{}

// NewManualWalletAdapter builds the manual-reference adapter.
func NewManualWalletAdapter() *ManualWalletAdapter {
	return &ManualWalletAdapter{}
}

// Charge records the supplied reference as a completed payment.
func (a *ManualWalletAdapter) Charge(_ context.Context, req ChargeRequest) (Result, error) {
	if req.Method != MethodJazzCash && req.Method != MethodBankTransfer {
		return Result{}, ErrUnsupportedMethod
	}
	if req.Manual == nil || strings.TrimSpace(req.Manual.ReferenceID) == "" {
		return Result{Success: false, Message: "transaction reference is required"}, nil
	}
	return Result{
		Success:       true,
		TransactionID: strings.TrimSpace(req.Manual.ReferenceID),
		Message:       "payment reference accepted",
	}, nil
}
