package gateway

import (
	"context"
	"testing"
)

func TestManualChargeAcceptsReference(t *testing.T) {
	adapter := NewManualWalletAdapter()

	res, err := adapter.Charge(context.Background(), ChargeRequest{
		Method: MethodJazzCash,
		Amount: 500,
		Manual: &ManualDetails{ReferenceID: " JC-123456 "},
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.TransactionID != "JC-123456" {
		t.Fatalf("expected trimmed reference as transaction id, got %q", res.TransactionID)
	}
}

func TestManualChargeRejectsEmptyReference(t *testing.T) {
	adapter := NewManualWalletAdapter()

	for _, ref := range []string{"", "   "} {
		res, err := adapter.Charge(context.Background(), ChargeRequest{
			Method: MethodBankTransfer,
			Manual: &ManualDetails{ReferenceID: ref},
		})
		if err != nil {
			t.Fatalf("charge: %v", err)
		}
		if res.Success {
			t.Fatalf("reference %q should be rejected", ref)
		}
	}

	res, err := adapter.Charge(context.Background(), ChargeRequest{Method: MethodJazzCash})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if res.Success {
		t.Fatal("missing manual details should be rejected")
	}
}

func TestManualChargeWrongMethod(t *testing.T) {
	adapter := NewManualWalletAdapter()
	if _, err := adapter.Charge(context.Background(), ChargeRequest{Method: MethodCard}); err != ErrUnsupportedMethod {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}
