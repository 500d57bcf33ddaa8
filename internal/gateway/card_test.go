package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/karobar-pk/karobar/internal/logging"
)

type recordingProcessor struct {
	called   bool
	decision ProcessorDecision
	err      error
}

func (p *recordingProcessor) Pay(_ context.Context, _ CardPayment) (ProcessorDecision, error) {
	p.called = true
	return p.decision, p.err
}

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func cardRequest(number, expiry, cvv string) ChargeRequest {
	return ChargeRequest{
		Method:   MethodCard,
		Amount:   500,
		Currency: "PKR",
		Card: &CardDetails{
			Number: number,
			Expiry: expiry,
			CVV:    cvv,
			Billing: BillingDetails{
				Email: "buyer@example.com", Phone: "+923001234567",
				City: "Lahore", Country: "PK", FirstName: "Ali", LastName: "Raza",
			},
		},
	}
}

func TestCardValidInputReachesProcessor(t *testing.T) {
	proc := &recordingProcessor{decision: ProcessorDecision{Approved: true, TransactionID: "tx-1"}}
	adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return testNow })

	res, err := adapter.Charge(context.Background(), cardRequest("4111111111111111", "12/30", "123"))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !proc.called {
		t.Fatal("expected processor to be called")
	}
	if !res.Success || res.TransactionID != "tx-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCardShortNumberFailsBeforeProcessor(t *testing.T) {
	proc := &recordingProcessor{}
	adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return testNow })

	res, err := adapter.Charge(context.Background(), cardRequest("123", "12/30", "123"))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if res.Success {
		t.Fatal("expected validation failure")
	}
	if proc.called {
		t.Fatal("processor must not be called for invalid input")
	}
}

func TestCardValidationRules(t *testing.T) {
	cases := []struct {
		name   string
		number string
		expiry string
		cvv    string
	}{
		{"number too long", "41111111111111111111", "12/30", "123"},
		{"number non-numeric", "4111abcd11111111", "12/30", "123"},
		{"expiry malformed", "4111111111111111", "2030-12", "123"},
		{"expiry in past", "4111111111111111", "05/25", "123"},
		{"expiry month invalid", "4111111111111111", "13/30", "123"},
		{"cvv too long", "4111111111111111", "12/30", "1234"},
		{"cvv non-numeric", "4111111111111111", "12/30", "12a"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &recordingProcessor{}
			adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return testNow })
			res, err := adapter.Charge(context.Background(), cardRequest(tc.number, tc.expiry, tc.cvv))
			if err != nil {
				t.Fatalf("charge: %v", err)
			}
			if res.Success || proc.called {
				t.Fatalf("expected local rejection, got success=%v called=%v", res.Success, proc.called)
			}
		})
	}
}

func TestCardExpiryValidThroughEndOfMonth(t *testing.T) {
	proc := &recordingProcessor{decision: ProcessorDecision{Approved: true}}
	endOfJune := time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC)
	adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return endOfJune })

	res, err := adapter.Charge(context.Background(), cardRequest("4111111111111111", "06/25", "123"))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !res.Success {
		t.Fatalf("card expiring this month should still be accepted: %+v", res)
	}
}

func TestCardWhitespaceStripped(t *testing.T) {
	proc := &recordingProcessor{decision: ProcessorDecision{Approved: true}}
	adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return testNow })

	res, err := adapter.Charge(context.Background(), cardRequest("4111 1111 1111 1111", "12/30", "123"))
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if !res.Success {
		t.Fatalf("spaced card number should validate: %+v", res)
	}
}

func TestCardDeclineIsResultNotError(t *testing.T) {
	proc := &recordingProcessor{decision: ProcessorDecision{Approved: false, DeclineReason: "insufficient funds"}}
	adapter := NewCardAdapter(proc, logging.Discard(), func() time.Time { return testNow })

	res, err := adapter.Charge(context.Background(), cardRequest("4111111111111111", "12/30", "123"))
	if err != nil {
		t.Fatalf("decline must not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("expected decline")
	}
	// Raw processor detail never leaks to the caller.
	if res.Message == "insufficient funds" {
		t.Fatal("decline reason leaked to caller")
	}
}

func TestCardWrongMethodRejected(t *testing.T) {
	adapter := NewCardAdapter(&recordingProcessor{}, logging.Discard(), nil)
	if _, err := adapter.Charge(context.Background(), ChargeRequest{Method: MethodJazzCash}); err != ErrUnsupportedMethod {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestSimulatedProcessor(t *testing.T) {
	approve, err := SimulatedCardProcessor{}.Pay(context.Background(), CardPayment{})
	if err != nil || !approve.Approved || approve.TransactionID == "" {
		t.Fatalf("unexpected approval: %+v err=%v", approve, err)
	}

	decline, err := SimulatedCardProcessor{DeclineAll: true}.Pay(context.Background(), CardPayment{})
	if err != nil || decline.Approved {
		t.Fatalf("unexpected decline result: %+v err=%v", decline, err)
	}
}
