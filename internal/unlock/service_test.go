package unlock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/karobar-pk/karobar/internal/gateway"
	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/logging"
	"github.com/karobar-pk/karobar/internal/payment"
)

// stubAdapter approves or declines every charge and records how often it ran.
type stubAdapter struct {
	mu      sync.Mutex
	calls   int
	approve bool
}

func (a *stubAdapter) Charge(_ context.Context, req gateway.ChargeRequest) (gateway.Result, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if !a.approve {
		return gateway.Result{Success: false, Message: "declined"}, nil
	}
	return gateway.Result{Success: true, TransactionID: "tx-" + req.BuyerID, Message: "ok"}, nil
}

// countingStore wraps a payment store and tallies created records by status.
type countingStore struct {
	payment.Store
	mu        sync.Mutex
	created   map[payment.Status]int
	finalized int
}

func newCountingStore() *countingStore {
	return &countingStore{Store: payment.NewInMemory(), created: make(map[payment.Status]int)}
}

func (s *countingStore) Create(ctx context.Context, rec payment.Record) error {
	if err := s.Store.Create(ctx, rec); err != nil {
		return err
	}
	s.mu.Lock()
	s.created[rec.Status]++
	s.mu.Unlock()
	return nil
}

func (s *countingStore) UpdateStatus(ctx context.Context, id string, status payment.Status, transactionID string) error {
	if err := s.Store.UpdateStatus(ctx, id, status, transactionID); err != nil {
		return err
	}
	if status == payment.StatusCompleted {
		s.mu.Lock()
		s.finalized++
		s.mu.Unlock()
	}
	return nil
}

type fixture struct {
	svc      *Service
	repo     Repository
	payments *countingStore
	adapter  *stubAdapter
	wallet   *gateway.RedirectWalletAdapter
}

func newFixture(t *testing.T, approve bool) fixture {
	t.Helper()

	identities := identity.NewMemoryRepository()
	seller := identity.User{
		ID:       "S1",
		Role:     identity.RoleSeller,
		Username: "lahore-textiles",
		Email:    "sales@lahoretextiles.pk",
		Phone:    "+923001234567",
		Status:   "active",
	}
	if err := identities.Create(context.Background(), seller); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	buyer := identity.User{ID: "B1", Role: identity.RoleBuyer, Username: "karachi-mart", Email: "buyer@karachimart.pk"}
	if err := identities.Create(context.Background(), buyer); err != nil {
		t.Fatalf("seed buyer: %v", err)
	}

	payments := newCountingStore()
	repo := NewInMemory(payments)
	adapter := &stubAdapter{approve: approve}
	wallet := gateway.NewRedirectWalletAdapter("store-42", "secret", "https://karobar.pk/cb", "https://easypay.example.com/tpg", nil)

	adapters := map[gateway.Method]gateway.Adapter{
		gateway.MethodJazzCash:     adapter,
		gateway.MethodBankTransfer: adapter,
		gateway.MethodCard:         adapter,
	}
	svc := NewService(repo, payments, adapters, wallet, identities, nil, logging.Discard(), 500, "PKR", func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	})
	return fixture{svc: svc, repo: repo, payments: payments, adapter: adapter, wallet: wallet}
}

func jazzcashInput() Input {
	return Input{
		BuyerID:    "B1",
		ResourceID: "S1",
		Method:     gateway.MethodJazzCash,
		Manual:     &gateway.ManualDetails{ReferenceID: "JC-001"},
	}
}

func TestUnlockSuccessRevealsContact(t *testing.T) {
	f := newFixture(t, true)

	out, err := f.svc.Unlock(context.Background(), jazzcashInput())
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !out.Success || out.AlreadyUnlocked {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Contact == nil || out.Contact.Email != "sales@lahoretextiles.pk" {
		t.Fatalf("expected supplier contact, got %+v", out.Contact)
	}

	rec, err := f.payments.Get(context.Background(), out.PaymentID)
	if err != nil {
		t.Fatalf("payment lookup: %v", err)
	}
	if rec.Status != payment.StatusCompleted || rec.Amount != 500 || rec.Currency != "PKR" {
		t.Fatalf("unexpected payment record %+v", rec)
	}
}

func TestUnlockRepeatIsIdempotent(t *testing.T) {
	f := newFixture(t, true)

	first, err := f.svc.Unlock(context.Background(), jazzcashInput())
	if err != nil {
		t.Fatalf("first unlock: %v", err)
	}
	second, err := f.svc.Unlock(context.Background(), jazzcashInput())
	if err != nil {
		t.Fatalf("second unlock: %v", err)
	}

	if !second.Success || !second.AlreadyUnlocked {
		t.Fatalf("expected already-unlocked outcome, got %+v", second)
	}
	if second.PaymentID != first.PaymentID {
		t.Fatal("repeat unlock must reference the original payment")
	}
	if f.adapter.calls != 1 {
		t.Fatalf("repeat unlock must not charge again, got %d charges", f.adapter.calls)
	}
}

func TestUnlockDeclineRecordsFailedPaymentOnly(t *testing.T) {
	f := newFixture(t, false)

	out, err := f.svc.Unlock(context.Background(), jazzcashInput())
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if out.Success {
		t.Fatalf("expected decline outcome, got %+v", out)
	}

	rec, err := f.payments.Get(context.Background(), out.PaymentID)
	if err != nil {
		t.Fatalf("payment lookup: %v", err)
	}
	if rec.Status != payment.StatusFailed {
		t.Fatalf("expected failed payment, got %s", rec.Status)
	}
	if _, err := f.repo.Find(context.Background(), "B1", "S1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("declined charge must not create an unlock")
	}
}

func TestUnlockDeclineThenRetrySucceeds(t *testing.T) {
	f := newFixture(t, false)

	if _, err := f.svc.Unlock(context.Background(), jazzcashInput()); err != nil {
		t.Fatalf("declined unlock: %v", err)
	}

	f.adapter.approve = true
	out, err := f.svc.Unlock(context.Background(), jazzcashInput())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !out.Success || out.AlreadyUnlocked {
		t.Fatalf("retry should unlock fresh, got %+v", out)
	}

	// One failed and one completed record, one per attempt.
	if f.payments.created[payment.StatusFailed] != 1 || f.payments.created[payment.StatusCompleted] != 1 {
		t.Fatalf("unexpected payment counts %+v", f.payments.created)
	}
}

func TestUnlockConcurrentRequestsSingleWinner(t *testing.T) {
	f := newFixture(t, true)

	const racers = 2
	outcomes := make([]Outcome, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.Unlock(context.Background(), jazzcashInput())
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < racers; i++ {
		if errs[i] != nil {
			t.Fatalf("racer %d: %v", i, errs[i])
		}
		if !outcomes[i].Success {
			t.Fatalf("racer %d should see success, got %+v", i, outcomes[i])
		}
		if !outcomes[i].AlreadyUnlocked {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one fresh unlock, got %d", winners)
	}

	// Exactly one completed payment reached storage regardless of how many
	// charges went through.
	if f.payments.created[payment.StatusCompleted] != 1 {
		t.Fatalf("expected 1 completed payment, got %d", f.payments.created[payment.StatusCompleted])
	}
	if _, err := f.repo.Find(context.Background(), "B1", "S1"); err != nil {
		t.Fatalf("unlock record missing: %v", err)
	}
}

func TestUnlockUnknownSupplier(t *testing.T) {
	f := newFixture(t, true)

	input := jazzcashInput()
	input.ResourceID = "missing"
	if _, err := f.svc.Unlock(context.Background(), input); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}

	// Buyers are not unlockable resources either.
	input.ResourceID = "B1"
	if _, err := f.svc.Unlock(context.Background(), input); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound for non-seller, got %v", err)
	}
}

func TestUnlockUnknownMethod(t *testing.T) {
	f := newFixture(t, true)

	input := jazzcashInput()
	input.Method = gateway.Method("cheque")
	if _, err := f.svc.Unlock(context.Background(), input); !errors.Is(err, gateway.ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestRedirectFlowCompletesUnlock(t *testing.T) {
	f := newFixture(t, true)

	begin, err := f.svc.BeginRedirect(context.Background(), "B1", "S1", "03001234567", "buyer@karachimart.pk")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if begin.AlreadyUnlocked || begin.Redirect == nil {
		t.Fatalf("unexpected begin outcome %+v", begin)
	}

	pending, err := f.payments.Get(context.Background(), begin.PaymentID)
	if err != nil {
		t.Fatalf("pending lookup: %v", err)
	}
	if pending.Status != payment.StatusPending || pending.TransactionID != begin.Redirect.OrderRef {
		t.Fatalf("unexpected pending record %+v", pending)
	}

	out, err := f.svc.CompleteCallback(context.Background(), gateway.CallbackFields{
		OrderRefNumber: begin.Redirect.OrderRef,
		Desc:           "0000 - Transaction Successful",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !out.Success || out.Contact == nil {
		t.Fatalf("unexpected callback outcome %+v", out)
	}

	final, err := f.payments.Get(context.Background(), begin.PaymentID)
	if err != nil {
		t.Fatalf("final lookup: %v", err)
	}
	if final.Status != payment.StatusCompleted {
		t.Fatalf("expected completed payment, got %s", final.Status)
	}
	if _, err := f.repo.Find(context.Background(), "B1", "S1"); err != nil {
		t.Fatalf("unlock record missing: %v", err)
	}
}

func TestRedirectFailureCallbackMarksPaymentFailed(t *testing.T) {
	f := newFixture(t, true)

	begin, err := f.svc.BeginRedirect(context.Background(), "B1", "S1", "03001234567", "buyer@karachimart.pk")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	out, err := f.svc.CompleteCallback(context.Background(), gateway.CallbackFields{
		OrderRefNumber: begin.Redirect.OrderRef,
		Desc:           "user cancelled",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if out.Success {
		t.Fatalf("expected failure outcome, got %+v", out)
	}

	rec, err := f.payments.Get(context.Background(), begin.PaymentID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.Status != payment.StatusFailed {
		t.Fatalf("expected failed payment, got %s", rec.Status)
	}
	if _, err := f.repo.Find(context.Background(), "B1", "S1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("failed callback must not create an unlock")
	}
}

func TestRedirectCallbackUnknownOrderRef(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.svc.CompleteCallback(context.Background(), gateway.CallbackFields{
		OrderRefNumber: "no-such-ref",
		Desc:           "success",
	})
	if !errors.Is(err, payment.ErrNotFound) {
		t.Fatalf("expected payment.ErrNotFound, got %v", err)
	}
}

func TestRedirectBeginAfterUnlockShortCircuits(t *testing.T) {
	f := newFixture(t, true)

	if _, err := f.svc.Unlock(context.Background(), jazzcashInput()); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	begin, err := f.svc.BeginRedirect(context.Background(), "B1", "S1", "03001234567", "buyer@karachimart.pk")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !begin.AlreadyUnlocked || begin.Redirect != nil {
		t.Fatalf("expected short circuit, got %+v", begin)
	}
	if begin.Contact == nil {
		t.Fatal("expected contact details on repeat")
	}
}
