package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	easypayDateLayout    = "20060102 150405"
	easypayValidity      = 24 * time.Hour
	easypayPaymentMethod = "MA_PAYMENT_METHOD"
	easypaySuccessMarker = "success"
)

// easypayHashOrder is the field order the wallet signs over. This order is an
// external wire contract; changing it breaks signature verification on the
// wallet side.
var easypayHashOrder = []string{
	"amount",
	"autoRedirect",
	"emailAddress",
	"expiryDate",
	"mobileNum",
	"orderDate",
	"orderRefNum",
	"paymentMethod",
	"postBackURL",
	"storeId",
}

// RedirectWalletAdapter implements the two-phase Easypay flow: Initiate
// builds the signed form payload the buyer's browser posts to the wallet,
// VerifyCallback inspects the fields the wallet posts back.
type RedirectWalletAdapter struct {
	storeID     string
	hashKey     []byte
	postbackURL string
	baseURL     string
	now         func() time.Time
}

// NewRedirectWalletAdapter builds the adapter from merchant credentials.
func NewRedirectWalletAdapter(storeID, hashKey, postbackURL, baseURL string, now func() time.Time) *RedirectWalletAdapter {
	if now == nil {
		now = time.Now
	}
	return &RedirectWalletAdapter{
		storeID:     storeID,
		hashKey:     []byte(hashKey),
		postbackURL: postbackURL,
		baseURL:     baseURL,
		now:         now,
	}
}

// InitiateInput is the buyer-side data needed to start a wallet payment.
type InitiateInput struct {
	Amount       int64
	MobileNumber string
	Email        string
	OrderRef     string
}

// RedirectPayload is what the HTTP layer renders as an auto-submitting form.
type RedirectPayload struct {
	URL      string
	OrderRef string
	Fields   map[string]string
}

// Initiate builds the signed form payload and an opaque order reference the
// pending payment is keyed by.
func (a *RedirectWalletAdapter) Initiate(input InitiateInput) (RedirectPayload, error) {
	if input.Amount <= 0 {
		return RedirectPayload{}, fmt.Errorf("amount must be positive")
	}
	orderRef := input.OrderRef
	if orderRef == "" {
		orderRef = uuid.NewString()
	}

	orderDate := a.now().UTC()
	fields := map[string]string{
		"storeId":       a.storeID,
		"amount":        fmt.Sprintf("%d.0", input.Amount),
		"postBackURL":   a.postbackURL,
		"orderRefNum":   orderRef,
		"expiryDate":    orderDate.Add(easypayValidity).Format(easypayDateLayout),
		"autoRedirect":  "1",
		"paymentMethod": easypayPaymentMethod,
		"emailAddress":  input.Email,
		"mobileNum":     input.MobileNumber,
		"orderDate":     orderDate.Format(easypayDateLayout),
	}
	fields["merchantHashedReq"] = a.sign(fields)

	return RedirectPayload{URL: a.baseURL, OrderRef: orderRef, Fields: fields}, nil
}

// CallbackFields are the fields the wallet posts back after payment.
type CallbackFields struct {
	OrderRefNumber string
	Amount         string
	PaymentToken   string
	Desc           string
}

// CallbackResult classifies a posted callback.
type CallbackResult struct {
	Success  bool
	OrderRef string
	Message  string
}

// VerifyCallback checks the posted fields for the wallet's success marker.
// The desc field denotes success when it contains "success", case-insensitive.
func (a *RedirectWalletAdapter) VerifyCallback(cb CallbackFields) CallbackResult {
	if cb.OrderRefNumber == "" {
		return CallbackResult{Success: false, Message: "missing order reference"}
	}
	if !strings.Contains(strings.ToLower(cb.Desc), easypaySuccessMarker) {
		return CallbackResult{Success: false, OrderRef: cb.OrderRefNumber, Message: "payment was not completed"}
	}
	return CallbackResult{Success: true, OrderRef: cb.OrderRefNumber, Message: "payment confirmed"}
}

// sign computes the hex HMAC-SHA256 over the key=value concatenation in the
// contract-fixed field order.
func (a *RedirectWalletAdapter) sign(fields map[string]string) string {
	pairs := make([]string, 0, len(easypayHashOrder))
	for _, key := range easypayHashOrder {
		pairs = append(pairs, key+"="+fields[key])
	}
	mac := hmac.New(sha256.New, a.hashKey)
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}
