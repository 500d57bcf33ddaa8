package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LiveCardProcessor talks to the external card processor over HTTP. The
// processor's token chain is auth token -> order -> payment key -> pay; each
// step feeds the next.
type LiveCardProcessor struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewLiveCardProcessor builds the HTTP client for the card processor. The
// request timeout bounds every step of the token chain; no in-process lock is
// ever held across these calls.
func NewLiveCardProcessor(apiKey, baseURL string) *LiveCardProcessor {
	return &LiveCardProcessor{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type authResponse struct {
	Token string `json:"token"`
}

type orderResponse struct {
	ID int64 `json:"id"`
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

type payResponse struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Pay runs the full token chain for a single payment.
func (p *LiveCardProcessor) Pay(ctx context.Context, payment CardPayment) (ProcessorDecision, error) {
	var auth authResponse
	if err := p.post(ctx, "/auth/tokens", map[string]any{"api_key": p.apiKey}, &auth); err != nil {
		return ProcessorDecision{}, fmt.Errorf("auth token: %w", err)
	}

	var order orderResponse
	if err := p.post(ctx, "/ecommerce/orders", map[string]any{
		"auth_token":      auth.Token,
		"amount_cents":    payment.Amount * 100,
		"currency":        payment.Currency,
		"delivery_needed": false,
	}, &order); err != nil {
		return ProcessorDecision{}, fmt.Errorf("create order: %w", err)
	}

	var key paymentKeyResponse
	if err := p.post(ctx, "/acceptance/payment_keys", map[string]any{
		"auth_token":   auth.Token,
		"order_id":     order.ID,
		"amount_cents": payment.Amount * 100,
		"currency":     payment.Currency,
		"billing_data": map[string]string{
			"email":        payment.Billing.Email,
			"phone_number": payment.Billing.Phone,
			"city":         payment.Billing.City,
			"country":      payment.Billing.Country,
			"first_name":   payment.Billing.FirstName,
			"last_name":    payment.Billing.LastName,
		},
	}, &key); err != nil {
		return ProcessorDecision{}, fmt.Errorf("payment key: %w", err)
	}

	var pay payResponse
	if err := p.post(ctx, "/acceptance/payments/pay", map[string]any{
		"payment_token": key.Token,
		"source": map[string]string{
			"identifier": payment.Number,
			"subtype":    "CARD",
			"expiry":     payment.Expiry,
			"cvv":        payment.CVV,
		},
	}, &pay); err != nil {
		return ProcessorDecision{}, fmt.Errorf("pay: %w", err)
	}

	decision := ProcessorDecision{
		Approved:      pay.Success,
		TransactionID: fmt.Sprintf("%d", pay.ID),
	}
	if !pay.Success {
		decision.DeclineReason = pay.Message
	}
	return decision, nil
}

func (p *LiveCardProcessor) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("processor returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
