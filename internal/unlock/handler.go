package unlock

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/gateway"
	"github.com/karobar-pk/karobar/internal/payment"
)

// Handler exposes unlock and payment-callback endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an unlock handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type unlockRequest struct {
	ResourceID  string `json:"resource_id"`
	Method      string `json:"method"`
	ReferenceID string `json:"reference_id"`

	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	City       string `json:"city"`
	Country    string `json:"country"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
}

// Unlock runs a manual-reference or card unlock for the authenticated buyer.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	buyerID, _ := c.Locals("user_id").(string)

	var req unlockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	input := Input{
		BuyerID:    buyerID,
		ResourceID: req.ResourceID,
		Method:     gateway.Method(req.Method),
	}
	switch input.Method {
	case gateway.MethodJazzCash, gateway.MethodBankTransfer:
		input.Manual = &gateway.ManualDetails{ReferenceID: req.ReferenceID}
	case gateway.MethodCard:
		input.Card = &gateway.CardDetails{
			Number: req.CardNumber,
			Expiry: req.Expiry,
			CVV:    req.CVV,
			Billing: gateway.BillingDetails{
				Email:     req.Email,
				Phone:     req.Phone,
				City:      req.City,
				Country:   req.Country,
				FirstName: req.FirstName,
				LastName:  req.LastName,
			},
		}
	default:
		return fiber.NewError(http.StatusBadRequest, "unsupported payment method")
	}

	outcome, err := h.service.Unlock(c.UserContext(), input)
	if err != nil {
		return mapUnlockError(err)
	}

	return c.JSON(outcomeResponse(outcome))
}

type beginRedirectRequest struct {
	ResourceID   string `json:"resource_id"`
	MobileNumber string `json:"mobile_number"`
	Email        string `json:"email"`
}

// BeginRedirect starts an Easypay unlock and returns the signed form payload.
func (h *Handler) BeginRedirect(c *fiber.Ctx) error {
	buyerID, _ := c.Locals("user_id").(string)

	var req beginRedirectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	outcome, err := h.service.BeginRedirect(c.UserContext(), buyerID, req.ResourceID, req.MobileNumber, req.Email)
	if err != nil {
		return mapUnlockError(err)
	}

	if outcome.AlreadyUnlocked {
		return c.JSON(fiber.Map{
			"success":          true,
			"already_unlocked": true,
			"contact":          outcome.Contact,
		})
	}
	return c.JSON(fiber.Map{
		"success":      true,
		"payment_id":   outcome.PaymentID,
		"redirect_url": outcome.Redirect.URL,
		"order_ref":    outcome.Redirect.OrderRef,
		"form_fields":  outcome.Redirect.Fields,
	})
}

// Callback receives the wallet's postback. The wallet posts form fields, not JSON.
func (h *Handler) Callback(c *fiber.Ctx) error {
	cb := gateway.CallbackFields{
		OrderRefNumber: c.FormValue("orderRefNumber"),
		Amount:         c.FormValue("amount"),
		PaymentToken:   c.FormValue("paymentToken"),
		Desc:           c.FormValue("desc"),
	}

	outcome, err := h.service.CompleteCallback(c.UserContext(), cb)
	if err != nil {
		return mapUnlockError(err)
	}

	return c.JSON(outcomeResponse(outcome))
}

func outcomeResponse(outcome Outcome) fiber.Map {
	resp := fiber.Map{
		"success": outcome.Success,
		"message": outcome.Message,
	}
	if outcome.PaymentID != "" {
		resp["payment_id"] = outcome.PaymentID
	}
	if outcome.AlreadyUnlocked {
		resp["already_unlocked"] = true
	}
	if outcome.Contact != nil {
		resp["contact"] = fiber.Map{
			"email":    outcome.Contact.Email,
			"phone":    outcome.Contact.Phone,
			"whatsapp": outcome.Contact.WhatsApp,
		}
	}
	return resp
}

func mapUnlockError(err error) error {
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return fiber.NewError(http.StatusNotFound, "supplier not found")
	case errors.Is(err, gateway.ErrUnsupportedMethod):
		return fiber.NewError(http.StatusBadRequest, "unsupported payment method")
	case errors.Is(err, payment.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "no pending payment matches that order reference")
	default:
		return fiber.NewError(http.StatusInternalServerError, "unlock failed")
	}
}
