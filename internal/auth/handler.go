package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/access"
	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/notification"
)

// Handler exposes identity and verification endpoints.
type Handler struct {
	service *identity.Service
	tokens  *Service
}

// NewHandler constructs an identity handler.
func NewHandler(service *identity.Service, tokens *Service) *Handler {
	return &Handler{service: service, tokens: tokens}
}

type registerRequest struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Register creates a buyer or seller account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.Register(c.UserContext(), identity.RegisterInput{
		Role:     identity.Role(req.Role),
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, identity.ErrDuplicate) {
			return fiber.NewError(http.StatusConflict, "an account with this email or username already exists")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user_id": user.ID,
		"role":    user.Role,
	})
}

type loginRequest struct {
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and issues a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	user, err := h.service.Authenticate(c.UserContext(), identity.Credentials{
		Role:     identity.Role(req.Role),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, "invalid email or password")
		}
		return fiber.NewError(http.StatusInternalServerError, "login failed")
	}

	pair, err := h.tokens.Login(user)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "token issuance failed")
	}

	return c.JSON(fiber.Map{"success": true, "user_id": user.ID, "tokens": pair})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a valid refresh token for a new access token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	access, expiresIn, err := h.tokens.Refresh(req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"access_token": access,
		"expires_in":   expiresIn,
	})
}

type otpRequestBody struct {
	Role    string `json:"role"`
	Email   string `json:"email"`
	Channel string `json:"channel"`
}

// RequestOTP generates and delivers a verification code.
func (h *Handler) RequestOTP(c *fiber.Ctx) error {
	var req otpRequestBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	channel := req.Channel
	if channel == "" {
		channel = notification.ChannelEmail
	}

	result, err := h.service.RequestOTP(c.UserContext(), identity.Role(req.Role), req.Email, channel)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "no account matches that email")
		}
		return fiber.NewError(http.StatusBadGateway, "verification code could not be delivered")
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"message":    "verification code sent to " + result.MaskedContact,
		"expires_at": result.ExpiresAt,
	})
}

type otpVerifyBody struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOTP checks a submitted code.
func (h *Handler) VerifyOTP(c *fiber.Ctx) error {
	var req otpVerifyBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.VerifyOTP(c.UserContext(), identity.Role(req.Role), req.Email, req.Code)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "no account matches that email")
		}
		return fiber.NewError(http.StatusInternalServerError, "verification failed")
	}

	return c.JSON(verifyResponse(result))
}

type resetPasswordBody struct {
	Role        string `json:"role"`
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// ResetPassword verifies the code and replaces the credential in one step.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.ResetPassword(c.UserContext(), identity.Role(req.Role), req.Email, req.Code, req.NewPassword)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "no account matches that email")
		}
		return fiber.NewError(http.StatusInternalServerError, "password reset failed")
	}

	return c.JSON(verifyResponse(result))
}

func verifyResponse(result identity.VerifyResult) fiber.Map {
	resp := fiber.Map{"success": result.Success, "message": result.Message}
	if result.Reason != "" {
		resp["reason"] = result.Reason
	}
	if !result.Success && result.Reason == "wrong_code" {
		resp["remaining_attempts"] = result.RemainingAttempts
	}
	return resp
}

// DashboardAccess evaluates whether the authenticated seller may use the dashboard.
func (h *Handler) DashboardAccess(c *fiber.Ctx) error {
	sellerID, _ := c.Locals("user_id").(string)

	decision, err := h.service.DashboardAccess(c.UserContext(), sellerID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "seller not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "access check failed")
	}

	resp := fiber.Map{"can_access": decision.CanAccess}
	if decision.Reason != "" {
		resp["reason"] = decision.Reason
	}
	if decision.CanAccess && !decision.NotifyReview {
		resp["days_remaining"] = decision.DaysRemaining
		resp["urgent"] = decision.Urgent
	}
	if decision.NotifyReview {
		resp["review_pending"] = true
	}
	return c.JSON(resp)
}

type submitDocumentsBody struct {
	IdentityNumber string `json:"identity_number"`
	FrontImage     string `json:"front_image"`
	BackImage      string `json:"back_image"`
	SelfieImage    string `json:"selfie_image"`
}

// SubmitDocuments moves the authenticated seller into review.
func (h *Handler) SubmitDocuments(c *fiber.Ctx) error {
	sellerID, _ := c.Locals("user_id").(string)

	var req submitDocumentsBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.SubmitDocuments(c.UserContext(), sellerID, access.Documents{
		IdentityNumber: req.IdentityNumber,
		FrontImage:     req.FrontImage,
		BackImage:      req.BackImage,
		SelfieImage:    req.SelfieImage,
	})
	if err != nil {
		if errors.Is(err, access.ErrInvalidTransition) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{"success": true, "status": state.Status, "submitted_at": state.SubmittedAt})
}

type decisionBody struct {
	SellerID string `json:"seller_id"`
	Reason   string `json:"reason"`
	Status   string `json:"status"`
}

// Approve records an admin approval for a pending seller.
func (h *Handler) Approve(c *fiber.Ctx) error {
	adminID, _ := c.Locals("user_id").(string)

	var req decisionBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.ApproveSeller(c.UserContext(), adminID, req.SellerID)
	if err != nil {
		return decisionError(err)
	}
	return c.JSON(fiber.Map{"success": true, "status": state.Status})
}

// Reject records an admin rejection with a reason.
func (h *Handler) Reject(c *fiber.Ctx) error {
	adminID, _ := c.Locals("user_id").(string)

	var req decisionBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.RejectSeller(c.UserContext(), adminID, req.SellerID, req.Reason)
	if err != nil {
		return decisionError(err)
	}
	return c.JSON(fiber.Map{"success": true, "status": state.Status})
}

// ForceStatus is the audited admin override outside the transition table.
func (h *Handler) ForceStatus(c *fiber.Ctx) error {
	adminID, _ := c.Locals("user_id").(string)

	var req decisionBody
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	state, err := h.service.ForceVerificationStatus(c.UserContext(), adminID, req.SellerID, access.Status(req.Status))
	if err != nil {
		return decisionError(err)
	}
	return c.JSON(fiber.Map{"success": true, "status": state.Status})
}

func decisionError(err error) error {
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "seller not found")
	case errors.Is(err, access.ErrInvalidTransition):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
