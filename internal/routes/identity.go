package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/auth"
)

// RegisterIdentityRoutes wires the public registration, login and OTP endpoints.
func RegisterIdentityRoutes(router fiber.Router, h *auth.Handler, otpLimiter fiber.Handler) {
	router.Post("/register", h.Register)
	router.Post("/login", h.Login)
	router.Post("/token/refresh", h.Refresh)
	router.Post("/otp/request", otpLimiter, h.RequestOTP)
	router.Post("/otp/verify", h.VerifyOTP)
	router.Post("/password/reset", h.ResetPassword)
}
