package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/middleware"
	"github.com/karobar-pk/karobar/internal/unlock"
)

// RegisterUnlockRoutes wires the buyer contact-unlock endpoints.
func RegisterUnlockRoutes(router fiber.Router, h *unlock.Handler) {
	buyer := router.Group("/unlocks", middleware.RequireRole(string(identity.RoleBuyer)))
	buyer.Post("", h.Unlock)
	buyer.Post("/easypay", h.BeginRedirect)
}
