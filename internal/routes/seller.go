package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/karobar-pk/karobar/internal/auth"
	"github.com/karobar-pk/karobar/internal/identity"
	"github.com/karobar-pk/karobar/internal/middleware"
)

// RegisterSellerRoutes wires the seller trial/verification endpoints.
func RegisterSellerRoutes(router fiber.Router, h *auth.Handler) {
	seller := router.Group("/seller", middleware.RequireRole(string(identity.RoleSeller)))
	seller.Get("/dashboard-access", h.DashboardAccess)
	seller.Post("/documents", h.SubmitDocuments)
}

// RegisterAdminRoutes wires the verification review endpoints.
func RegisterAdminRoutes(router fiber.Router, h *auth.Handler) {
	admin := router.Group("/admin", middleware.RequireRole(string(identity.RoleAdmin)))
	admin.Post("/verifications/approve", h.Approve)
	admin.Post("/verifications/reject", h.Reject)
	admin.Post("/verifications/force-status", h.ForceStatus)
}
