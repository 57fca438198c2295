package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kivu-auth/kivu_auth/internal/auth"
)

// RegisterAuthRoutes wires the authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/register", h.Register)
	group.Post("/logout", h.Logout)
	group.Post("/password-reset", h.PasswordReset)
	group.Get("/session", h.Session)
	group.Get("/providers", h.Providers)
	group.Put("/provider", h.SetProvider)
}
