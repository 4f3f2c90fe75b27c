package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Middleware is an interface for HTTP middleware
type Middleware func(http.Handler) http.Handler

// RegisterRoutes registers all authentication routes with the Chi router
// Public routes: /register, /login, /stats, /recent-activity
// Protected routes: /profile, /logout
func RegisterRoutes(r chi.Router, handler *AuthHandler, authMiddleware Middleware) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
		r.Get("/stats", handler.Stats)
		r.Get("/recent-activity", handler.RecentActivity)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Get("/profile", handler.Profile)
			r.Post("/logout", handler.Logout)
		})
	})
}
