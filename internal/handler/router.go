package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/backoffice-system/internal/middleware"
	"github.com/mmeshcher/backoffice-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бэк-офиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/password/reset", h.RequestPasswordReset)
			r.Post("/password/confirm", h.ConfirmPasswordReset)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware)

				r.Post("/logout", h.Logout)
				r.Post("/password", h.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/orders/import", h.ImportOrders)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRoles(model.RoleAdmin, model.RoleOwner))

				r.Get("/audit", h.GetAudit)

				r.Route("/admin/accounts", func(r chi.Router) {
					r.Get("/", h.ListAccounts)
					r.Post("/{id}/activate", h.ActivateAccount)
					r.Post("/{id}/deactivate", h.DeactivateAccount)
					r.Post("/{id}/role", h.UpdateAccountRole)
					r.Delete("/{id}", h.DeleteAccount)
				})
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
