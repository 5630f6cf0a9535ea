package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	storefront "github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/middleware"

	"github.com/lesageromain2-creator/cafe-stockholm-commerce/internal/checkout"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(storefront.CorrelationID)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart/{sessionId}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{itemId}", h.UpdateItem)
			r.Delete("/items/{itemId}", h.RemoveItem)
			r.Get("/orders", h.ListOrders)
		})
		r.Post("/quote", h.Quote)
		r.Post("/checkout/{sessionId}", h.Checkout)
		r.Get("/orders/{orderId}", h.GetOrder)
	})

	r.Get("/checkout/success", h.PaymentReturn(checkout.OutcomeSuccess))
	r.Get("/checkout/cancel", h.PaymentReturn(checkout.OutcomeCancelled))

	return r
}
