package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/livewell/tenancy-system/internal/middleware"
	"github.com/livewell/tenancy-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/", h.Live)

	r.Get("/apartments", h.ListApartments)
	r.Get("/apartments/featured", h.ListFeaturedApartments)

	r.Post("/users", h.EnsureUser)
	r.Get("/users/role/{email}", h.GetRoleByEmail)

	r.Post("/validate-coupon", h.ValidateCoupon)
	r.Post("/verify-coupon", h.VerifyCoupon)
	r.Get("/coupons", h.ListCoupons)

	r.Get("/announcements", h.ListAnnouncements)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/agreements", h.CreateAgreement)
		r.Get("/agreements/{email}", h.GetAgreement)

		r.Post("/payments", h.RecordPayment)
		r.Get("/payments", h.ListPayments)
		r.Post("/create-payment-intent", h.CreatePaymentIntent)

		r.Group(func(r chi.Router) {
			r.Use(custommiddleware.RequireRole(h.service, model.RoleAdmin))

			r.Get("/agreements", h.ListAgreements)
			r.Get("/agreement/pending", h.ListPendingAgreements)
			r.Patch("/agreements/{id}/accept", h.AcceptAgreement)
			r.Patch("/agreements/{id}/reject", h.RejectAgreement)

			r.Post("/coupons", h.CreateCoupon)
			r.Patch("/coupons/{id}", h.SetCouponActive)
			r.Delete("/coupons/{id}", h.DeleteCoupon)

			r.Post("/announcements", h.PostAnnouncement)

			r.Get("/members", h.ListMembers)
			r.Patch("/members/{id}/remove", h.RemoveMembership)

			r.Get("/admin/stats", h.AdminStats)
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
