package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/cashier/internal/web/handlers"
	"github.com/kozaktomas/cashier/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.session, s.logger)
	flowHandler := handlers.NewFlowHandler(s.session)
	identifyHandler := handlers.NewIdentifyHandler(s.session, s.logger)
	checkoutHandler := handlers.NewCheckoutHandler(s.session)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// Everything else needs a logged in operator
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin(s.session))

			r.Get("/session", flowHandler.Get)

			// Catalogue
			r.Get("/inventory", flowHandler.Inventory)
			r.Put("/cart/{itemId}", flowHandler.SetQuantity)
			r.Post("/flow/identify", flowHandler.Identify)

			// Identify
			r.Post("/identify/search", identifyHandler.Search)
			r.Post("/identify/recognise", identifyHandler.Recognise)
			r.Post("/identify/capture", identifyHandler.StartCapture)
			r.Delete("/identify/capture", identifyHandler.StopCapture)
			r.Get("/identify/capture/events", identifyHandler.Events)
			r.Post("/identify/correction", identifyHandler.Correction)
			r.Post("/identify/reconcile", identifyHandler.Reconcile)
			r.Post("/identify/reset", identifyHandler.Reset)
			r.Post("/flow/checkout", identifyHandler.Continue)
			r.Post("/flow/catalogue", flowHandler.Catalogue)

			// Checkout
			r.Get("/checkout/summary", checkoutHandler.Summary)
			r.Post("/checkout/submit", checkoutHandler.Submit)
			r.Post("/flow/back", flowHandler.Back)
			r.Post("/flow/next-customer", flowHandler.NextCustomer)
		})
	})
}
