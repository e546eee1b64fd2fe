package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/inboxops/brevo-console/internal/config"
)

// SetupRoutes configures the router, middleware stack and all console routes.
func SetupRoutes(h *Handlers, hc *HealthChecker, corsCfg config.CORSConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Server identity header - distinguishes the console from the stub provider
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Server-Identity", "brevo-console")
			next.ServeHTTP(w, req)
		})
	})

	// CORS for the browser UI (explicit origins, no wildcard)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsCfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (outside /api)
	r.Get("/health", hc.HandleHealth)
	r.Get("/health/live", hc.HandleLiveness)
	r.Get("/health/ready", hc.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Account management
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.HandleListAccounts)
			r.Post("/", h.HandleCreateAccount)
			r.Get("/active", h.HandleGetActiveAccount)
			r.Put("/active", h.HandleSetActiveAccount)

			r.Route("/{accountID}", func(r chi.Router) {
				r.Get("/", h.HandleGetAccount)
				r.Put("/", h.HandleUpdateAccount)
				r.Delete("/", h.HandleDeleteAccount)
				r.Post("/check", h.HandleCheckAccount)
			})
		})

		// Provider proxies (accountId query param or the active account)
		r.Get("/lists", h.HandleGetLists)
		r.Get("/lists/{listID}/contacts", h.HandleGetListContacts)
		r.Post("/contacts", h.HandleUpsertContact)
		r.Get("/contacts/{identifier}", h.HandleGetContact)
		r.Get("/senders", h.HandleGetSenders)
		r.Get("/statistics", h.HandleGetStatistics)

		// Transactional templates
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.HandleListTemplates)
			r.Post("/preview", h.HandlePreviewTemplate)
			r.Get("/{templateID}", h.HandleGetTemplate)
			r.Put("/{templateID}", h.HandleUpdateTemplate)
		})

		// Bulk import jobs
		r.Route("/import/jobs", func(r chi.Router) {
			r.Post("/", h.HandleStartImport)
			r.Get("/", h.HandleListJobs)
			r.Get("/{jobID}", h.HandleGetJob)
			r.Post("/{jobID}/pause", h.HandlePauseJob)
			r.Post("/{jobID}/resume", h.HandleResumeJob)
			r.Post("/{jobID}/cancel", h.HandleCancelJob)
		})
	})

	return r
}
