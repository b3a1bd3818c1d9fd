/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the mobile app / frontend

ROUTE GROUPS:
  /api/assets/*     Asset and automation management
  /api/imu/*        IMU calculation and reference data
  /api/f24/*        F24 form generation
  /api/reminders/*  Reminder listing and deletion
  /api/health       Liveness probe
  /static/*         Generated artifacts (F24 PDFs)

STATIC FILE SERVING:
  Generated PDFs land under <staticDir>/f24 and are served back at
  /static/f24/<filename>, the URL stored in the documents table.

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. staticDir
// is the root of the generated-artifact tree served under /static/.
func NewRouter(h *Handler, staticDir string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Asset routes
		r.Route("/assets", func(r chi.Router) {
			r.Get("/", h.ListAssets)
			r.Post("/", h.CreateAsset)
			r.Get("/{id}", h.GetAsset)
			r.Delete("/{id}", h.DeleteAsset)
			r.Get("/{id}/automation", h.GetAutomation)
			r.Put("/{id}/automation", h.UpdateAutomation)
			r.Get("/{id}/reminders", h.GetAssetReminders)
			r.Get("/{id}/documents", h.GetAssetDocuments)
		})

		// IMU routes
		r.Route("/imu", func(r chi.Router) {
			r.Post("/calculate", h.CalculateIMU)
			r.Get("/categories", h.ListCategories)
			r.Get("/comuni/{comune}", h.GetComune)
		})

		// F24 routes
		r.Route("/f24", func(r chi.Router) {
			r.Post("/generate", h.GenerateF24)
		})

		// Reminder routes
		r.Route("/reminders", func(r chi.Router) {
			r.Get("/", h.ListReminders)
			r.Delete("/{id}", h.DeleteReminder)
		})
	})

	// Generated artifacts (F24 PDFs)
	fileServer := http.FileServer(http.Dir(staticDir))
	r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	return r
}
