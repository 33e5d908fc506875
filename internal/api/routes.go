package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ignite/verifyhub/internal/config"
	"github.com/ignite/verifyhub/internal/pkg/httputil"
)

// SetupRoutes wires the router: open health endpoint, then the
// verification API behind bearer auth.
func SetupRoutes(h *Handlers, authCfg config.AuthConfig, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/email-verification", func(r chi.Router) {
		r.Use(AuthRequired(authCfg))

		r.Post("/single", h.VerifySingle)
		r.Post("/bulk-upload", h.BulkUpload)
		r.Get("/bulk/start", h.BulkStart)
		r.Get("/bulk/status", h.BulkStatus)
		r.Post("/bulk/download", h.BulkDownload)
		r.Get("/bulk/archive", h.BulkArchive)
		r.Delete("/bulk-list", h.BulkDelete)
		r.Get("/logs", h.Logs)
		r.Get("/credits", h.Credits)
		r.Patch("/credits", h.AllotCredits)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httputil.NotFound(w, "route not found")
	})

	return r
}
