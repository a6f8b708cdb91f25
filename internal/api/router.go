package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mariibrb/dizimeiro/internal/audit"
	"github.com/mariibrb/dizimeiro/internal/difal"
	"github.com/mariibrb/dizimeiro/internal/repository"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(
	auditSvc *audit.Service,
	auditRepo *repository.AuditRepo,
	tables difal.Tables,
	log zerolog.Logger,
) http.Handler {
	h := &Handlers{
		auditSvc:  auditSvc,
		auditRepo: auditRepo,
		tables:    tables,
		log:       log,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// Audits.
		r.Post("/audits", h.RunAudit)
		r.Get("/audits", h.ListAudits)
		r.Get("/audits/{id}", h.GetAudit)
		r.Get("/audits/{id}/results", h.GetAuditResults)
		r.Get("/audits/{id}/export", h.ExportAudit)

		// Configuration tables (UI picker support).
		r.Get("/rates", h.GetRates)
	})

	return r
}
