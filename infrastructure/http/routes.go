package http

import (
	"github.com/go-chi/chi/v5"

	"skidbuild/exports"
	"skidbuild/labels"
	"skidbuild/workflow"
)

// RegisterScanRoutes registers the scanning workflow routes.
func (s *Server) RegisterScanRoutes(r chi.Router) {
	r.Post("/scan/manifest", workflow.ManifestScanHandler(s.Sessions))

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", workflow.StatusHandler(s.Sessions))
		r.Post("/scan/kanban", workflow.KanbanScanHandler(s.Sessions))
		r.Post("/scan/internal", workflow.InternalScanHandler(s.Sessions))
		r.Post("/cancel", workflow.CancelHandler(s.Sessions))
		r.Post("/exceptions", workflow.ExceptionHandler(s.Sessions))
		r.Post("/submit", workflow.SubmitHandler(s.Sessions))
		r.Post("/restart", workflow.RestartHandler(s.Sessions))
	})
}

// RegisterOrderRoutes registers per-order label and export routes.
func (s *Server) RegisterOrderRoutes(r chi.Router) {
	r.Route("/orders/{order}", func(r chi.Router) {
		r.Get("/labels.pdf", labels.OrderLabelsQueryHandler(s.DB))
		r.Get("/scans.csv", exports.ScansExportCSVHandler(s.DB))
		r.Get("/reconciliation.csv", exports.ReconciliationExportCSVHandler(s.DB))
	})
}
