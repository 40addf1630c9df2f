package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"pollboard/internal/audit"
	"pollboard/internal/bulkops"
)

// NewRouter wires the admin API. Authentication is handled upstream; the
// acting admin arrives in the X-Admin-User header.
func NewRouter(bulk *bulkops.Service, auditSvc *audit.Service, db *gorm.DB) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	bulkHandler := &BulkHandler{svc: bulk}
	pollHandler := &PollHandler{db: db}
	auditHandler := &AuditHandler{svc: auditSvc}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/bulk", func(r chi.Router) {
			r.Post("/operations", bulkHandler.Start)
			r.Get("/operations", bulkHandler.List)
			r.Get("/operations/{id}", bulkHandler.GetProgress)
			r.Get("/operations/{id}/result", bulkHandler.GetResult)
			r.Post("/operations/{id}/cancel", bulkHandler.Cancel)
			r.Get("/queue", bulkHandler.QueueStatus)
		})
		r.Route("/polls", func(r chi.Router) {
			r.Get("/", pollHandler.List)
			r.Get("/{id}", pollHandler.Get)
		})
		r.Get("/audit", auditHandler.ListRecent)
	})

	return r
}

// writeJSON serializes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error      string  `json:"error"`
	Code       string  `json:"code,omitempty"`
	InvalidIDs []int64 `json:"invalid_ids,omitempty"`
}

// writeError serializes an error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
