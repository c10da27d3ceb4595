package server

import (
	"encoding/json"
	"net/http"
	"time"

	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// Handler serves the reconciliation endpoints
type Handler struct {
	searcher Searcher
	log      logger.Logger
}

// NewHandler constructs the HTTP handler
func NewHandler(searcher Searcher) *Handler {
	return &Handler{
		searcher: searcher,
		log:      logger.GetGlobalLogger().WithComponent("server"),
	}
}

// Router builds the service router: request logging, panic recovery, a
// per-client rate limit, the search endpoint, and a liveness probe.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/search", h.handleSearch)
	r.Get("/healthz", h.handleHealth)

	return r
}

// handleSearch reconciles the external ids in input_string and the invoice
// numbers in input_invoice. At least one of the two must be non-empty.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	externalIDs := SplitIdentifiers(r.URL.Query().Get("input_string"))
	invoiceNumbers := SplitIdentifiers(r.URL.Query().Get("input_invoice"))

	if len(externalIDs) == 0 && len(invoiceNumbers) == 0 {
		writeError(w, errors.ValidationError(errors.CodeEmptyInput, "input", "", nil).
			WithSuggestion("provide input_string and/or input_invoice"))
		return
	}

	results, err := h.searcher.Search(r.Context(), invoiceNumbers, externalIDs)
	if err != nil {
		h.log.WithError(err).Error("Search failed")
		writeError(w, err)
		return
	}

	if externalIDs == nil {
		externalIDs = []string{}
	}
	if results == nil {
		results = []json.RawMessage{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Status:      "success",
		ExternalIDs: externalIDs,
		Results:     results,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
