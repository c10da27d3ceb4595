// Package server exposes the reconciliation search over HTTP
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"payment-reconciliation-service/pkg/errors"
	"payment-reconciliation-service/pkg/logger"
)

// Searcher is the reconciliation operation the HTTP layer depends on
type Searcher interface {
	Search(ctx context.Context, invoiceNumbers, externalIDs []string) ([]json.RawMessage, error)
}

// SearchResponse is the envelope returned by the search endpoint
type SearchResponse struct {
	Status      string            `json:"status"`
	ExternalIDs []string          `json:"external_ids"`
	Results     []json.RawMessage `json:"results"`
}

// ErrorResponse is the envelope returned for request failures
type ErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// SplitIdentifiers splits an identifier list on commas, semicolons and
// spaces, trimming blanks and duplicates while keeping first-seen order.
func SplitIdentifiers(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})

	seen := make(map[string]struct{}, len(fields))
	var ids []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		ids = append(ids, f)
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithComponent("server").WithError(err).Error("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if rerr, ok := errors.AsReconcilerError(err); ok && rerr.Category == errors.CategoryValidation {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, ErrorResponse{Status: "error", Detail: err.Error()})
}
