// Package history exposes the append-only run log to audit consumers.
package history

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"
)

// Handler serves run-log range queries.
type Handler struct {
	logs repository.RunLogRepository
}

// NewHTTPHandler wraps the run log with a GET endpoint.
func NewHTTPHandler(logs repository.RunLogRepository) *Handler {
	return &Handler{logs: logs}
}

// List handles GET /history?package=...&from=...&to=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	packageName := strings.TrimSpace(r.URL.Query().Get("package"))
	if packageName == "" {
		http.Error(w, "package is required", http.StatusBadRequest)
		return
	}

	filter := domain.LogFilter{PackageName: packageName}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid from timestamp: %v", err), http.StatusBadRequest)
			return
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid to timestamp: %v", err), http.StatusBadRequest)
			return
		}
		filter.To = &to
	}

	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.logs.List(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(entries)
}
