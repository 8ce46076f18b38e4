package quarantine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/batchctl/internal/domain"

	"github.com/google/uuid"
)

// Handler exposes quarantine triage over JSON.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with HTTP endpoints.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /quarantine.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.ResolutionStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		value := domain.ResolutionStatus(strings.ToUpper(raw))
		if value != domain.ResolutionStatusUnresolved && value != domain.ResolutionStatusResolved {
			http.Error(w, fmt.Sprintf("unknown resolution status %q", raw), http.StatusBadRequest)
			return
		}
		status = &value
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Resolve handles POST /quarantine/{id}/resolve.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid entry id: %v", err), http.StatusBadRequest)
		return
	}

	var req struct {
		ResolvedBy string `json:"resolvedBy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	entry, err := h.service.Resolve(r.Context(), id, req.ResolvedBy)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrResolutionConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrEntryNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
