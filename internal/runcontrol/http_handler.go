package runcontrol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/batchctl/internal/domain"
)

// Handler exposes the run-control surface over JSON.
type Handler struct {
	controller *Controller
}

// NewHTTPHandler wraps the controller with HTTP endpoints.
func NewHTTPHandler(controller *Controller) *Handler {
	return &Handler{controller: controller}
}

type startRequest struct {
	PackageName string `json:"packageName"`
}

type endRequest struct {
	PackageName  string  `json:"packageName"`
	Status       string  `json:"status"`
	Extracted    int     `json:"extracted"`
	Loaded       int     `json:"loaded"`
	Rejected     int     `json:"rejected"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

// Start handles POST /runs/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	run, err := h.controller.StartRun(r.Context(), req.PackageName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// End handles POST /runs/end.
func (h *Handler) End(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	status := domain.RunStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	counts := domain.RunCounts{
		Extracted: req.Extracted,
		Loaded:    req.Loaded,
		Rejected:  req.Rejected,
	}

	run, err := h.controller.EndRun(r.Context(), req.PackageName, status, counts, req.ErrorMessage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Status handles GET /runs and GET /runs/{name}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		runs, err := h.controller.StatusAll(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
		return
	}

	run, err := h.controller.Status(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Provision handles POST /runs/provision.
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	run, err := h.controller.Provision(r.Context(), req.PackageName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrPackageNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
