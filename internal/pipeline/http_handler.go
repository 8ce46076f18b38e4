package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/batchctl/internal/domain"
)

// TriggerHandler exposes manual run triggering as a POST endpoint.
type TriggerHandler struct {
	runner *Runner
}

// NewTriggerHandler wraps the runner with a POST endpoint.
func NewTriggerHandler(runner *Runner) *TriggerHandler {
	return &TriggerHandler{runner: runner}
}

func (h *TriggerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		PackageName string `json:"packageName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.PackageName) == "" {
		http.Error(w, "packageName is required", http.StatusBadRequest)
		return
	}

	run, err := h.runner.Execute(r.Context(), req.PackageName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrPackageNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			// The run record carries FAILED; surface the diagnostic.
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(run)
}
