package staging

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpattn/batchctl/internal/domain"
)

// IntakeHandler exposes batch intake as a multipart POST endpoint.
type IntakeHandler struct {
	loader *Loader
}

// NewIntakeHandler wraps the loader with a POST endpoint.
func NewIntakeHandler(loader *Loader) *IntakeHandler {
	return &IntakeHandler{loader: loader}
}

func (h *IntakeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	packageName := strings.TrimSpace(r.FormValue("packageName"))
	if packageName == "" {
		http.Error(w, "packageName is required", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	summary, err := h.loader.Load(r.Context(), IntakeRequest{
		PackageName: packageName,
		FileName:    header.Filename,
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ValidateHandler exposes the validation pass as a POST endpoint.
type ValidateHandler struct {
	validator *Validator
}

// NewValidateHandler wraps the validator with a POST endpoint.
func NewValidateHandler(validator *Validator) *ValidateHandler {
	return &ValidateHandler{validator: validator}
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	summary, err := h.validator.ValidateAndPartition(r.Context(), req.PackageName)
	if err != nil {
		var txErr *domain.TransactionError
		if errors.As(err, &txErr) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
