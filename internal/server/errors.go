package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/models"
	"github.com/zombor/receipt-keeper/internal/receipt"
	"github.com/zombor/receipt-keeper/internal/scanning"
)

// errorStatuses maps domain errors to HTTP statuses. Anything not listed is
// an internal error.
var errorStatuses = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidInput, http.StatusBadRequest},
	{auth.ErrPasswordPolicy, http.StatusBadRequest},
	{receipt.ErrInvalidReceipt, http.StatusBadRequest},
	{models.ErrInvalidCategory, http.StatusBadRequest},
	{auth.ErrInvalidToken, http.StatusUnauthorized},
	{auth.ErrIncorrectPassword, http.StatusUnauthorized},
	{auth.ErrIncorrectAnswer, http.StatusUnauthorized},
	{auth.ErrAccountNotFound, http.StatusNotFound},
	{receipt.ErrReceiptNotFound, http.StatusNotFound},
	{auth.ErrDuplicateAccount, http.StatusConflict},
	{receipt.ErrReceiptExists, http.StatusConflict},
	{auth.ErrRecoveryStep, http.StatusConflict},
	{auth.ErrRecoveryNotConfigured, http.StatusUnprocessableEntity},
	{scanning.ErrIncompleteScan, http.StatusUnprocessableEntity},
}

func statusFor(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// writeError sends {"error": message}. Internal errors are logged and
// replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "Internal server error"
	} else {
		slog.Info("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return false
	}
	return true
}
