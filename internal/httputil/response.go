package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mediaflow/mediaflow/pkg/errors"
)

// WriteJSON writes a JSON response with the given status code and data.
// If encoding fails, it logs the error.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// WriteError writes a JSON error response with the given status code and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{
		"error": message,
	})
}

// WriteDomainError maps a domain error to its HTTP status and writes it.
// Validation and resolution problems are the client's fault (400), missing
// workflows are 404, lock contention is 409, expired artifacts are 410, and
// everything else is a 500 with the detail kept out of the response body.
func WriteDomainError(w http.ResponseWriter, err error) {
	body := map[string]string{"error": err.Error()}

	var validation *errors.ValidationError
	var conflict *errors.ConflictError
	var paramConflict *errors.ParameterConflictError
	var notFound *errors.NotFoundError
	var gone *errors.GoneError
	var resolution *errors.ResolutionError
	var invalidStage *errors.InvalidStageNameError

	switch {
	case errors.As(err, &validation):
		if validation.Suggestion != "" {
			body["suggestion"] = validation.Suggestion
		}
		WriteJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &resolution), errors.As(err, &invalidStage):
		WriteJSON(w, http.StatusBadRequest, body)
	case errors.As(err, &paramConflict):
		WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":     paramConflict.Error(),
			"conflicts": paramConflict.Conflicts,
		})
	case errors.As(err, &notFound):
		WriteJSON(w, http.StatusNotFound, body)
	case errors.As(err, &conflict):
		WriteJSON(w, http.StatusConflict, body)
	case errors.As(err, &gone):
		WriteJSON(w, http.StatusGone, body)
	default:
		slog.Error("Request failed", slog.Any("error", err))
		WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
