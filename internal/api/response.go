package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/lending"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonFieldError writes a 400 response naming the offending field.
func jsonFieldError(w http.ResponseWriter, field, message string) {
	jsonResponse(w, http.StatusBadRequest, map[string]string{"error": message, "field": field})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeLendingError maps lending errors onto HTTP responses.
func writeLendingError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *lending.ValidationError
	var oos *lending.OutOfStockError

	switch {
	case errors.As(err, &verr):
		jsonFieldError(w, verr.Field, verr.Message)
	case errors.As(err, &oos):
		jsonFieldError(w, "book", oos.Error())
	case errors.Is(err, lending.ErrAlreadyReturned):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lending.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("lending operation failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
