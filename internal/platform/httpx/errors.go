// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/police-records/registry/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrUniqueness):
		Problem(w, http.StatusConflict, "Uniqueness Violation", err.Error())
	case errors.Is(err, shared.ErrReferentialIntegrity):
		Problem(w, http.StatusConflict, "Referential Integrity Violation", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Concurrent Update", err.Error())
	case errors.Is(err, shared.ErrInconsistentRole):
		Problem(w, http.StatusUnprocessableEntity, "Inconsistent Role", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
