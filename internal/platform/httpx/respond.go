// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/police-records/registry/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return shared.Invalid("body", err.Error())
	}
	return nil
}

// DecodeAndValidate decodes the body and runs validator tags on target.
func DecodeAndValidate(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	return ValidateStruct(v, target)
}

// ValidateStruct converts validator failures into a shared.ValidationError
// naming the first offending field.
func ValidateStruct(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return shared.Invalid(strings.ToLower(fe.Field()), fmt.Sprintf("failed %q rule", fe.Tag()))
	}
	return shared.Invalid("", err.Error())
}

// IDParam parses a positive int64 URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.Invalid(name, "must be a positive integer")
	}
	return id, nil
}

// OptionalIDQuery parses an optional positive int64 query parameter.
func OptionalIDQuery(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.Invalid(name, "must be a positive integer")
	}
	return &id, nil
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// OptionalDate parses an optional YYYY-MM-DD value.
func OptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, shared.Invalid(field, "must be a YYYY-MM-DD date")
	}
	return &t, nil
}
