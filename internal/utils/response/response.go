// Package response provides helpers for reading JSON requests and writing
// consistent JSON responses.
//
// Success responses may return any JSON shape (a row, a list, a session).
// Error responses always look like:
//
//	{ "status": "error", "error": "field title is required" }
//
// The chatbot endpoint is the one exception: it keeps its own
// { "error", "response" } shape so the web client can always show text.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/smartcampus/campus-api/internal/storage"
)

// Response is the standard error envelope.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// validate is shared; validator caches struct metadata per instance.
var validate = validator.New()

// Field errors carry the json tag name, so messages use the wire names.
func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes data as JSON with the given status code.
//
// Order matters: Header() → WriteHeader() → body. Headers are locked once
// WriteHeader is called.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any error into the standard envelope.
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError turns validator field errors into one readable sentence.
//
// Example output:
//
//	{ "status": "error", "error": "field email is required, field category must be one of [tech sports]" }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		field := e.Field()

		switch e.ActualTag() {
		case "required":
			errMessages = append(errMessages, fmt.Sprintf("field %s is required", field))
		case "email":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be a valid email address", field))
		case "oneof":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be one of [%s]", field, e.Param()))
		case "min":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be at least %s", field, e.Param()))
		case "url":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be a valid URL", field))
		case "uuid":
			errMessages = append(errMessages, fmt.Sprintf("field %s must be a valid id", field))
		default:
			errMessages = append(errMessages, fmt.Sprintf("field %s is invalid", field))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(errMessages, ", "),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ReadJSON decodes the request body into v and validates it. On failure it
// writes a 400 and returns false; the handler should just return.
// ─────────────────────────────────────────────────────────────────────────────
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		WriteJSON(w, http.StatusBadRequest, GeneralError(errors.New("request body is empty")))
		return false
	}
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, GeneralError(err))
		return false
	}

	if err := validate.Struct(v); err != nil {
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			WriteJSON(w, http.StatusBadRequest, ValidationError(validateErrs))
			return false
		}
		WriteJSON(w, http.StatusBadRequest, GeneralError(err))
		return false
	}

	return true
}

// StoreError maps storage sentinels onto HTTP statuses and writes the
// envelope.
func StoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrEventFull):
		status = http.StatusConflict
	}
	WriteJSON(w, status, GeneralError(err))
}
