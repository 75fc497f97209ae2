// Package httpx contains the JSON response helpers shared by the
// controller and custodian HTTP surfaces.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrorBody is the wire shape of every error response. ExceptionID is
// stable and machine readable; Description is for humans.
type ErrorBody struct {
	Data        map[string]any `json:"data"`
	Description string         `json:"description"`
	ExceptionID string         `json:"exception_id"`
}

// WriteJSON encodes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody. description must never contain
// internals of the vault, the object store or the database.
func WriteError(w http.ResponseWriter, status int, exceptionID, description string) {
	WriteJSON(w, status, ErrorBody{
		Data:        map[string]any{},
		Description: description,
		ExceptionID: exceptionID,
	})
}

// ReadJSON decodes a bounded request body into v, rejecting unknown fields.
func ReadJSON(r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: trailing data")
	}
	return nil
}

// Health is the liveness handler mounted by both services.
func Health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
