// Package handlers serves the gateway webhook and the admin JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Mohamed39200Lo/Coffee/internal/catalog"
	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/internal/orders"
	"github.com/Mohamed39200Lo/Coffee/internal/support"
)

const maxBodyBytes = 1 << 20

// Error codes returned in the "code" field.
const (
	codeNotFound    = "not_found"
	codeValidation  = "validation"
	codeConflict    = "conflict"
	codeUnavailable = "unavailable"
	codeInternal    = "internal"
)

var errEmptyBody = errors.New("request body is empty")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// writeDomainError maps package sentinels to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var storeErr *docstore.Error
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, support.ErrSessionNotFound),
		errors.Is(err, catalog.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrNotTerminal),
		errors.Is(err, catalog.ErrInvalidOption):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, orders.ErrNotCancellable), errors.Is(err, orders.ErrStatusRefused):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, support.ErrCodeSpaceExhausted),
		errors.Is(err, conversation.ErrExecutorClosed),
		errors.As(err, &storeErr):
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

// decodeJSON reads a size-limited JSON body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
