package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/matzehuels/fm3/pkg/errors"
)

// statusClientClosedRequest is the nginx convention for a request whose
// client went away before the response was ready.
const statusClientClosedRequest = 499

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidGraph, errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeCancelled:
		if stderrors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return statusClientClosedRequest
	case errors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error body. Internal errors hide their
// cause from the client.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Code: errors.GetCode(err), Message: errors.UserMessage(err)}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errNotFound(path string) error {
	return errors.New(errors.ErrCodeFileNotFound, "no route for %s", path)
}

// decodeError classifies a request body decoding failure.
func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.Wrap(errors.ErrCodeTooLarge, err, "request body exceeds %d bytes", tooLarge.Limit)
	}
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request")
}
