package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-fragments/pkg/fragments"
)

// FragmentResponse wraps a single fragment
type FragmentResponse struct {
	Status   string              `json:"status"`
	Fragment *fragments.Fragment `json:"fragment"`
}

// FragmentListResponse wraps an owner's fragments, as ids or full records
type FragmentListResponse struct {
	Status    string                  `json:"status"`
	Fragments *fragments.FragmentList `json:"fragments"`
}

// StatusResponse is returned by operations without a body
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the envelope for every error
type ErrorResponse struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	render.Status(r, code)
	render.JSON(w, r, ErrorResponse{
		Status: "error",
		Error:  ErrorBody{Code: code, Message: message},
	})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fragments.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fragments.ErrUnsupportedConversion):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, fragments.ErrConversionNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, fragments.ErrInvalidFragment),
		errors.Is(err, fragments.ErrInvalidInput),
		errors.Is(err, fragments.ErrTypeMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs server faults and hides their detail from clients.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && code != http.StatusNotImplemented {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, code, "internal server error")
		return
	}
	logger.DebugContext(r.Context(), "request rejected", "status", code, "err", err)
	writeError(w, r, code, err.Error())
}
