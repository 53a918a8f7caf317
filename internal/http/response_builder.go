package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/unrolled/render"

	"harambee/internal/core"
	"harambee/internal/ledger"
	"harambee/internal/log"
	"harambee/internal/services"
)

func newRenderer() *render.Render {
	return render.New(render.Options{
		UnEscapeHTML:  true,
		IndentJSON:    false,
		StreamingJSON: false,
	})
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	render  *render.Render
	status  int
	headers map[string]string
}

func (s *Server) respond() *ResponseBuilder {
	return &ResponseBuilder{render: s.render, status: http.StatusOK, headers: map[string]string{}}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.status = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) writeHeaders(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
}

// JSON writes v as the response body.
func (b *ResponseBuilder) JSON(w http.ResponseWriter, v any) {
	b.writeHeaders(w)
	_ = b.render.JSON(w, b.status, v)
}

// Error writes an ErrorBody with message.
func (b *ResponseBuilder) Error(w http.ResponseWriter, message string) {
	b.ErrorWithDetails(w, message, nil)
}

func (b *ResponseBuilder) ErrorWithDetails(w http.ResponseWriter, message string, details any) {
	b.writeHeaders(w)
	_ = b.render.JSON(w, b.status, ErrorBody{Error: message, Details: details})
}

// NoContent writes an empty 204.
func (b *ResponseBuilder) NoContent(w http.ResponseWriter) {
	b.writeHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyName,
	core.ErrEmptyDepartment,
	core.ErrEmptyDescription,
	core.ErrEmptyCategory,
	core.ErrInvalidMethod,
	core.ErrInvalidDirection,
	core.ErrZeroTimestamp,
	core.ErrEmptyPhaseName,
	core.ErrEmptyPledgeID,
	core.ErrNegativeTarget,
	core.ErrDescriptionTooLong,
	errInvalidTimestamp,
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	var confirm *services.ConfirmationRequiredError
	var dup *services.DuplicateError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &confirm), errors.As(err, &dup), errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusInternalServerError
}

type confirmationDetails struct {
	Payments int `json:"payments"`
}

type duplicateDetails struct {
	Existing core.Transaction `json:"existing"`
}

// fail writes err with the status StatusFor picks. Internal errors are
// logged and their text is not sent to the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, operation string, err error) {
	s.failWithDetails(w, r, operation, err, nil)
}

// failWithDetails is fail with a body for the details field, used when
// part of the request already took effect.
func (s *Server) failWithDetails(w http.ResponseWriter, r *http.Request, operation string, err error, details any) {
	status := StatusFor(err)
	b := s.respond().Status(status)

	var confirm *services.ConfirmationRequiredError
	var dup *services.DuplicateError
	switch {
	case errors.As(err, &confirm):
		b.ErrorWithDetails(w, confirm.Error(), confirmationDetails{Payments: confirm.Payments})
	case errors.As(err, &dup):
		b.ErrorWithDetails(w, dup.Error(), duplicateDetails{Existing: dup.Existing})
	case status == http.StatusNotFound:
		b.ErrorWithDetails(w, "not found", details)
	case status >= http.StatusInternalServerError:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, operation, nil)
		b.ErrorWithDetails(w, http.StatusText(status), details)
	default:
		b.ErrorWithDetails(w, err.Error(), details)
	}
}
