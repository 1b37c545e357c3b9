package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/storage"
)

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

// errBadRequest marks bodies that are not valid JSON for the endpoint.
var errBadRequest = errors.New("malformed request body")

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Encode response failed", applog.FieldError, err)
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoActiveCycle), errors.Is(err, core.ErrNoPendingCheckin):
		return http.StatusNotFound
	case errors.As(err, &verrs),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidDateFormat),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidOverrideKey),
		errors.Is(err, core.ErrInvalidDay),
		errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrFutureDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Error = "validation failed"
		for _, fe := range verrs {
			resp.Fields = append(resp.Fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}

	logger := s.logFor(r)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldOperation, op, applog.FieldError, err)
		resp.Error = "internal error"
	} else {
		logger.InfoContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	}
	writeJSON(r.Context(), w, status, resp)
}

// decode reads a JSON body into dst and runs its validate tags. An empty
// body decodes as {}.
func (s *Server) decode(r *http.Request, w http.ResponseWriter, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		// Date fields report their own format error.
		if errors.Is(err, core.ErrInvalidDateFormat) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadRequest)
	}
	return s.validate.Struct(dst)
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
