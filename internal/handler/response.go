package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/oops"

	"byd90-backend/internal/middleware"
	"byd90-backend/internal/model"
	"byd90-backend/pkg/apierror"
)

const maxBodyBytes = 1 << 20

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeSuccess(w, status, model.MessageResponse{Message: message})
}

// writeError maps domain errors to status codes. Anything unclassified is
// logged with its context and answered with a 500 that names only the path.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    apierror.CodeInternal,
		Message: "Internal server error",
		Details: "unexpected error while handling " + r.URL.Path,
	}

	var apiErr *apierror.APIError
	var validationErr *model.ValidationError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	case errors.As(err, &validationErr):
		status = http.StatusUnprocessableEntity
		body.Code = apierror.CodeValidation
		body.Message = validationErr.Message
		body.Details = validationErr.Field
	case errors.Is(err, model.ErrDuplicateEmail):
		status = http.StatusBadRequest
		body.Code = "EMAIL_TAKEN"
		body.Message = "User with this email already exists"
		body.Details = ""
	case errors.Is(err, model.ErrDuplicateUsername):
		status = http.StatusBadRequest
		body.Code = "USERNAME_TAKEN"
		body.Message = "Username already taken"
		body.Details = ""
	case errors.Is(err, model.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "Incorrect email or password"
		body.Details = ""
	case errors.Is(err, model.ErrInactiveAccount):
		status = http.StatusBadRequest
		body.Code = "INACTIVE_ACCOUNT"
		body.Message = "Inactive user account"
		body.Details = ""
	case errors.Is(err, model.ErrInvalidToken), errors.Is(err, model.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Message = "Could not validate credentials"
		body.Details = ""
	case errors.Is(err, model.ErrForbidden):
		status = http.StatusForbidden
		body.Code = apierror.CodeForbidden
		body.Message = "Not enough permissions"
		body.Details = ""
	case errors.Is(err, model.ErrUserNotFound):
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Message = "User not found"
		body.Details = ""
	default:
		logUnhandled(r, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func logUnhandled(r *http.Request, err error) {
	attrs := []any{
		"request_id", middleware.RequestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error(), "code", oopsErr.Code())
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	} else {
		attrs = append(attrs, "error", err.Error())
	}
	slog.ErrorContext(r.Context(), "unhandled error", attrs...)
}

// decodeJSON reads a single JSON object, rejecting unknown fields when strict is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("request body is required", "")
		}
		return apierror.New(apierror.CodeValidation, "invalid JSON body", decodeErrorDetail(err), http.StatusUnprocessableEntity)
	}
	if decoder.More() {
		return apierror.New(apierror.CodeValidation, "invalid JSON body", "unexpected data after JSON object", http.StatusUnprocessableEntity)
	}
	return nil
}

// decodeErrorDetail describes a decoding failure in terms of the request
// payload only, never the Go types it was decoded into.
func decodeErrorDetail(err error) string {
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return "request body has the wrong shape"
		}
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return "request body is too large"
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return "unknown field " + strings.TrimPrefix(err.Error(), "json: unknown field ")
	default:
		return "malformed JSON"
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid "+name, chi.URLParam(r, name))
	}
	return id, nil
}
