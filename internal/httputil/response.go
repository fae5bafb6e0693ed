package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
)

// Error codes carried in the error envelope
const (
	ErrCodeBadRequest        = "BAD_REQUEST"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeCascadeIncomplete = "CASCADE_INCOMPLETE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// RetryAfterSeconds is advertised when a cascade is left for the worker.
const RetryAfterSeconds = "30"

// ErrorResponse is the standard error envelope:
// {"error": {"code": "ERROR_CODE", "message": "Human readable message"}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.WithError(err).Warn("[httputil] Failed to encode response")
		}
	}
}

func WriteError(w http.ResponseWriter, status int, code string, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func WriteUnauthorizedWithCode(w http.ResponseWriter, code string, message string) {
	WriteError(w, http.StatusUnauthorized, code, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// StatusFor maps a service error kind to its HTTP status and error code.
// Conflicts share 400 with validation failures.
func StatusFor(kind model.Kind) (int, string) {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest, ErrCodeValidation
	case model.KindConflict:
		return http.StatusBadRequest, ErrCodeConflict
	case model.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case model.KindUnauthorized:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case model.KindForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case model.KindCascadeIncomplete:
		return http.StatusInternalServerError, ErrCodeCascadeIncomplete
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// WriteServiceError writes err using its kind. Unexpected errors are logged
// with op and answered with an opaque message.
func WriteServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := model.KindOf(err)
	status, code := StatusFor(kind)

	switch kind {
	case model.KindCascadeIncomplete:
		log.WithError(err).WithField("path", r.URL.Path).Errorf("[%s] Cascade incomplete", op)
		w.Header().Set("Retry-After", RetryAfterSeconds)
		WriteError(w, status, code, messageOr(err, "cleanup did not finish; retry later"))
		return
	case model.KindUnexpected, model.KindPartialSuccess:
		log.WithError(err).WithField("path", r.URL.Path).Errorf("[%s] Unexpected error", op)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
		return
	}

	WriteError(w, status, code, messageOr(err, strings.ToLower(string(kind))))
}

func messageOr(err error, fallback string) string {
	if msg := model.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

// SetWarning attaches a 199 warning for a partial success. It must be
// called before the status is written.
func SetWarning(w http.ResponseWriter, err error) {
	if !model.IsPartialSuccess(err) {
		return
	}
	w.Header().Set("Warning", fmt.Sprintf("199 - %q", messageOr(err, "partial success")))
}

// WriteResult writes data with status when err is nil or a partial success
// (adding the Warning header), and falls back to WriteServiceError
// otherwise.
func WriteResult(w http.ResponseWriter, r *http.Request, op string, status int, data interface{}, err error) {
	if err != nil && !model.IsPartialSuccess(err) {
		WriteServiceError(w, r, op, err)
		return
	}
	if err != nil {
		log.WithError(err).WithField("path", r.URL.Path).Warnf("[%s] Partial success", op)
		SetWarning(w, err)
	}
	WriteJSON(w, status, data)
}
