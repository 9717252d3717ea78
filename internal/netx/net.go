// Package netx holds the JSON response helpers shared by HTTP handlers.
package netx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/berniemackie97/skillbound-sub002/internal/common"
	"github.com/berniemackie97/skillbound-sub002/internal/objectstore"
)

// RespondJSON writes data as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RespondError writes err with the given status code.
func RespondError(w http.ResponseWriter, status int, err error) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
	})
}

// RespondErrorString writes message with the given status code.
func RespondErrorString(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, objectstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorInvalidInput),
		errors.Is(err, common.ErrUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnsupportedArchiveVersion),
		errors.Is(err, common.ErrMalformedArchive),
		errors.Is(err, common.ErrChecksumMismatch),
		errors.Is(err, common.ErrProviderMismatch),
		errors.Is(err, objectstore.ErrCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrorArchiveConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, objectstore.ErrURLUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err with the status StatusFor picks. Internal errors are
// reported without their detail.
func Fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		err = common.ErrorInternal
	}
	RespondError(w, status, err)
}

// DecodeJSON reads a JSON body into v. An empty body leaves v untouched.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(common.ErrorInvalidInput, err)
	}
	return nil
}
