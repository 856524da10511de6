// Package response renders REST responses: plain JSON entity bodies on
// success, the aggregated NAPI error envelope on failure.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/netfabric/napi/shared/api"
)

// Response represents an API response.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
	String() string
}

// Sync response.
type syncResponse struct {
	metadata any
	code     int
	headers  map[string]string
}

// SyncResponse returns a 200 response whose body is the JSON encoding of
// metadata.
func SyncResponse(metadata any) Response {
	return &syncResponse{metadata: metadata}
}

// SyncResponseHeaders returns a 200 response with extra response headers.
func SyncResponseHeaders(metadata any, headers map[string]string) Response {
	return &syncResponse{metadata: metadata, headers: headers}
}

// EmptyResponse returns a bodyless 204 response.
func EmptyResponse() Response {
	return &syncResponse{code: http.StatusNoContent}
}

// Render renders a synchronous response.
func (r *syncResponse) Render(w http.ResponseWriter, req *http.Request) error {
	for h, v := range r.headers {
		w.Header().Set(h, v)
	}

	code := r.code
	if code == 0 {
		code = http.StatusOK
	}

	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	return json.NewEncoder(w).Encode(r.metadata)
}

func (r *syncResponse) String() string {
	return "success"
}

// Error response. The body is an api.Error envelope even for failures
// raised by the HTTP layer itself, so clients only ever parse one shape.
type errorResponse struct {
	code int
	err  error
}

// errorCodeForStatus maps router-level statuses onto the envelope codes.
func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return api.ErrCodeInvalidParameters
	case http.StatusNotFound:
		return api.ErrCodeResourceNotFound
	case http.StatusForbidden:
		return api.ErrCodeNotAuthorized
	case http.StatusServiceUnavailable:
		return api.ErrCodeTransient
	default:
		return api.ErrCodeInternal
	}
}

// BadRequest returns a bad request response (400) with the given error.
func BadRequest(err error) Response {
	return &errorResponse{code: http.StatusBadRequest, err: err}
}

// Forbidden returns a forbidden response (403) with the given error.
func Forbidden(err error) Response {
	return &errorResponse{code: http.StatusForbidden, err: err}
}

// InternalError returns an internal error response (500) with the given error.
func InternalError(err error) Response {
	return &errorResponse{code: http.StatusInternalServerError, err: err}
}

// NotFound returns a not found response (404) with the given error.
func NotFound(err error) Response {
	return &errorResponse{code: http.StatusNotFound, err: err}
}

// NotImplemented returns a not implemented response (501) with the given error.
func NotImplemented(err error) Response {
	return &errorResponse{code: http.StatusNotImplemented, err: err}
}

// Unavailable returns an unavailable response (503) with the given error.
func Unavailable(err error) Response {
	return &errorResponse{code: http.StatusServiceUnavailable, err: err}
}

func (r *errorResponse) String() string {
	if r.err != nil {
		return r.err.Error()
	}

	return http.StatusText(r.code)
}

// Render renders a response that indicates an error on the request handling.
func (r *errorResponse) Render(w http.ResponseWriter, req *http.Request) error {
	resp := &api.Error{
		Code:    errorCodeForStatus(r.code),
		Message: r.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(r.code)

	return json.NewEncoder(w).Encode(resp)
}

// API error response, carrying the full envelope with its field errors.
type apiErrorResponse struct {
	err *api.Error
}

func (r *apiErrorResponse) String() string {
	return r.err.Error()
}

// Render renders the envelope at the status the error maps to.
func (r *apiErrorResponse) Render(w http.ResponseWriter, req *http.Request) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(r.err.Status())

	return json.NewEncoder(w).Encode(r.err)
}

type manualResponse struct {
	hook func(w http.ResponseWriter) error
}

// ManualResponse creates a new manual response responder. The hook owns the
// ResponseWriter; used for handlers that hijack the connection or stream.
func ManualResponse(hook func(w http.ResponseWriter) error) Response {
	return &manualResponse{hook: hook}
}

// Render renders a manual response.
func (r *manualResponse) Render(w http.ResponseWriter, req *http.Request) error {
	return r.hook(w)
}

func (r *manualResponse) String() string {
	return "unknown"
}
