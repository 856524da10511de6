package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// Top-level error codes surfaced in the response body.
const (
	ErrCodeInvalidParameters = "InvalidParameters"
	ErrCodeResourceNotFound  = "ResourceNotFound"
	ErrCodeNotAuthorized     = "NotAuthorized"
	ErrCodeInUse             = "InUse"
	ErrCodeSubnetFull        = "SubnetFull"
	ErrCodePoolFull          = "PoolFull"
	ErrCodeTransient         = "TransientRetryable"
	ErrCodeInternal          = "InternalError"
)

// Per-item codes used inside the errors list.
const (
	FieldCodeInvalid   = "InvalidParameter"
	FieldCodeMissing   = "MissingParameter"
	FieldCodeDuplicate = "Duplicate"
	FieldCodeUsedBy    = "UsedBy"
	FieldCodeUnknown   = "UnknownParameters"
)

// FieldError describes one offending parameter of a request, or, for InUse
// errors, one entity holding a reference to the one being deleted.
type FieldError struct {
	Field   string   `json:"field,omitempty"`
	Type    string   `json:"type,omitempty"`
	ID      string   `json:"id,omitempty"`
	Code    string   `json:"code"`
	Message string   `json:"message,omitempty"`
	Invalid []string `json:"invalid,omitempty"`
}

// Error is the JSON error body returned by every NAPI endpoint. All field
// violations of a request are aggregated into a single Error.
type Error struct {
	status int

	Code    string       `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}

	msg := e.Message
	for _, fe := range e.Errors {
		name := fe.Field
		if name == "" {
			name = fe.ID
		}

		msg += fmt.Sprintf("; %s: %s", name, fe.Message)
	}

	return msg
}

// Status returns the HTTP status code the error maps to.
func (e *Error) Status() int {
	return e.status
}

// SetStatus records the HTTP status an envelope arrived with. Only the wire
// fields survive JSON decoding, so clients restore the status from the
// response they read the body of.
func (e *Error) SetStatus(status int) {
	e.status = status
}

// NewError builds an Error with an explicit status and code.
func NewError(status int, code string, format string, a ...any) *Error {
	return &Error{status: status, Code: code, Message: fmt.Sprintf(format, a...)}
}

// InvalidParamsError aggregates field violations into the canonical 422
// body. The field list is sorted by field name so responses are stable.
func InvalidParamsError(fieldErrors ...FieldError) *Error {
	sort.SliceStable(fieldErrors, func(i, j int) bool {
		return fieldErrors[i].Field < fieldErrors[j].Field
	})

	return &Error{
		status:  http.StatusUnprocessableEntity,
		Code:    ErrCodeInvalidParameters,
		Message: "Invalid parameters",
		Errors:  fieldErrors,
	}
}

// InvalidField builds the FieldError for a malformed parameter.
func InvalidField(field string, format string, a ...any) FieldError {
	return FieldError{Field: field, Code: FieldCodeInvalid, Message: fmt.Sprintf(format, a...)}
}

// MissingField builds the FieldError for a required parameter that was not
// supplied.
func MissingField(field string) FieldError {
	return FieldError{Field: field, Code: FieldCodeMissing, Message: "Missing parameter"}
}

// DuplicateField builds the FieldError for a uniqueness violation.
func DuplicateField(field string, format string, a ...any) FieldError {
	return FieldError{Field: field, Code: FieldCodeDuplicate, Message: fmt.Sprintf(format, a...)}
}

// UnknownFields builds the aggregated 422 for parameters outside the
// endpoint's accepted set.
func UnknownFields(names ...string) *Error {
	sort.Strings(names)

	fe := make([]FieldError, 0, len(names))
	for _, name := range names {
		fe = append(fe, FieldError{Field: name, Code: FieldCodeUnknown, Message: "Unknown parameter"})
	}

	err := InvalidParamsError(fe...)
	err.Message = "Unknown parameters"
	return err
}

// NotFoundError is the 404 body for a missing entity.
func NotFoundError(format string, a ...any) *Error {
	return NewError(http.StatusNotFound, ErrCodeResourceNotFound, format, a...)
}

// NotAuthorizedError is the 403 body for an owner predicate failure.
func NotAuthorizedError() *Error {
	return NewError(http.StatusForbidden, ErrCodeNotAuthorized, "Not authorized for this resource")
}

// InUseError refuses a deletion because other entities still reference the
// target. Each item names a referencing entity.
func InUseError(message string, items ...FieldError) *Error {
	for i := range items {
		items[i].Code = FieldCodeUsedBy
	}

	return &Error{
		status:  http.StatusUnprocessableEntity,
		Code:    ErrCodeInUse,
		Message: message,
		Errors:  items,
	}
}

// SubnetFullError reports allocator exhaustion on a single network.
func SubnetFullError() *Error {
	return NewError(http.StatusInsufficientStorage, ErrCodeSubnetFull, "No more free IPs")
}

// PoolFullError reports allocator exhaustion across every eligible network
// of a pool.
func PoolFullError(poolUUID string) *Error {
	return NewError(http.StatusUnprocessableEntity, ErrCodePoolFull, "all networks in pool %s are full", poolUUID)
}

// TransientError wraps a storage failure that survived the retry budget.
func TransientError(err error) *Error {
	return NewError(http.StatusServiceUnavailable, ErrCodeTransient, "temporary storage failure: %v", err)
}

// InternalError wraps an unexpected failure.
func InternalError(err error) *Error {
	return NewError(http.StatusInternalServerError, ErrCodeInternal, "%v", err)
}

// IsErrorCode reports whether err is an *Error carrying the given code.
func IsErrorCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
