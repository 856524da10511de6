package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
)

var httpResponseErrors = map[int][]error{
	http.StatusNotFound:           {db.ErrNotFound, db.ErrBucketNotFound},
	http.StatusServiceUnavailable: {context.DeadlineExceeded},
}

// SmartError returns the right response based on err. A nil error renders
// as an empty 204, the usual shape of a completed delete.
func SmartError(err error) Response {
	if err == nil {
		return EmptyResponse()
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return &apiErrorResponse{err: apiErr}
	}

	statusCode, found := api.StatusErrorMatch(err)
	if found {
		return &errorResponse{statusCode, err}
	}

	// Storage errors normally surface as *api.Error from the models layer;
	// this keeps any that slip through mapped to sane statuses.
	for httpStatusCode, checkErrs := range httpResponseErrors {
		for _, checkErr := range checkErrs {
			if errors.Is(err, checkErr) {
				return &errorResponse{httpStatusCode, err}
			}
		}
	}

	return &errorResponse{http.StatusInternalServerError, err}
}
