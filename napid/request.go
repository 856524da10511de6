package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/netfabric/napi/shared/api"
)

// decodeBody decodes a JSON request body into params. Unknown fields are
// rejected with the aggregated UnknownParameters error; an empty body is
// treated as no parameters so required-field validation reports the
// specifics.
func decodeBody(r *http.Request, params any) error {
	raw := map[string]any{}

	err := json.NewDecoder(r.Body).Decode(&raw)
	if err != nil && !errors.Is(err, io.EOF) {
		return api.NewError(http.StatusBadRequest, api.ErrCodeInvalidParameters, "Malformed request body: %v", err)
	}

	return decodeParams(raw, params)
}

// decodeQuery decodes URL query parameters into params. Repeated keys keep
// the last value.
func decodeQuery(r *http.Request, params any) error {
	query := r.URL.Query()

	raw := make(map[string]any, len(query))
	for key, values := range query {
		raw[key] = values[len(values)-1]
	}

	return decodeParams(raw, params)
}

func decodeParams(raw map[string]any, params any) error {
	var md mapstructure.Metadata

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           params,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return api.InternalError(err)
	}

	err = decoder.Decode(raw)
	if err != nil {
		return api.InvalidParamsError(decodeFieldErrors(err)...)
	}

	if len(md.Unused) > 0 {
		return api.UnknownFields(md.Unused...)
	}

	return nil
}

// decodeFieldErrors turns a mapstructure decode failure into per-field
// errors. mapstructure quotes the offending key in every message.
func decodeFieldErrors(err error) []api.FieldError {
	var merr *mapstructure.Error
	if !errors.As(err, &merr) {
		return []api.FieldError{api.InvalidField("body", "%v", err)}
	}

	fieldErrs := make([]api.FieldError, 0, len(merr.Errors))
	for _, msg := range merr.Errors {
		var field string

		_, rest, ok := strings.Cut(msg, "'")
		if ok {
			field, _, _ = strings.Cut(rest, "'")
		}

		fieldErrs = append(fieldErrs, api.FieldError{Field: field, Code: api.FieldCodeInvalid, Message: msg})
	}

	return fieldErrs
}
