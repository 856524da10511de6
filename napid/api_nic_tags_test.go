package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
)

func TestNicTagsCRUD(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	tag := createTag(t, server.URL, "external")
	require.NotEmpty(t, tag.UUID)
	assert.Equal(t, 1500, tag.MTU)

	got := api.NicTag{}
	doJSON(t, http.MethodGet, server.URL+"/nic_tags/external", nil, http.StatusOK, &got)
	assert.Equal(t, *tag, got)

	mtu := 9000
	updated := api.NicTag{}
	doJSON(t, http.MethodPut, server.URL+"/nic_tags/external", api.NicTagUpdate{MTU: &mtu}, http.StatusOK, &updated)
	assert.Equal(t, 9000, updated.MTU)

	// Rename keeps the uuid.
	name := "uplink"
	doJSON(t, http.MethodPut, server.URL+"/nic_tags/external", api.NicTagUpdate{Name: &name}, http.StatusOK, &updated)
	assert.Equal(t, "uplink", updated.Name)
	assert.Equal(t, tag.UUID, updated.UUID)

	resp, content := doRequest(t, http.MethodGet, server.URL+"/nic_tags/external", nil)
	requireErrorBody(t, resp, content, http.StatusNotFound, api.ErrCodeResourceNotFound)

	doJSON(t, http.MethodDelete, server.URL+"/nic_tags/uplink", nil, http.StatusNoContent, nil)

	resp, content = doRequest(t, http.MethodDelete, server.URL+"/nic_tags/uplink", nil)
	requireErrorBody(t, resp, content, http.StatusNotFound, api.ErrCodeResourceNotFound)
}

// Duplicate names are refused with the field-level code.
func TestNicTagsDuplicateName(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	createTag(t, server.URL, "dup")

	resp, content := doRequest(t, http.MethodPost, server.URL+"/nic_tags", api.NicTagCreate{Name: "dup"})
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeDuplicate, fieldCodes(apiErr)["name"])
}

// Listing pages with limit/offset, reports the total, and refuses unknown
// parameters.
func TestNicTagsListParams(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		createTag(t, server.URL, name)
	}

	resp, content := doRequest(t, http.MethodGet, server.URL+"/nic_tags?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", content)
	assert.Equal(t, "3", resp.Header.Get("X-Total-Count"))

	var tags []api.NicTag
	require.NoError(t, json.Unmarshal(content, &tags))
	require.Len(t, tags, 2)
	assert.Equal(t, "alpha", tags[0].Name)

	doJSON(t, http.MethodGet, server.URL+"/nic_tags?limit=2&offset=2", nil, http.StatusOK, &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, "gamma", tags[0].Name)

	// Name filter.
	doJSON(t, http.MethodGet, server.URL+"/nic_tags?name=beta", nil, http.StatusOK, &tags)
	require.Len(t, tags, 1)
	assert.Equal(t, "beta", tags[0].Name)

	resp, content = doRequest(t, http.MethodGet, server.URL+"/nic_tags?limit=0", nil)
	requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)

	resp, content = doRequest(t, http.MethodGet, server.URL+"/nic_tags?offset=-1", nil)
	requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)

	resp, content = doRequest(t, http.MethodGet, server.URL+"/nic_tags?bogus=1", nil)
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeUnknown, fieldCodes(apiErr)["bogus"])
}

// A tag referenced by a network can be neither renamed nor deleted.
func TestNicTagsInUse(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	network := createNetwork(t, server.URL, "anchored", "10.10.0.0/24", "10.10.0.10", "10.10.0.250", nil)

	resp, content := doRequest(t, http.MethodDelete, server.URL+"/nic_tags/anchored", nil)
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInUse)
	require.Len(t, apiErr.Errors, 1)
	assert.Equal(t, "network", apiErr.Errors[0].Type)
	assert.Equal(t, network.UUID, apiErr.Errors[0].ID)

	name := "adrift"
	resp, content = doRequest(t, http.MethodPut, server.URL+"/nic_tags/anchored", api.NicTagUpdate{Name: &name})
	requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInUse)

	// An mtu below the referencing network's is refused too.
	mtu := 1280
	resp, content = doRequest(t, http.MethodPut, server.URL+"/nic_tags/anchored", api.NicTagUpdate{MTU: &mtu})
	apiErr = requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeInvalid, fieldCodes(apiErr)["mtu"])
}
