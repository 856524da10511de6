package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/version"
)

// Fixed principals used across the endpoint tests.
const (
	adminUUID = "00000000-0000-4000-8000-000000000001"
	ownerA    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	ownerB    = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	zoneUUID  = "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	cnUUID    = "dddddddd-dddd-4ddd-8ddd-dddddddddddd"
)

func testConfig(t *testing.T) *Config {
	return &Config{
		AdminUUID:  adminUUID,
		MacOUI:     "90:b8:d0",
		MTUDefault: 1500,
		Storage: StorageConfig{
			Path:          filepath.Join(t.TempDir(), "napi.db"),
			BusyTimeoutMS: 1000,
		},
	}
}

// newTestDaemon initializes a daemon on a throwaway store and serves its
// API over httptest.
//
// Return a function that can be used to clean up every associated state.
func newTestDaemon(t *testing.T) (*Daemon, *httptest.Server, func()) {
	daemon := newDaemon(testConfig(t))
	require.NoError(t, daemon.Init())

	server := httptest.NewServer(daemon.server.Handler)

	cleanup := func() {
		server.Close()
		require.NoError(t, daemon.Stop(context.Background()))
	}

	return daemon, server, cleanup
}

// doRequest performs one API call and returns the response together with
// its already-read body.
func doRequest(t *testing.T, method string, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		content, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(content)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, content
}

// doJSON performs one API call, requires the given status and decodes the
// body into out when asked for.
func doJSON(t *testing.T, method string, url string, body any, wantStatus int, out any) {
	t.Helper()

	resp, content := doRequest(t, method, url, body)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", content)

	if out != nil {
		require.NoError(t, json.Unmarshal(content, out), "body: %s", content)
	}
}

// requireErrorBody asserts the response carries the aggregated error
// envelope with the given status and top-level code.
func requireErrorBody(t *testing.T, resp *http.Response, content []byte, status int, code string) *api.Error {
	t.Helper()

	require.Equal(t, status, resp.StatusCode, "body: %s", content)

	apiErr := &api.Error{}
	require.NoError(t, json.Unmarshal(content, apiErr), "body: %s", content)
	require.Equal(t, code, apiErr.Code, "body: %s", content)

	return apiErr
}

// fieldCodes maps field name to per-field code for asserting aggregated
// validation errors.
func fieldCodes(apiErr *api.Error) map[string]string {
	codes := make(map[string]string, len(apiErr.Errors))
	for _, fe := range apiErr.Errors {
		codes[fe.Field] = fe.Code
	}

	return codes
}

// createTag creates a nic tag through the API.
func createTag(t *testing.T, baseURL string, name string) *api.NicTag {
	t.Helper()

	tag := &api.NicTag{}
	doJSON(t, http.MethodPost, baseURL+"/nic_tags", api.NicTagCreate{Name: name}, http.StatusOK, tag)

	return tag
}

// createNetwork builds a network on a nic tag of the same name, creating
// the tag first when it does not exist yet.
func createNetwork(t *testing.T, baseURL string, name string, subnet string, start string, end string, mutate func(*api.NetworkCreate)) *api.Network {
	t.Helper()

	params := api.NetworkCreate{
		Name:             name,
		NicTag:           name,
		Subnet:           subnet,
		ProvisionStartIP: start,
		ProvisionEndIP:   end,
	}

	if mutate != nil {
		mutate(&params)
	}

	resp, _ := doRequest(t, http.MethodGet, baseURL+"/nic_tags/"+params.NicTag, nil)
	if resp.StatusCode == http.StatusNotFound {
		createTag(t, baseURL, params.NicTag)
	}

	network := &api.Network{}
	doJSON(t, http.MethodPost, baseURL+"/networks", params, http.StatusOK, network)

	return network
}

// provisionNic provisions one nic on the network for ownerA / zoneUUID.
func provisionNic(t *testing.T, baseURL string, networkUUID string, mutate func(*api.NicCreate)) *api.Nic {
	t.Helper()

	params := api.NicCreate{
		OwnerUUID:     ownerA,
		BelongsToUUID: zoneUUID,
		BelongsToType: api.BelongsToTypeZone,
	}

	if mutate != nil {
		mutate(&params)
	}

	nic := &api.Nic{}
	doJSON(t, http.MethodPost, baseURL+"/networks/"+networkUUID+"/nics", params, http.StatusOK, nic)

	return nic
}

// tryProvision performs one provision call without asserting, so it is safe
// to use from test goroutines.
func tryProvision(baseURL string, path string, params api.NicCreate) (*api.Nic, error) {
	content, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+path, "application/json", bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	nic := &api.Nic{}
	err = json.Unmarshal(body, nic)
	if err != nil {
		return nil, err
	}

	return nic, nil
}

// The root path lists the API surface.
func TestIntegration_RootListing(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	var paths []string
	doJSON(t, http.MethodGet, server.URL+"/", nil, http.StatusOK, &paths)

	assert.Contains(t, paths, "/ping")
	assert.Contains(t, paths, "/networks")
	assert.Contains(t, paths, "/network_pools")
	assert.Contains(t, paths, "/search/ips")
}

// Ping reports a healthy store and the daemon version.
func TestIntegration_Ping(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	ping := api.Ping{}
	doJSON(t, http.MethodGet, server.URL+"/ping", nil, http.StatusOK, &ping)

	assert.True(t, ping.Healthy)
	assert.Equal(t, "ok", ping.Status)
	assert.Equal(t, "ok", ping.Services["storage"])
	assert.Equal(t, version.Version, ping.Version)
}

// Unknown paths return the JSON 404 envelope, not a bare body.
func TestIntegration_TopLevel404(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, content := doRequest(t, http.MethodGet, server.URL+"/does/not/exist", nil)
	requireErrorBody(t, resp, content, http.StatusNotFound, api.ErrCodeResourceNotFound)
}

// A known path with an unhandled method reports 501.
func TestIntegration_MethodNotImplemented(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, content := doRequest(t, http.MethodDelete, server.URL+"/networks", nil)
	require.Equal(t, http.StatusNotImplemented, resp.StatusCode, "body: %s", content)
}

// Malformed JSON bodies are refused before reaching the model layer.
func TestIntegration_MalformedBody(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, err := http.Post(server.URL+"/nic_tags", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	requireErrorBody(t, resp, content, http.StatusBadRequest, api.ErrCodeInvalidParameters)
}

// Configured initial networks are seeded on first start and not duplicated
// on later ones.
func TestIntegration_InitialNetworkSeeding(t *testing.T) {
	config := testConfig(t)
	config.InitialNetworks = []api.NetworkCreate{{
		Name:             "admin",
		NicTag:           "admin",
		Subnet:           "10.99.0.0/24",
		ProvisionStartIP: "10.99.0.10",
		ProvisionEndIP:   "10.99.0.250",
	}}

	daemon := newDaemon(config)
	require.NoError(t, daemon.Init())
	require.NoError(t, daemon.Stop(context.Background()))

	// Second start on the same store.
	daemon = newDaemon(config)
	require.NoError(t, daemon.Init())

	defer func() { require.NoError(t, daemon.Stop(context.Background())) }()

	server := httptest.NewServer(daemon.server.Handler)
	defer server.Close()

	var networks []api.Network
	doJSON(t, http.MethodGet, server.URL+"/networks", nil, http.StatusOK, &networks)
	require.Len(t, networks, 1)
	assert.Equal(t, "admin", networks[0].Name)
	assert.Equal(t, "admin", networks[0].NicTag)

	var tags []api.NicTag
	doJSON(t, http.MethodGet, server.URL+"/nic_tags", nil, http.StatusOK, &tags)
	assert.Len(t, tags, 1)
}
