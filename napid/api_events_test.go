package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netfabric/napi/shared/api"
)

// dialEvents opens a websocket on /events for the given type filter.
func dialEvents(t *testing.T, httpURL string, typeFilter string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(httpURL, "http") + "/events"
	if typeFilter != "" {
		url += "?type=" + typeFilter
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	// The listener registers just after the upgrade handshake; give the
	// handler goroutine a beat before triggering events.
	time.Sleep(50 * time.Millisecond)

	return conn
}

// readEvent reads one event off the socket with a deadline.
func readEvent(t *testing.T, conn *websocket.Conn) api.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	event := api.Event{}
	require.NoError(t, conn.ReadJSON(&event))

	return event
}

// Entity changes reach connected listeners with the entity as metadata.
func TestEventsStream(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	conn := dialEvents(t, server.URL, "")
	defer func() { _ = conn.Close() }()

	tag := createTag(t, server.URL, "feed")

	event := readEvent(t, conn)
	assert.Equal(t, api.EventTypeNicTag, event.Type)
	assert.Equal(t, api.EventActionCreate, event.Action)
	assert.Equal(t, "feed", event.ID)
	assert.NotZero(t, event.Timestamp)

	var payload api.NicTag
	require.NoError(t, json.Unmarshal(event.Metadata, &payload))
	assert.Equal(t, *tag, payload)
}

// The type filter drops everything else.
func TestEventsTypeFilter(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	createTag(t, server.URL, "quiet")

	conn := dialEvents(t, server.URL, api.EventTypeNicTag)
	defer func() { _ = conn.Close() }()

	// A network create is filtered out; the tag update is not.
	doJSON(t, http.MethodPost, server.URL+"/networks", api.NetworkCreate{
		Name:             "noisy",
		NicTag:           "quiet",
		Subnet:           "10.60.0.0/24",
		ProvisionStartIP: "10.60.0.10",
		ProvisionEndIP:   "10.60.0.250",
	}, http.StatusOK, nil)

	mtu := 9000
	doJSON(t, http.MethodPut, server.URL+"/nic_tags/quiet", api.NicTagUpdate{MTU: &mtu}, http.StatusOK, nil)

	event := readEvent(t, conn)
	assert.Equal(t, api.EventTypeNicTag, event.Type)
	assert.Equal(t, api.EventActionUpdate, event.Action)
	assert.Equal(t, "quiet", event.ID)
}

// An unknown type in the filter is refused before the upgrade.
func TestEventsBadTypeFilter(t *testing.T) {
	_, server, cleanup := newTestDaemon(t)
	defer cleanup()

	resp, content := doRequest(t, http.MethodGet, server.URL+"/events?type=bogus", nil)
	apiErr := requireErrorBody(t, resp, content, http.StatusUnprocessableEntity, api.ErrCodeInvalidParameters)
	assert.Equal(t, api.FieldCodeInvalid, fieldCodes(apiErr)["type"])
}
