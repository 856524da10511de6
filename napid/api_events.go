package main

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/netfabric/napi/napid/events"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
)

var eventTypes = []string{
	api.EventTypeNicTag,
	api.EventTypeNetwork,
	api.EventTypeNetworkPool,
	api.EventTypeNic,
	api.EventTypeIP,
	api.EventTypeAggregation,
}

var eventsCmd = APIEndpoint{
	Name: "events",
	Path: "events",

	Get: APIEndpointAction{Handler: eventsGet, NoTimeout: true},
}

var eventsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type eventsParams struct {
	Type string `mapstructure:"type"`
}

type eventsServe struct {
	d     *Daemon
	types []string
}

// Render starts the event socket.
func (r *eventsServe) Render(w http.ResponseWriter, req *http.Request) error {
	return eventsSocket(r.d, req, w, r.types)
}

func (r *eventsServe) String() string {
	return "event handler"
}

func eventsGet(d *Daemon, r *http.Request) response.Response {
	var params eventsParams

	err := decodeQuery(r, &params)
	if err != nil {
		return response.SmartError(err)
	}

	// User requested types; empty means everything.
	var types []string
	if params.Type != "" {
		types = strings.Split(params.Type, ",")
		for _, entry := range types {
			if !slices.Contains(eventTypes, entry) {
				return response.SmartError(api.InvalidParamsError(api.InvalidField("type", "%q is not a known event type", entry)))
			}
		}
	}

	return &eventsServe{d: d, types: types}
}

func eventsSocket(d *Daemon, r *http.Request, w http.ResponseWriter, types []string) error {
	l := logger.AddContext(logger.Ctx{"remote": r.RemoteAddr})

	// Upgrade the connection to websocket as late as possible: the client
	// assumes it is getting events as soon as the upgrade completes.
	conn, err := eventsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn("Failed upgrading event connection", logger.Ctx{"err": err})
		return nil
	}

	defer func() { _ = conn.Close() }() // Ensure listener below ends when this function ends.

	listenerConnection := events.NewWebsocketListenerConnection(conn)

	listener, err := d.events.AddListener(listenerConnection, types)
	if err != nil {
		l.Warn("Failed to add event listener", logger.Ctx{"err": err})
		return nil
	}

	l.Debug("Event listener connected", logger.Ctx{"listener": listener.ID()})
	listener.Wait(r.Context())
	l.Debug("Event listener disconnected", logger.Ctx{"listener": listener.ID()})

	return nil
}
