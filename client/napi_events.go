package napi

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/netfabric/napi/shared/api"
)

// GetEvents connects to the NAPI changefeed and returns an event listener
// receiving every entity lifecycle event.
func (r *ProtocolNAPI) GetEvents() (*EventListener, error) {
	return r.getEvents(nil)
}

// GetEventsOfType connects to the NAPI changefeed restricted to the given
// entity types. The daemon applies the filter before delivery.
func (r *ProtocolNAPI) GetEventsOfType(types []string) (*EventListener, error) {
	return r.getEvents(types)
}

func (r *ProtocolNAPI) getEvents(types []string) (*EventListener, error) {
	path := "/events"
	if len(types) > 0 {
		path = fmt.Sprintf("/events?type=%s", url.QueryEscape(strings.Join(types, ",")))
	}

	conn, err := r.websocket(path)
	if err != nil {
		return nil, err
	}

	listener := &EventListener{
		conn:     conn,
		chActive: make(chan bool),
	}

	// Spawn the dispatcher
	go func() {
		for {
			event := api.Event{}
			err := conn.ReadJSON(&event)
			if err != nil {
				listener.disconnect(err)
				return
			}

			if event.Type == "" {
				continue
			}

			// Send the event to all matching handlers
			listener.targetsLock.Lock()
			for _, target := range listener.targets {
				if target.types != nil && !slices.Contains(target.types, event.Type) {
					continue
				}

				go target.function(event)
			}

			listener.targetsLock.Unlock()
		}
	}()

	return listener, nil
}
