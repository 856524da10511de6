package napi

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/netfabric/napi/shared/api"
)

// The EventListener struct is used to interact with a NAPI event stream.
type EventListener struct {
	conn *websocket.Conn

	chActive     chan bool
	activeLock   sync.Mutex
	disconnected bool
	err          error

	targets     []*EventTarget
	targetsLock sync.Mutex
}

// The EventTarget struct is returned to the caller of AddHandler and used
// in RemoveHandler.
type EventTarget struct {
	function func(api.Event)
	types    []string
}

// AddHandler adds a function to be called whenever an event is received.
// A nil types list matches every event; otherwise only events of the
// listed types are delivered to the handler.
func (e *EventListener) AddHandler(types []string, function func(api.Event)) (*EventTarget, error) {
	if function == nil {
		return nil, fmt.Errorf("A valid function must be provided")
	}

	target := EventTarget{
		function: function,
		types:    types,
	}

	e.targetsLock.Lock()
	defer e.targetsLock.Unlock()

	e.targets = append(e.targets, &target)

	return &target, nil
}

// RemoveHandler removes a function to be called whenever an event is received.
func (e *EventListener) RemoveHandler(target *EventTarget) error {
	if target == nil {
		return fmt.Errorf("A valid event target must be provided")
	}

	e.targetsLock.Lock()
	defer e.targetsLock.Unlock()

	for i, entry := range e.targets {
		if entry == target {
			copy(e.targets[i:], e.targets[i+1:])
			e.targets[len(e.targets)-1] = nil
			e.targets = e.targets[:len(e.targets)-1]
			return nil
		}
	}

	return fmt.Errorf("Couldn't find this function and event types combination")
}

// Disconnect must be used once done listening for events.
func (e *EventListener) Disconnect() {
	e.disconnect(nil)
}

// disconnect tears the listener down. Closing the connection makes the
// dispatcher goroutine fail its read and call back in here, which is a
// no-op the second time.
func (e *EventListener) disconnect(err error) {
	e.activeLock.Lock()
	defer e.activeLock.Unlock()

	if e.disconnected {
		return
	}

	e.err = err
	e.disconnected = true
	close(e.chActive)
	_ = e.conn.Close()
}

// Wait hangs until the server disconnects the connection or Disconnect()
// is called.
func (e *EventListener) Wait() error {
	<-e.chActive
	return e.err
}

// IsActive returns true if this listener is still connected, false otherwise.
func (e *EventListener) IsActive() bool {
	select {
	case <-e.chActive:
		return false // If the chActive channel is closed we got disconnected
	default:
		return true
	}
}
