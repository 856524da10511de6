// Package events streams entity lifecycle events to connected listeners
// over websockets.
package events

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/netfabric/napi/shared/api"
)

// Server represents an instance of an event server.
type Server struct {
	lock      sync.Mutex
	listeners map[string]*Listener
}

// NewServer returns a new event server.
func NewServer() *Server {
	return &Server{
		listeners: map[string]*Listener{},
	}
}

// AddListener creates and returns a new event listener. messageTypes
// restricts delivery to the named event types; an empty list subscribes to
// everything.
func (s *Server) AddListener(connection EventListenerConnection, messageTypes []string) (*Listener, error) {
	ctx, cancel := context.WithCancel(context.Background())

	listener := &Listener{
		EventListenerConnection: connection,

		messageTypes: messageTypes,
		id:           uuid.New().String(),
		ctx:          ctx,
		ctxCancel:    cancel,
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.listeners[listener.id] != nil {
		return nil, fmt.Errorf("A listener with ID %q already exists", listener.id)
	}

	s.listeners[listener.id] = listener

	go listener.start()

	return listener, nil
}

// Publish broadcasts an event to every matching listener. It never blocks
// the caller: each delivery runs on its own goroutine and listeners that
// fail their write are dropped.
func (s *Server) Publish(event api.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, listener := range s.listeners {
		if len(listener.messageTypes) > 0 && !slices.Contains(listener.messageTypes, event.Type) {
			continue
		}

		go func(listener *Listener) {
			if listener.IsClosed() {
				s.lock.Lock()
				delete(s.listeners, listener.id)
				s.lock.Unlock()
				return
			}

			err := listener.WriteJSON(event)
			if err != nil {
				s.lock.Lock()
				delete(s.listeners, listener.id)
				s.lock.Unlock()

				listener.Close()
			}
		}(listener)
	}
}

// Listener describes an event listener.
type Listener struct {
	EventListenerConnection

	messageTypes []string
	id           string

	ctx       context.Context
	ctxCancel context.CancelFunc
	closeOnce sync.Once
}

// start runs the connection reader until the client goes away, then marks
// the listener closed.
func (l *Listener) start() {
	l.Reader(l.ctx)
	l.Close()
}

// ID returns the listener ID.
func (l *Listener) ID() string {
	return l.id
}

// Wait blocks until the listener is closed or ctx is cancelled.
func (l *Listener) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-l.ctx.Done():
	}
}

// IsClosed returns true if the listener is closed.
func (l *Listener) IsClosed() bool {
	return l.ctx.Err() != nil
}

// Close closes the listener connection.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		_ = l.EventListenerConnection.Close()
		l.ctxCancel()
	})
}
