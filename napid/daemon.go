package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/napid/events"
	"github.com/netfabric/napi/napid/metrics"
	"github.com/netfabric/napi/napid/models"
	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/macaddr"
)

// Default bound on a request context. Endpoints that stream set NoTimeout.
const requestTimeout = 30 * time.Second

// A Daemon holds the process-wide singletons and can respond to requests.
type Daemon struct {
	config *Config

	db       *db.Store
	events   *events.Server
	metrics  *metrics.Collector
	registry *prometheus.Registry
	state    *models.State

	server   *http.Server
	listener net.Listener

	startedAt time.Time
}

func newDaemon(config *Config) *Daemon {
	return &Daemon{
		config: config,
	}
}

// State returns the model state. Only valid after Init.
func (d *Daemon) State() *models.State {
	return d.state
}

// Init opens the store, brings the buckets to the current schema, rebuilds
// the subnet index and seeds any configured initial networks. The listener
// is not started here; callers serve d.server when ready.
func (d *Daemon) Init() error {
	logger.Info("Starting daemon", logger.Ctx{"storage": d.config.Storage.Path})

	d.startedAt = time.Now()
	d.events = events.NewServer()

	d.metrics = metrics.NewCollector()
	d.registry = prometheus.NewRegistry()
	err := d.registry.Register(d.metrics)
	if err != nil {
		return fmt.Errorf("Failed registering metrics collector: %w", err)
	}

	store, err := db.Open(d.config.Storage.Path, time.Duration(d.config.Storage.BusyTimeoutMS)*time.Millisecond)
	if err != nil {
		return fmt.Errorf("Failed opening bucket store: %w", err)
	}

	d.db = store

	macOUI, err := macOUIFromConfig(d.config)
	if err != nil {
		return err
	}

	d.state = &models.State{
		DB:      d.db,
		Subnets: models.NewSubnetIndex(),
		Events:  d.events,
		Metrics: d.metrics,

		AdminUUID:  d.config.AdminUUID,
		MacOUI:     macOUI,
		MTUDefault: d.config.MTUDefault,
	}

	ctx := context.Background()

	err = d.state.EnsureBuckets(ctx)
	if err != nil {
		return fmt.Errorf("Failed ensuring buckets: %w", err)
	}

	err = d.state.LoadSubnetIndex(ctx)
	if err != nil {
		return fmt.Errorf("Failed loading subnet index: %w", err)
	}

	err = d.seedInitialNetworks(ctx)
	if err != nil {
		return err
	}

	d.server = restServer(d)

	logger.Info("Daemon initialized")

	return nil
}

// ListenAndServe binds the configured port and serves until Stop. A zero
// port picks an ephemeral one.
func (d *Daemon) ListenAndServe() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", d.config.Port))
	if err != nil {
		return fmt.Errorf("Failed binding API listener: %w", err)
	}

	d.listener = listener
	logger.Info("Daemon listening", logger.Ctx{"address": listener.Addr().String()})

	err = d.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop drains the HTTP server and closes the store.
func (d *Daemon) Stop(ctx context.Context) error {
	logger.Info("Stopping daemon")

	if d.server != nil {
		err := d.server.Shutdown(ctx)
		if err != nil {
			logger.Warn("Failed draining HTTP server", logger.Ctx{"err": err})
		}
	}

	if d.db != nil {
		err := d.db.Close()
		if err != nil {
			return fmt.Errorf("Failed closing bucket store: %w", err)
		}
	}

	logger.Info("Daemon stopped")

	return nil
}

// seedInitialNetworks creates the configured networks that do not exist
// yet, creating their nic tags first when those are missing too.
func (d *Daemon) seedInitialNetworks(ctx context.Context) error {
	for _, params := range d.config.InitialNetworks {
		existing, _, err := d.state.ListNetworks(ctx, models.NetworkListParams{Name: params.Name})
		if err != nil {
			return fmt.Errorf("Failed checking initial network %q: %w", params.Name, err)
		}

		if len(existing) > 0 {
			logger.Debug("Initial network already exists", logger.Ctx{"network": params.Name})
			continue
		}

		if params.NicTag != "" {
			_, err := d.state.GetNicTag(ctx, params.NicTag)
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				_, err = d.state.CreateNicTag(ctx, api.NicTagCreate{Name: params.NicTag})
			}

			if err != nil {
				return fmt.Errorf("Failed ensuring nic tag %q for initial network %q: %w", params.NicTag, params.Name, err)
			}
		}

		network, err := d.state.CreateNetwork(ctx, params)
		if err != nil {
			return fmt.Errorf("Failed creating initial network %q: %w", params.Name, err)
		}

		logger.Info("Created initial network", logger.Ctx{"network": network.Name, "uuid": network.UUID, "subnet": network.Subnet})
	}

	return nil
}

func macOUIFromConfig(config *Config) (uint64, error) {
	oui, err := macaddr.ParseOUI(config.MacOUI)
	if err != nil {
		return 0, fmt.Errorf("Invalid mac_oui %q: %w", config.MacOUI, err)
	}

	return oui, nil
}

// APIEndpoint represents a URL in the API.
type APIEndpoint struct {
	Name string // Name for this endpoint.
	Path string // Path pattern for this endpoint.

	Get    APIEndpointAction
	Put    APIEndpointAction
	Post   APIEndpointAction
	Delete APIEndpointAction
}

// APIEndpointAction represents an action on an API endpoint.
type APIEndpointAction struct {
	Handler func(d *Daemon, r *http.Request) response.Response

	// NoTimeout exempts the request from the default context deadline;
	// used by endpoints that hold the connection open.
	NoTimeout bool
}

func (d *Daemon) createCmd(restAPI *mux.Router, c APIEndpoint) {
	uri := "/" + c.Path

	route := restAPI.HandleFunc(uri, func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		logger.Debug("Handling API request", logger.Ctx{"method": r.Method, "url": r.URL.RequestURI(), "remote": r.RemoteAddr})

		var action APIEndpointAction
		switch r.Method {
		case "GET":
			action = c.Get
		case "PUT":
			action = c.Put
		case "POST":
			action = c.Post
		case "DELETE":
			action = c.Delete
		}

		var resp response.Response
		if action.Handler == nil {
			resp = response.NotImplemented(fmt.Errorf("Method %q not implemented for %q", r.Method, uri))
		} else {
			if !action.NoTimeout {
				ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
				defer cancel()

				r = r.WithContext(ctx)
			}

			resp = action.Handler(d, r)
		}

		rec := &statusRecorder{ResponseWriter: w}
		err := resp.Render(rec, r)
		if err != nil {
			writeErr := response.InternalError(err).Render(rec, r)
			if writeErr != nil {
				logger.Error("Failed writing error for HTTP response", logger.Ctx{"url": uri, "err": err, "writeErr": writeErr})
			}
		}

		if d.metrics != nil {
			d.metrics.ObserveRequest(c.Name, r.Method, rec.status(), time.Since(started).Seconds())
		}
	})

	if c.Name != "" {
		route.Name(c.Name)
	}
}

// statusRecorder captures the status code written to a ResponseWriter so
// completed requests can be labelled by it.
type statusRecorder struct {
	http.ResponseWriter

	wroteStatus int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteStatus == 0 {
		sr.wroteStatus = code
	}

	sr.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the recorder transparent for websocket upgrades.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("Underlying ResponseWriter does not support hijacking")
	}

	return hijacker.Hijack()
}

func (sr *statusRecorder) status() int {
	if sr.wroteStatus == 0 {
		return http.StatusOK
	}

	return sr.wroteStatus
}
