package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netfabric/napi/napid/response"
)

var metricsCmd = APIEndpoint{
	Name: "metrics",
	Path: "metrics",

	Get: APIEndpointAction{Handler: metricsGet},
}

// metricsGet serves the prometheus text exposition.
func metricsGet(d *Daemon, r *http.Request) response.Response {
	return response.ManualResponse(func(w http.ResponseWriter) error {
		promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
		return nil
	})
}
