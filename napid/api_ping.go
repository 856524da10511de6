package main

import (
	"net/http"
	"time"

	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/version"
)

var pingCmd = APIEndpoint{
	Name: "ping",
	Path: "ping",

	Get: APIEndpointAction{Handler: pingGet},
}

// pingGet reports daemon health. Storage trouble turns the summary to
// "error" but still answers 200; callers inspect the body.
func pingGet(d *Daemon, r *http.Request) response.Response {
	services := map[string]string{"storage": "ok"}

	err := d.db.Ping(r.Context())
	if err != nil {
		logger.Warn("Storage ping failed", logger.Ctx{"err": err})
		services["storage"] = "error"
	}

	healthy := services["storage"] == "ok"

	status := "ok"
	if !healthy {
		status = "error"
	}

	return response.SyncResponse(api.Ping{
		Healthy:  healthy,
		Status:   status,
		Services: services,
		Uptime:   int64(time.Since(d.startedAt).Seconds()),
		Version:  version.Version,
	})
}
