package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/netfabric/napi/napid/response"
	"github.com/netfabric/napi/shared/logger"
)

var apiEndpoints = []APIEndpoint{
	pingCmd,
	nicTagsCmd,
	nicTagCmd,
	networksCmd,
	networkCmd,
	networkIPsCmd,
	networkIPCmd,
	networkNicsCmd,
	networkPoolsCmd,
	networkPoolCmd,
	networkPoolNicsCmd,
	nicsCmd,
	nicCmd,
	aggregationsCmd,
	aggregationCmd,
	searchIPsCmd,
	eventsCmd,
	metricsCmd,
}

func restServer(d *Daemon) *http.Server {
	restAPI := mux.NewRouter()
	restAPI.StrictSlash(false) // Don't redirect to URL with trailing slash.
	restAPI.SkipClean(true)
	restAPI.UseEncodedPath() // Allow encoded values in path segments.

	restAPI.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = response.SyncResponse([]string{
			"/ping",
			"/nic_tags",
			"/networks",
			"/network_pools",
			"/nics",
			"/aggregations",
			"/search/ips",
			"/events",
			"/metrics",
		}).Render(w, r)
	})

	for _, c := range apiEndpoints {
		d.createCmd(restAPI, c)
	}

	restAPI.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("Sending top level 404", logger.Ctx{"url": r.URL, "method": r.Method, "remote": r.RemoteAddr})
		_ = response.NotFound(nil).Render(w, r)
	})

	return &http.Server{
		Handler: restAPI,
	}
}
