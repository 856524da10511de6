package napi

import (
	"fmt"

	"github.com/netfabric/napi/shared/api"
)

// Ping fetches the daemon health summary.
func (r *ProtocolNAPI) Ping() (*api.Ping, error) {
	ping := api.Ping{}

	err := r.queryStruct("GET", "/ping", nil, nil, &ping)
	if err != nil {
		return nil, err
	}

	return &ping, nil
}

// GetAPIEndpoints lists the daemon's top level API paths.
func (r *ProtocolNAPI) GetAPIEndpoints() ([]string, error) {
	endpoints := []string{}

	err := r.queryStruct("GET", "/", nil, nil, &endpoints)
	if err != nil {
		return nil, err
	}

	return endpoints, nil
}

// GetMetrics fetches the prometheus text exposition.
func (r *ProtocolNAPI) GetMetrics() (string, error) {
	body, _, err := r.rawQuery("GET", fmt.Sprintf("%s/metrics", r.httpHost), nil)
	if err != nil {
		return "", err
	}

	return string(body), nil
}
