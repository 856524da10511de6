package napi

import (
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// SearchIPs looks one address up across every network whose subnet contains
// it, returning one record per covering network. No covering network at all
// is a ResourceNotFound error.
func (r *ProtocolNAPI) SearchIPs(ip string) ([]api.IP, error) {
	records := []api.IP{}
	params := url.Values{"ip": []string{ip}}

	err := r.queryStruct("GET", "/search/ips", params, nil, &records)
	if err != nil {
		return nil, err
	}

	return records, nil
}
