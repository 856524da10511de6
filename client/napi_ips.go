package napi

import (
	"fmt"
	"net/url"

	"github.com/netfabric/napi/shared/api"
)

// GetNetworkIPs returns a page of the network's IP records in ascending
// address order, plus the collection total.
func (r *ProtocolNAPI) GetNetworkIPs(networkUUID string, filter IPFilter) ([]api.IP, int, error) {
	ips := []api.IP{}

	total, err := r.queryList(fmt.Sprintf("/networks/%s/ips", url.PathEscape(networkUUID)), filter.values(), &ips)
	if err != nil {
		return nil, 0, err
	}

	return ips, total, nil
}

// GetNetworkIP returns the record for one address of the network.
// Addresses inside the subnet that were never written still answer, as a
// synthesized free record.
func (r *ProtocolNAPI) GetNetworkIP(networkUUID string, ip string) (*api.IP, error) {
	record := api.IP{}

	err := r.queryStruct("GET", fmt.Sprintf("/networks/%s/ips/%s", url.PathEscape(networkUUID), url.PathEscape(ip)), nil, nil, &record)
	if err != nil {
		return nil, err
	}

	return &record, nil
}

// UpdateNetworkIP reserves, unassigns or frees one address of the network.
func (r *ProtocolNAPI) UpdateNetworkIP(networkUUID string, ip string, record api.IPUpdate) (*api.IP, error) {
	updated := api.IP{}

	err := r.queryStruct("PUT", fmt.Sprintf("/networks/%s/ips/%s", url.PathEscape(networkUUID), url.PathEscape(ip)), nil, record, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}
