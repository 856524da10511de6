package napi

import (
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/netfabric/napi/shared/api"
)

// The Server type represents a NAPI daemon.
type Server interface {
	GetConnectionInfo() (*ConnectionInfo, error)

	// Daemon surface
	Ping() (*api.Ping, error)
	GetAPIEndpoints() ([]string, error)
	GetMetrics() (string, error)

	// Nic tag handling
	GetNicTags(filter NicTagFilter) (tags []api.NicTag, total int, err error)
	GetNicTag(name string) (tag *api.NicTag, err error)
	CreateNicTag(tag api.NicTagCreate) (created *api.NicTag, err error)
	UpdateNicTag(name string, tag api.NicTagUpdate) (updated *api.NicTag, err error)
	DeleteNicTag(name string) (err error)

	// Network handling
	GetNetworks(filter NetworkFilter) (networks []api.Network, total int, err error)
	GetNetwork(networkUUID string) (network *api.Network, err error)
	GetNetworkProvisionableBy(networkUUID string, ownerUUID string) (network *api.Network, err error)
	CreateNetwork(network api.NetworkCreate) (created *api.Network, err error)
	UpdateNetwork(networkUUID string, network api.NetworkUpdate) (updated *api.Network, err error)
	DeleteNetwork(networkUUID string) (err error)
	ProvisionNic(networkUUID string, nic api.NicCreate) (provisioned *api.Nic, err error)

	// IP record handling
	GetNetworkIPs(networkUUID string, filter IPFilter) (ips []api.IP, total int, err error)
	GetNetworkIP(networkUUID string, ip string) (record *api.IP, err error)
	UpdateNetworkIP(networkUUID string, ip string, record api.IPUpdate) (updated *api.IP, err error)

	// Network pool handling
	GetNetworkPools(filter NetworkPoolFilter) (pools []api.NetworkPool, total int, err error)
	GetNetworkPool(poolUUID string) (pool *api.NetworkPool, err error)
	GetNetworkPoolProvisionableBy(poolUUID string, ownerUUID string) (pool *api.NetworkPool, err error)
	CreateNetworkPool(pool api.NetworkPoolCreate) (created *api.NetworkPool, err error)
	UpdateNetworkPool(poolUUID string, pool api.NetworkPoolUpdate) (updated *api.NetworkPool, err error)
	DeleteNetworkPool(poolUUID string) (err error)
	ProvisionPoolNic(poolUUID string, nic api.NicCreate) (provisioned *api.Nic, err error)

	// Nic handling
	GetNics(filter NicFilter) (nics []api.Nic, total int, err error)
	GetNic(mac string) (nic *api.Nic, err error)
	CreateNic(nic api.NicCreate) (created *api.Nic, err error)
	UpdateNic(mac string, nic api.NicUpdate) (updated *api.Nic, err error)
	DeleteNic(mac string) (err error)

	// Aggregation handling
	GetAggregations(filter AggregationFilter) (aggrs []api.Aggregation, total int, err error)
	GetAggregation(id string) (aggr *api.Aggregation, err error)
	CreateAggregation(aggr api.AggregationCreate) (created *api.Aggregation, err error)
	UpdateAggregation(id string, aggr api.AggregationUpdate) (updated *api.Aggregation, err error)
	DeleteAggregation(id string) (err error)

	// Subnet search
	SearchIPs(ip string) (records []api.IP, err error)

	// Event handling
	GetEvents() (listener *EventListener, err error)
	GetEventsOfType(types []string) (listener *EventListener, err error)

	// Raw API access
	RawQuery(method string, path string, data any) (body json.RawMessage, err error)
}

// The ConnectionInfo struct represents general information for a connection.
type ConnectionInfo struct {
	URL      string
	Protocol string
}

// Page bounds a list call. The zero value asks for the server defaults.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) values() url.Values {
	v := url.Values{}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}

	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}

	return v
}

func setString(v url.Values, key string, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// NicTagFilter narrows GetNicTags. Zero fields are not sent.
type NicTagFilter struct {
	Page

	UUID string
	Name string
}

func (f NicTagFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "uuid", f.UUID)
	setString(v, "name", f.Name)

	return v
}

// NetworkFilter narrows GetNetworks. Zero fields are not sent.
type NetworkFilter struct {
	Page

	UUID            string
	Name            string
	NicTag          string
	VLANID          *int
	Family          string
	ProvisionableBy string
}

func (f NetworkFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "uuid", f.UUID)
	setString(v, "name", f.Name)
	setString(v, "nic_tag", f.NicTag)
	setString(v, "family", f.Family)
	setString(v, "provisionable_by", f.ProvisionableBy)
	if f.VLANID != nil {
		v.Set("vlan_id", strconv.Itoa(*f.VLANID))
	}

	return v
}

// IPFilter narrows GetNetworkIPs. Zero fields are not sent.
type IPFilter struct {
	Page

	BelongsToUUID string
	BelongsToType string
	OwnerUUID     string
	Reserved      *bool
}

func (f IPFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "belongs_to_uuid", f.BelongsToUUID)
	setString(v, "belongs_to_type", f.BelongsToType)
	setString(v, "owner_uuid", f.OwnerUUID)
	if f.Reserved != nil {
		v.Set("reserved", strconv.FormatBool(*f.Reserved))
	}

	return v
}

// NetworkPoolFilter narrows GetNetworkPools. Zero fields are not sent.
type NetworkPoolFilter struct {
	Page

	UUID            string
	Name            string
	Family          string
	NetworkUUID     string
	NicTag          string
	ProvisionableBy string
}

func (f NetworkPoolFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "uuid", f.UUID)
	setString(v, "name", f.Name)
	setString(v, "family", f.Family)
	setString(v, "network_uuid", f.NetworkUUID)
	setString(v, "nic_tag", f.NicTag)
	setString(v, "provisionable_by", f.ProvisionableBy)

	return v
}

// NicFilter narrows GetNics. Zero fields are not sent.
type NicFilter struct {
	Page

	MAC           string
	OwnerUUID     string
	BelongsToUUID string
	BelongsToType string
	NetworkUUID   string
	NicTag        string
	State         string
	CNUUID        string
	Primary       *bool
}

func (f NicFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "mac", f.MAC)
	setString(v, "owner_uuid", f.OwnerUUID)
	setString(v, "belongs_to_uuid", f.BelongsToUUID)
	setString(v, "belongs_to_type", f.BelongsToType)
	setString(v, "network_uuid", f.NetworkUUID)
	setString(v, "nic_tag", f.NicTag)
	setString(v, "state", f.State)
	setString(v, "cn_uuid", f.CNUUID)
	if f.Primary != nil {
		v.Set("primary", strconv.FormatBool(*f.Primary))
	}

	return v
}

// AggregationFilter narrows GetAggregations. Zero fields are not sent.
type AggregationFilter struct {
	Page

	BelongsToUUID string
	Name          string
	MAC           string
}

func (f AggregationFilter) values() url.Values {
	v := f.Page.values()
	setString(v, "belongs_to_uuid", f.BelongsToUUID)
	setString(v, "name", f.Name)
	setString(v, "mac", f.MAC)

	return v
}
