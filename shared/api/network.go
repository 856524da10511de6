package api

// Network is a provisionable IPv4 or IPv6 subnet bound to a nic tag.
//
// subnet_start_ip, subnet_end_ip, netmask and family are derived from the
// subnet on creation and carried on every response.
type Network struct {
	UUID             string            `json:"uuid"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Family           string            `json:"family"`
	NicTag           string            `json:"nic_tag"`
	VLANID           int               `json:"vlan_id"`
	Subnet           string            `json:"subnet"`
	SubnetStartIP    string            `json:"subnet_start_ip"`
	SubnetEndIP      string            `json:"subnet_end_ip"`
	Netmask          string            `json:"netmask"`
	ProvisionStartIP string            `json:"provision_start_ip"`
	ProvisionEndIP   string            `json:"provision_end_ip"`
	Gateway          string            `json:"gateway,omitempty"`
	Resolvers        []string          `json:"resolvers"`
	Routes           map[string]string `json:"routes,omitempty"`
	MTU              int               `json:"mtu"`
	OwnerUUIDs       []string          `json:"owner_uuids,omitempty"`
}

// NetworkCreate are the accepted parameters of POST /networks.
type NetworkCreate struct {
	UUID             string            `json:"uuid,omitempty" mapstructure:"uuid"`
	Name             string            `json:"name" mapstructure:"name"`
	Description      string            `json:"description,omitempty" mapstructure:"description"`
	NicTag           string            `json:"nic_tag" mapstructure:"nic_tag"`
	VLANID           *int              `json:"vlan_id,omitempty" mapstructure:"vlan_id"`
	Subnet           string            `json:"subnet" mapstructure:"subnet"`
	ProvisionStartIP string            `json:"provision_start_ip" mapstructure:"provision_start_ip"`
	ProvisionEndIP   string            `json:"provision_end_ip" mapstructure:"provision_end_ip"`
	Gateway          string            `json:"gateway,omitempty" mapstructure:"gateway"`
	Resolvers        []string          `json:"resolvers,omitempty" mapstructure:"resolvers"`
	Routes           map[string]string `json:"routes,omitempty" mapstructure:"routes"`
	MTU              *int              `json:"mtu,omitempty" mapstructure:"mtu"`
	OwnerUUIDs       []string          `json:"owner_uuids,omitempty" mapstructure:"owner_uuids"`
}

// NetworkUpdate are the accepted parameters of PUT /networks/:uuid. Pointer
// fields distinguish "not supplied" from zero values.
type NetworkUpdate struct {
	Name             *string            `json:"name,omitempty" mapstructure:"name"`
	Description      *string            `json:"description,omitempty" mapstructure:"description"`
	ProvisionStartIP *string            `json:"provision_start_ip,omitempty" mapstructure:"provision_start_ip"`
	ProvisionEndIP   *string            `json:"provision_end_ip,omitempty" mapstructure:"provision_end_ip"`
	Gateway          *string            `json:"gateway,omitempty" mapstructure:"gateway"`
	Resolvers        *[]string          `json:"resolvers,omitempty" mapstructure:"resolvers"`
	Routes           *map[string]string `json:"routes,omitempty" mapstructure:"routes"`
	MTU              *int               `json:"mtu,omitempty" mapstructure:"mtu"`
	OwnerUUIDs       *[]string          `json:"owner_uuids,omitempty" mapstructure:"owner_uuids"`
}
