package api

// Nic lifecycle states.
const (
	NicStateProvisioning = "provisioning"
	NicStateRunning      = "running"
	NicStateStopped      = "stopped"
)

// Entity kinds a nic or IP may belong to.
const (
	BelongsToTypeZone   = "zone"
	BelongsToTypeServer = "server"
	BelongsToTypeOther  = "other"
)

// Nic is a virtual interface keyed by MAC address. When bound to a network
// it references exactly one IP record whose belongs_to_uuid is the nic's
// MAC.
type Nic struct {
	MAC           string `json:"mac"`
	Primary       bool   `json:"primary"`
	OwnerUUID     string `json:"owner_uuid"`
	BelongsToUUID string `json:"belongs_to_uuid"`
	BelongsToType string `json:"belongs_to_type"`
	State         string `json:"state"`
	IP            string `json:"ip,omitempty"`
	Netmask       string `json:"netmask,omitempty"`
	Gateway       string `json:"gateway,omitempty"`
	NetworkUUID   string `json:"network_uuid,omitempty"`
	NicTag        string `json:"nic_tag,omitempty"`
	VLANID        *int   `json:"vlan_id,omitempty"`
	MTU           *int   `json:"mtu,omitempty"`
	CNUUID        string `json:"cn_uuid,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ModifiedAt    int64  `json:"modified_at"`
}

// NicCreate are the accepted parameters of POST /nics and of the provision
// endpoints (where MAC may be omitted and is generated from the configured
// OUI).
type NicCreate struct {
	MAC              string   `json:"mac,omitempty" mapstructure:"mac"`
	OwnerUUID        string   `json:"owner_uuid" mapstructure:"owner_uuid"`
	BelongsToUUID    string   `json:"belongs_to_uuid" mapstructure:"belongs_to_uuid"`
	BelongsToType    string   `json:"belongs_to_type" mapstructure:"belongs_to_type"`
	Primary          *bool    `json:"primary,omitempty" mapstructure:"primary"`
	State            string   `json:"state,omitempty" mapstructure:"state"`
	IP               string   `json:"ip,omitempty" mapstructure:"ip"`
	NetworkUUID      string   `json:"network_uuid,omitempty" mapstructure:"network_uuid"`
	NicTag           string   `json:"nic_tag,omitempty" mapstructure:"nic_tag"`
	NicTagsAvailable []string `json:"nic_tags_available,omitempty" mapstructure:"nic_tags_available"`
	Reserved         *bool    `json:"reserved,omitempty" mapstructure:"reserved"`
	CNUUID           string   `json:"cn_uuid,omitempty" mapstructure:"cn_uuid"`
	CheckOwner       *bool    `json:"check_owner,omitempty" mapstructure:"check_owner"`
}

// NicUpdate are the accepted parameters of PUT /nics/:mac.
type NicUpdate struct {
	OwnerUUID        *string  `json:"owner_uuid,omitempty" mapstructure:"owner_uuid"`
	BelongsToUUID    *string  `json:"belongs_to_uuid,omitempty" mapstructure:"belongs_to_uuid"`
	BelongsToType    *string  `json:"belongs_to_type,omitempty" mapstructure:"belongs_to_type"`
	Primary          *bool    `json:"primary,omitempty" mapstructure:"primary"`
	State            *string  `json:"state,omitempty" mapstructure:"state"`
	IP               *string  `json:"ip,omitempty" mapstructure:"ip"`
	NetworkUUID      *string  `json:"network_uuid,omitempty" mapstructure:"network_uuid"`
	NicTag           *string  `json:"nic_tag,omitempty" mapstructure:"nic_tag"`
	NicTagsAvailable []string `json:"nic_tags_available,omitempty" mapstructure:"nic_tags_available"`
	CNUUID           *string  `json:"cn_uuid,omitempty" mapstructure:"cn_uuid"`
	CheckOwner       *bool    `json:"check_owner,omitempty" mapstructure:"check_owner"`
}
