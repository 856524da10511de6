package api

// IP is the per-address bookkeeping record inside a network's IP bucket.
// free is derived: an address is free iff no belongs_to_uuid is set.
type IP struct {
	IP            string `json:"ip"`
	Reserved      bool   `json:"reserved"`
	Free          bool   `json:"free"`
	BelongsToType string `json:"belongs_to_type,omitempty"`
	BelongsToUUID string `json:"belongs_to_uuid,omitempty"`
	OwnerUUID     string `json:"owner_uuid,omitempty"`
	NetworkUUID   string `json:"network_uuid"`
}

// IPUpdate are the accepted parameters of PUT /networks/:uuid/ips/:ip.
//
// unassign clears the binding while keeping reservation and ownership;
// free resets the record to an empty slot. The two are mutually exclusive
// with supplying belongs_to fields.
type IPUpdate struct {
	Reserved      *bool   `json:"reserved,omitempty" mapstructure:"reserved"`
	OwnerUUID     *string `json:"owner_uuid,omitempty" mapstructure:"owner_uuid"`
	BelongsToType *string `json:"belongs_to_type,omitempty" mapstructure:"belongs_to_type"`
	BelongsToUUID *string `json:"belongs_to_uuid,omitempty" mapstructure:"belongs_to_uuid"`
	Unassign      bool    `json:"unassign,omitempty" mapstructure:"unassign"`
	Free          bool    `json:"free,omitempty" mapstructure:"free"`
	CheckOwner    *bool   `json:"check_owner,omitempty" mapstructure:"check_owner"`
}
