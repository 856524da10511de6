package models

import (
	"context"
	"errors"
	"math/big"
	"net/netip"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
	"github.com/netfabric/napi/shared/validate"
)

// belongsToTypeNic marks IP records claimed by the nic provisioner.
const belongsToTypeNic = "nic"

var bigOne = big.NewInt(1)

// rawIP is the stored shape of one IP record. Placeholders carry only the
// address and the reserved flag; every other write stamps modified_at.
type rawIP struct {
	IP            string `json:"ip"`
	Reserved      bool   `json:"reserved"`
	BelongsToType string `json:"belongs_to_type,omitempty"`
	BelongsToUUID string `json:"belongs_to_uuid,omitempty"`
	OwnerUUID     string `json:"owner_uuid,omitempty"`
	ModifiedAt    int64  `json:"modified_at,omitempty"`
}

// isPlaceholder reports whether the record was never touched after bucket
// creation.
func (r *rawIP) isPlaceholder() bool {
	return r.BelongsToUUID == "" && r.BelongsToType == "" && r.OwnerUUID == "" && r.ModifiedAt == 0
}

// same compares the logical fields, ignoring the write stamp.
func (r *rawIP) same(other *rawIP) bool {
	return r.IP == other.IP &&
		r.Reserved == other.Reserved &&
		r.BelongsToType == other.BelongsToType &&
		r.BelongsToUUID == other.BelongsToUUID &&
		r.OwnerUUID == other.OwnerUUID
}

// view renders the record for the wire, deriving free.
func (r *rawIP) view(networkUUID string) api.IP {
	return api.IP{
		IP:            r.IP,
		Reserved:      r.Reserved,
		Free:          r.BelongsToUUID == "",
		BelongsToType: r.BelongsToType,
		BelongsToUUID: r.BelongsToUUID,
		OwnerUUID:     r.OwnerUUID,
		NetworkUUID:   networkUUID,
	}
}

// freeIPView materializes the response for an address that has no record
// yet: free, unreserved, nothing else.
func freeIPView(addr netip.Addr, networkUUID string) api.IP {
	return api.IP{
		IP:          ipaddr.Format(addr),
		Reserved:    false,
		Free:        true,
		NetworkUUID: networkUUID,
	}
}

// IPListParams filter GET /networks/:uuid/ips.
type IPListParams struct {
	PageParams `mapstructure:",squash"`

	BelongsToUUID string `mapstructure:"belongs_to_uuid"`
	BelongsToType string `mapstructure:"belongs_to_type"`
	OwnerUUID     string `mapstructure:"owner_uuid"`
	Reserved      *bool  `mapstructure:"reserved"`
}

// ListIPs returns a network's existing IP records in ascending address
// order.
func (s *State) ListIPs(ctx context.Context, networkUUID string, params IPListParams) ([]api.IP, int, error) {
	limit, offset, fieldErrs := params.normalize()
	if len(fieldErrs) > 0 {
		return nil, 0, api.InvalidParamsError(fieldErrs...)
	}

	_, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return nil, 0, err
	}

	var clauses []db.Filter
	if params.BelongsToUUID != "" {
		clauses = append(clauses, db.Eq("belongs_to_uuid", params.BelongsToUUID))
	}

	if params.BelongsToType != "" {
		clauses = append(clauses, db.Eq("belongs_to_type", params.BelongsToType))
	}

	if params.OwnerUUID != "" {
		clauses = append(clauses, db.Eq("owner_uuid", params.OwnerUUID))
	}

	if params.Reserved != nil {
		clauses = append(clauses, db.Eq("reserved", *params.Reserved))
	}

	res, err := s.DB.Find(ctx, ipBucketName(networkUUID), db.And(clauses...), db.FindOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	ips := make([]api.IP, 0, len(res.Objects))
	for _, obj := range res.Objects {
		var record rawIP

		err = obj.Unmarshal(&record)
		if err != nil {
			return nil, 0, api.InternalError(err)
		}

		ips = append(ips, record.view(networkUUID))
	}

	return ips, res.Total, nil
}

// ipAddrInNetwork parses the address and checks it against the network's
// subnet.
func ipAddrInNetwork(network *api.Network, ipStr string) (netip.Addr, error) {
	addr, err := ipaddr.Parse(ipStr)
	if err != nil {
		return netip.Addr{}, api.InvalidParamsError(api.InvalidField("ip", "invalid IP address %q", ipStr))
	}

	subnet, err := ipaddr.ParseCIDR(network.Subnet)
	if err != nil {
		return netip.Addr{}, api.InternalError(err)
	}

	if !ipaddr.InSubnet(addr, subnet) {
		return netip.Addr{}, api.InvalidParamsError(api.InvalidField("ip", "%s is not in subnet %s", ipStr, network.Subnet))
	}

	return addr, nil
}

// GetIP returns the record for one address, materializing a free view when
// no record exists yet. Nothing is written.
func (s *State) GetIP(ctx context.Context, networkUUID string, ipStr string) (*api.IP, error) {
	network, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return nil, err
	}

	addr, err := ipAddrInNetwork(network, ipStr)
	if err != nil {
		return nil, err
	}

	obj, err := s.DB.Get(ctx, ipBucketName(networkUUID), ipaddr.BucketKey(addr))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			view := freeIPView(addr, networkUUID)
			return &view, nil
		}

		return nil, storeErr(ctx, err)
	}

	var record rawIP
	err = obj.Unmarshal(&record)
	if err != nil {
		return nil, api.InternalError(err)
	}

	view := record.view(networkUUID)

	return &view, nil
}

// validateIPUpdate enforces the parameter combinations of PUT ips: free and
// unassign stand alone, belongs_to fields travel together with an owner.
func validateIPUpdate(params api.IPUpdate) []api.FieldError {
	var fieldErrs []api.FieldError

	hasBelongsTo := params.BelongsToUUID != nil || params.BelongsToType != nil

	if params.Free && params.Unassign {
		return []api.FieldError{api.InvalidField("free", "free and unassign are mutually exclusive")}
	}

	if params.Free && (params.Reserved != nil || params.OwnerUUID != nil || hasBelongsTo) {
		return []api.FieldError{api.InvalidField("free", "free cannot be combined with other fields")}
	}

	if params.Unassign && (params.Reserved != nil || params.OwnerUUID != nil || hasBelongsTo) {
		return []api.FieldError{api.InvalidField("unassign", "unassign cannot be combined with other fields")}
	}

	if params.BelongsToUUID != nil {
		if params.BelongsToType == nil {
			fieldErrs = append(fieldErrs, api.MissingField("belongs_to_type"))
		}

		if params.OwnerUUID == nil {
			fieldErrs = append(fieldErrs, api.MissingField("owner_uuid"))
		}
	} else if params.BelongsToType != nil {
		fieldErrs = append(fieldErrs, api.MissingField("belongs_to_uuid"))
	}

	if params.BelongsToType != nil {
		err := validate.IsBelongsToType(*params.BelongsToType)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("belongs_to_type", "%v", err))
		}
	}

	if params.OwnerUUID != nil {
		err := validate.IsUUID(*params.OwnerUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("owner_uuid", "%v", err))
		}
	}

	return fieldErrs
}

// UpdateIP reserves, assigns, unassigns or frees one address. The write is
// a CAS against the record read at the start of the attempt; an unchanged
// target is not rewritten, which makes repeated identical updates
// idempotent.
func (s *State) UpdateIP(ctx context.Context, networkUUID string, ipStr string, params api.IPUpdate) (*api.IP, error) {
	fieldErrs := validateIPUpdate(params)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	network, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return nil, err
	}

	addr, err := ipAddrInNetwork(network, ipStr)
	if err != nil {
		return nil, err
	}

	checkOwner := params.CheckOwner == nil || *params.CheckOwner
	if checkOwner && params.OwnerUUID != nil && !s.ownerAllowed(network.OwnerUUIDs, *params.OwnerUUID) {
		return nil, api.InvalidParamsError(api.InvalidField("owner_uuid", "owner cannot provision on network %q", networkUUID))
	}

	bucket := ipBucketName(networkUUID)
	key := ipaddr.BucketKey(addr)

	for attempt := 0; attempt < casAttempts; attempt++ {
		var existing rawIP
		var etag string

		obj, err := s.DB.Get(ctx, bucket, key)
		if err == nil {
			etag = obj.Etag

			err = obj.Unmarshal(&existing)
			if err != nil {
				return nil, api.InternalError(err)
			}
		} else if !errors.Is(err, db.ErrNotFound) {
			return nil, storeErr(ctx, err)
		}

		exists := etag != ""
		if !exists {
			existing = rawIP{IP: ipaddr.Format(addr)}
		}

		target := existing

		switch {
		case params.Free:
			target = rawIP{IP: existing.IP}
		case params.Unassign:
			target.BelongsToType = ""
			target.BelongsToUUID = ""
		default:
			if params.BelongsToUUID != nil && existing.BelongsToUUID != "" && existing.BelongsToUUID != *params.BelongsToUUID {
				return nil, api.InvalidParamsError(api.FieldError{
					Field:   "ip",
					Code:    api.FieldCodeUsedBy,
					Message: "IP in use",
					ID:      existing.BelongsToUUID,
					Type:    existing.BelongsToType,
				})
			}

			if params.Reserved != nil {
				target.Reserved = *params.Reserved
			}

			if params.OwnerUUID != nil {
				target.OwnerUUID = *params.OwnerUUID
			}

			if params.BelongsToUUID != nil {
				target.BelongsToUUID = *params.BelongsToUUID
				target.BelongsToType = *params.BelongsToType
			}
		}

		if exists && target.same(&existing) {
			view := existing.view(networkUUID)
			return &view, nil
		}

		if !exists && target.same(&rawIP{IP: target.IP}) {
			// Freeing or unassigning an address that has no record is a
			// no-op; don't materialize one.
			view := freeIPView(addr, networkUUID)
			return &view, nil
		}

		target.ModifiedAt = nowMillis()

		opts := db.PutOptions{IfMissing: true}
		if exists {
			opts = db.PutOptions{IfMatch: etag}
		}

		_, err = s.DB.Put(ctx, bucket, key, target, opts)
		if err != nil {
			if errors.Is(err, db.ErrEtagConflict) {
				continue
			}

			return nil, storeErr(ctx, err)
		}

		view := target.view(networkUUID)

		s.publish(api.EventTypeIP, api.EventActionUpdate, networkUUID+"/"+target.IP, view)

		return &view, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}
