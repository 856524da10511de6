package models

import (
	"context"
	"errors"
	"net/netip"

	"github.com/google/uuid"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/validate"
)

// Subnet size limits. v4 subnets are capped at /30 so the broadcast address
// always exists and is distinct from the provision range.
const (
	subnetMinBits  = 8
	subnetMaxBits4 = 30
	subnetMaxBits6 = 128
)

// maxResolvers bounds the resolver list of a network.
const maxResolvers = 6

// NetworkListParams filter GET /networks.
type NetworkListParams struct {
	PageParams `mapstructure:",squash"`

	UUID            string `mapstructure:"uuid"`
	Name            string `mapstructure:"name"`
	NicTag          string `mapstructure:"nic_tag"`
	VLANID          *int   `mapstructure:"vlan_id"`
	Family          string `mapstructure:"family"`
	ProvisionableBy string `mapstructure:"provisionable_by"`
}

// networkRange bundles the parsed address material of a network.
type networkRange struct {
	subnet         netip.Prefix
	family         ipaddr.Family
	provisionStart netip.Addr
	provisionEnd   netip.Addr
}

func (r *networkRange) isV4() bool {
	return r.family == ipaddr.FamilyIPv4
}

// parseNetworkRange re-derives the address material of a stored network.
func parseNetworkRange(network *api.Network) (*networkRange, error) {
	subnet, err := ipaddr.ParseCIDR(network.Subnet)
	if err != nil {
		return nil, err
	}

	start, err := ipaddr.Parse(network.ProvisionStartIP)
	if err != nil {
		return nil, err
	}

	end, err := ipaddr.Parse(network.ProvisionEndIP)
	if err != nil {
		return nil, err
	}

	return &networkRange{
		subnet:         subnet,
		family:         ipaddr.FamilyOf(subnet.Addr()),
		provisionStart: start,
		provisionEnd:   end,
	}, nil
}

// validateSubnet checks the subnet CIDR and returns the masked prefix.
func validateSubnet(subnetStr string) (netip.Prefix, []api.FieldError) {
	if subnetStr == "" {
		return netip.Prefix{}, []api.FieldError{api.MissingField("subnet")}
	}

	subnet, err := ipaddr.ParseCIDR(subnetStr)
	if err != nil {
		return netip.Prefix{}, []api.FieldError{api.InvalidField("subnet", "invalid subnet %q", subnetStr)}
	}

	maxBits := subnetMaxBits6
	if subnet.Addr().Is4() {
		maxBits = subnetMaxBits4
	}

	if subnet.Bits() < subnetMinBits || subnet.Bits() > maxBits {
		return netip.Prefix{}, []api.FieldError{api.InvalidField("subnet", "subnet bits must be between %d and %d", subnetMinBits, maxBits)}
	}

	return subnet, nil
}

// validateProvisionRange checks that the provision range is non empty and
// lies strictly inside the subnet, leaving room for the scan sentinels on
// both sides (and excluding the v4 broadcast address).
func validateProvisionRange(subnet netip.Prefix, startStr string, endStr string) (netip.Addr, netip.Addr, []api.FieldError) {
	var fieldErrs []api.FieldError
	var start, end netip.Addr

	family := ipaddr.FamilyOf(subnet.Addr())

	if startStr == "" {
		fieldErrs = append(fieldErrs, api.MissingField("provision_start_ip"))
	} else {
		addr, err := ipaddr.Parse(startStr)
		if err != nil || ipaddr.FamilyOf(addr) != family {
			fieldErrs = append(fieldErrs, api.InvalidField("provision_start_ip", "must be an %s address", family))
		} else {
			start = addr
		}
	}

	if endStr == "" {
		fieldErrs = append(fieldErrs, api.MissingField("provision_end_ip"))
	} else {
		addr, err := ipaddr.Parse(endStr)
		if err != nil || ipaddr.FamilyOf(addr) != family {
			fieldErrs = append(fieldErrs, api.InvalidField("provision_end_ip", "must be an %s address", family))
		} else {
			end = addr
		}
	}

	if !start.IsValid() || !end.IsValid() {
		return start, end, fieldErrs
	}

	if ipaddr.Compare(start, end) > 0 {
		fieldErrs = append(fieldErrs, api.InvalidField("provision_start_ip", "provision range is empty"))
	}

	if ipaddr.Compare(start, ipaddr.SubnetStart(subnet)) <= 0 {
		fieldErrs = append(fieldErrs, api.InvalidField("provision_start_ip", "must lie strictly inside the subnet"))
	}

	if ipaddr.Compare(end, ipaddr.SubnetEnd(subnet)) >= 0 {
		fieldErrs = append(fieldErrs, api.InvalidField("provision_end_ip", "must lie strictly inside the subnet"))
	}

	return start, end, fieldErrs
}

// validateNetworkLocal covers the parameter checks that need no other
// entity: gateway, resolvers, routes, owner list.
func validateNetworkLocal(subnet netip.Prefix, gateway string, resolvers []string, routes map[string]string, ownerUUIDs []string) []api.FieldError {
	var fieldErrs []api.FieldError

	family := ipaddr.FamilyOf(subnet.Addr())

	if gateway != "" {
		addr, err := ipaddr.Parse(gateway)
		if err != nil || !ipaddr.InSubnet(addr, subnet) {
			fieldErrs = append(fieldErrs, api.InvalidField("gateway", "gateway must lie inside subnet %q", subnet.String()))
		}
	}

	if len(resolvers) > maxResolvers {
		fieldErrs = append(fieldErrs, api.InvalidField("resolvers", "at most %d resolvers", maxResolvers))
	} else {
		check := validate.IsIPOfFamily(family)
		for _, resolver := range resolvers {
			err := check(resolver)
			if err != nil {
				fieldErrs = append(fieldErrs, api.InvalidField("resolvers", "%v", err))
				break
			}
		}
	}

	for dst, gw := range routes {
		err := validate.IsRouteDestination(dst)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("routes", "bad destination %q: %v", dst, err))
			continue
		}

		err = validate.IsIP(gw)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("routes", "bad gateway %q for %q", gw, dst))
		}
	}

	err := validate.IsUUIDSlice(ownerUUIDs)
	if err != nil {
		fieldErrs = append(fieldErrs, api.InvalidField("owner_uuids", "%v", err))
	}

	return fieldErrs
}

func networkFromObject(obj *db.Object) (*api.Network, error) {
	var network api.Network

	err := obj.Unmarshal(&network)
	if err != nil {
		return nil, api.InternalError(err)
	}

	// Rows written before the derived fields existed are completed on read;
	// the v2 data migration persists the same values.
	if network.SubnetStartIP == "" || network.SubnetEndIP == "" {
		subnet, err := ipaddr.ParseCIDR(network.Subnet)
		if err != nil {
			return nil, api.InternalError(err)
		}

		network.SubnetStartIP = ipaddr.Format(ipaddr.SubnetStart(subnet))
		network.SubnetEndIP = ipaddr.Format(ipaddr.SubnetEnd(subnet))
	}

	if network.Resolvers == nil {
		network.Resolvers = []string{}
	}

	return &network, nil
}

func (s *State) networkByUUID(ctx context.Context, networkUUID string) (*api.Network, string, error) {
	obj, err := s.DB.Get(ctx, bucketNetworks, networkUUID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", api.NotFoundError("Network %q not found", networkUUID)
		}

		return nil, "", storeErr(ctx, err)
	}

	network, err := networkFromObject(obj)
	if err != nil {
		return nil, "", err
	}

	return network, obj.Etag, nil
}

// networkNameTaken reports whether another network already uses the name.
func (s *State) networkNameTaken(ctx context.Context, name string, selfUUID string) (bool, error) {
	res, err := s.DB.Find(ctx, bucketNetworks, db.Eq("name", name), db.FindOptions{})
	if err != nil {
		return false, storeErr(ctx, err)
	}

	for _, obj := range res.Objects {
		if obj.Key != selfUUID {
			return true, nil
		}
	}

	return false, nil
}

// ListNetworks returns networks sorted by name plus the total match count.
func (s *State) ListNetworks(ctx context.Context, params NetworkListParams) ([]api.Network, int, error) {
	limit, offset, fieldErrs := params.normalize()
	if len(fieldErrs) > 0 {
		return nil, 0, api.InvalidParamsError(fieldErrs...)
	}

	var clauses []db.Filter
	if params.UUID != "" {
		clauses = append(clauses, db.Eq("uuid", params.UUID))
	}

	if params.Name != "" {
		clauses = append(clauses, db.Eq("name", params.Name))
	}

	if params.NicTag != "" {
		clauses = append(clauses, db.Eq("nic_tag", params.NicTag))
	}

	if params.VLANID != nil {
		clauses = append(clauses, db.Eq("vlan_id", *params.VLANID))
	}

	if params.Family != "" {
		family, err := ipaddr.ParseFamily(params.Family)
		if err != nil {
			return nil, 0, api.InvalidParamsError(api.InvalidField("family", "%v", err))
		}

		clauses = append(clauses, db.Eq("family", string(family)))
	}

	ownerFilter := s.provisionableBy(params.ProvisionableBy)
	if ownerFilter != nil {
		clauses = append(clauses, ownerFilter)
	}

	opts := db.FindOptions{Sort: []db.Sort{{Field: "name"}}, Limit: limit, Offset: offset}

	res, err := s.DB.Find(ctx, bucketNetworks, db.And(clauses...), opts)
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	networks := make([]api.Network, 0, len(res.Objects))
	for _, obj := range res.Objects {
		network, err := networkFromObject(&obj)
		if err != nil {
			return nil, 0, err
		}

		networks = append(networks, *network)
	}

	return networks, res.Total, nil
}

// GetNetwork returns one network. With provisionableBy set the owner match
// predicate is enforced and a failing lookup turns into NotAuthorized.
func (s *State) GetNetwork(ctx context.Context, networkUUID string, provisionableBy string) (*api.Network, error) {
	network, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return nil, err
	}

	if provisionableBy != "" && !s.ownerAllowed(network.OwnerUUIDs, provisionableBy) {
		return nil, api.NotAuthorizedError()
	}

	return network, nil
}

// CreateNetwork validates the parameters, creates the per network IP bucket
// with its placeholder records, and persists the network itself last so a
// crash in between leaves only an orphan bucket for startup to sweep.
func (s *State) CreateNetwork(ctx context.Context, params api.NetworkCreate) (*api.Network, error) {
	var fieldErrs []api.FieldError

	if params.Name == "" {
		fieldErrs = append(fieldErrs, api.MissingField("name"))
	}

	if params.UUID != "" {
		err := validate.IsUUID(params.UUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("uuid", "%v", err))
		}
	}

	if params.NicTag == "" {
		fieldErrs = append(fieldErrs, api.MissingField("nic_tag"))
	}

	vlanID := 0
	if params.VLANID != nil {
		vlanID = *params.VLANID

		err := validate.IsVLAN(vlanID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("vlan_id", "%v", err))
		}
	}

	subnet, subnetErrs := validateSubnet(params.Subnet)
	fieldErrs = append(fieldErrs, subnetErrs...)

	var start, end netip.Addr
	if len(subnetErrs) == 0 {
		var rangeErrs []api.FieldError

		start, end, rangeErrs = validateProvisionRange(subnet, params.ProvisionStartIP, params.ProvisionEndIP)
		fieldErrs = append(fieldErrs, rangeErrs...)

		fieldErrs = append(fieldErrs, validateNetworkLocal(subnet, params.Gateway, params.Resolvers, params.Routes, params.OwnerUUIDs)...)
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	// Referential checks.
	tag, _, err := s.nicTagByName(ctx, params.NicTag)
	if err != nil {
		if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
			return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "nic tag %q does not exist", params.NicTag))
		}

		return nil, err
	}

	mtu := tag.MTU
	if params.MTU != nil {
		mtu = *params.MTU

		err := validate.IsMTU(mtu)
		if err != nil {
			return nil, api.InvalidParamsError(api.InvalidField("mtu", "%v", err))
		}
	}

	if mtu > tag.MTU {
		return nil, api.InvalidParamsError(api.InvalidField("mtu", "mtu exceeds that of nic tag %q (%d)", tag.Name, tag.MTU))
	}

	taken, err := s.networkNameTaken(ctx, params.Name, "")
	if err != nil {
		return nil, err
	}

	if taken {
		return nil, api.InvalidParamsError(api.DuplicateField("name", "Network %q already exists", params.Name))
	}

	family := ipaddr.FamilyOf(subnet.Addr())

	networkUUID := params.UUID
	if networkUUID == "" {
		networkUUID = uuid.New().String()
	} else {
		_, err := s.DB.Get(ctx, bucketNetworks, networkUUID)
		if err == nil {
			return nil, api.InvalidParamsError(api.DuplicateField("uuid", "Network %q already exists", networkUUID))
		}

		if !errors.Is(err, db.ErrNotFound) {
			return nil, storeErr(ctx, err)
		}
	}

	netmask, err := ipaddr.NetmaskForBits(subnet.Bits(), family)
	if err != nil {
		return nil, api.InternalError(err)
	}

	network := api.Network{
		UUID:             networkUUID,
		Name:             params.Name,
		Description:      params.Description,
		Family:           string(family),
		NicTag:           tag.Name,
		VLANID:           vlanID,
		Subnet:           subnet.String(),
		SubnetStartIP:    ipaddr.Format(ipaddr.SubnetStart(subnet)),
		SubnetEndIP:      ipaddr.Format(ipaddr.SubnetEnd(subnet)),
		Netmask:          ipaddr.Format(netmask),
		ProvisionStartIP: ipaddr.Format(start),
		ProvisionEndIP:   ipaddr.Format(end),
		Gateway:          params.Gateway,
		Resolvers:        params.Resolvers,
		Routes:           params.Routes,
		MTU:              mtu,
		OwnerUUIDs:       params.OwnerUUIDs,
	}

	if network.Resolvers == nil {
		network.Resolvers = []string{}
	}

	err = s.DB.EnsureBucket(ctx, ipBucketSchema(networkUUID, family))
	if err != nil {
		return nil, storeErr(ctx, err)
	}

	rng := networkRange{subnet: subnet, family: family, provisionStart: start, provisionEnd: end}

	ops := make([]db.Op, 0, 4)
	for key, record := range placeholderRecords(&rng) {
		ops = append(ops, db.PutOp(ipBucketName(networkUUID), key, record, db.PutOptions{}))
	}

	ops = append(ops, db.PutOp(bucketNetworks, networkUUID, network, db.PutOptions{IfMissing: true}))

	err = s.DB.Batch(ctx, ops)
	if err != nil {
		var batchErr *db.BatchError
		if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
			// Lost a race on the uuid. The bucket is shared with the winner,
			// so it must stay.
			return nil, api.InvalidParamsError(api.DuplicateField("uuid", "Network %q already exists", networkUUID))
		}

		return nil, storeErr(ctx, err)
	}

	if s.Subnets != nil {
		s.Subnets.Add(subnet, networkUUID)
	}

	s.publish(api.EventTypeNetwork, api.EventActionCreate, networkUUID, network)

	logger.Info("Created network", logger.Ctx{"uuid": networkUUID, "name": network.Name, "subnet": network.Subnet})

	return &network, nil
}

// placeholderRecords returns the records a fresh IP bucket starts with: the
// two gap scan sentinels just outside the provision range and, for v4, the
// reserved broadcast address. When the upper sentinel lands on the broadcast
// the reserved record wins.
func placeholderRecords(rng *networkRange) map[string]rawIP {
	lo := ipaddr.ToNumeric(rng.provisionStart)
	lo.Sub(lo, bigOne)

	hi := ipaddr.ToNumeric(rng.provisionEnd)
	hi.Add(hi, bigOne)

	records := map[string]rawIP{}

	loAddr, err := ipaddr.FromNumeric(lo, rng.family)
	if err == nil {
		records[ipaddr.BucketKey(loAddr)] = rawIP{IP: ipaddr.Format(loAddr), Reserved: false}
	}

	hiAddr, err := ipaddr.FromNumeric(hi, rng.family)
	if err == nil {
		records[ipaddr.BucketKey(hiAddr)] = rawIP{IP: ipaddr.Format(hiAddr), Reserved: false}
	}

	if rng.isV4() {
		broadcast := ipaddr.Broadcast(rng.subnet)
		records[ipaddr.BucketKey(broadcast)] = rawIP{IP: ipaddr.Format(broadcast), Reserved: true}
	}

	return records
}

// UpdateNetwork changes the mutable fields of a network. Provision range
// moves rewrite the scan sentinels in the same batch as the network row;
// existing assigned or reserved records are never touched.
func (s *State) UpdateNetwork(ctx context.Context, networkUUID string, params api.NetworkUpdate) (*api.Network, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		network, etag, err := s.networkByUUID(ctx, networkUUID)
		if err != nil {
			return nil, err
		}

		oldRange, err := parseNetworkRange(network)
		if err != nil {
			return nil, api.InternalError(err)
		}

		var fieldErrs []api.FieldError

		if params.Name != nil && *params.Name != network.Name {
			if *params.Name == "" {
				fieldErrs = append(fieldErrs, api.InvalidField("name", "name must not be empty"))
			} else {
				taken, err := s.networkNameTaken(ctx, *params.Name, networkUUID)
				if err != nil {
					return nil, err
				}

				if taken {
					fieldErrs = append(fieldErrs, api.DuplicateField("name", "Network %q already exists", *params.Name))
				}
			}

			if len(fieldErrs) == 0 {
				network.Name = *params.Name
			}
		}

		if params.Description != nil {
			network.Description = *params.Description
		}

		startStr := network.ProvisionStartIP
		if params.ProvisionStartIP != nil {
			startStr = *params.ProvisionStartIP
		}

		endStr := network.ProvisionEndIP
		if params.ProvisionEndIP != nil {
			endStr = *params.ProvisionEndIP
		}

		start, end, rangeErrs := validateProvisionRange(oldRange.subnet, startStr, endStr)
		fieldErrs = append(fieldErrs, rangeErrs...)

		gateway := network.Gateway
		if params.Gateway != nil {
			gateway = *params.Gateway
		}

		resolvers := network.Resolvers
		if params.Resolvers != nil {
			resolvers = *params.Resolvers
		}

		routes := network.Routes
		if params.Routes != nil {
			routes = *params.Routes
		}

		ownerUUIDs := network.OwnerUUIDs
		if params.OwnerUUIDs != nil {
			ownerUUIDs = *params.OwnerUUIDs
		}

		fieldErrs = append(fieldErrs, validateNetworkLocal(oldRange.subnet, gateway, resolvers, routes, ownerUUIDs)...)

		if params.MTU != nil {
			err := validate.IsMTU(*params.MTU)
			if err != nil {
				fieldErrs = append(fieldErrs, api.InvalidField("mtu", "%v", err))
			} else {
				tag, _, err := s.nicTagByName(ctx, network.NicTag)
				if err != nil {
					return nil, err
				}

				if *params.MTU > tag.MTU {
					fieldErrs = append(fieldErrs, api.InvalidField("mtu", "mtu exceeds that of nic tag %q (%d)", tag.Name, tag.MTU))
				} else {
					network.MTU = *params.MTU
				}
			}
		}

		if len(fieldErrs) > 0 {
			return nil, api.InvalidParamsError(fieldErrs...)
		}

		network.Gateway = gateway
		network.Resolvers = resolvers
		network.Routes = routes
		network.OwnerUUIDs = ownerUUIDs
		network.ProvisionStartIP = ipaddr.Format(start)
		network.ProvisionEndIP = ipaddr.Format(end)

		newRange := networkRange{subnet: oldRange.subnet, family: oldRange.family, provisionStart: start, provisionEnd: end}

		ops := []db.Op{db.PutOp(bucketNetworks, networkUUID, *network, db.PutOptions{IfMatch: etag})}

		sentinelOps, err := s.sentinelMoveOps(ctx, networkUUID, oldRange, &newRange)
		if err != nil {
			return nil, err
		}

		ops = append(ops, sentinelOps...)

		err = s.DB.Batch(ctx, ops)
		if err != nil {
			var batchErr *db.BatchError
			if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
				continue
			}

			return nil, storeErr(ctx, err)
		}

		s.publish(api.EventTypeNetwork, api.EventActionUpdate, networkUUID, *network)

		return network, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}

// sentinelMoveOps builds the batch operations moving the gap scan sentinels
// from the old provision range to the new one. Only bare placeholders are
// deleted; any address that gained an assignment, a reservation or an owner
// keeps its record (it bounds the scan just as well).
func (s *State) sentinelMoveOps(ctx context.Context, networkUUID string, oldRange *networkRange, newRange *networkRange) ([]db.Op, error) {
	bucket := ipBucketName(networkUUID)

	oldRecords := placeholderRecords(oldRange)
	newRecords := placeholderRecords(newRange)

	var ops []db.Op

	for key := range oldRecords {
		_, still := newRecords[key]
		if still {
			continue
		}

		obj, err := s.DB.Get(ctx, bucket, key)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, storeErr(ctx, err)
		}

		var record rawIP
		err = obj.Unmarshal(&record)
		if err != nil {
			return nil, api.InternalError(err)
		}

		if record.isPlaceholder() && !record.Reserved {
			ops = append(ops, db.DeleteOp(bucket, key, db.DeleteOptions{IfMatch: obj.Etag}))
		}
	}

	for key, record := range newRecords {
		_, had := oldRecords[key]
		if had {
			continue
		}

		_, err := s.DB.Get(ctx, bucket, key)
		if err == nil {
			continue
		}

		if !errors.Is(err, db.ErrNotFound) {
			return nil, storeErr(ctx, err)
		}

		ops = append(ops, db.PutOp(bucket, key, record, db.PutOptions{IfMissing: true}))
	}

	return ops, nil
}

// DeleteNetwork removes a network and its IP bucket once nothing references
// it. The network row goes first so no new allocation can slip in before
// the bucket drop.
func (s *State) DeleteNetwork(ctx context.Context, networkUUID string) error {
	network, etag, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return err
	}

	nics, err := s.DB.Find(ctx, bucketNics, db.Eq("network_uuid", networkUUID), db.FindOptions{})
	if err != nil {
		return storeErr(ctx, err)
	}

	pools, err := s.DB.Find(ctx, bucketNetworkPools, db.Eq("networks", networkUUID), db.FindOptions{})
	if err != nil {
		return storeErr(ctx, err)
	}

	if len(nics.Objects) > 0 || len(pools.Objects) > 0 {
		items := make([]api.FieldError, 0, len(nics.Objects)+len(pools.Objects))
		for _, obj := range nics.Objects {
			var nic rawNic

			err = obj.Unmarshal(&nic)
			if err != nil {
				return api.InternalError(err)
			}

			items = append(items, api.FieldError{Type: "nic", ID: nic.MAC})
		}

		for _, obj := range pools.Objects {
			items = append(items, api.FieldError{Type: "network_pool", ID: obj.Key})
		}

		return api.InUseError("Network is in use", items...)
	}

	err = s.DB.Delete(ctx, bucketNetworks, networkUUID, db.DeleteOptions{IfMatch: etag})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return api.NotFoundError("Network %q not found", networkUUID)
		}

		if errors.Is(err, db.ErrEtagConflict) {
			return api.TransientError(err)
		}

		return storeErr(ctx, err)
	}

	if s.Subnets != nil {
		subnet, err := ipaddr.ParseCIDR(network.Subnet)
		if err == nil {
			s.Subnets.Remove(subnet, networkUUID)
		}
	}

	err = s.DB.DeleteBucket(ctx, ipBucketName(networkUUID))
	if err != nil && !errors.Is(err, db.ErrBucketNotFound) {
		// The row is gone; the orphan bucket is swept at next startup.
		logger.Warn("Failed to drop IP bucket", logger.Ctx{"network": networkUUID, "err": err})
	}

	s.publish(api.EventTypeNetwork, api.EventActionDelete, networkUUID, nil)

	logger.Info("Deleted network", logger.Ctx{"uuid": networkUUID, "name": network.Name})

	return nil
}
