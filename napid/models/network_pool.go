package models

import (
	"context"
	"errors"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/validate"
)

// poolMaxNetworks bounds pool membership.
const poolMaxNetworks = 64

// NetworkPoolListParams filter GET /network_pools.
type NetworkPoolListParams struct {
	PageParams `mapstructure:",squash"`

	UUID            string `mapstructure:"uuid"`
	Name            string `mapstructure:"name"`
	Family          string `mapstructure:"family"`
	NetworkUUID     string `mapstructure:"network_uuid"`
	NicTag          string `mapstructure:"nic_tag"`
	ProvisionableBy string `mapstructure:"provisionable_by"`
}

func (s *State) poolByUUID(ctx context.Context, poolUUID string) (*api.NetworkPool, string, error) {
	obj, err := s.DB.Get(ctx, bucketNetworkPools, poolUUID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", api.NotFoundError("Network pool %q not found", poolUUID)
		}

		return nil, "", storeErr(ctx, err)
	}

	var pool api.NetworkPool
	err = obj.Unmarshal(&pool)
	if err != nil {
		return nil, "", api.InternalError(err)
	}

	return &pool, obj.Etag, nil
}

// poolNameTaken reports whether another pool already uses the name.
func (s *State) poolNameTaken(ctx context.Context, name string, selfUUID string) (bool, error) {
	res, err := s.DB.Find(ctx, bucketNetworkPools, db.Eq("name", name), db.FindOptions{})
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

// poolMembers resolves the member list to network rows, preserving the
// declared order. Unknown and duplicated uuids come back as field errors.
func (s *State) poolMembers(ctx context.Context, networkUUIDs []string) ([]api.Network, []api.FieldError, error) {
	if len(networkUUIDs) == 0 {
		return nil, []api.FieldError{api.MissingField("networks")}, nil
	}

	if len(networkUUIDs) > poolMaxNetworks {
		return nil, []api.FieldError{api.InvalidField("networks", "at most %d networks per pool", poolMaxNetworks)}, nil
	}

	var fieldErrs []api.FieldError

	seen := make(map[string]struct{}, len(networkUUIDs))
	members := make([]api.Network, 0, len(networkUUIDs))

	for _, networkUUID := range networkUUIDs {
		err := validate.IsUUID(networkUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("networks", "%v", err))
			continue
		}

		_, dup := seen[networkUUID]
		if dup {
			fieldErrs = append(fieldErrs, api.DuplicateField("networks", "network %q appears twice", networkUUID))
			continue
		}

		seen[networkUUID] = struct{}{}

		network, _, err := s.networkByUUID(ctx, networkUUID)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				fieldErrs = append(fieldErrs, api.InvalidField("networks", "network %q does not exist", networkUUID))
				continue
			}

			return nil, nil, err
		}

		members = append(members, *network)
	}

	return members, fieldErrs, nil
}

// derivePoolShape fills the derived pool fields from the resolved members:
// the shared family, the first member's nic tag and the set of tags present.
// Mixed families are rejected; owner lists must leave every member
// provisionable by at least one pool owner.
func derivePoolShape(pool *api.NetworkPool, members []api.Network) []api.FieldError {
	var fieldErrs []api.FieldError

	family := members[0].Family
	for _, member := range members[1:] {
		if member.Family != family {
			fieldErrs = append(fieldErrs, api.InvalidField("networks", "mixed address families in pool"))
			break
		}
	}

	tags := make([]string, 0, len(members))
	for _, member := range members {
		if !slices.Contains(tags, member.NicTag) {
			tags = append(tags, member.NicTag)
		}
	}

	sort.Strings(tags)

	if len(pool.OwnerUUIDs) > 0 {
		for _, member := range members {
			if len(member.OwnerUUIDs) == 0 {
				continue
			}

			ok := false
			for _, owner := range pool.OwnerUUIDs {
				if slices.Contains(member.OwnerUUIDs, owner) {
					ok = true
					break
				}
			}

			if !ok {
				fieldErrs = append(fieldErrs, api.InvalidField("owner_uuids", "network %q is not provisionable by any pool owner", member.UUID))
			}
		}
	}

	pool.Family = family
	pool.NicTag = members[0].NicTag
	pool.NicTagsPresent = tags

	return fieldErrs
}

// ListNetworkPools returns pools sorted by name plus the total match count.
func (s *State) ListNetworkPools(ctx context.Context, params NetworkPoolListParams) ([]api.NetworkPool, int, error) {
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

	if params.Family != "" {
		family, err := ipaddr.ParseFamily(params.Family)
		if err != nil {
			return nil, 0, api.InvalidParamsError(api.InvalidField("family", "%v", err))
		}

		clauses = append(clauses, db.Eq("family", string(family)))
	}

	if params.NetworkUUID != "" {
		clauses = append(clauses, db.Eq("networks", params.NetworkUUID))
	}

	if params.NicTag != "" {
		clauses = append(clauses, db.Eq("nic_tags_present", params.NicTag))
	}

	ownerFilter := s.provisionableBy(params.ProvisionableBy)
	if ownerFilter != nil {
		clauses = append(clauses, ownerFilter)
	}

	opts := db.FindOptions{Sort: []db.Sort{{Field: "name"}}, Limit: limit, Offset: offset}

	res, err := s.DB.Find(ctx, bucketNetworkPools, db.And(clauses...), opts)
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	pools := make([]api.NetworkPool, 0, len(res.Objects))
	for _, obj := range res.Objects {
		var pool api.NetworkPool

		err = obj.Unmarshal(&pool)
		if err != nil {
			return nil, 0, api.InternalError(err)
		}

		pools = append(pools, pool)
	}

	return pools, res.Total, nil
}

// GetNetworkPool returns one pool. With provisionableBy set the owner match
// predicate is enforced and a failing lookup turns into NotAuthorized.
func (s *State) GetNetworkPool(ctx context.Context, poolUUID string, provisionableBy string) (*api.NetworkPool, error) {
	pool, _, err := s.poolByUUID(ctx, poolUUID)
	if err != nil {
		return nil, err
	}

	if provisionableBy != "" && !s.ownerAllowed(pool.OwnerUUIDs, provisionableBy) {
		return nil, api.NotAuthorizedError()
	}

	return pool, nil
}

// CreateNetworkPool validates the member list, derives family and nic tags
// from it and persists the pool.
func (s *State) CreateNetworkPool(ctx context.Context, params api.NetworkPoolCreate) (*api.NetworkPool, error) {
	var fieldErrs []api.FieldError

	if params.Name == "" {
		fieldErrs = append(fieldErrs, api.MissingField("name"))
	} else {
		err := validate.IsName(params.Name)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("name", "%v", err))
		}
	}

	poolUUID := params.UUID
	if poolUUID == "" {
		poolUUID = uuid.New().String()
	} else {
		err := validate.IsUUID(poolUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("uuid", "%v", err))
		}
	}

	err := validate.IsUUIDSlice(params.OwnerUUIDs)
	if err != nil {
		fieldErrs = append(fieldErrs, api.InvalidField("owner_uuids", "%v", err))
	}

	members, memberErrs, err := s.poolMembers(ctx, params.Networks)
	if err != nil {
		return nil, err
	}

	fieldErrs = append(fieldErrs, memberErrs...)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	pool := api.NetworkPool{
		UUID:        poolUUID,
		Name:        params.Name,
		Description: params.Description,
		Networks:    params.Networks,
		OwnerUUIDs:  params.OwnerUUIDs,
	}

	fieldErrs = derivePoolShape(&pool, members)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	taken, err := s.poolNameTaken(ctx, pool.Name, pool.UUID)
	if err != nil {
		return nil, err
	}

	if taken {
		return nil, api.InvalidParamsError(api.DuplicateField("name", "Network pool %q already exists", pool.Name))
	}

	_, err = s.DB.Put(ctx, bucketNetworkPools, pool.UUID, pool, db.PutOptions{IfMissing: true})
	if err != nil {
		if errors.Is(err, db.ErrEtagConflict) {
			return nil, api.InvalidParamsError(api.DuplicateField("uuid", "Network pool %q already exists", pool.UUID))
		}

		return nil, storeErr(ctx, err)
	}

	s.publish(api.EventTypeNetworkPool, api.EventActionCreate, pool.UUID, pool)

	logger.Info("Created network pool", logger.Ctx{"uuid": pool.UUID, "name": pool.Name, "networks": len(pool.Networks)})

	return &pool, nil
}

// UpdateNetworkPool changes the name, description, member list or owner
// list. Member changes re-derive family and nic tags; the family may not
// change once set.
func (s *State) UpdateNetworkPool(ctx context.Context, poolUUID string, params api.NetworkPoolUpdate) (*api.NetworkPool, error) {
	var fieldErrs []api.FieldError

	if params.Name != nil {
		err := validate.IsName(*params.Name)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("name", "%v", err))
		}
	}

	if params.OwnerUUIDs != nil {
		err := validate.IsUUIDSlice(*params.OwnerUUIDs)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("owner_uuids", "%v", err))
		}
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		pool, etag, err := s.poolByUUID(ctx, poolUUID)
		if err != nil {
			return nil, err
		}

		oldFamily := pool.Family

		if params.Name != nil && *params.Name != pool.Name {
			taken, err := s.poolNameTaken(ctx, *params.Name, poolUUID)
			if err != nil {
				return nil, err
			}

			if taken {
				return nil, api.InvalidParamsError(api.DuplicateField("name", "Network pool %q already exists", *params.Name))
			}

			pool.Name = *params.Name
		}

		if params.Description != nil {
			pool.Description = *params.Description
		}

		if params.OwnerUUIDs != nil {
			pool.OwnerUUIDs = *params.OwnerUUIDs
		}

		if params.Networks != nil {
			pool.Networks = *params.Networks
		}

		// Owner and member changes both re-check the pool shape against
		// the resolved member networks.
		members, memberErrs, err := s.poolMembers(ctx, pool.Networks)
		if err != nil {
			return nil, err
		}

		if len(memberErrs) > 0 {
			return nil, api.InvalidParamsError(memberErrs...)
		}

		fieldErrs = derivePoolShape(pool, members)

		if params.Networks != nil && pool.Family != oldFamily {
			fieldErrs = append(fieldErrs, api.InvalidField("networks", "pool family is %s and cannot change", oldFamily))
		}

		if len(fieldErrs) > 0 {
			return nil, api.InvalidParamsError(fieldErrs...)
		}

		_, err = s.DB.Put(ctx, bucketNetworkPools, poolUUID, pool, db.PutOptions{IfMatch: etag})
		if err != nil {
			if errors.Is(err, db.ErrEtagConflict) {
				continue
			}

			return nil, storeErr(ctx, err)
		}

		s.publish(api.EventTypeNetworkPool, api.EventActionUpdate, poolUUID, *pool)

		return pool, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}

// DeleteNetworkPool removes a pool. Membership is stored only on the pool
// side, so nothing else can hold a reference.
func (s *State) DeleteNetworkPool(ctx context.Context, poolUUID string) error {
	_, etag, err := s.poolByUUID(ctx, poolUUID)
	if err != nil {
		return err
	}

	err = s.DB.Delete(ctx, bucketNetworkPools, poolUUID, db.DeleteOptions{IfMatch: etag})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return api.NotFoundError("Network pool %q not found", poolUUID)
		}

		if errors.Is(err, db.ErrEtagConflict) {
			return api.TransientError(err)
		}

		return storeErr(ctx, err)
	}

	s.publish(api.EventTypeNetworkPool, api.EventActionDelete, poolUUID, nil)

	logger.Info("Deleted network pool", logger.Ctx{"uuid": poolUUID})

	return nil
}

// ProvisionNicOnPool walks the pool's member networks in declared order and
// provisions on the first that accepts: wrong family or nic tag skips the
// member, a full subnet advances to the next, anything else surfaces
// immediately. A pool spanning several nic tags needs a tag hint up front.
func (s *State) ProvisionNicOnPool(ctx context.Context, poolUUID string, params api.NicCreate) (*api.Nic, error) {
	fieldErrs := validateNicCreate(params, false, true)

	if params.IP != "" {
		fieldErrs = append(fieldErrs, api.InvalidField("ip", "cannot specify an IP when provisioning on a network pool"))
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	pool, _, err := s.poolByUUID(ctx, poolUUID)
	if err != nil {
		return nil, err
	}

	checkOwner := params.CheckOwner == nil || *params.CheckOwner
	if checkOwner && !s.ownerAllowed(pool.OwnerUUIDs, params.OwnerUUID) {
		return nil, api.InvalidParamsError(api.InvalidField("owner_uuid", "owner cannot provision on network pool %q", poolUUID))
	}

	hints := params.NicTagsAvailable
	if params.NicTag != "" {
		hints = append([]string{params.NicTag}, hints...)
	}

	if len(hints) == 0 && len(pool.NicTagsPresent) > 1 {
		return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "network pool %q spans multiple nic tags; specify nic_tag or nic_tags_available", poolUUID))
	}

	if params.State == "" {
		params.State = api.NicStateProvisioning
	}

	for _, networkUUID := range pool.Networks {
		network, _, err := s.networkByUUID(ctx, networkUUID)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				// Member deleted since the pool was written.
				continue
			}

			return nil, err
		}

		if network.Family != pool.Family {
			continue
		}

		if len(hints) > 0 && !slices.Contains(hints, network.NicTag) {
			continue
		}

		if checkOwner && !s.ownerAllowed(network.OwnerUUIDs, params.OwnerUUID) {
			continue
		}

		memberParams := params
		memberParams.NicTag = ""
		memberParams.NicTagsAvailable = nil

		nic, err := s.provisionOnNetwork(ctx, network, memberParams, params.MAC == "")
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeSubnetFull) {
				logger.Debug("Pool member is full, trying next", logger.Ctx{"pool": poolUUID, "network": networkUUID})
				continue
			}

			return nil, err
		}

		return nic, nil
	}

	s.observeAllocation("pool_full")

	return nil, api.PoolFullError(poolUUID)
}
