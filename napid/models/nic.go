package models

import (
	"context"
	"errors"
	"slices"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/logger"
	"github.com/netfabric/napi/shared/macaddr"
	"github.com/netfabric/napi/shared/validate"
)

// rawNic is the stored shape of a nic. Netmask, gateway, vlan and mtu are
// not persisted; they come from the bound network at render time so network
// updates show through immediately.
type rawNic struct {
	MAC           string `json:"mac"`
	PrimaryFlag   bool   `json:"primary_flag"`
	OwnerUUID     string `json:"owner_uuid"`
	BelongsToUUID string `json:"belongs_to_uuid"`
	BelongsToType string `json:"belongs_to_type"`
	State         string `json:"state"`
	IP            string `json:"ip,omitempty"`
	NetworkUUID   string `json:"network_uuid,omitempty"`
	NicTag        string `json:"nic_tag,omitempty"`
	CNUUID        string `json:"cn_uuid,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	ModifiedAt    int64  `json:"modified_at"`
}

// view renders the nic, folding in the bound network's link parameters.
func (r *rawNic) view(network *api.Network) api.Nic {
	nic := api.Nic{
		MAC:           r.MAC,
		Primary:       r.PrimaryFlag,
		OwnerUUID:     r.OwnerUUID,
		BelongsToUUID: r.BelongsToUUID,
		BelongsToType: r.BelongsToType,
		State:         r.State,
		IP:            r.IP,
		NetworkUUID:   r.NetworkUUID,
		NicTag:        r.NicTag,
		CNUUID:        r.CNUUID,
		CreatedAt:     r.CreatedAt,
		ModifiedAt:    r.ModifiedAt,
	}

	if network != nil {
		nic.Netmask = network.Netmask
		nic.Gateway = network.Gateway
		nic.NicTag = network.NicTag

		vlanID := network.VLANID
		nic.VLANID = &vlanID

		mtu := network.MTU
		nic.MTU = &mtu
	}

	return nic
}

// NicListParams filter GET /nics.
type NicListParams struct {
	PageParams `mapstructure:",squash"`

	MAC           string `mapstructure:"mac"`
	OwnerUUID     string `mapstructure:"owner_uuid"`
	BelongsToUUID string `mapstructure:"belongs_to_uuid"`
	BelongsToType string `mapstructure:"belongs_to_type"`
	NetworkUUID   string `mapstructure:"network_uuid"`
	NicTag        string `mapstructure:"nic_tag"`
	State         string `mapstructure:"state"`
	CNUUID        string `mapstructure:"cn_uuid"`
	Primary       *bool  `mapstructure:"primary"`
}

// parseMACParam interprets a MAC path or filter parameter in any of the
// accepted forms.
func parseMACParam(macStr string) (uint64, error) {
	mac, err := macaddr.Parse(macStr)
	if err != nil {
		return 0, api.InvalidParamsError(api.InvalidField("mac", "invalid MAC address %q", macStr))
	}

	return mac, nil
}

func (s *State) nicByKey(ctx context.Context, key string, mac uint64) (*rawNic, string, error) {
	obj, err := s.DB.Get(ctx, bucketNics, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, "", api.NotFoundError("Nic %q not found", macaddr.Format(mac))
		}

		return nil, "", storeErr(ctx, err)
	}

	var raw rawNic
	err = obj.Unmarshal(&raw)
	if err != nil {
		return nil, "", api.InternalError(err)
	}

	return &raw, obj.Etag, nil
}

// networkOrNil loads a network for rendering, tolerating a missing row.
func (s *State) networkOrNil(ctx context.Context, networkUUID string) (*api.Network, error) {
	if networkUUID == "" {
		return nil, nil
	}

	network, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return network, nil
}

// ListNics returns nics in ascending MAC order plus the total match count.
func (s *State) ListNics(ctx context.Context, params NicListParams) ([]api.Nic, int, error) {
	limit, offset, fieldErrs := params.normalize()
	if len(fieldErrs) > 0 {
		return nil, 0, api.InvalidParamsError(fieldErrs...)
	}

	var clauses []db.Filter
	if params.MAC != "" {
		mac, err := parseMACParam(params.MAC)
		if err != nil {
			return nil, 0, err
		}

		clauses = append(clauses, db.Eq("mac", macaddr.Format(mac)))
	}

	if params.OwnerUUID != "" {
		clauses = append(clauses, db.Eq("owner_uuid", params.OwnerUUID))
	}

	if params.BelongsToUUID != "" {
		clauses = append(clauses, db.Eq("belongs_to_uuid", params.BelongsToUUID))
	}

	if params.BelongsToType != "" {
		clauses = append(clauses, db.Eq("belongs_to_type", params.BelongsToType))
	}

	if params.NetworkUUID != "" {
		clauses = append(clauses, db.Eq("network_uuid", params.NetworkUUID))
	}

	if params.NicTag != "" {
		clauses = append(clauses, db.Eq("nic_tag", params.NicTag))
	}

	if params.State != "" {
		clauses = append(clauses, db.Eq("state", params.State))
	}

	if params.CNUUID != "" {
		clauses = append(clauses, db.Eq("cn_uuid", params.CNUUID))
	}

	if params.Primary != nil {
		clauses = append(clauses, db.Eq("primary_flag", *params.Primary))
	}

	res, err := s.DB.Find(ctx, bucketNics, db.And(clauses...), db.FindOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, storeErr(ctx, err)
	}

	// Load each referenced network once for the render.
	networks := map[string]*api.Network{}
	raws := make([]rawNic, 0, len(res.Objects))

	for _, obj := range res.Objects {
		var raw rawNic

		err = obj.Unmarshal(&raw)
		if err != nil {
			return nil, 0, api.InternalError(err)
		}

		raws = append(raws, raw)

		if raw.NetworkUUID == "" {
			continue
		}

		_, seen := networks[raw.NetworkUUID]
		if !seen {
			network, err := s.networkOrNil(ctx, raw.NetworkUUID)
			if err != nil {
				return nil, 0, err
			}

			networks[raw.NetworkUUID] = network
		}
	}

	nics := make([]api.Nic, 0, len(raws))
	for _, raw := range raws {
		nics = append(nics, raw.view(networks[raw.NetworkUUID]))
	}

	return nics, res.Total, nil
}

// GetNic returns one nic by MAC.
func (s *State) GetNic(ctx context.Context, macStr string) (*api.Nic, error) {
	mac, err := parseMACParam(macStr)
	if err != nil {
		return nil, err
	}

	raw, _, err := s.nicByKey(ctx, macaddr.Key(mac), mac)
	if err != nil {
		return nil, err
	}

	network, err := s.networkOrNil(ctx, raw.NetworkUUID)
	if err != nil {
		return nil, err
	}

	view := raw.view(network)

	return &view, nil
}

// validateNicCreate covers the local checks of both create endpoints.
// macRequired is false on the provision endpoints, which generate one;
// boundToPath is true when the network comes from the URL.
func validateNicCreate(params api.NicCreate, macRequired bool, boundToPath bool) []api.FieldError {
	var fieldErrs []api.FieldError

	if params.MAC == "" {
		if macRequired {
			fieldErrs = append(fieldErrs, api.MissingField("mac"))
		}
	} else {
		_, err := macaddr.Parse(params.MAC)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("mac", "invalid MAC address %q", params.MAC))
		}
	}

	if params.OwnerUUID == "" {
		fieldErrs = append(fieldErrs, api.MissingField("owner_uuid"))
	} else {
		err := validate.IsUUID(params.OwnerUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("owner_uuid", "%v", err))
		}
	}

	if params.BelongsToUUID == "" {
		fieldErrs = append(fieldErrs, api.MissingField("belongs_to_uuid"))
	} else {
		err := validate.IsUUID(params.BelongsToUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("belongs_to_uuid", "%v", err))
		}
	}

	if params.BelongsToType == "" {
		fieldErrs = append(fieldErrs, api.MissingField("belongs_to_type"))
	} else {
		err := validate.IsBelongsToType(params.BelongsToType)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("belongs_to_type", "%v", err))
		}
	}

	if params.State != "" {
		err := validate.IsNicState(params.State)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("state", "%v", err))
		}
	}

	if params.CNUUID != "" {
		err := validate.IsUUID(params.CNUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("cn_uuid", "%v", err))
		}
	}

	if params.IP != "" {
		err := validate.IsIP(params.IP)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("ip", "%v", err))
		}

		if params.NetworkUUID == "" && !boundToPath {
			fieldErrs = append(fieldErrs, api.MissingField("network_uuid"))
		}
	}

	return fieldErrs
}

// networkForProvision loads the target network and applies the owner and
// nic tag policy for a provisioning request.
func (s *State) networkForProvision(ctx context.Context, networkUUID string, params *api.NicCreate) (*api.Network, error) {
	network, _, err := s.networkByUUID(ctx, networkUUID)
	if err != nil {
		return nil, err
	}

	checkOwner := params.CheckOwner == nil || *params.CheckOwner
	if checkOwner && !s.ownerAllowed(network.OwnerUUIDs, params.OwnerUUID) {
		return nil, api.InvalidParamsError(api.InvalidField("owner_uuid", "owner cannot provision on network %q", networkUUID))
	}

	if params.NicTag != "" && params.NicTag != network.NicTag {
		return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "network %q is on nic tag %q", networkUUID, network.NicTag))
	}

	if len(params.NicTagsAvailable) > 0 && !slices.Contains(params.NicTagsAvailable, network.NicTag) {
		return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "network %q is on nic tag %q", networkUUID, network.NicTag))
	}

	return network, nil
}

// CreateNic creates a nic with a caller supplied MAC: bound to a network
// (allocating or claiming an address) when network_uuid is given, unbound
// otherwise. Fresh nics default to the running state.
func (s *State) CreateNic(ctx context.Context, params api.NicCreate) (*api.Nic, error) {
	fieldErrs := validateNicCreate(params, true, false)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	if params.State == "" {
		params.State = api.NicStateRunning
	}

	if params.NetworkUUID == "" {
		return s.createUnboundNic(ctx, params)
	}

	network, err := s.networkForProvision(ctx, params.NetworkUUID, &params)
	if err != nil {
		if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
			return nil, api.InvalidParamsError(api.InvalidField("network_uuid", "network %q does not exist", params.NetworkUUID))
		}

		return nil, err
	}

	return s.provisionOnNetwork(ctx, network, params, false)
}

// ProvisionNic is POST /networks/:uuid/nics: the network comes from the
// path, the MAC is generated from the configured OUI when absent, and the
// nic starts in the provisioning state.
func (s *State) ProvisionNic(ctx context.Context, networkUUID string, params api.NicCreate) (*api.Nic, error) {
	fieldErrs := validateNicCreate(params, false, true)

	if params.NetworkUUID != "" && params.NetworkUUID != networkUUID {
		fieldErrs = append(fieldErrs, api.InvalidField("network_uuid", "does not match the request path"))
	}

	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	if params.State == "" {
		params.State = api.NicStateProvisioning
	}

	network, err := s.networkForProvision(ctx, networkUUID, &params)
	if err != nil {
		return nil, err
	}

	return s.provisionOnNetwork(ctx, network, params, params.MAC == "")
}

func (s *State) createUnboundNic(ctx context.Context, params api.NicCreate) (*api.Nic, error) {
	mac, _ := macaddr.Parse(params.MAC)

	if params.NicTag != "" {
		_, _, err := s.nicTagByName(ctx, params.NicTag)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
				return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "nic tag %q does not exist", params.NicTag))
			}

			return nil, err
		}
	}

	now := nowMillis()
	raw := rawNic{
		MAC:           macaddr.Format(mac),
		PrimaryFlag:   params.Primary != nil && *params.Primary,
		OwnerUUID:     params.OwnerUUID,
		BelongsToUUID: params.BelongsToUUID,
		BelongsToType: params.BelongsToType,
		State:         params.State,
		NicTag:        params.NicTag,
		CNUUID:        params.CNUUID,
		CreatedAt:     now,
		ModifiedAt:    now,
	}

	ops := []db.Op{db.PutOp(bucketNics, macaddr.Key(mac), raw, db.PutOptions{IfMissing: true})}
	if raw.PrimaryFlag {
		ops = append(ops, clearPrimaryOp(raw.BelongsToUUID, raw.MAC))
	}

	err := s.DB.Batch(ctx, ops)
	if err != nil {
		var batchErr *db.BatchError
		if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
			return nil, api.InvalidParamsError(api.DuplicateField("mac", "Nic %q already exists", raw.MAC))
		}

		return nil, storeErr(ctx, err)
	}

	view := raw.view(nil)

	s.publish(api.EventTypeNic, api.EventActionCreate, raw.MAC, view)

	return &view, nil
}

// provisionOnNetwork runs the claim loop: select an address, then commit
// the IP claim and the nic row in one batch. Losing the address race
// restarts selection; losing the MAC race regenerates (or reports a
// duplicate for caller supplied MACs).
func (s *State) provisionOnNetwork(ctx context.Context, network *api.Network, params api.NicCreate, generateMAC bool) (*api.Nic, error) {
	rng, err := parseNetworkRange(network)
	if err != nil {
		return nil, api.InternalError(err)
	}

	req := allocRequest{
		ip:         params.IP,
		ownerUUID:  params.OwnerUUID,
		reserved:   params.Reserved != nil && *params.Reserved,
		checkOwner: params.CheckOwner == nil || *params.CheckOwner,
	}

	raw := rawNic{
		PrimaryFlag:   params.Primary != nil && *params.Primary,
		OwnerUUID:     params.OwnerUUID,
		BelongsToUUID: params.BelongsToUUID,
		BelongsToType: params.BelongsToType,
		State:         params.State,
		NetworkUUID:   network.UUID,
		NicTag:        network.NicTag,
		CNUUID:        params.CNUUID,
	}

	var mac uint64
	if !generateMAC {
		mac, _ = macaddr.Parse(params.MAC)
	}

	needMAC := generateMAC

	for attempt := 0; attempt < allocAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, api.TransientError(ctx.Err())
		}

		if needMAC {
			mac, err = macaddr.Generate(s.MacOUI)
			if err != nil {
				return nil, api.InternalError(err)
			}

			needMAC = false
		}

		raw.MAC = macaddr.Format(mac)
		req.mac = raw.MAC

		claim, err := s.allocCandidate(ctx, network, rng, &req)
		if err != nil {
			if api.IsErrorCode(err, api.ErrCodeSubnetFull) {
				s.observeAllocation("subnet_full")
			}

			return nil, err
		}

		now := nowMillis()
		raw.IP = claim.record.IP
		raw.CreatedAt = now
		raw.ModifiedAt = now

		ops := []db.Op{
			claim.op(network.UUID),
			db.PutOp(bucketNics, macaddr.Key(mac), raw, db.PutOptions{IfMissing: true}),
		}

		if raw.PrimaryFlag {
			ops = append(ops, clearPrimaryOp(raw.BelongsToUUID, raw.MAC))
		}

		err = s.DB.Batch(ctx, ops)
		if err != nil {
			var batchErr *db.BatchError
			if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
				if batchErr.Index == 0 {
					// Lost the address race; select again.
					s.observeConflict(network.UUID)
					continue
				}

				if generateMAC {
					needMAC = true
					continue
				}

				return nil, api.InvalidParamsError(api.DuplicateField("mac", "Nic %q already exists", raw.MAC))
			}

			return nil, storeErr(ctx, err)
		}

		s.observeAllocation("ok")

		view := raw.view(network)

		s.publish(api.EventTypeNic, api.EventActionCreate, raw.MAC, view)
		s.publish(api.EventTypeIP, api.EventActionUpdate, network.UUID+"/"+claim.record.IP, claim.view(network.UUID))

		logger.Info("Provisioned nic", logger.Ctx{"mac": raw.MAC, "network": network.UUID, "ip": raw.IP})

		return &view, nil
	}

	s.observeAllocation("conflict")

	return nil, api.SubnetFullError()
}

// clearPrimaryOp demotes every other primary nic of the same owner entity.
func clearPrimaryOp(belongsToUUID string, selfMAC string) db.Op {
	filter := db.And(
		db.Eq("belongs_to_uuid", belongsToUUID),
		db.Eq("primary_flag", true),
		db.Ne("mac", selfMAC),
	)

	return db.UpdateOp(bucketNics, filter, map[string]any{
		"primary_flag": false,
		"modified_at":  nowMillis(),
	})
}

func validateNicUpdate(params api.NicUpdate) []api.FieldError {
	var fieldErrs []api.FieldError

	if params.OwnerUUID != nil {
		err := validate.IsUUID(*params.OwnerUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("owner_uuid", "%v", err))
		}
	}

	if params.BelongsToUUID != nil {
		err := validate.IsUUID(*params.BelongsToUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("belongs_to_uuid", "%v", err))
		}
	}

	if params.BelongsToType != nil {
		err := validate.IsBelongsToType(*params.BelongsToType)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("belongs_to_type", "%v", err))
		}
	}

	if params.State != nil {
		err := validate.IsNicState(*params.State)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("state", "%v", err))
		}
	}

	if params.CNUUID != nil && *params.CNUUID != "" {
		err := validate.IsUUID(*params.CNUUID)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("cn_uuid", "%v", err))
		}
	}

	if params.IP != nil && *params.IP != "" {
		err := validate.IsIP(*params.IP)
		if err != nil {
			fieldErrs = append(fieldErrs, api.InvalidField("ip", "%v", err))
		}
	}

	return fieldErrs
}

// UpdateNic merges the supplied fields into the nic. Binding changes
// (gaining a network, moving network or address, unbinding) commit the nic
// row, the released record and the claimed record in one batch.
func (s *State) UpdateNic(ctx context.Context, macStr string, params api.NicUpdate) (*api.Nic, error) {
	mac, err := parseMACParam(macStr)
	if err != nil {
		return nil, err
	}

	fieldErrs := validateNicUpdate(params)
	if len(fieldErrs) > 0 {
		return nil, api.InvalidParamsError(fieldErrs...)
	}

	key := macaddr.Key(mac)

	for attempt := 0; attempt < allocAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, api.TransientError(ctx.Err())
		}

		raw, etag, err := s.nicByKey(ctx, key, mac)
		if err != nil {
			return nil, err
		}

		oldIP := raw.IP
		oldNetworkUUID := raw.NetworkUUID

		if params.OwnerUUID != nil {
			raw.OwnerUUID = *params.OwnerUUID
		}

		if params.BelongsToUUID != nil {
			raw.BelongsToUUID = *params.BelongsToUUID
		}

		if params.BelongsToType != nil {
			raw.BelongsToType = *params.BelongsToType
		}

		if params.CNUUID != nil {
			raw.CNUUID = *params.CNUUID
		}

		if params.Primary != nil {
			raw.PrimaryFlag = *params.Primary
		}

		if params.State != nil {
			if *params.State == api.NicStateProvisioning && raw.State != api.NicStateProvisioning {
				return nil, api.InvalidParamsError(api.InvalidField("state", "cannot transition back into provisioning"))
			}

			raw.State = *params.State
		}

		targetNetworkUUID := raw.NetworkUUID
		if params.NetworkUUID != nil {
			targetNetworkUUID = *params.NetworkUUID
		}

		targetIP := raw.IP
		if params.IP != nil {
			targetIP = *params.IP
		}

		if targetNetworkUUID == "" && targetIP != "" && params.IP != nil {
			return nil, api.InvalidParamsError(api.MissingField("network_uuid"))
		}

		unbind := targetNetworkUUID == "" && oldNetworkUUID != ""
		rebind := targetNetworkUUID != "" && (targetNetworkUUID != oldNetworkUUID || targetIP != oldIP || oldNetworkUUID == "")

		var ops []db.Op
		var network *api.Network
		var claim *ipClaim
		var freedView *api.IP

		switch {
		case unbind:
			if oldIP != "" {
				freeOps, view, err := s.freeRecordOps(ctx, oldNetworkUUID, oldIP, raw.MAC)
				if err != nil {
					return nil, err
				}

				ops = append(ops, freeOps...)
				freedView = view
			}

			raw.IP = ""
			raw.NetworkUUID = ""
			raw.NicTag = ""
		case rebind:
			createParams := api.NicCreate{
				OwnerUUID:  raw.OwnerUUID,
				CheckOwner: params.CheckOwner,
			}

			if params.NicTag != nil {
				createParams.NicTag = *params.NicTag
			}

			createParams.NicTagsAvailable = params.NicTagsAvailable

			network, err = s.networkForProvision(ctx, targetNetworkUUID, &createParams)
			if err != nil {
				if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
					return nil, api.InvalidParamsError(api.InvalidField("network_uuid", "network %q does not exist", targetNetworkUUID))
				}

				return nil, err
			}

			rng, err := parseNetworkRange(network)
			if err != nil {
				return nil, api.InternalError(err)
			}

			req := allocRequest{
				mac:        raw.MAC,
				ownerUUID:  raw.OwnerUUID,
				checkOwner: params.CheckOwner == nil || *params.CheckOwner,
			}

			if params.IP != nil && targetIP != "" {
				req.ip = targetIP
			}

			claim, err = s.allocCandidate(ctx, network, rng, &req)
			if err != nil {
				if api.IsErrorCode(err, api.ErrCodeSubnetFull) {
					s.observeAllocation("subnet_full")
				}

				return nil, err
			}

			if oldIP != "" && (oldNetworkUUID != network.UUID || claim.record.IP != oldIP) {
				freeOps, view, err := s.freeRecordOps(ctx, oldNetworkUUID, oldIP, raw.MAC)
				if err != nil {
					return nil, err
				}

				ops = append(ops, freeOps...)
				freedView = view
			}

			ops = append(ops, claim.op(network.UUID))

			raw.IP = claim.record.IP
			raw.NetworkUUID = network.UUID
			raw.NicTag = network.NicTag
		default:
			if params.NicTag != nil && *params.NicTag != "" && oldNetworkUUID == "" {
				_, _, err := s.nicTagByName(ctx, *params.NicTag)
				if err != nil {
					if api.IsErrorCode(err, api.ErrCodeResourceNotFound) {
						return nil, api.InvalidParamsError(api.InvalidField("nic_tag", "nic tag %q does not exist", *params.NicTag))
					}

					return nil, err
				}

				raw.NicTag = *params.NicTag
			}
		}

		raw.ModifiedAt = nowMillis()

		ops = append(ops, db.PutOp(bucketNics, key, *raw, db.PutOptions{IfMatch: etag}))

		if params.Primary != nil && *params.Primary {
			ops = append(ops, clearPrimaryOp(raw.BelongsToUUID, raw.MAC))
		}

		err = s.DB.Batch(ctx, ops)
		if err != nil {
			var batchErr *db.BatchError
			if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
				if claim != nil {
					s.observeConflict(targetNetworkUUID)
				}

				continue
			}

			return nil, storeErr(ctx, err)
		}

		if network == nil {
			network, err = s.networkOrNil(ctx, raw.NetworkUUID)
			if err != nil {
				return nil, err
			}
		}

		view := raw.view(network)

		s.publish(api.EventTypeNic, api.EventActionUpdate, raw.MAC, view)

		if freedView != nil {
			s.publish(api.EventTypeIP, api.EventActionUpdate, oldNetworkUUID+"/"+freedView.IP, *freedView)
		}

		if claim != nil {
			s.publish(api.EventTypeIP, api.EventActionUpdate, raw.NetworkUUID+"/"+claim.record.IP, claim.view(raw.NetworkUUID))
		}

		return &view, nil
	}

	return nil, api.TransientError(db.ErrEtagConflict)
}

// DeleteNic removes the nic and releases its address in the same batch.
// Reservations and ownership on the address survive.
func (s *State) DeleteNic(ctx context.Context, macStr string) error {
	mac, err := parseMACParam(macStr)
	if err != nil {
		return err
	}

	key := macaddr.Key(mac)

	for attempt := 0; attempt < casAttempts; attempt++ {
		raw, etag, err := s.nicByKey(ctx, key, mac)
		if err != nil {
			return err
		}

		aggs, err := s.DB.Find(ctx, bucketAggregations, db.Eq("macs", raw.MAC), db.FindOptions{})
		if err != nil {
			return storeErr(ctx, err)
		}

		if len(aggs.Objects) > 0 {
			items := make([]api.FieldError, 0, len(aggs.Objects))
			for _, obj := range aggs.Objects {
				items = append(items, api.FieldError{Type: "aggregation", ID: obj.Key})
			}

			return api.InUseError("Nic is in use", items...)
		}

		ops := []db.Op{db.DeleteOp(bucketNics, key, db.DeleteOptions{IfMatch: etag})}

		var freedView *api.IP
		if raw.IP != "" && raw.NetworkUUID != "" {
			freeOps, view, err := s.freeRecordOps(ctx, raw.NetworkUUID, raw.IP, raw.MAC)
			if err != nil {
				return err
			}

			ops = append(ops, freeOps...)
			freedView = view
		}

		err = s.DB.Batch(ctx, ops)
		if err != nil {
			var batchErr *db.BatchError
			if errors.As(err, &batchErr) && errors.Is(batchErr.Err, db.ErrEtagConflict) {
				continue
			}

			return storeErr(ctx, err)
		}

		s.publish(api.EventTypeNic, api.EventActionDelete, raw.MAC, nil)

		if freedView != nil {
			s.publish(api.EventTypeIP, api.EventActionUpdate, raw.NetworkUUID+"/"+freedView.IP, *freedView)
		}

		logger.Info("Deleted nic", logger.Ctx{"mac": raw.MAC})

		return nil
	}

	return api.TransientError(db.ErrEtagConflict)
}
