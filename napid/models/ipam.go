package models

import (
	"context"
	"errors"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
)

// allocAttempts bounds how many times an allocation restarts selection
// after losing a claim race.
const allocAttempts = 10

// allocRequest describes one address allocation: who is claiming (the nic's
// MAC in colon form), for which owner, and whether the caller asked for a
// concrete address or a reservation.
type allocRequest struct {
	ip         string
	mac        string
	ownerUUID  string
	reserved   bool
	checkOwner bool
}

// ipClaim is a selected candidate address together with the conditional put
// that claims it. The put travels in the same batch as the nic write, so
// either both land or neither does.
type ipClaim struct {
	key    string
	record rawIP
	opts   db.PutOptions
}

func (c *ipClaim) op(networkUUID string) db.Op {
	return db.PutOp(ipBucketName(networkUUID), c.key, c.record, c.opts)
}

func (c *ipClaim) view(networkUUID string) api.IP {
	return c.record.view(networkUUID)
}

// claimedRecord is the shape a fresh claim writes.
func claimedRecord(ipStr string, req *allocRequest) rawIP {
	return rawIP{
		IP:            ipStr,
		Reserved:      req.reserved,
		BelongsToType: belongsToTypeNic,
		BelongsToUUID: req.mac,
		OwnerUUID:     req.ownerUUID,
		ModifiedAt:    nowMillis(),
	}
}

// allocCandidate selects the address a provisioning attempt should claim:
// the caller's explicit address if any, else the lowest unrecorded address
// in the provision range, else the oldest freed record. The returned claim
// has not been written; the caller commits it and restarts selection when
// the commit loses a race.
func (s *State) allocCandidate(ctx context.Context, network *api.Network, rng *networkRange, req *allocRequest) (*ipClaim, error) {
	if req.ip != "" {
		return s.explicitCandidate(ctx, network, rng, req)
	}

	return s.scanCandidate(ctx, network, rng, req)
}

// explicitCandidate validates and claims a caller specified address.
func (s *State) explicitCandidate(ctx context.Context, network *api.Network, rng *networkRange, req *allocRequest) (*ipClaim, error) {
	addr, err := ipAddrInNetwork(network, req.ip)
	if err != nil {
		return nil, err
	}

	if rng.isV4() && addr == ipaddr.Broadcast(rng.subnet) {
		return nil, api.InvalidParamsError(api.InvalidField("ip", "the broadcast address cannot be assigned"))
	}

	key := ipaddr.BucketKey(addr)

	obj, err := s.DB.Get(ctx, ipBucketName(network.UUID), key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return &ipClaim{key: key, record: claimedRecord(ipaddr.Format(addr), req), opts: db.PutOptions{IfMissing: true}}, nil
		}

		return nil, storeErr(ctx, err)
	}

	var existing rawIP
	err = obj.Unmarshal(&existing)
	if err != nil {
		return nil, api.InternalError(err)
	}

	if existing.BelongsToUUID != "" && existing.BelongsToUUID != req.mac {
		return nil, api.InvalidParamsError(api.FieldError{
			Field:   "ip",
			Code:    api.FieldCodeUsedBy,
			Message: "IP in use",
			ID:      existing.BelongsToUUID,
			Type:    existing.BelongsToType,
		})
	}

	reservedForOther := existing.Reserved && existing.OwnerUUID != "" && existing.OwnerUUID != req.ownerUUID
	if reservedForOther && req.checkOwner && req.ownerUUID != s.AdminUUID {
		return nil, api.InvalidParamsError(api.InvalidField("owner_uuid", "IP %s is reserved for a different owner", existing.IP))
	}

	record := existing
	record.BelongsToType = belongsToTypeNic
	record.BelongsToUUID = req.mac
	record.OwnerUUID = req.ownerUUID
	record.Reserved = existing.Reserved || req.reserved
	record.ModifiedAt = nowMillis()

	return &ipClaim{key: key, record: record, opts: db.PutOptions{IfMatch: obj.Etag}}, nil
}

// scanCandidate picks the next fresh address: first key gap in the
// provision range, else the freed record with the oldest write stamp.
func (s *State) scanCandidate(ctx context.Context, network *api.Network, rng *networkRange, req *allocRequest) (*ipClaim, error) {
	bucket := ipBucketName(network.UUID)

	lo := ipaddr.ToNumeric(rng.provisionStart)
	hi := ipaddr.ToNumeric(rng.provisionEnd)

	gaps, err := s.DB.GapScan(ctx, bucket, lo, hi, 1)
	if err != nil {
		return nil, storeErr(ctx, err)
	}

	if len(gaps) > 0 {
		addr, err := ipaddr.FromNumeric(gaps[0].Lo, rng.family)
		if err != nil {
			return nil, api.InternalError(err)
		}

		return &ipClaim{
			key:    ipaddr.BucketKey(addr),
			record: claimedRecord(ipaddr.Format(addr), req),
			opts:   db.PutOptions{IfMissing: true},
		}, nil
	}

	// Every address in the range has a record. Reuse freed ones in the
	// order they were released. The key bounds keep the scan away from the
	// sentinels sitting just outside the range.
	filter := db.And(
		db.Absent("belongs_to_uuid"),
		db.Eq("reserved", false),
		db.KeyGe(ipaddr.BucketKey(rng.provisionStart)),
		db.KeyLe(ipaddr.BucketKey(rng.provisionEnd)),
	)

	res, err := s.DB.Find(ctx, bucket, filter, db.FindOptions{Sort: []db.Sort{{Field: "modified_at"}}, Limit: 1})
	if err != nil {
		return nil, storeErr(ctx, err)
	}

	if len(res.Objects) == 0 {
		return nil, api.SubnetFullError()
	}

	var freed rawIP
	err = res.Objects[0].Unmarshal(&freed)
	if err != nil {
		return nil, api.InternalError(err)
	}

	freed.BelongsToType = belongsToTypeNic
	freed.BelongsToUUID = req.mac
	freed.OwnerUUID = req.ownerUUID
	freed.Reserved = req.reserved
	freed.ModifiedAt = nowMillis()

	return &ipClaim{key: res.Objects[0].Key, record: freed, opts: db.PutOptions{IfMatch: res.Objects[0].Etag}}, nil
}

// freeRecordOps builds the batch op releasing a nic's address on delete,
// rebind or unbind: belongs_to is cleared, reservation and owner survive.
// Nothing is emitted when the record is not actually held by the nic.
func (s *State) freeRecordOps(ctx context.Context, networkUUID string, ipStr string, mac string) ([]db.Op, *api.IP, error) {
	bucket := ipBucketName(networkUUID)

	addr, err := ipaddr.Parse(ipStr)
	if err != nil {
		return nil, nil, nil
	}

	key := ipaddr.BucketKey(addr)

	obj, err := s.DB.Get(ctx, bucket, key)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, nil
		}

		return nil, nil, storeErr(ctx, err)
	}

	var record rawIP
	err = obj.Unmarshal(&record)
	if err != nil {
		return nil, nil, api.InternalError(err)
	}

	if record.BelongsToUUID != mac {
		return nil, nil, nil
	}

	record.BelongsToType = ""
	record.BelongsToUUID = ""
	record.ModifiedAt = nowMillis()

	view := record.view(networkUUID)

	return []db.Op{db.PutOp(bucket, key, record, db.PutOptions{IfMatch: obj.Etag})}, &view, nil
}
