package models

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/gaissmai/bart"
	"golang.org/x/sync/errgroup"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
	"github.com/netfabric/napi/shared/logger"
)

// SubnetIndex answers "which networks contain this address" without touching
// storage. Network create and delete keep it current; LoadSubnetIndex seeds
// it at startup. Several networks may share one subnet, so each prefix maps
// to a set of network uuids.
type SubnetIndex struct {
	mu      sync.RWMutex
	table   bart.Table[[]string]
	members map[netip.Prefix]map[string]struct{}
}

// NewSubnetIndex returns an empty index.
func NewSubnetIndex() *SubnetIndex {
	return &SubnetIndex{members: make(map[netip.Prefix]map[string]struct{})}
}

// memberSlice snapshots a membership set. The routing table holds the
// snapshot so lookups never see a set mid-mutation.
func memberSlice(set map[string]struct{}) []string {
	uuids := make([]string, 0, len(set))
	for uuid := range set {
		uuids = append(uuids, uuid)
	}

	sort.Strings(uuids)

	return uuids
}

// Add records that networkUUID covers subnet.
func (idx *SubnetIndex) Add(subnet netip.Prefix, networkUUID string) {
	subnet = subnet.Masked()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	set := idx.members[subnet]
	if set == nil {
		set = make(map[string]struct{})
		idx.members[subnet] = set
	}

	set[networkUUID] = struct{}{}
	idx.table.Insert(subnet, memberSlice(set))
}

// Remove drops networkUUID from subnet's membership, removing the prefix
// entirely when it was the last member.
func (idx *SubnetIndex) Remove(subnet netip.Prefix, networkUUID string) {
	subnet = subnet.Masked()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	set := idx.members[subnet]
	if set == nil {
		return
	}

	delete(set, networkUUID)

	if len(set) == 0 {
		delete(idx.members, subnet)
		idx.table.Delete(subnet)

		return
	}

	idx.table.Insert(subnet, memberSlice(set))
}

// Containing returns the uuids of every network whose subnet covers addr,
// sorted. Prefixes of the other address family never match.
func (idx *SubnetIndex) Containing(addr netip.Addr) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	host := netip.PrefixFrom(addr, addr.BitLen())

	var uuids []string
	for _, members := range idx.table.Supernets(host) {
		uuids = append(uuids, members...)
	}

	sort.Strings(uuids)

	return uuids
}

// LoadSubnetIndex seeds the subnet index from the networks bucket. Runs once
// at startup after EnsureBuckets, before the listener opens; later create
// and delete operations maintain the index in place.
func (s *State) LoadSubnetIndex(ctx context.Context) error {
	if s.Subnets == nil {
		s.Subnets = NewSubnetIndex()
	}

	res, err := s.DB.Find(ctx, bucketNetworks, db.And(), db.FindOptions{})
	if err != nil {
		return fmt.Errorf("Failed to list networks: %w", err)
	}

	for _, obj := range res.Objects {
		var network api.Network

		err = obj.Unmarshal(&network)
		if err != nil {
			return fmt.Errorf("Failed to decode network %q: %w", obj.Key, err)
		}

		subnet, err := ipaddr.ParseCIDR(network.Subnet)
		if err != nil {
			return fmt.Errorf("Network %q has unparseable subnet: %w", obj.Key, err)
		}

		s.Subnets.Add(subnet, obj.Key)
	}

	logger.Info("Loaded subnet index", logger.Ctx{"networks": len(res.Objects)})

	return nil
}

// candidateNetworks returns the uuids of networks whose subnet contains
// addr. With no index built it scans the networks bucket instead.
func (s *State) candidateNetworks(ctx context.Context, addr netip.Addr) ([]string, error) {
	if s.Subnets != nil {
		return s.Subnets.Containing(addr), nil
	}

	res, err := s.DB.Find(ctx, bucketNetworks, db.And(), db.FindOptions{})
	if err != nil {
		return nil, storeErr(ctx, err)
	}

	var uuids []string
	for _, obj := range res.Objects {
		var network api.Network

		err = obj.Unmarshal(&network)
		if err != nil {
			return nil, api.InternalError(err)
		}

		subnet, err := ipaddr.ParseCIDR(network.Subnet)
		if err != nil {
			return nil, api.InternalError(err)
		}

		if ipaddr.InSubnet(addr, subnet) {
			uuids = append(uuids, obj.Key)
		}
	}

	sort.Strings(uuids)

	return uuids, nil
}

// SearchIPs returns the record for addr in every network whose subnet
// contains it, materializing the free view where no record exists yet. The
// per-network reads run concurrently. Not found when no network contains
// the address.
func (s *State) SearchIPs(ctx context.Context, ipStr string) ([]api.IP, error) {
	addr, err := ipaddr.Parse(ipStr)
	if err != nil {
		return nil, api.InvalidParamsError(api.InvalidField("ip", "invalid IP address %q", ipStr))
	}

	candidates, err := s.candidateNetworks(ctx, addr)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return nil, api.NotFoundError("No networks found containing %s", ipaddr.Format(addr))
	}

	found := make([]*api.IP, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, networkUUID := range candidates {
		group.Go(func() error {
			obj, err := s.DB.Get(groupCtx, ipBucketName(networkUUID), ipaddr.BucketKey(addr))
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					view := freeIPView(addr, networkUUID)
					found[i] = &view

					return nil
				}

				if errors.Is(err, db.ErrBucketNotFound) {
					// Network deleted between the index lookup and the read.
					return nil
				}

				return storeErr(groupCtx, err)
			}

			var record rawIP

			err = obj.Unmarshal(&record)
			if err != nil {
				return api.InternalError(err)
			}

			view := record.view(networkUUID)
			found[i] = &view

			return nil
		})
	}

	err = group.Wait()
	if err != nil {
		return nil, err
	}

	results := make([]api.IP, 0, len(found))
	for _, view := range found {
		if view != nil {
			results = append(results, *view)
		}
	}

	if len(results) == 0 {
		return nil, api.NotFoundError("No networks found containing %s", ipaddr.Format(addr))
	}

	return results, nil
}
