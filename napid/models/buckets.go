package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/netfabric/napi/napid/db"
	"github.com/netfabric/napi/shared/api"
	"github.com/netfabric/napi/shared/ipaddr"
	"github.com/netfabric/napi/shared/logger"
)

// Entity bucket names.
const (
	bucketNicTags      = "napi_nic_tags"
	bucketNetworks     = "napi_networks"
	bucketNetworkPools = "napi_network_pools"
	bucketNics         = "napi_nics"
	bucketAggregations = "napi_aggregations"
)

// ipBucketPrefix prefixes the per network IP buckets.
const ipBucketPrefix = "napi_ips_"

var nicTagsSchema = db.Schema{
	Name:    bucketNicTags,
	Version: 1,
	KeyKind: db.KeyString,
	Fields: []db.IndexField{
		{Name: "uuid", Type: db.FieldString},
		{Name: "name", Type: db.FieldString},
		{Name: "mtu", Type: db.FieldInt},
	},
	DataVersion: 1,
}

// Networks are at layout and data version 2: version 1 predates the derived
// subnet_start_ip/subnet_end_ip fields. Fresh stores start at 2 directly.
var networksSchema = db.Schema{
	Name:    bucketNetworks,
	Version: 2,
	KeyKind: db.KeyString,
	Fields: []db.IndexField{
		{Name: "uuid", Type: db.FieldString},
		{Name: "name", Type: db.FieldString},
		{Name: "nic_tag", Type: db.FieldString},
		{Name: "vlan_id", Type: db.FieldInt},
		{Name: "family", Type: db.FieldString},
		{Name: "owner_uuids", Type: db.FieldStringArray},
		{Name: "subnet_start_ip", Type: db.FieldString},
		{Name: "mtu", Type: db.FieldInt},
	},
	DataVersion: 2,
}

var networkPoolsSchema = db.Schema{
	Name:    bucketNetworkPools,
	Version: 1,
	KeyKind: db.KeyString,
	Fields: []db.IndexField{
		{Name: "uuid", Type: db.FieldString},
		{Name: "name", Type: db.FieldString},
		{Name: "family", Type: db.FieldString},
		{Name: "networks", Type: db.FieldStringArray},
		{Name: "nic_tags_present", Type: db.FieldStringArray},
		{Name: "owner_uuids", Type: db.FieldStringArray},
	},
	DataVersion: 1,
}

var nicsSchema = db.Schema{
	Name:    bucketNics,
	Version: 1,
	KeyKind: db.KeyDecimal,
	Fields: []db.IndexField{
		{Name: "mac", Type: db.FieldString},
		{Name: "owner_uuid", Type: db.FieldString},
		{Name: "belongs_to_uuid", Type: db.FieldString},
		{Name: "belongs_to_type", Type: db.FieldString},
		{Name: "nic_tag", Type: db.FieldString},
		{Name: "network_uuid", Type: db.FieldString},
		{Name: "ip", Type: db.FieldString},
		{Name: "state", Type: db.FieldString},
		{Name: "primary_flag", Type: db.FieldBool},
		{Name: "cn_uuid", Type: db.FieldString},
		{Name: "modified_at", Type: db.FieldInt},
	},
	DataVersion: 1,
}

var aggregationsSchema = db.Schema{
	Name:    bucketAggregations,
	Version: 1,
	KeyKind: db.KeyString,
	Fields: []db.IndexField{
		{Name: "id", Type: db.FieldString},
		{Name: "belongs_to_uuid", Type: db.FieldString},
		{Name: "name", Type: db.FieldString},
		{Name: "macs", Type: db.FieldStringArray},
	},
	DataVersion: 1,
}

// ipBucketName returns the bucket holding the IP records of a network.
func ipBucketName(networkUUID string) string {
	return ipBucketPrefix + strings.ReplaceAll(networkUUID, "-", "_")
}

// ipBucketSchema declares the per network IP bucket. v4 buckets key records
// by the decimal 32 bit value of the address (the legacy numeric form), v6
// buckets by the fixed width hex form.
func ipBucketSchema(networkUUID string, family ipaddr.Family) db.Schema {
	kind := db.KeyDecimal
	if family == ipaddr.FamilyIPv6 {
		kind = db.KeyHex128
	}

	return db.Schema{
		Name:    ipBucketName(networkUUID),
		Version: 1,
		KeyKind: kind,
		Fields: []db.IndexField{
			{Name: "belongs_to_uuid", Type: db.FieldString},
			{Name: "belongs_to_type", Type: db.FieldString},
			{Name: "owner_uuid", Type: db.FieldString},
			{Name: "reserved", Type: db.FieldBool},
			{Name: "modified_at", Type: db.FieldInt},
		},
		DataVersion: 1,
	}
}

// EnsureBuckets creates or upgrades the entity buckets and runs the data
// migrations. Called once at daemon startup before the listener opens.
func (s *State) EnsureBuckets(ctx context.Context) error {
	schemas := []db.Schema{
		nicTagsSchema,
		networksSchema,
		networkPoolsSchema,
		nicsSchema,
		aggregationsSchema,
	}

	for _, schema := range schemas {
		err := s.DB.EnsureBucket(ctx, schema)
		if err != nil {
			return fmt.Errorf("Failed to ensure bucket %q: %w", schema.Name, err)
		}
	}

	err := s.DB.RunMigrations(ctx, migrations())
	if err != nil {
		return fmt.Errorf("Failed to run data migrations: %w", err)
	}

	return s.cleanupOrphanIPBuckets(ctx)
}

// migrations returns the data migration registry.
func migrations() []db.Migration {
	return []db.Migration{
		{Bucket: bucketNetworks, Version: 2, Transform: migrateNetworkV2},
	}
}

// migrateNetworkV2 backfills the derived subnet_start_ip and subnet_end_ip
// fields on network rows written before they existed.
func migrateNetworkV2(key string, value json.RawMessage) (json.RawMessage, error) {
	var network api.Network

	err := json.Unmarshal(value, &network)
	if err != nil {
		return nil, fmt.Errorf("Failed to decode network %q: %w", key, err)
	}

	if network.SubnetStartIP != "" && network.SubnetEndIP != "" {
		return nil, nil
	}

	subnet, err := ipaddr.ParseCIDR(network.Subnet)
	if err != nil {
		return nil, fmt.Errorf("Network %q has unparseable subnet: %w", key, err)
	}

	network.SubnetStartIP = ipaddr.Format(ipaddr.SubnetStart(subnet))
	network.SubnetEndIP = ipaddr.Format(ipaddr.SubnetEnd(subnet))

	return json.Marshal(network)
}

// cleanupOrphanIPBuckets drops IP buckets whose network row no longer
// exists. Network deletion removes the row first and the bucket second, so
// a crash between the two leaves an orphan behind.
func (s *State) cleanupOrphanIPBuckets(ctx context.Context) error {
	for _, name := range s.DB.Buckets() {
		if !strings.HasPrefix(name, ipBucketPrefix) {
			continue
		}

		uuid := strings.ReplaceAll(strings.TrimPrefix(name, ipBucketPrefix), "_", "-")

		_, err := s.DB.Get(ctx, bucketNetworks, uuid)
		if err == nil {
			continue
		}

		if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		logger.Warn("Dropping orphan IP bucket", logger.Ctx{"bucket": name, "network": uuid})

		err = s.DB.DeleteBucket(ctx, name)
		if err != nil {
			return err
		}
	}

	return nil
}
