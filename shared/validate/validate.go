// Package validate provides the primitive value checks shared by the entity
// models. Every validator has the signature func(string) error so checks can
// be composed and reported per field.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/netfabric/napi/shared/ipaddr"
)

// MTU limits. The lower bound is the IPv6 minimum link MTU, the upper bound
// is conventional jumbo frames.
const (
	MTUMin = 1280
	MTUMax = 9000
)

// NameMaxLen bounds nic tag and aggregation names.
const NameMaxLen = 31

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Optional wraps a set of validators, allowing the value to be empty.
func Optional(checks ...func(value string) error) func(value string) error {
	return func(value string) error {
		if value == "" {
			return nil
		}

		return Required(checks...)(value)
	}
}

// Required returns a validator that requires all of the given checks to pass.
func Required(checks ...func(value string) error) func(value string) error {
	return func(value string) error {
		for _, check := range checks {
			err := check(value)
			if err != nil {
				return err
			}
		}

		return nil
	}
}

// IsUUID checks that the value is a valid RFC 4122 UUID string.
func IsUUID(value string) error {
	_, err := uuid.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid UUID %q", value)
	}

	return nil
}

// IsName checks the nic tag / aggregation name constraints: 1..31
// characters from [A-Za-z0-9_].
func IsName(value string) error {
	if value == "" {
		return fmt.Errorf("name must not be empty")
	}

	if len(value) > NameMaxLen {
		return fmt.Errorf("name must be at most %d characters", NameMaxLen)
	}

	if !namePattern.MatchString(value) {
		return fmt.Errorf("name may only contain letters, digits and underscores")
	}

	return nil
}

// IsIP checks that the value parses as an IPv4 or IPv6 address.
func IsIP(value string) error {
	_, err := ipaddr.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid IP address %q", value)
	}

	return nil
}

// IsIPOfFamily returns a validator requiring an address of the given family.
func IsIPOfFamily(family ipaddr.Family) func(value string) error {
	return func(value string) error {
		addr, err := ipaddr.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid IP address %q", value)
		}

		if ipaddr.FamilyOf(addr) != family {
			return fmt.Errorf("%q is not an %s address", value, family)
		}

		return nil
	}
}

// IsCIDR checks that the value parses as a subnet in CIDR notation.
func IsCIDR(value string) error {
	_, err := ipaddr.ParseCIDR(value)
	if err != nil {
		return fmt.Errorf("invalid subnet %q", value)
	}

	return nil
}

// IsRouteDestination checks a route destination: a host address or a CIDR.
func IsRouteDestination(value string) error {
	if strings.Contains(value, "/") {
		return IsCIDR(value)
	}

	return IsIP(value)
}

// IsNicState checks the nic lifecycle state names.
func IsNicState(value string) error {
	switch value {
	case "provisioning", "running", "stopped":
		return nil
	}

	return fmt.Errorf("state must be one of provisioning, running, stopped")
}

// IsBelongsToType checks the owner kinds an IP or nic may be bound to.
func IsBelongsToType(value string) error {
	switch value {
	case "zone", "server", "other":
		return nil
	}

	return fmt.Errorf("belongs_to_type must be one of zone, server, other")
}

// IsLACPMode checks aggregation LACP modes.
func IsLACPMode(value string) error {
	switch value {
	case "off", "active", "passive":
		return nil
	}

	return fmt.Errorf("lacp_mode must be one of off, active, passive")
}

// IsMTU checks the MTU bounds shared by nic tags and networks.
func IsMTU(value int) error {
	if value < MTUMin || value > MTUMax {
		return fmt.Errorf("mtu must be between %d and %d", MTUMin, MTUMax)
	}

	return nil
}

// IsVLAN checks a VLAN id: 0 (untagged) or 2..4094. VLAN 1 is reserved.
func IsVLAN(value int) error {
	if value == 0 || (value >= 2 && value <= 4094) {
		return nil
	}

	return fmt.Errorf("vlan_id must be 0 or in the range 2..4094")
}

// IsUUIDSlice checks every element of a UUID list, reporting the first
// offender.
func IsUUIDSlice(values []string) error {
	for _, v := range values {
		err := IsUUID(v)
		if err != nil {
			return err
		}
	}

	return nil
}
