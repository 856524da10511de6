// Package ipaddr implements the address handling used throughout NAPI:
// parsing and formatting of IPv4/IPv6 addresses and subnets, numeric
// conversion for bucket keys, and the small amount of range arithmetic the
// allocator needs.
//
// Addresses are held as netip.Addr values. IPv6 addresses are always kept in
// canonical lowercase form and IPv4-mapped IPv6 addresses are unmapped on
// parse, so that an address has exactly one representation.
package ipaddr

import (
	"errors"
	"fmt"
	"math/big"
	"net/netip"
	"strings"
)

// Family is the address family of an address, subnet or network.
type Family string

// Address families.
const (
	FamilyIPv4 Family = "ipv4"
	FamilyIPv6 Family = "ipv6"
)

// Named failures. Callers that need to distinguish bad input from other
// errors test against these with errors.Is.
var (
	ErrInvalidIP     = errors.New("invalid IP address")
	ErrInvalidSubnet = errors.New("invalid subnet")
)

// ParseFamily converts the string form used on the wire into a Family.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(s)) {
	case FamilyIPv4:
		return FamilyIPv4, nil
	case FamilyIPv6:
		return FamilyIPv6, nil
	}

	return "", fmt.Errorf("unknown address family %q", s)
}

// FamilyOf returns the family of addr.
func FamilyOf(addr netip.Addr) Family {
	if addr.Is4() {
		return FamilyIPv4
	}

	return FamilyIPv6
}

// Parse parses s as an IPv4 or IPv6 address. Zoned addresses are rejected
// and IPv4-mapped IPv6 addresses are unmapped to their native form.
func Parse(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidIP, s)
	}

	if addr.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("%w: %q: zones are not supported", ErrInvalidIP, s)
	}

	return addr.Unmap(), nil
}

// ParseCIDR parses s as a subnet in CIDR notation. The returned prefix is
// masked, i.e. the address part has all host bits cleared.
func ParseCIDR(s string) (netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidSubnet, s)
	}

	addr := prefix.Addr().Unmap()
	prefix, err = addr.Prefix(prefix.Bits())
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q", ErrInvalidSubnet, s)
	}

	return prefix, nil
}

// Format returns the canonical string form of addr: dotted quad for IPv4,
// lowercase compressed colon form for IPv6.
func Format(addr netip.Addr) string {
	return addr.Unmap().String()
}

// ToNumeric returns the address value as an unsigned integer: 32 bits for
// IPv4, 128 bits for IPv6.
func ToNumeric(addr netip.Addr) *big.Int {
	return new(big.Int).SetBytes(addr.Unmap().AsSlice())
}

// FromNumeric converts an integer back into an address of the given family.
// It fails if n is negative or too large for the family.
func FromNumeric(n *big.Int, family Family) (netip.Addr, error) {
	if n.Sign() < 0 {
		return netip.Addr{}, fmt.Errorf("%w: negative value", ErrInvalidIP)
	}

	size := 4
	if family == FamilyIPv6 {
		size = 16
	}

	b := n.Bytes()
	if len(b) > size {
		return netip.Addr{}, fmt.Errorf("%w: value exceeds %s space", ErrInvalidIP, family)
	}

	buf := make([]byte, size)
	copy(buf[size-len(b):], b)

	addr, ok := netip.AddrFromSlice(buf)
	if !ok {
		return netip.Addr{}, ErrInvalidIP
	}

	return addr, nil
}

// Compare returns -1, 0 or 1 ordering two addresses numerically. Addresses
// of different families order IPv4 first, matching netip semantics.
func Compare(a netip.Addr, b netip.Addr) int {
	return a.Unmap().Compare(b.Unmap())
}

// InSubnet reports whether addr lies inside subnet. An address never lies in
// a subnet of the other family.
func InSubnet(addr netip.Addr, subnet netip.Prefix) bool {
	return subnet.Contains(addr.Unmap())
}

// NetmaskForBits returns the netmask of a /bits subnet in the given family,
// e.g. 255.255.255.0 for a v4 /24.
func NetmaskForBits(bits int, family Family) (netip.Addr, error) {
	size := 32
	if family == FamilyIPv6 {
		size = 128
	}

	if bits < 0 || bits > size {
		return netip.Addr{}, fmt.Errorf("%w: /%d out of range for %s", ErrInvalidSubnet, bits, family)
	}

	buf := make([]byte, size/8)
	for i := 0; i < bits; i++ {
		buf[i/8] |= 1 << (7 - i%8)
	}

	addr, _ := netip.AddrFromSlice(buf)
	return addr, nil
}

// SubnetStart returns the first address of the subnet (the network address).
func SubnetStart(subnet netip.Prefix) netip.Addr {
	return subnet.Masked().Addr()
}

// SubnetEnd returns the last address of the subnet. For IPv4 this is the
// broadcast address.
func SubnetEnd(subnet netip.Prefix) netip.Addr {
	start := subnet.Masked().Addr()
	size := start.BitLen()

	buf := start.AsSlice()
	for i := subnet.Bits(); i < size; i++ {
		buf[i/8] |= 1 << (7 - i%8)
	}

	addr, _ := netip.AddrFromSlice(buf)
	return addr
}

// Broadcast returns the broadcast address of a v4 subnet. Calling it on a
// v6 prefix is a programming error and panics.
func Broadcast(subnet netip.Prefix) netip.Addr {
	if !subnet.Addr().Is4() {
		panic("broadcast requested for non-IPv4 subnet")
	}

	return SubnetEnd(subnet)
}

// NextInRange returns the address following prev inside [lo, hi]. Passing
// the zero Addr as prev yields lo. The second return value is false once the
// range is exhausted.
func NextInRange(lo netip.Addr, hi netip.Addr, prev netip.Addr) (netip.Addr, bool) {
	if !prev.IsValid() {
		return lo, Compare(lo, hi) <= 0
	}

	if Compare(prev, hi) >= 0 {
		return netip.Addr{}, false
	}

	next := prev.Next()
	if !next.IsValid() || Compare(next, lo) < 0 {
		return lo, true
	}

	return next, Compare(next, hi) <= 0
}
