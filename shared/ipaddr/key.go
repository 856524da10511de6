package ipaddr

import (
	"fmt"
	"math/big"
	"net/netip"
	"strconv"
)

// Bucket key encoding. Per-network IP buckets key records by the numeric
// value of the address: IPv4 buckets use the decimal 32-bit integer (the
// legacy numeric form, kept so old buckets stay readable), IPv6 buckets use
// a fixed-width 32-digit lowercase hex string whose lexicographic order is
// the numeric order.

// hexKeyWidth is the number of hex digits in a v6 bucket key.
const hexKeyWidth = 32

// BucketKey returns the bucket key for addr.
func BucketKey(addr netip.Addr) string {
	if addr.Is4() {
		return strconv.FormatUint(uint64(ToNumeric(addr).Uint64()), 10)
	}

	return fmt.Sprintf("%0*x", hexKeyWidth, ToNumeric(addr))
}

// AddrFromKey converts a bucket key back into an address of the given
// family. It accepts both the legacy decimal form and the hex form for v6
// buckets migrated from older schemas.
func AddrFromKey(key string, family Family) (netip.Addr, error) {
	base := 10
	if family == FamilyIPv6 && len(key) == hexKeyWidth {
		base = 16
	}

	n, ok := new(big.Int).SetString(key, base)
	if !ok {
		return netip.Addr{}, fmt.Errorf("%w: bad bucket key %q", ErrInvalidIP, key)
	}

	return FromNumeric(n, family)
}

// KeyFromNumeric renders the bucket key for a numeric address value in the
// given family, without materializing the address.
func KeyFromNumeric(n *big.Int, family Family) string {
	if family == FamilyIPv4 {
		return n.String()
	}

	return fmt.Sprintf("%0*x", hexKeyWidth, n)
}

// NumericFromKey parses a bucket key into its integer value.
func NumericFromKey(key string, family Family) (*big.Int, error) {
	base := 10
	if family == FamilyIPv6 && len(key) == hexKeyWidth {
		base = 16
	}

	n, ok := new(big.Int).SetString(key, base)
	if !ok {
		return nil, fmt.Errorf("%w: bad bucket key %q", ErrInvalidIP, key)
	}

	return n, nil
}
