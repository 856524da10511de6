// Package macaddr converts between the MAC address forms NAPI accepts on
// the wire (colon hex, dash hex, bare hex, decimal integer) and the 48-bit
// integer used as the nic bucket key.
package macaddr

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Max is the largest valid 48-bit MAC integer.
const Max = (1 << 48) - 1

// ErrInvalidMAC is returned for input that cannot be interpreted as a MAC
// address in any accepted form.
var ErrInvalidMAC = errors.New("invalid MAC address")

// Parse interprets s as a MAC address. Accepted forms:
//
//	90:b8:d0:01:02:03
//	90-b8-d0-01-02-03
//	90b8d0010203
//	158860859480579 (decimal integer)
func Parse(s string) (uint64, error) {
	if s == "" {
		return 0, ErrInvalidMAC
	}

	hex := strings.NewReplacer(":", "", "-", "").Replace(strings.ToLower(s))
	if len(hex) == 12 {
		n, err := strconv.ParseUint(hex, 16, 64)
		if err == nil {
			return n, nil
		}
	}

	// No separators and not 12 hex digits: try the decimal integer form
	// used in bucket keys and some client tooling.
	if !strings.ContainsAny(s, ":-") {
		n, err := strconv.ParseUint(s, 10, 64)
		if err == nil && n <= Max {
			return n, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
}

// Format renders a MAC integer in colon hex form.
func Format(mac uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], mac)

	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[2], b[3], b[4], b[5], b[6], b[7])
}

// Key renders a MAC integer as its nic bucket key (decimal string).
func Key(mac uint64) string {
	return strconv.FormatUint(mac, 10)
}

// ParseOUI parses a 24-bit organizationally unique identifier given as six
// hex digits, with or without separators.
func ParseOUI(s string) (uint64, error) {
	hex := strings.NewReplacer(":", "", "-", "").Replace(strings.ToLower(s))
	if len(hex) != 6 {
		return 0, fmt.Errorf("%w: OUI %q", ErrInvalidMAC, s)
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: OUI %q", ErrInvalidMAC, s)
	}

	return n << 24, nil
}

// Generate returns a random MAC under the given OUI. The multicast bit of a
// registered OUI is already clear, so the result is always a valid unicast
// address.
func Generate(oui uint64) (uint64, error) {
	var b [4]byte
	_, err := rand.Read(b[:3])
	if err != nil {
		return 0, err
	}

	low := uint64(b[0])<<16 | uint64(b[1])<<8 | uint64(b[2])
	return (oui & 0xffffff000000) | low, nil
}
