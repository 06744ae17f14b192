// Package netcalc holds the pure conversions between textual IPv4 values
// and the fixed-width binary form the simulator control plane consumes:
// 4-byte address, 4-byte mask, 6-byte synthetic MAC, network byte order.
// Everything here is stateless and safe for concurrent use.
package netcalc

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"net/netip"
)

// FormatError reports address text that is not a dotted-quad IPv4 literal.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("netcalc: %q is not a dotted-quad IPv4 address", e.Input)
}

// RangeError reports a numeric value outside its allowed interval.
type RangeError struct {
	What     string
	Value    int
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("netcalc: %s %d out of range [%d,%d]", e.What, e.Value, e.Min, e.Max)
}

// ParseAddress converts dotted-quad text into its 4-byte network-order
// value. Anything that is not a plain IPv4 literal fails with FormatError;
// callers forward the result onto live simulated links, so no partial
// output is ever returned.
func ParseAddress(s string) ([4]byte, error) {
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return [4]byte{}, &FormatError{Input: s}
	}
	return a.As4(), nil
}

// MaskFromPrefixLength returns the contiguous subnet mask for a /bits
// prefix as 4 bytes, most significant first. bits must be in [1,32].
func MaskFromPrefixLength(bits int) ([4]byte, error) {
	if bits < 1 || bits > 32 {
		return [4]byte{}, &RangeError{What: "prefix length", Value: bits, Min: 1, Max: 32}
	}
	m := ^uint32(0) ^ (1<<(32-uint(bits)) - 1)
	var out [4]byte
	binary.BigEndian.PutUint32(out[:], m)
	return out, nil
}

// DeriveMAC maps address text onto a synthetic 6-byte hardware address:
// a zero octet followed by the first five bytes of md5 over the text.
// Deterministic and well spread, which is all the simulator needs; this
// is not a collision-resistance or secrecy mechanism.
func DeriveMAC(s string) ([6]byte, error) {
	if _, err := ParseAddress(s); err != nil {
		return [6]byte{}, err
	}
	sum := md5.Sum([]byte(s))
	var mac [6]byte
	copy(mac[1:], sum[:5])
	return mac, nil
}
