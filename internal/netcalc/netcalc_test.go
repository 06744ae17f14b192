package netcalc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress_RoundTrip(t *testing.T) {
	for _, s := range []string{
		"0.0.0.0",
		"10.0.0.1",
		"172.16.254.3",
		"192.168.1.255",
		"255.255.255.255",
	} {
		b, err := ParseAddress(s)
		require.NoError(t, err, s)
		got := fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
		assert.Equal(t, s, got)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, s := range []string{
		"999.1.1.1",
		"not-an-ip",
		"10.0.0",
		"10.0.0.1.2",
		"",
		"::1", // IPv6 is not a dotted quad
	} {
		_, err := ParseAddress(s)
		var fe *FormatError
		require.ErrorAs(t, err, &fe, s)
		assert.Equal(t, s, fe.Input)
	}
}

func TestMaskFromPrefixLength(t *testing.T) {
	cases := []struct {
		bits int
		want [4]byte
	}{
		{1, [4]byte{0x80, 0x00, 0x00, 0x00}},
		{8, [4]byte{0xFF, 0x00, 0x00, 0x00}},
		{17, [4]byte{0xFF, 0xFF, 0x80, 0x00}},
		{24, [4]byte{0xFF, 0xFF, 0xFF, 0x00}},
		{31, [4]byte{0xFF, 0xFF, 0xFF, 0xFE}},
		{32, [4]byte{0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		got, err := MaskFromPrefixLength(c.bits)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "/%d", c.bits)
	}
}

func TestMaskFromPrefixLength_OutOfRange(t *testing.T) {
	for _, bits := range []int{0, 33, -1, 100} {
		_, err := MaskFromPrefixLength(bits)
		var re *RangeError
		require.ErrorAs(t, err, &re, "bits=%d", bits)
		assert.Equal(t, bits, re.Value)
	}
}

func TestDeriveMAC_Deterministic(t *testing.T) {
	a, err := DeriveMAC("10.0.0.1")
	require.NoError(t, err)
	b, err := DeriveMAC("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, byte(0x00), a[0])
}

func TestDeriveMAC_DistinctInputs(t *testing.T) {
	addrs := []string{"10.0.0.1", "10.0.0.2", "10.0.1.1", "192.168.0.1", "172.16.0.9"}
	seen := map[[6]byte]string{}
	for _, s := range addrs {
		mac, err := DeriveMAC(s)
		require.NoError(t, err)
		assert.Equal(t, byte(0x00), mac[0], s)
		if prev, dup := seen[mac]; dup {
			t.Fatalf("MAC collision between %s and %s", prev, s)
		}
		seen[mac] = s
	}
}

func TestDeriveMAC_InvalidAddress(t *testing.T) {
	_, err := DeriveMAC("not-an-ip")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}
