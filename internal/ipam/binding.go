package ipam

import (
	"net"

	"vns/internal/models"
	"vns/internal/netcalc"
)

// Binding is the control-plane view of one assignment: the three binary
// values a simulator needs to bind a virtual link endpoint.
type Binding struct {
	IP   [4]byte
	Mask [4]byte
	MAC  [6]byte
}

// BindingFor derives the binary binding from a stored assignment. The
// record was validated on write, so errors here mean the row was
// corrupted out of band.
func BindingFor(a *models.IPAssignment) (Binding, error) {
	var b Binding
	var err error
	if b.IP, err = netcalc.ParseAddress(a.Address); err != nil {
		return Binding{}, err
	}
	if b.Mask, err = netcalc.MaskFromPrefixLength(a.Mask); err != nil {
		return Binding{}, err
	}
	if b.MAC, err = netcalc.DeriveMAC(a.Address); err != nil {
		return Binding{}, err
	}
	return b, nil
}

// Encode renders the fixed 14-byte wire form the simulator expects:
// address, mask, MAC, all in network byte order.
func (b Binding) Encode() []byte {
	out := make([]byte, 0, 14)
	out = append(out, b.IP[:]...)
	out = append(out, b.Mask[:]...)
	out = append(out, b.MAC[:]...)
	return out
}

// HardwareAddr returns the MAC in the usual colon form for display.
func (b Binding) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(b.MAC[:])
}

// Netmask returns the mask in dotted-quad form for display.
func (b Binding) Netmask() string {
	return net.IP(b.Mask[:]).String()
}
