package ipam

import (
	"errors"
	"net/netip"

	"vns/internal/models"
	"vns/internal/netcalc"

	"go4.org/netipx"
	"gorm.io/gorm"
)

var (
	ErrOutsideParent = errors.New("child block is not inside the parent block")
	ErrHasChildren   = errors.New("block still has child blocks")
	ErrNoFreeAddress = errors.New("no free address in block")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// parsePrefix validates subnet/mask and canonicalizes to the network
// address, so "10.0.1.7"/24 is stored as 10.0.1.0/24.
func parsePrefix(subnet string, mask int) (netip.Prefix, error) {
	if _, err := netcalc.MaskFromPrefixLength(mask); err != nil {
		return netip.Prefix{}, err
	}
	raw, err := netcalc.ParseAddress(subnet)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(netip.AddrFrom4(raw), mask).Masked(), nil
}

func blockPrefix(b *models.IPBlock) (netip.Prefix, error) {
	return parsePrefix(b.Subnet, b.Mask)
}

// ── Blocks ──────────────────────────────────────────────────

// CreateRootBlock registers a top-level block of address space for a
// simulator on behalf of an organization.
func (r *Repo) CreateRootBlock(simulatorID, orgID uint, subnet string, mask int) (*models.IPBlock, error) {
	p, err := parsePrefix(subnet, mask)
	if err != nil {
		return nil, err
	}
	if err := r.db.First(&models.Simulator{}, simulatorID).Error; err != nil {
		return nil, err
	}
	b := &models.IPBlock{
		SimulatorID:    simulatorID,
		OrganizationID: orgID,
		Subnet:         p.Addr().String(),
		Mask:           mask,
	}
	return b, r.db.Create(b).Error
}

// AllocateChildBlock carves a sub-block out of parentID for orgID. The
// child's range must sit fully inside the parent's; the simulator is
// inherited from the parent.
func (r *Repo) AllocateChildBlock(parentID, orgID uint, subnet string, mask int) (*models.IPBlock, error) {
	parent, err := r.GetBlock(parentID)
	if err != nil {
		return nil, err
	}
	pp, err := blockPrefix(parent)
	if err != nil {
		return nil, err
	}
	cp, err := parsePrefix(subnet, mask)
	if err != nil {
		return nil, err
	}

	pr := netipx.RangeOfPrefix(pp)
	cr := netipx.RangeOfPrefix(cp)
	if cr.From().Compare(pr.From()) < 0 || cr.To().Compare(pr.To()) > 0 {
		return nil, ErrOutsideParent
	}

	b := &models.IPBlock{
		SimulatorID:    parent.SimulatorID,
		OrganizationID: orgID,
		ParentID:       &parentID,
		Subnet:         cp.Addr().String(),
		Mask:           mask,
	}
	return b, r.db.Create(b).Error
}

func (r *Repo) GetBlock(id uint) (*models.IPBlock, error) {
	var b models.IPBlock
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repo) ListChildren(parentID uint) ([]models.IPBlock, error) {
	var out []models.IPBlock
	err := r.db.Where("parent_id = ?", parentID).Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) ListBlocksBySimulator(simulatorID uint) ([]models.IPBlock, error) {
	var out []models.IPBlock
	err := r.db.Where("simulator_id = ?", simulatorID).Order("id").Find(&out).Error
	return out, err
}

// DeleteBlock refuses while children exist; free the leaves first.
func (r *Repo) DeleteBlock(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.IPBlock{}).Where("parent_id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrHasChildren
		}
		return tx.Delete(&models.IPBlock{}, id).Error
	})
}

// ── Assignments ─────────────────────────────────────────────

// Assign binds address/mask to a port inside a topology. Both values are
// validated here, before anything is persisted; downstream the simulator
// consumes them as raw binary and would happily bind garbage.
func (r *Repo) Assign(topologyID, portID uint, address string, mask int) (*models.IPAssignment, error) {
	if _, err := netcalc.MaskFromPrefixLength(mask); err != nil {
		return nil, err
	}
	if _, err := netcalc.ParseAddress(address); err != nil {
		return nil, err
	}
	if err := r.db.First(&models.Topology{}, topologyID).Error; err != nil {
		return nil, err
	}
	if err := r.db.First(&models.Port{}, portID).Error; err != nil {
		return nil, err
	}
	a := &models.IPAssignment{TopologyID: topologyID, PortID: portID, Address: address, Mask: mask}
	return a, r.db.Create(a).Error
}

func (r *Repo) GetAssignment(id uint) (*models.IPAssignment, error) {
	var a models.IPAssignment
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) AssignmentsForTopology(topologyID uint) ([]models.IPAssignment, error) {
	var out []models.IPAssignment
	err := r.db.Where("topology_id = ?", topologyID).Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) Release(id uint) error {
	return r.db.Delete(&models.IPAssignment{}, id).Error
}

// AllocateInBlock picks the next free host address inside the block and
// assigns it to topology/port with the block's mask. Network, first host
// (gateway) and broadcast addresses are never handed out.
func (r *Repo) AllocateInBlock(blockID, topologyID, portID uint) (*models.IPAssignment, error) {
	b, err := r.GetBlock(blockID)
	if err != nil {
		return nil, err
	}
	p, err := blockPrefix(b)
	if err != nil {
		return nil, err
	}

	var taken []models.IPAssignment
	if err := r.db.Find(&taken).Error; err != nil {
		return nil, err
	}
	occ := map[netip.Addr]bool{}
	for _, t := range taken {
		if a, err := netip.ParseAddr(t.Address); err == nil && p.Contains(a) {
			occ[a] = true
		}
	}

	rng := netipx.RangeOfPrefix(p)
	first := rng.From().Next().Next() // skip network and gateway
	last := rng.To().Prev()           // skip broadcast
	for a := first; a.IsValid() && a.Compare(last) <= 0; a = a.Next() {
		if occ[a] {
			continue
		}
		return r.Assign(topologyID, portID, a.String(), b.Mask)
	}
	return nil, ErrNoFreeAddress
}
