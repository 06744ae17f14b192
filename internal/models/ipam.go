package models

import (
	"fmt"

	"gorm.io/gorm"
)

// IPAssignment binds an IP address to a port inside a topology. The same
// address may appear in several topologies; constraints between
// topologies are the allocator's problem, not the schema's.
type IPAssignment struct {
	gorm.Model
	TopologyID uint   `gorm:"index:idx_assign_topo,priority:1"`
	PortID     uint   `gorm:"index:idx_assign_topo,priority:2"`
	Address    string `gorm:"size:45"`
	Mask       int    // routing prefix length, 1..32
}

func (a IPAssignment) CIDR() string { return fmt.Sprintf("%s/%d", a.Address, a.Mask) }

// IPBlock is a block of address space owned by a simulator and an
// organization. ParentID nests blocks; a child must sit inside its
// parent's range (checked in the repo on create).
type IPBlock struct {
	gorm.Model
	SimulatorID    uint   `gorm:"index"`
	OrganizationID uint   `gorm:"index"`
	ParentID       *uint  `gorm:"index"`
	Subnet         string `gorm:"size:45"` // network address of the block
	Mask           int    // significant bits of the subnet
}

func (b IPBlock) CIDR() string { return fmt.Sprintf("%s/%d", b.Subnet, b.Mask) }

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Simulator{},
		&Organization{},
		&OrganizationAdmin{},
		&UserProfile{},
		&TopologyTemplate{},
		&Node{},
		&Port{},
		&Link{},
		&Topology{},
		&TopologyUser{},
		&IPAssignment{},
		&IPBlock{},
	}
}
