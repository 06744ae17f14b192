package models

import "gorm.io/gorm"

// Visibility controls who may see and instantiate a template.
type Visibility int

const (
	VisibilityPrivate   Visibility = 0 // owner only
	VisibilityProtected Visibility = 1 // owner and organization
	VisibilityPublic    Visibility = 2 // anyone
)

func (v Visibility) Valid() bool {
	return v >= VisibilityPrivate && v <= VisibilityPublic
}

func (v Visibility) String() string {
	switch v {
	case VisibilityPrivate:
		return "Private"
	case VisibilityProtected:
		return "Protected"
	case VisibilityPublic:
		return "Public"
	}
	return "Unknown"
}

// TopologyTemplate is a reusable network blueprint: the nodes, ports and
// links topologies are instantiated from. UpdatedAt doubles as the
// last-updated date shown to users.
type TopologyTemplate struct {
	gorm.Model
	Name           string `gorm:"size:30;uniqueIndex"`
	OwnerID        uint   `gorm:"index"` // user who created the template
	OrganizationID uint   `gorm:"index"`
	Visibility     Visibility
}

// NodeType is the kind of simulated device a node stands for. The
// numeric values are part of the stored format, do not renumber.
type NodeType int

const (
	NodeVirtual      NodeType = 0 // interactive node users connect to
	NodeBlackHole    NodeType = 1
	NodeHub          NodeType = 2
	NodeWebServer    NodeType = 3
	NodeSystemRouter NodeType = 4
)

func (t NodeType) Valid() bool {
	return t >= NodeVirtual && t <= NodeSystemRouter
}

func (t NodeType) String() string {
	switch t {
	case NodeVirtual:
		return "VirtualNode"
	case NodeBlackHole:
		return "BlackHole"
	case NodeHub:
		return "Hub"
	case NodeWebServer:
		return "WebServer"
	case NodeSystemRouter:
		return "SystemRouter"
	}
	return "Unknown"
}

// Node belongs to exactly one template. Names are not unique.
type Node struct {
	gorm.Model
	TemplateID uint   `gorm:"index"`
	Name       string `gorm:"size:30"`
	Type       NodeType
}

// Port is an interface on a node ("eth0" and the like).
type Port struct {
	gorm.Model
	NodeID uint   `gorm:"index"`
	Name   string `gorm:"size:5"`
}

// Link joins two ports. Lossiness is the probability in [0,1] that the
// simulated link drops a given packet.
type Link struct {
	gorm.Model
	Port1ID   uint    `gorm:"index"`
	Port2ID   uint    `gorm:"index"`
	Lossiness float64 `gorm:"default:0"`
}

// Topology is a running instantiation of a template. Simulator clients
// address it by the integer ID.
type Topology struct {
	gorm.Model
	OwnerID    uint `gorm:"index"`
	TemplateID uint `gorm:"index"`
}

// TopologyUser whitelists a source address for a topology. A topology
// with no rows here is unrestricted.
type TopologyUser struct {
	gorm.Model
	TopologyID uint   `gorm:"index"`
	Address    string `gorm:"size:45"`
}
