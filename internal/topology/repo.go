package topology

import (
	"errors"

	"vns/internal/models"
	"vns/internal/netcalc"

	"gorm.io/gorm"
)

var (
	ErrNameTaken     = errors.New("template name already in use")
	ErrSameEndpoint  = errors.New("link endpoints must be two distinct ports")
	ErrNotPermitted  = errors.New("template not visible to this user")
	ErrCrossTemplate = errors.New("link endpoints belong to different templates")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Templates ───────────────────────────────────────────────

func (r *Repo) CreateTemplate(name string, ownerID, orgID uint, vis models.Visibility) (*models.TopologyTemplate, error) {
	if !vis.Valid() {
		return nil, &netcalc.RangeError{What: "visibility", Value: int(vis),
			Min: int(models.VisibilityPrivate), Max: int(models.VisibilityPublic)}
	}
	t := &models.TopologyTemplate{Name: name, OwnerID: ownerID, OrganizationID: orgID, Visibility: vis}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.TopologyTemplate{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrNameTaken
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Repo) GetTemplate(id uint) (*models.TopologyTemplate, error) {
	var t models.TopologyTemplate
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repo) ListTemplates() ([]models.TopologyTemplate, error) {
	var out []models.TopologyTemplate
	err := r.db.Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) SetTemplateVisibility(id uint, vis models.Visibility) error {
	if !vis.Valid() {
		return &netcalc.RangeError{What: "visibility", Value: int(vis),
			Min: int(models.VisibilityPrivate), Max: int(models.VisibilityPublic)}
	}
	return r.db.Model(&models.TopologyTemplate{}).Where("id = ?", id).
		Update("visibility", vis).Error
}

// DeleteTemplate removes the template together with its nodes, ports and
// links in one transaction.
func (r *Repo) DeleteTemplate(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var nodes []models.Node
		if err := tx.Where("template_id = ?", id).Find(&nodes).Error; err != nil {
			return err
		}
		for _, n := range nodes {
			var ports []models.Port
			if err := tx.Where("node_id = ?", n.ID).Find(&ports).Error; err != nil {
				return err
			}
			for _, p := range ports {
				if err := tx.Where("port1_id = ? OR port2_id = ?", p.ID, p.ID).
					Delete(&models.Link{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("node_id = ?", n.ID).Delete(&models.Port{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.Node{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.TopologyTemplate{}, id).Error
	})
}

// ── Nodes / ports / links ───────────────────────────────────

func (r *Repo) AddNode(templateID uint, name string, typ models.NodeType) (*models.Node, error) {
	if !typ.Valid() {
		return nil, &netcalc.RangeError{What: "node type", Value: int(typ),
			Min: int(models.NodeVirtual), Max: int(models.NodeSystemRouter)}
	}
	if err := r.db.First(&models.TopologyTemplate{}, templateID).Error; err != nil {
		return nil, err
	}
	n := &models.Node{TemplateID: templateID, Name: name, Type: typ}
	return n, r.db.Create(n).Error
}

func (r *Repo) ListNodes(templateID uint) ([]models.Node, error) {
	var out []models.Node
	err := r.db.Where("template_id = ?", templateID).Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) AddPort(nodeID uint, name string) (*models.Port, error) {
	if err := r.db.First(&models.Node{}, nodeID).Error; err != nil {
		return nil, err
	}
	p := &models.Port{NodeID: nodeID, Name: name}
	return p, r.db.Create(p).Error
}

func (r *Repo) ListPorts(nodeID uint) ([]models.Port, error) {
	var out []models.Port
	err := r.db.Where("node_id = ?", nodeID).Order("id").Find(&out).Error
	return out, err
}

// AddLink joins two distinct ports of the same template. Lossiness is the
// drop probability, range-checked here since the column is a bare float.
func (r *Repo) AddLink(port1ID, port2ID uint, lossiness float64) (*models.Link, error) {
	if port1ID == port2ID {
		return nil, ErrSameEndpoint
	}
	if lossiness < 0.0 || lossiness > 1.0 {
		return nil, &netcalc.RangeError{What: "lossiness percent", Value: int(lossiness * 100), Min: 0, Max: 100}
	}
	var p1, p2 models.Port
	if err := r.db.First(&p1, port1ID).Error; err != nil {
		return nil, err
	}
	if err := r.db.First(&p2, port2ID).Error; err != nil {
		return nil, err
	}
	var n1, n2 models.Node
	if err := r.db.First(&n1, p1.NodeID).Error; err != nil {
		return nil, err
	}
	if err := r.db.First(&n2, p2.NodeID).Error; err != nil {
		return nil, err
	}
	if n1.TemplateID != n2.TemplateID {
		return nil, ErrCrossTemplate
	}
	l := &models.Link{Port1ID: port1ID, Port2ID: port2ID, Lossiness: lossiness}
	return l, r.db.Create(l).Error
}

// Graph is the full template wiring, the shape exported to clients.
type Graph struct {
	Template models.TopologyTemplate `json:"template"`
	Nodes    []models.Node           `json:"nodes"`
	Ports    []models.Port           `json:"ports"`
	Links    []models.Link           `json:"links"`
}

func (r *Repo) TemplateGraph(templateID uint) (*Graph, error) {
	t, err := r.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	g := &Graph{Template: *t}
	if g.Nodes, err = r.ListNodes(templateID); err != nil {
		return nil, err
	}
	for _, n := range g.Nodes {
		ports, err := r.ListPorts(n.ID)
		if err != nil {
			return nil, err
		}
		g.Ports = append(g.Ports, ports...)
	}
	for _, p := range g.Ports {
		var links []models.Link
		if err := r.db.Where("port1_id = ?", p.ID).Find(&links).Error; err != nil {
			return nil, err
		}
		g.Links = append(g.Links, links...)
	}
	return g, nil
}

// ── Topologies ──────────────────────────────────────────────

// CanUseTemplate resolves the template's visibility against a user.
// userOrgID is the user's org (0 when unknown).
func CanUseTemplate(t *models.TopologyTemplate, userID, userOrgID uint) bool {
	switch t.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityProtected:
		return t.OwnerID == userID || (userOrgID != 0 && t.OrganizationID == userOrgID)
	default: // private
		return t.OwnerID == userID
	}
}

// Instantiate creates a topology from a template for userID. The new
// row's integer ID is the handle simulator clients quote.
func (r *Repo) Instantiate(templateID, userID uint) (*models.Topology, error) {
	t, err := r.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	var orgID uint
	var prof models.UserProfile
	if err := r.db.Where("user_id = ?", userID).First(&prof).Error; err == nil {
		orgID = prof.OrganizationID
	}
	if !CanUseTemplate(t, userID, orgID) {
		return nil, ErrNotPermitted
	}
	topo := &models.Topology{OwnerID: userID, TemplateID: templateID}
	return topo, r.db.Create(topo).Error
}

func (r *Repo) GetTopology(id uint) (*models.Topology, error) {
	var topo models.Topology
	if err := r.db.First(&topo, id).Error; err != nil {
		return nil, err
	}
	return &topo, nil
}

func (r *Repo) ListTopologies(ownerID uint) ([]models.Topology, error) {
	q := r.db.Order("id")
	if ownerID != 0 {
		q = q.Where("owner_id = ?", ownerID)
	}
	var out []models.Topology
	err := q.Find(&out).Error
	return out, err
}

// DeleteTopology tears the instance down: assignments and allowed-source
// rows go with it.
func (r *Repo) DeleteTopology(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topology_id = ?", id).Delete(&models.IPAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("topology_id = ?", id).Delete(&models.TopologyUser{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Topology{}, id).Error
	})
}

// ── Allowed source addresses ────────────────────────────────

// AllowAddress whitelists a source address for the topology. Listing any
// address switches the topology from open to restricted.
func (r *Repo) AllowAddress(topologyID uint, address string) (*models.TopologyUser, error) {
	if _, err := netcalc.ParseAddress(address); err != nil {
		return nil, err
	}
	if err := r.db.First(&models.Topology{}, topologyID).Error; err != nil {
		return nil, err
	}
	tu := &models.TopologyUser{TopologyID: topologyID, Address: address}
	return tu, r.db.Create(tu).Error
}

func (r *Repo) ListAllowed(topologyID uint) ([]models.TopologyUser, error) {
	var out []models.TopologyUser
	err := r.db.Where("topology_id = ?", topologyID).Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) RevokeAddress(id uint) error {
	return r.db.Delete(&models.TopologyUser{}, id).Error
}

// MayInteract reports whether address may talk to the topology. No
// whitelist rows at all means the topology is unrestricted.
func (r *Repo) MayInteract(topologyID uint, address string) (bool, error) {
	var n int64
	if err := r.db.Model(&models.TopologyUser{}).
		Where("topology_id = ?", topologyID).Count(&n).Error; err != nil {
		return false, err
	}
	if n == 0 {
		return true, nil
	}
	var m int64
	if err := r.db.Model(&models.TopologyUser{}).
		Where("topology_id = ? AND address = ?", topologyID, address).Count(&m).Error; err != nil {
		return false, err
	}
	return m > 0, nil
}
