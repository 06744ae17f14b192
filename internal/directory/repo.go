package directory

import (
	"errors"

	"vns/internal/models"
	"vns/internal/netcalc"

	"gorm.io/gorm"
)

var (
	ErrNameTaken    = errors.New("name already in use")
	ErrAddressTaken = errors.New("address already in use")
	ErrOrgCycle     = errors.New("organization parent chain would form a cycle")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

// ── Simulators ──────────────────────────────────────────────

// CreateSimulator registers a simulation backend. Name and address are
// both globally unique; the address must be a valid IPv4 literal since
// the control plane dials it directly.
func (r *Repo) CreateSimulator(name, address string) (*models.Simulator, error) {
	if _, err := netcalc.ParseAddress(address); err != nil {
		return nil, err
	}
	s := &models.Simulator{Name: name, Address: address}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Simulator{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrNameTaken
		}
		if err := tx.Model(&models.Simulator{}).Where("address = ?", address).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrAddressTaken
		}
		return tx.Create(s).Error
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Repo) GetSimulator(id uint) (*models.Simulator, error) {
	var s models.Simulator
	if err := r.db.First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) ListSimulators() ([]models.Simulator, error) {
	var out []models.Simulator
	err := r.db.Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) DeleteSimulator(id uint) error {
	return r.db.Delete(&models.Simulator{}, id).Error
}

// ── Organizations ───────────────────────────────────────────

// CreateOrganization creates an org owned by ownerID, optionally under a
// parent org. Names are globally unique across the whole tree.
func (r *Repo) CreateOrganization(name string, ownerID uint, parentID *uint) (*models.Organization, error) {
	o := &models.Organization{Name: name, OwnerID: ownerID, ParentID: parentID}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Organization{}).Where("name = ?", name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrNameTaken
		}
		if parentID != nil {
			if err := tx.First(&models.Organization{}, *parentID).Error; err != nil {
				return err
			}
		}
		return tx.Create(o).Error
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) GetOrganization(id uint) (*models.Organization, error) {
	var o models.Organization
	if err := r.db.First(&o, id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) ListOrganizations() ([]models.Organization, error) {
	var out []models.Organization
	err := r.db.Order("id").Find(&out).Error
	return out, err
}

func (r *Repo) ListChildOrganizations(parentID uint) ([]models.Organization, error) {
	var out []models.Organization
	err := r.db.Where("parent_id = ?", parentID).Order("id").Find(&out).Error
	return out, err
}

// SetOrganizationParent re-parents an org. The original schema never
// guarded against cycles; here the parent chain is walked before the
// update and a cycle is refused.
func (r *Repo) SetOrganizationParent(id uint, parentID *uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var o models.Organization
		if err := tx.First(&o, id).Error; err != nil {
			return err
		}
		if parentID != nil {
			if *parentID == id {
				return ErrOrgCycle
			}
			cyc, err := orgChainContains(tx, *parentID, id)
			if err != nil {
				return err
			}
			if cyc {
				return ErrOrgCycle
			}
		}
		return tx.Model(&o).Update("parent_id", parentID).Error
	})
}

// orgChainContains walks up from startID and reports whether target
// appears in the parent chain.
func orgChainContains(tx *gorm.DB, startID, target uint) (bool, error) {
	seen := map[uint]bool{}
	cur := &startID
	for cur != nil {
		if *cur == target {
			return true, nil
		}
		if seen[*cur] { // pre-existing cycle, stop walking
			return false, nil
		}
		seen[*cur] = true
		var o models.Organization
		if err := tx.First(&o, *cur).Error; err != nil {
			return false, err
		}
		cur = o.ParentID
	}
	return false, nil
}

// ── Org admins ──────────────────────────────────────────────

func (r *Repo) AddAdmin(orgID, userID uint) error {
	var existing models.OrganizationAdmin
	tx := r.db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&existing)
	if tx.Error == nil {
		return nil // already an admin
	}
	if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return tx.Error
	}
	return r.db.Create(&models.OrganizationAdmin{OrganizationID: orgID, UserID: userID}).Error
}

func (r *Repo) RemoveAdmin(orgID, userID uint) error {
	return r.db.Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.OrganizationAdmin{}).Error
}

func (r *Repo) Admins(orgID uint) ([]uint, error) {
	var rows []models.OrganizationAdmin
	if err := r.db.Where("organization_id = ?", orgID).Order("user_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]uint, 0, len(rows))
	for _, a := range rows {
		out = append(out, a.UserID)
	}
	return out, nil
}

// ── User profiles ───────────────────────────────────────────

// UpsertProfile creates or updates the profile for userID. Position is
// range-checked at this write boundary, the column itself is just an int.
func (r *Repo) UpsertProfile(userID, orgID uint, pos models.Position) (*models.UserProfile, error) {
	if !pos.Valid() {
		return nil, &netcalc.RangeError{What: "position", Value: int(pos), Min: int(models.PositionAdmin), Max: int(models.PositionTA)}
	}
	var p models.UserProfile
	tx := r.db.Where("user_id = ?", userID).First(&p)
	if tx.Error != nil {
		if !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, tx.Error
		}
		p = models.UserProfile{UserID: userID, OrganizationID: orgID, Position: pos}
		if err := r.db.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	p.OrganizationID = orgID
	p.Position = pos
	if err := r.db.Save(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetProfile(userID uint) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := r.db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
