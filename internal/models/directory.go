package models

import "gorm.io/gorm"

// Simulator is one simulation backend instance. Both the name and the
// network address must be globally unique.
type Simulator struct {
	gorm.Model
	Name    string `gorm:"size:30;uniqueIndex"`
	Address string `gorm:"size:45;uniqueIndex"` // where the backend listens
}

// Organization is an institution (or sub-group) users belong to.
// ParentID forms a tree; acyclicity is enforced in the repo, not here.
type Organization struct {
	gorm.Model
	Name     string `gorm:"size:30;uniqueIndex"`
	ParentID *uint  `gorm:"index"`
	OwnerID  uint   `gorm:"index"` // user with complete control of the org
}

// OrganizationAdmin joins an organization with one of its admin users.
type OrganizationAdmin struct {
	gorm.Model
	OrganizationID uint `gorm:"index:idx_org_admin,priority:1"`
	UserID         uint `gorm:"index:idx_org_admin,priority:2"`
}

// Position is a user's role inside an organization. The numeric values
// are part of the stored format, do not renumber.
type Position int

const (
	PositionAdmin      Position = 0
	PositionStudent    Position = 1
	PositionInstructor Position = 3
	PositionTA         Position = 4
)

func (p Position) Valid() bool {
	switch p {
	case PositionAdmin, PositionStudent, PositionInstructor, PositionTA:
		return true
	}
	return false
}

func (p Position) String() string {
	switch p {
	case PositionAdmin:
		return "Admin"
	case PositionStudent:
		return "Student"
	case PositionInstructor:
		return "Instructor"
	case PositionTA:
		return "TA"
	}
	return "Unknown"
}

// UserProfile carries the extra per-user fields the platform needs on
// top of whatever identity system sits in front of it.
type UserProfile struct {
	gorm.Model
	UserID         uint `gorm:"uniqueIndex"`
	OrganizationID uint `gorm:"index"`
	Position       Position
}
