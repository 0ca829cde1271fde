package models

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// MaxTreeDepth bounds every upward walk through the group forest. The
// forest is validated to be acyclic on every mutation, but corrupt data
// must still terminate.
const MaxTreeDepth = 64

// Group is a node in a project's API organization forest. Root groups
// have a nil ParentID. SortOrder carries no meaning beyond the relative
// ordering of one sibling set.
type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ProjectID uint  `gorm:"not null;index:idx_groups_project" json:"projectId"`
	ParentID  *uint `gorm:"index:idx_groups_parent" json:"parentId,omitempty"`

	Name        string  `gorm:"type:varchar(128);not null" json:"name"`
	Description *string `gorm:"type:varchar(1024)" json:"description,omitempty"`

	SortOrder int `gorm:"not null;default:0" json:"sortOrder"`
}

// TableName specifies the table name.
func (Group) TableName() string {
	return "groups"
}

// Create creates a new group. The parent, when set, must exist and
// belong to the same project.
func (g *Group) Create(db *gorm.DB) error {
	if err := validation.ValidateStruct(g,
		validation.Field(&g.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&g.ProjectID, validation.Required),
		validation.Field(&g.SortOrder, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if g.ParentID != nil {
		if err := checkGroupParent(db, g.ProjectID, *g.ParentID); err != nil {
			return err
		}
	}

	return db.Create(&g).Error
}

// Get retrieves a group by ID.
func (g *Group) Get(db *gorm.DB, id uint) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.First(&g, id).Error
}

// Update persists the group's name, description and sort order.
// Reparenting goes through the mutation engine, not here.
func (g *Group) Update(db *gorm.DB) error {
	if err := validation.ValidateStruct(g,
		validation.Field(&g.ID, validation.Required),
		validation.Field(&g.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&g.SortOrder, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.
		Model(&g).
		Select("Name", "Description", "SortOrder").
		Updates(g).
		Error
}

// Delete removes the group row. Callers are responsible for emptiness
// or cascade semantics.
func (g *Group) Delete(db *gorm.DB) error {
	if err := validation.Validate(g.ID, validation.Required); err != nil {
		return err
	}

	return db.Delete(&Group{}, g.ID).Error
}

// GetGroupChildren returns the ordered child groups of parentID within a
// project. A nil parentID selects the project's root groups. Equal sort
// orders fall back to ID order so the result is deterministic.
func GetGroupChildren(db *gorm.DB, projectID uint, parentID *uint) ([]Group, error) {
	var groups []Group
	q := db.Where("project_id = ?", projectID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	err := q.
		Order("sort_order ASC, id ASC").
		Find(&groups).
		Error
	return groups, err
}

// GetAllProjectGroups returns every group in a project, ordered for
// deterministic tree assembly.
func GetAllProjectGroups(db *gorm.DB, projectID uint) ([]Group, error) {
	var groups []Group
	err := db.
		Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").
		Find(&groups).
		Error
	return groups, err
}

// AncestorIDs walks the parent chain from this group to its root and
// returns the visited group IDs, nearest ancestor first. The walk is
// bounded by MaxTreeDepth.
func (g *Group) AncestorIDs(db *gorm.DB) ([]uint, error) {
	var ids []uint

	current := g.ParentID
	for depth := 0; current != nil; depth++ {
		if depth >= MaxTreeDepth {
			return nil, fmt.Errorf("group %d: parent chain exceeds max depth %d",
				g.ID, MaxTreeDepth)
		}

		var parent Group
		if err := db.First(&parent, *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("group %d: dangling parent %d", g.ID, *current)
			}
			return nil, err
		}

		ids = append(ids, parent.ID)
		current = parent.ParentID
	}

	return ids, nil
}

// CollectDescendantGroups returns all groups below rootID, level by
// level. The result does not include the root itself.
func CollectDescendantGroups(db *gorm.DB, projectID, rootID uint) ([]Group, error) {
	var all []Group

	frontier := []uint{rootID}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth >= MaxTreeDepth {
			return nil, fmt.Errorf("group %d: subtree exceeds max depth %d",
				rootID, MaxTreeDepth)
		}

		var level []Group
		if err := db.
			Where("project_id = ? AND parent_id IN ?", projectID, frontier).
			Find(&level).
			Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, g := range level {
			frontier = append(frontier, g.ID)
		}
		all = append(all, level...)
	}

	return all, nil
}

// checkGroupParent verifies that a candidate parent group exists and
// belongs to the given project.
func checkGroupParent(db *gorm.DB, projectID, parentID uint) error {
	var parent Group
	if err := db.First(&parent, parentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("parent group %d: %w", parentID, gorm.ErrRecordNotFound)
		}
		return err
	}
	if parent.ProjectID != projectID {
		return fmt.Errorf("parent group %d belongs to a different project", parentID)
	}
	return nil
}
