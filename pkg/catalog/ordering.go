package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// NextGroupSortOrder returns the sort order an appended group gets
// within a sibling set: one past the current maximum, or 0 for an empty
// set.
func NextGroupSortOrder(db *gorm.DB, projectID uint, parentID *uint) (int, error) {
	q := db.Model(&models.Group{}).Where("project_id = ?", projectID)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}
	return nextSortOrder(q)
}

// NextAPISortOrder returns the sort order an appended API gets within
// its group.
func NextAPISortOrder(db *gorm.DB, groupID uint) (int, error) {
	return nextSortOrder(db.Model(&models.API{}).Where("group_id = ?", groupID))
}

func nextSortOrder(q *gorm.DB) (int, error) {
	var max *int
	if err := q.Select("MAX(sort_order)").Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("error reading max sort order: %w", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// SortItem is one entry of a batch reorder.
type SortItem struct {
	ID        uint `json:"id"`
	SortOrder int  `json:"sortOrder"`
}

// SortItems applies a batch reorder atomically. All ids must resolve
// within one sibling set: either all child groups of one parent, or all
// APIs of one group, in the given project. Validation happens before any
// write; a failure leaves every sort order unchanged.
//
// Equal sort orders are permitted; reads tie-break on id order, which is
// deterministic but carries no meaning.
func SortItems(db *gorm.DB, projectID uint, items []SortItem) error {
	if len(items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}
	seen := make(map[uint]bool, len(items))
	for i, it := range items {
		if it.ID == 0 {
			return NewValidationError(fmt.Sprintf("items[%d].id", i), "cannot be blank")
		}
		if it.SortOrder < 0 {
			return NewValidationError(
				fmt.Sprintf("items[%d].sortOrder", i), "must be no less than 0")
		}
		if seen[it.ID] {
			return NewValidationError(
				fmt.Sprintf("items[%d].id", i), fmt.Sprintf("duplicate id %d", it.ID))
		}
		seen[it.ID] = true
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		// Resolve the batch as a group sibling set first, then as an API
		// sibling set. Membership is re-checked inside the transaction so
		// a concurrent move cannot split the set after validation.
		resolved, err := resolveGroupSiblings(tx, projectID, ids)
		if err != nil {
			return err
		}
		if resolved {
			return applySortOrders(tx, &models.Group{}, items)
		}

		if err := resolveAPISiblings(tx, projectID, ids); err != nil {
			return err
		}
		return applySortOrders(tx, &models.API{}, items)
	})
}

// resolveGroupSiblings reports whether all ids are groups, and verifies
// they share one parent within the project. Returns false without error
// when none of the ids is a group (the batch may be an API set).
func resolveGroupSiblings(tx *gorm.DB, projectID uint, ids []uint) (bool, error) {
	var groups []models.Group
	if err := tx.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return false, err
	}
	if len(groups) == 0 {
		return false, nil
	}
	if len(groups) != len(ids) {
		return false, NewValidationError("items",
			"ids do not resolve to a single sibling set")
	}

	parent := groups[0].ParentID
	for _, g := range groups {
		if g.ProjectID != projectID {
			return false, NewValidationError("items",
				fmt.Sprintf("group %d belongs to a different project", g.ID))
		}
		if !sameParent(parent, g.ParentID) {
			return false, NewValidationError("items",
				fmt.Sprintf("group %d has a different parent", g.ID))
		}
	}
	return true, nil
}

// resolveAPISiblings verifies all ids are APIs of one group in the
// project.
func resolveAPISiblings(tx *gorm.DB, projectID uint, ids []uint) error {
	var apis []models.API
	if err := tx.Where("id IN ?", ids).Find(&apis).Error; err != nil {
		return err
	}
	if len(apis) != len(ids) {
		return NewValidationError("items",
			"ids do not resolve to a single sibling set")
	}

	groupID := apis[0].GroupID
	for _, a := range apis {
		if a.ProjectID != projectID {
			return NewValidationError("items",
				fmt.Sprintf("api %d belongs to a different project", a.ID))
		}
		if a.GroupID != groupID {
			return NewValidationError("items",
				fmt.Sprintf("api %d belongs to a different group", a.ID))
		}
	}
	return nil
}

func applySortOrders(tx *gorm.DB, model interface{}, items []SortItem) error {
	for _, it := range items {
		res := tx.Model(model).
			Where("id = ?", it.ID).
			Update("sort_order", it.SortOrder)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Row vanished between validation and write.
			return fmt.Errorf("sorting item %d: %w", it.ID, ErrConflict)
		}
	}
	return nil
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// notFoundAs maps a gorm record-not-found to the given taxonomy error,
// passing other errors through.
func notFoundAs(err, as error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, as)...)
	}
	return err
}
