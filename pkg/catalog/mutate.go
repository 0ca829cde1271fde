package catalog

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// renameMaxAttempts caps the numeric suffix search when disambiguating
// a colliding name or path.
const renameMaxAttempts = 100

// ParentRef describes the target parent of a move. Keep leaves the
// current parent untouched (reorder only); otherwise ID selects the new
// parent group, with nil meaning the project's forest root.
type ParentRef struct {
	Keep bool
	ID   *uint
}

// KeepParent is the reorder-only target.
var KeepParent = ParentRef{Keep: true}

// MoveGroup reparents and/or reorders a group. The whole operation runs
// in one transaction; parent existence and acyclicity are checked inside
// it, so two overlapping moves cannot both commit a corrupted forest.
func MoveGroup(db *gorm.DB, projectID, groupID uint, parent ParentRef, sortOrder *int) error {
	if sortOrder != nil && *sortOrder < 0 {
		return NewValidationError("sortOrder", "must be no less than 0")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		group := &models.Group{}
		if err := group.Get(tx, groupID); err != nil {
			return notFoundAs(err, ErrNotFound, "group %d", groupID)
		}
		if group.ProjectID != projectID {
			return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
		}

		newParent := group.ParentID
		if !parent.Keep {
			newParent = parent.ID
		}

		if newParent != nil {
			if err := checkMoveTarget(tx, projectID, groupID, *newParent); err != nil {
				return err
			}
		}

		order := group.SortOrder
		if sortOrder != nil {
			order = *sortOrder
		} else if !parent.Keep && !sameParent(group.ParentID, newParent) {
			// Changing parents without an explicit position appends.
			next, err := NextGroupSortOrder(tx, projectID, newParent)
			if err != nil {
				return err
			}
			order = next
		}

		return tx.Model(&models.Group{}).
			Where("id = ?", group.ID).
			Updates(map[string]interface{}{
				"parent_id":  newParent,
				"sort_order": order,
			}).Error
	})
}

// checkMoveTarget validates a candidate parent for moving groupID:
// it must exist as a group in the same project, and the upward walk
// from it to the root must not pass through the moving group.
func checkMoveTarget(tx *gorm.DB, projectID, groupID, parentID uint) error {
	if parentID == groupID {
		return fmt.Errorf("group %d cannot be its own parent: %w",
			groupID, ErrInvalidParent)
	}

	parent := &models.Group{}
	if err := parent.Get(tx, parentID); err != nil {
		// Any id that is not a group (including an API id) is an invalid
		// parent, not a missing resource.
		return notFoundAs(err, ErrInvalidParent, "parent %d", parentID)
	}
	if parent.ProjectID != projectID {
		return fmt.Errorf("parent %d belongs to a different project: %w",
			parentID, ErrInvalidParent)
	}

	ancestors, err := parent.AncestorIDs(tx)
	if err != nil {
		return err
	}
	for _, id := range ancestors {
		if id == groupID {
			return fmt.Errorf("moving group %d under its descendant %d: %w",
				groupID, parentID, ErrInvalidParent)
		}
	}
	return nil
}

// MoveAPI moves an API definition to another group and/or reorders it.
// A nil newGroupID keeps the current group.
func MoveAPI(db *gorm.DB, projectID, apiID uint, newGroupID *uint, sortOrder *int) error {
	if sortOrder != nil && *sortOrder < 0 {
		return NewValidationError("sortOrder", "must be no less than 0")
	}

	return db.Transaction(func(tx *gorm.DB) error {
		api := &models.API{}
		if err := api.Get(tx, apiID); err != nil {
			return notFoundAs(err, ErrNotFound, "api %d", apiID)
		}
		if api.ProjectID != projectID {
			return fmt.Errorf("api %d: %w", apiID, ErrNotFound)
		}

		groupID := api.GroupID
		if newGroupID != nil {
			target := &models.Group{}
			if err := target.Get(tx, *newGroupID); err != nil {
				return notFoundAs(err, ErrInvalidParent, "group %d", *newGroupID)
			}
			if target.ProjectID != projectID {
				return fmt.Errorf("group %d belongs to a different project: %w",
					*newGroupID, ErrInvalidParent)
			}
			groupID = *newGroupID
		}

		order := api.SortOrder
		if sortOrder != nil {
			order = *sortOrder
		} else if groupID != api.GroupID {
			next, err := NextAPISortOrder(tx, groupID)
			if err != nil {
				return err
			}
			order = next
		}

		return tx.Model(&models.API{}).
			Where("id = ?", api.ID).
			Updates(map[string]interface{}{
				"group_id":   groupID,
				"sort_order": order,
			}).Error
	})
}

// CloneOptions override fields of a cloned API. Empty values copy the
// source.
type CloneOptions struct {
	Name   string
	Path   string
	Method string
}

// CloneAPI duplicates an API's current definition into a target group.
// Only the current version snapshot is copied, not the full history.
// When name/path are copied from the source and collide at the target
// scope, a disambiguating numeric suffix is applied; explicit overrides
// that collide fail with ErrConflict instead.
func CloneAPI(db *gorm.DB, projectID, apiID, targetGroupID uint, opts CloneOptions) (*models.API, error) {
	var clone *models.API

	err := db.Transaction(func(tx *gorm.DB) error {
		source := &models.API{}
		if err := source.Get(tx, apiID); err != nil {
			return notFoundAs(err, ErrNotFound, "api %d", apiID)
		}
		if source.ProjectID != projectID {
			return fmt.Errorf("api %d: %w", apiID, ErrNotFound)
		}

		target := &models.Group{}
		if err := target.Get(tx, targetGroupID); err != nil {
			return notFoundAs(err, ErrNotFound, "group %d", targetGroupID)
		}
		if target.ProjectID != projectID {
			return fmt.Errorf("group %d: %w", targetGroupID, ErrNotFound)
		}

		name := source.Name
		path := source.Path
		method := source.Method
		explicitPath := false
		if opts.Name != "" {
			name = opts.Name
		}
		if opts.Path != "" {
			path = opts.Path
			explicitPath = true
		}
		if opts.Method != "" {
			method = opts.Method
			explicitPath = true
		}

		if _, err := models.GetAPIByPathMethod(tx, projectID, path, method); err == nil {
			if explicitPath {
				return fmt.Errorf("api %s %s already exists: %w", method, path, ErrConflict)
			}
			var derr error
			path, derr = DisambiguatePath(tx, projectID, path, method)
			if derr != nil {
				return derr
			}
			if opts.Name == "" {
				name = DisambiguateName(name, pathSuffixIndex(path))
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		order, err := NextAPISortOrder(tx, targetGroupID)
		if err != nil {
			return err
		}

		clone = &models.API{
			ProjectID: projectID,
			GroupID:   targetGroupID,
			Name:      name,
			Path:      path,
			Method:    method,
			Status:    source.Status,
			SortOrder: order,
			Imported:  source.Imported,
		}
		if err := clone.Create(tx); err != nil {
			return err
		}

		// Copy the current version snapshot only.
		if source.CurrentVersionID != nil {
			src := &models.APIVersion{}
			if err := src.Get(tx, *source.CurrentVersionID); err != nil {
				return fmt.Errorf("error reading current version of api %d: %w",
					source.ID, err)
			}
			copied := &models.APIVersion{
				APIID:         clone.ID,
				VersionTag:    src.VersionTag,
				Summary:       src.Summary,
				Changelog:     src.Changelog,
				RequestShape:  src.RequestShape,
				ResponseShape: src.ResponseShape,
			}
			if err := copied.Create(tx); err != nil {
				return err
			}
			clone.CurrentVersionID = &copied.ID
			if err := tx.Model(&models.API{}).
				Where("id = ?", clone.ID).
				Update("current_version_id", copied.ID).
				Error; err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

// DeleteGroup removes a group. Without cascade the group must be empty
// or the call fails with ErrNotEmpty and the tree is untouched. With
// cascade the entire subtree - descendant groups, their APIs, and the
// APIs' versions - is deleted in a single transaction so partial
// deletion is never observable.
func DeleteGroup(db *gorm.DB, projectID, groupID uint, cascade bool) error {
	return db.Transaction(func(tx *gorm.DB) error {
		group := &models.Group{}
		if err := group.Get(tx, groupID); err != nil {
			return notFoundAs(err, ErrNotFound, "group %d", groupID)
		}
		if group.ProjectID != projectID {
			return fmt.Errorf("group %d: %w", groupID, ErrNotFound)
		}

		descendants, err := models.CollectDescendantGroups(tx, projectID, groupID)
		if err != nil {
			return err
		}

		groupIDs := []uint{groupID}
		for _, g := range descendants {
			groupIDs = append(groupIDs, g.ID)
		}

		var apiCount int64
		if err := tx.Model(&models.API{}).
			Where("group_id IN ?", groupIDs).
			Count(&apiCount).
			Error; err != nil {
			return err
		}

		if !cascade {
			if len(descendants) > 0 || apiCount > 0 {
				return fmt.Errorf("group %d has %d child groups and %d apis: %w",
					groupID, len(descendants), apiCount, ErrNotEmpty)
			}
			return group.Delete(tx)
		}

		var apiIDs []uint
		if err := tx.Model(&models.API{}).
			Where("group_id IN ?", groupIDs).
			Pluck("id", &apiIDs).
			Error; err != nil {
			return err
		}

		// Leaves to root: versions, then APIs, then groups.
		if len(apiIDs) > 0 {
			if err := tx.Where("api_id IN ?", apiIDs).
				Delete(&models.APIVersion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", apiIDs).
				Delete(&models.API{}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id IN ?", groupIDs).
			Delete(&models.Group{}).Error
	})
}

// DisambiguatePath finds the first free "-N" suffixed variant of path
// for (path, method) within a project, starting at 2. Exhaustion of the
// attempt budget is a conflict.
func DisambiguatePath(db *gorm.DB, projectID uint, path, method string) (string, error) {
	for n := 2; n < 2+renameMaxAttempts; n++ {
		candidate := fmt.Sprintf("%s-%d", path, n)
		_, err := models.GetAPIByPathMethod(db, projectID, candidate, method)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free path variant for %s %s: %w",
		method, path, ErrConflict)
}

// DisambiguateName appends the numeric suffix used for the path, e.g.
// "List users (2)".
func DisambiguateName(name string, n int) string {
	return fmt.Sprintf("%s (%d)", name, n)
}

// pathSuffixIndex extracts the trailing "-N" index from a disambiguated
// path. Returns 2 when no suffix is found.
func pathSuffixIndex(path string) int {
	var n int
	if _, err := fmt.Sscanf(path[lastDashIndex(path):], "-%d", &n); err == nil && n >= 2 {
		return n
	}
	return 2
}

func lastDashIndex(path string) int {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '-' {
			return i
		}
	}
	return 0
}
