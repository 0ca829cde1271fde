package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiforge-io/apiforge/pkg/models"
)

func TestMoveGroup(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")

	root := createTestGroup(t, db, project.ID, nil, "Root")
	child := createTestGroup(t, db, project.ID, &root.ID, "Child")
	grandchild := createTestGroup(t, db, project.ID, &child.ID, "Grandchild")
	other := createTestGroup(t, db, project.ID, nil, "Other")

	t.Run("reparent appends to the new sibling set", func(t *testing.T) {
		require.NoError(t, MoveGroup(db, project.ID, other.ID,
			ParentRef{ID: &root.ID}, nil))

		moved := reloadGroup(t, db, other.ID)
		require.NotNil(t, moved.ParentID)
		assert.Equal(t, root.ID, *moved.ParentID)
		// Child holds position 0, so the append lands after it.
		assert.Equal(t, 1, moved.SortOrder)
	})

	t.Run("move to forest root", func(t *testing.T) {
		require.NoError(t, MoveGroup(db, project.ID, other.ID,
			ParentRef{ID: nil}, nil))

		moved := reloadGroup(t, db, other.ID)
		assert.Nil(t, moved.ParentID)
	})

	t.Run("reorder only keeps the parent", func(t *testing.T) {
		order := 7
		require.NoError(t, MoveGroup(db, project.ID, grandchild.ID, KeepParent, &order))

		moved := reloadGroup(t, db, grandchild.ID)
		require.NotNil(t, moved.ParentID)
		assert.Equal(t, child.ID, *moved.ParentID)
		assert.Equal(t, 7, moved.SortOrder)
	})

	t.Run("self parent is invalid", func(t *testing.T) {
		err := MoveGroup(db, project.ID, root.ID, ParentRef{ID: &root.ID}, nil)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("descendant parent would create a cycle", func(t *testing.T) {
		err := MoveGroup(db, project.ID, root.ID, ParentRef{ID: &grandchild.ID}, nil)
		assert.ErrorIs(t, err, ErrInvalidParent)

		// The forest must be untouched.
		unchanged := reloadGroup(t, db, root.ID)
		assert.Nil(t, unchanged.ParentID)
	})

	t.Run("absent parent id is invalid, not missing", func(t *testing.T) {
		missing := uint(99999)
		err := MoveGroup(db, project.ID, child.ID, ParentRef{ID: &missing}, nil)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("cross-project parent is invalid", func(t *testing.T) {
		foreign := createTestProject(t, db, "foreign")
		foreignRoot := createTestGroup(t, db, foreign.ID, nil, "Foreign")

		err := MoveGroup(db, project.ID, child.ID, ParentRef{ID: &foreignRoot.ID}, nil)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("missing group", func(t *testing.T) {
		err := MoveGroup(db, project.ID, 99999, KeepParent, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMoveAPI(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	source := createTestGroup(t, db, project.ID, nil, "Source")
	target := createTestGroup(t, db, project.ID, nil, "Target")
	api := createTestAPI(t, db, project.ID, source.ID, "List users", "/users", models.APIMethodGet)

	t.Run("move to another group appends", func(t *testing.T) {
		createTestAPI(t, db, project.ID, target.ID, "Existing", "/existing", models.APIMethodGet)

		require.NoError(t, MoveAPI(db, project.ID, api.ID, &target.ID, nil))

		moved := reloadAPI(t, db, api.ID)
		assert.Equal(t, target.ID, moved.GroupID)
		assert.Equal(t, 1, moved.SortOrder)
	})

	t.Run("reorder only keeps the group", func(t *testing.T) {
		order := 4
		require.NoError(t, MoveAPI(db, project.ID, api.ID, nil, &order))

		moved := reloadAPI(t, db, api.ID)
		assert.Equal(t, target.ID, moved.GroupID)
		assert.Equal(t, 4, moved.SortOrder)
	})

	t.Run("missing target group is invalid", func(t *testing.T) {
		missing := uint(99999)
		err := MoveAPI(db, project.ID, api.ID, &missing, nil)
		assert.ErrorIs(t, err, ErrInvalidParent)
	})

	t.Run("missing api", func(t *testing.T) {
		err := MoveAPI(db, project.ID, 99999, nil, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCloneAPI(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	source := createTestGroup(t, db, project.ID, nil, "Source")
	target := createTestGroup(t, db, project.ID, nil, "Target")

	api := createTestAPI(t, db, project.ID, source.ID, "List users", "/users", models.APIMethodGet)
	_, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
		VersionTag:   "v1.0.0",
		RequestShape: models.JSON(`{"type":"object"}`),
	})
	require.NoError(t, err)
	_, err = PublishVersion(db, project.ID, api.ID, PublishVersionParams{
		VersionTag:   "v1.1.0",
		RequestShape: models.JSON(`{"type":"array"}`),
	})
	require.NoError(t, err)

	t.Run("copied values get a numeric suffix", func(t *testing.T) {
		clone, err := CloneAPI(db, project.ID, api.ID, target.ID, CloneOptions{})
		require.NoError(t, err)

		assert.Equal(t, "/users-2", clone.Path)
		assert.Equal(t, "List users (2)", clone.Name)
		assert.Equal(t, target.ID, clone.GroupID)

		// Only the current version snapshot travels.
		versions, err := models.GetAPIVersions(db, clone.ID)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, "v1.1.0", versions[0].VersionTag)
		require.NotNil(t, clone.CurrentVersionID)
		assert.Equal(t, versions[0].ID, *clone.CurrentVersionID)
	})

	t.Run("explicit overrides avoid disambiguation", func(t *testing.T) {
		clone, err := CloneAPI(db, project.ID, api.ID, target.ID, CloneOptions{
			Name: "Users copy",
			Path: "/users-copy",
		})
		require.NoError(t, err)
		assert.Equal(t, "/users-copy", clone.Path)
		assert.Equal(t, "Users copy", clone.Name)
	})

	t.Run("colliding explicit override is a conflict", func(t *testing.T) {
		_, err := CloneAPI(db, project.ID, api.ID, target.ID, CloneOptions{
			Path: "/users",
		})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("missing target group", func(t *testing.T) {
		_, err := CloneAPI(db, project.ID, api.ID, 99999, CloneOptions{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing source api", func(t *testing.T) {
		_, err := CloneAPI(db, project.ID, 99999, target.ID, CloneOptions{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDeleteGroup(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")

	t.Run("populated group without cascade is rejected", func(t *testing.T) {
		root := createTestGroup(t, db, project.ID, nil, "Root")
		createTestGroup(t, db, project.ID, &root.ID, "Child")

		err := DeleteGroup(db, project.ID, root.ID, false)
		assert.ErrorIs(t, err, ErrNotEmpty)

		// Nothing was deleted.
		assert.NotNil(t, reloadGroup(t, db, root.ID))
	})

	t.Run("empty group deletes without cascade", func(t *testing.T) {
		leaf := createTestGroup(t, db, project.ID, nil, "Leaf")
		require.NoError(t, DeleteGroup(db, project.ID, leaf.ID, false))

		err := (&models.Group{}).Get(db, leaf.ID)
		assert.Error(t, err)
	})

	t.Run("cascade removes the whole subtree", func(t *testing.T) {
		root := createTestGroup(t, db, project.ID, nil, "Tree")
		child := createTestGroup(t, db, project.ID, &root.ID, "Branch")
		api := createTestAPI(t, db, project.ID, child.ID, "Leaf op", "/leaf", models.APIMethodGet)
		_, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
			VersionTag: "v1.0.0",
		})
		require.NoError(t, err)

		require.NoError(t, DeleteGroup(db, project.ID, root.ID, true))

		var groups int64
		require.NoError(t, db.Model(&models.Group{}).
			Where("id IN ?", []uint{root.ID, child.ID}).Count(&groups).Error)
		assert.Zero(t, groups)

		var apis int64
		require.NoError(t, db.Model(&models.API{}).
			Where("id = ?", api.ID).Count(&apis).Error)
		assert.Zero(t, apis)

		var versions int64
		require.NoError(t, db.Model(&models.APIVersion{}).
			Where("api_id = ?", api.ID).Count(&versions).Error)
		assert.Zero(t, versions)
	})

	t.Run("missing group", func(t *testing.T) {
		err := DeleteGroup(db, project.ID, 99999, true)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDisambiguatePath(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	g := createTestGroup(t, db, project.ID, nil, "G")

	createTestAPI(t, db, project.ID, g.ID, "One", "/orders", models.APIMethodGet)
	createTestAPI(t, db, project.ID, g.ID, "Two", "/orders-2", models.APIMethodGet)

	path, err := DisambiguatePath(db, project.ID, "/orders", models.APIMethodGet)
	require.NoError(t, err)
	assert.Equal(t, "/orders-3", path)

	// A different method has no collision to resolve around.
	path, err = DisambiguatePath(db, project.ID, "/orders", models.APIMethodPost)
	require.NoError(t, err)
	assert.Equal(t, "/orders-2", path)
}
