package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// buildTestForest creates:
//
//	Root
//	├── Users   (GET /users, POST /users)
//	│   └── Admins (GET /admins)
//	└── Orders  (GET /orders)
//	Empty
func buildTestForest(t *testing.T, db *gorm.DB, projectID uint) map[string]*models.Group {
	t.Helper()

	root := createTestGroup(t, db, projectID, nil, "Root")
	users := createTestGroup(t, db, projectID, &root.ID, "Users")
	admins := createTestGroup(t, db, projectID, &users.ID, "Admins")
	orders := createTestGroup(t, db, projectID, &root.ID, "Orders")
	empty := createTestGroup(t, db, projectID, nil, "Empty")

	createTestAPI(t, db, projectID, users.ID, "List users", "/users", models.APIMethodGet)
	createTestAPI(t, db, projectID, users.ID, "Create user", "/users", models.APIMethodPost)
	createTestAPI(t, db, projectID, admins.ID, "List admins", "/admins", models.APIMethodGet)
	createTestAPI(t, db, projectID, orders.ID, "List orders", "/orders", models.APIMethodGet)

	return map[string]*models.Group{
		"root": root, "users": users, "admins": admins,
		"orders": orders, "empty": empty,
	}
}

func TestGetSubtree(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	groups := buildTestForest(t, db, project.ID)

	t.Run("whole forest", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{ProjectID: project.ID})
		require.NoError(t, err)
		require.Len(t, subtree.Roots, 2)
		assert.Equal(t, "Root", subtree.Roots[0].Group.Name)
		assert.Equal(t, "Empty", subtree.Roots[1].Group.Name)

		rootNode := subtree.Roots[0]
		require.Len(t, rootNode.Children, 2)
		assert.Equal(t, "Users", rootNode.Children[0].Group.Name)
		assert.Len(t, rootNode.Children[0].APIs, 2)
		assert.Equal(t, 2, rootNode.Children[0].TotalAPIs)
	})

	t.Run("explicit root scopes the read", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID: project.ID,
			RootID:    &groups["users"].ID,
		})
		require.NoError(t, err)
		require.Len(t, subtree.Roots, 1)
		assert.Equal(t, "Users", subtree.Roots[0].Group.Name)
		require.Len(t, subtree.Roots[0].Children, 1)
		assert.Equal(t, "Admins", subtree.Roots[0].Children[0].Group.Name)
	})

	t.Run("max depth excludes grandchildren entirely", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID: project.ID,
			RootID:    &groups["root"].ID,
			MaxDepth:  1,
		})
		require.NoError(t, err)
		require.Len(t, subtree.Roots, 1)

		usersNode := subtree.Roots[0].Children[0]
		assert.Equal(t, "Users", usersNode.Group.Name)
		// Admins is at depth 2 and must not appear at all.
		assert.Empty(t, usersNode.Children)
	})

	t.Run("method filter prunes empty branches", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID: project.ID,
			Method:    models.APIMethodPost,
		})
		require.NoError(t, err)
		// Only Root -> Users survives; Empty and Orders are pruned.
		require.Len(t, subtree.Roots, 1)
		rootNode := subtree.Roots[0]
		require.Len(t, rootNode.Children, 1)
		assert.Equal(t, "Users", rootNode.Children[0].Group.Name)
		require.Len(t, rootNode.Children[0].APIs, 1)
		assert.Equal(t, "Create user", rootNode.Children[0].APIs[0].Name)
	})

	t.Run("explicit root survives filters", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID: project.ID,
			RootID:    &groups["empty"].ID,
			Search:    "nothing matches this",
		})
		require.NoError(t, err)
		require.Len(t, subtree.Roots, 1)
		assert.Equal(t, "Empty", subtree.Roots[0].Group.Name)
	})

	t.Run("per-group cap applies after filtering", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID:        project.ID,
			RootID:           &groups["users"].ID,
			MaxDepth:         1,
			APILimitPerGroup: 1,
		})
		require.NoError(t, err)
		node := subtree.Roots[0]
		assert.Len(t, node.APIs, 1)
		assert.Equal(t, 2, node.TotalAPIs)
	})

	t.Run("search matches name and path case-insensitively", func(t *testing.T) {
		subtree, err := GetSubtree(db, SubtreeQuery{
			ProjectID: project.ID,
			Search:    "ADMIN",
		})
		require.NoError(t, err)
		require.Len(t, subtree.Roots, 1)
		users := subtree.Roots[0].Children[0]
		admins := users.Children[0]
		assert.Equal(t, 1, admins.TotalAPIs)
	})

	t.Run("missing root", func(t *testing.T) {
		missing := uint(99999)
		_, err := GetSubtree(db, SubtreeQuery{ProjectID: project.ID, RootID: &missing})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("out-of-range depth is rejected", func(t *testing.T) {
		_, err := GetSubtree(db, SubtreeQuery{ProjectID: project.ID, MaxDepth: 99})
		assert.True(t, IsValidationError(err))
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		_, err := GetSubtree(db, SubtreeQuery{ProjectID: project.ID, Method: "FETCH"})
		assert.True(t, IsValidationError(err))
	})
}

func TestFlatten(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	groups := buildTestForest(t, db, project.ID)

	subtree, err := GetSubtree(db, SubtreeQuery{
		ProjectID: project.ID,
		RootID:    &groups["root"].ID,
	})
	require.NoError(t, err)
	rootNode := subtree.Roots[0]

	usersNode := rootNode.Children[0]

	t.Run("groups first", func(t *testing.T) {
		items := Flatten(usersNode, SortGroupsFirst)
		require.Len(t, items, 3)
		assert.NotNil(t, items[0].Group)
		assert.NotNil(t, items[1].API)
	})

	t.Run("apis first", func(t *testing.T) {
		items := Flatten(usersNode, SortAPIsFirst)
		require.Len(t, items, 3)
		assert.NotNil(t, items[0].API)
		assert.NotNil(t, items[2].Group)
	})
}
