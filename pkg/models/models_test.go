package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(ModelsToAutoMigrate()...))
	return db
}

func createTestProject(t *testing.T, db *gorm.DB, name string) *Project {
	t.Helper()

	p := &Project{Name: name}
	require.NoError(t, p.Create(db))
	return p
}

func TestProjectModel(t *testing.T) {
	db := setupTestDB(t)

	t.Run("create and get", func(t *testing.T) {
		p := createTestProject(t, db, "payments")

		got := &Project{}
		require.NoError(t, got.Get(db, p.ID))
		assert.Equal(t, "payments", got.Name)
	})

	t.Run("get by name", func(t *testing.T) {
		got := &Project{}
		require.NoError(t, got.GetByName(db, "payments"))
		assert.NotZero(t, got.ID)
	})

	t.Run("name is required", func(t *testing.T) {
		p := &Project{}
		err := p.Create(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation error")
	})

	t.Run("list is ordered by name", func(t *testing.T) {
		createTestProject(t, db, "billing")

		projects, err := GetAllProjects(db)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, "billing", projects[0].Name)
		assert.Equal(t, "payments", projects[1].Name)
	})
}

func TestGroupModel(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")

	t.Run("create root group", func(t *testing.T) {
		g := &Group{ProjectID: project.ID, Name: "Users"}
		require.NoError(t, g.Create(db))
		assert.NotZero(t, g.ID)
		assert.Nil(t, g.ParentID)
	})

	t.Run("create child group", func(t *testing.T) {
		parent := &Group{}
		require.NoError(t, db.Where("name = ?", "Users").First(parent).Error)

		child := &Group{
			ProjectID: project.ID,
			ParentID:  &parent.ID,
			Name:      "Admins",
		}
		require.NoError(t, child.Create(db))

		ids, err := child.AncestorIDs(db)
		require.NoError(t, err)
		assert.Equal(t, []uint{parent.ID}, ids)
	})

	t.Run("missing parent is rejected", func(t *testing.T) {
		missing := uint(99999)
		g := &Group{ProjectID: project.ID, ParentID: &missing, Name: "Orphan"}
		err := g.Create(db)
		require.Error(t, err)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("cross-project parent is rejected", func(t *testing.T) {
		other := createTestProject(t, db, "other")
		parent := &Group{}
		require.NoError(t, db.Where("name = ?", "Users").First(parent).Error)

		g := &Group{ProjectID: other.ID, ParentID: &parent.ID, Name: "Stray"}
		err := g.Create(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "different project")
	})

	t.Run("children are ordered by sort order then id", func(t *testing.T) {
		parent := &Group{}
		require.NoError(t, db.Where("name = ?", "Users").First(parent).Error)

		second := &Group{
			ProjectID: project.ID, ParentID: &parent.ID,
			Name: "Second", SortOrder: 1,
		}
		require.NoError(t, second.Create(db))

		children, err := GetGroupChildren(db, project.ID, &parent.ID)
		require.NoError(t, err)
		require.Len(t, children, 2)
		assert.Equal(t, "Admins", children[0].Name)
		assert.Equal(t, "Second", children[1].Name)
	})

	t.Run("collect descendants level by level", func(t *testing.T) {
		parent := &Group{}
		require.NoError(t, db.Where("name = ?", "Users").First(parent).Error)

		descendants, err := CollectDescendantGroups(db, project.ID, parent.ID)
		require.NoError(t, err)
		assert.Len(t, descendants, 2)
	})
}

func TestAPIModel(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	group := &Group{ProjectID: project.ID, Name: "Users"}
	require.NoError(t, group.Create(db))

	t.Run("create sets uuid and default status", func(t *testing.T) {
		api := &API{
			ProjectID: project.ID,
			GroupID:   group.ID,
			Name:      "List users",
			Path:      "/users",
			Method:    APIMethodGet,
		}
		require.NoError(t, api.Create(db))
		assert.NotZero(t, api.ID)
		assert.NotEmpty(t, api.APIUUID)
		assert.Equal(t, APIStatusDraft, api.Status)
	})

	t.Run("unknown method is rejected", func(t *testing.T) {
		api := &API{
			ProjectID: project.ID,
			GroupID:   group.ID,
			Name:      "Bad",
			Path:      "/bad",
			Method:    "FETCH",
		}
		err := api.Create(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation error")
	})

	t.Run("missing group is rejected", func(t *testing.T) {
		api := &API{
			ProjectID: project.ID,
			GroupID:   99999,
			Name:      "Orphan",
			Path:      "/orphan",
			Method:    APIMethodGet,
		}
		err := api.Create(db)
		require.Error(t, err)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("lookup by path and method", func(t *testing.T) {
		api, err := GetAPIByPathMethod(db, project.ID, "/users", APIMethodGet)
		require.NoError(t, err)
		assert.Equal(t, "List users", api.Name)

		_, err = GetAPIByPathMethod(db, project.ID, "/users", APIMethodPost)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("lookup by uuid", func(t *testing.T) {
		created, err := GetAPIByPathMethod(db, project.ID, "/users", APIMethodGet)
		require.NoError(t, err)

		got := &API{}
		require.NoError(t, got.GetByUUID(db, created.APIUUID))
		assert.Equal(t, created.ID, got.ID)
	})
}

func TestAPIVersionModel(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	group := &Group{ProjectID: project.ID, Name: "Users"}
	require.NoError(t, group.Create(db))
	api := &API{
		ProjectID: project.ID, GroupID: group.ID,
		Name: "List users", Path: "/users", Method: APIMethodGet,
	}
	require.NoError(t, api.Create(db))

	t.Run("invalid tag is rejected", func(t *testing.T) {
		v := &APIVersion{APIID: api.ID, VersionTag: "1.0"}
		err := v.Create(db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation error")
	})

	t.Run("versions are returned newest first", func(t *testing.T) {
		for _, tag := range []string{"v1.0.0", "v1.0.1", "v1.1.0"} {
			v := &APIVersion{APIID: api.ID, VersionTag: tag}
			require.NoError(t, v.Create(db))
		}

		versions, err := GetAPIVersions(db, api.ID)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		assert.Equal(t, "v1.1.0", versions[0].VersionTag)

		latest, err := GetLatestAPIVersion(db, api.ID)
		require.NoError(t, err)
		assert.Equal(t, "v1.1.0", latest.VersionTag)
	})

	t.Run("shapes round-trip through the column", func(t *testing.T) {
		shape := JSON(`{"type":"object","properties":{"id":{"type":"string"}}}`)
		v := &APIVersion{APIID: api.ID, VersionTag: "v2.0.0", RequestShape: shape}
		require.NoError(t, v.Create(db))

		got := &APIVersion{}
		require.NoError(t, got.Get(db, v.ID))
		assert.True(t, got.RequestShape.Equal(shape))
	})
}

func TestJSONEqual(t *testing.T) {
	assert.True(t, JSON(`{"a":1,"b":2}`).Equal(JSON(`{ "b": 2, "a": 1 }`)))
	assert.False(t, JSON(`{"a":1}`).Equal(JSON(`{"a":2}`)))
	assert.True(t, JSON(nil).Equal(JSON(nil)))
	assert.False(t, JSON(`{}`).Equal(nil))
}
