package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apiforge-io/apiforge/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

func createTestProject(t *testing.T, db *gorm.DB, name string) *models.Project {
	t.Helper()

	p := &models.Project{Name: name}
	require.NoError(t, p.Create(db))
	return p
}

func createTestGroup(t *testing.T, db *gorm.DB, projectID uint, parentID *uint, name string) *models.Group {
	t.Helper()

	order, err := NextGroupSortOrder(db, projectID, parentID)
	require.NoError(t, err)

	g := &models.Group{
		ProjectID: projectID,
		ParentID:  parentID,
		Name:      name,
		SortOrder: order,
	}
	require.NoError(t, g.Create(db))
	return g
}

func createTestAPI(t *testing.T, db *gorm.DB, projectID, groupID uint, name, path, method string) *models.API {
	t.Helper()

	order, err := NextAPISortOrder(db, groupID)
	require.NoError(t, err)

	a := &models.API{
		ProjectID: projectID,
		GroupID:   groupID,
		Name:      name,
		Path:      path,
		Method:    method,
		SortOrder: order,
	}
	require.NoError(t, a.Create(db))
	return a
}

func reloadGroup(t *testing.T, db *gorm.DB, id uint) *models.Group {
	t.Helper()

	g := &models.Group{}
	require.NoError(t, g.Get(db, id))
	return g
}

func reloadAPI(t *testing.T, db *gorm.DB, id uint) *models.API {
	t.Helper()

	a := &models.API{}
	require.NoError(t, a.Get(db, id))
	return a
}
