package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apiforge-io/apiforge/pkg/models"
)

func TestPublishVersion(t *testing.T) {
	db := setupTestDB(t)
	project := createTestProject(t, db, "catalog")
	group := createTestGroup(t, db, project.ID, nil, "Users")
	api := createTestAPI(t, db, project.ID, group.ID, "List users", "/users", models.APIMethodGet)

	t.Run("publish repoints the current version", func(t *testing.T) {
		v1, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
			VersionTag:   "v1.0.0",
			RequestShape: models.JSON(`{"type":"object"}`),
		})
		require.NoError(t, err)

		v2, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
			VersionTag: "v1.1.0",
		})
		require.NoError(t, err)

		current := reloadAPI(t, db, api.ID)
		require.NotNil(t, current.CurrentVersionID)
		assert.Equal(t, v2.ID, *current.CurrentVersionID)

		// Earlier snapshots are immutable and still listed.
		versions, err := ListVersions(db, project.ID, api.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, v2.VersionTag, versions[0].VersionTag)
		assert.Equal(t, v1.VersionTag, versions[1].VersionTag)
	})

	t.Run("malformed tag is rejected", func(t *testing.T) {
		_, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
			VersionTag: "1.0",
		})
		assert.True(t, IsValidationError(err))
	})

	t.Run("oversized summary is rejected", func(t *testing.T) {
		long := strings.Repeat("a", 1025)
		_, err := PublishVersion(db, project.ID, api.ID, PublishVersionParams{
			VersionTag: "v2.0.0",
			Summary:    &long,
		})
		assert.True(t, IsValidationError(err))
	})

	t.Run("missing api", func(t *testing.T) {
		_, err := PublishVersion(db, project.ID, 99999, PublishVersionParams{
			VersionTag: "v1.0.0",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cross-project api is not visible", func(t *testing.T) {
		other := createTestProject(t, db, "other")
		_, err := PublishVersion(db, other.ID, api.ID, PublishVersionParams{
			VersionTag: "v9.0.0",
		})
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = ListVersions(db, other.ID, api.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
