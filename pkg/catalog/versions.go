package catalog

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/apiforge-io/apiforge/pkg/models"
)

// PublishVersionParams describes a version to publish for an API.
type PublishVersionParams struct {
	VersionTag    string
	Summary       *string
	Changelog     *string
	RequestShape  models.JSON
	ResponseShape models.JSON
}

// PublishVersion appends an immutable version snapshot and repoints the
// API's current version in one transaction.
func PublishVersion(db *gorm.DB, projectID, apiID uint, params PublishVersionParams) (*models.APIVersion, error) {
	if !models.VersionTagRegexp.MatchString(params.VersionTag) {
		return nil, NewValidationError("version",
			"must match vX.X.X, e.g. v1.0.0")
	}
	if params.Summary != nil && len(*params.Summary) > 1024 {
		return nil, NewValidationError("summary", "the length must be no more than 1024")
	}
	if params.Changelog != nil && len(*params.Changelog) > 2048 {
		return nil, NewValidationError("changelog", "the length must be no more than 2048")
	}

	version := &models.APIVersion{
		VersionTag:    params.VersionTag,
		Summary:       params.Summary,
		Changelog:     params.Changelog,
		RequestShape:  params.RequestShape,
		ResponseShape: params.ResponseShape,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		api := &models.API{}
		if err := api.Get(tx, apiID); err != nil {
			return notFoundAs(err, ErrNotFound, "api %d", apiID)
		}
		if api.ProjectID != projectID {
			return fmt.Errorf("api %d: %w", apiID, ErrNotFound)
		}

		version.APIID = api.ID
		if err := version.Create(tx); err != nil {
			return err
		}

		return tx.Model(&models.API{}).
			Where("id = ?", api.ID).
			Update("current_version_id", version.ID).
			Error
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// ListVersions returns an API's versions, newest first.
func ListVersions(db *gorm.DB, projectID, apiID uint) ([]models.APIVersion, error) {
	api := &models.API{}
	if err := api.Get(db, apiID); err != nil {
		return nil, notFoundAs(err, ErrNotFound, "api %d", apiID)
	}
	if api.ProjectID != projectID {
		return nil, fmt.Errorf("api %d: %w", apiID, ErrNotFound)
	}
	return models.GetAPIVersions(db, apiID)
}
