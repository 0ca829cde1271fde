package models

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// VersionTagRegexp is the accepted version tag format, e.g. "v1.2.3".
var VersionTagRegexp = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)

// APIVersion is an immutable snapshot of an API definition's request and
// response shape. Versions are append-only: publishing creates a new row
// and repoints the owning API's CurrentVersionID. Normal flow never
// deletes a version; only a cascade group delete removes them together
// with their API.
type APIVersion struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	APIID uint `gorm:"not null;index:idx_api_versions_api" json:"apiId"`

	VersionTag string  `gorm:"type:varchar(32);not null" json:"version"`
	Summary    *string `gorm:"type:varchar(1024)" json:"summary,omitempty"`
	Changelog  *string `gorm:"type:varchar(2048)" json:"changelog,omitempty"`

	RequestShape  JSON `gorm:"type:jsonb" json:"requestShape,omitempty"`
	ResponseShape JSON `gorm:"type:jsonb" json:"responseShape,omitempty"`
}

// TableName specifies the table name.
func (APIVersion) TableName() string {
	return "api_versions"
}

// Create appends a new version snapshot.
func (v *APIVersion) Create(db *gorm.DB) error {
	if err := validation.ValidateStruct(v,
		validation.Field(&v.APIID, validation.Required),
		validation.Field(&v.VersionTag, validation.Required,
			validation.Match(VersionTagRegexp)),
		validation.Field(&v.Summary, validation.Length(0, 1024)),
		validation.Field(&v.Changelog, validation.Length(0, 2048)),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.Create(&v).Error
}

// Get retrieves a version by ID.
func (v *APIVersion) Get(db *gorm.DB, id uint) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.First(&v, id).Error
}

// GetAPIVersions returns all versions of an API, newest first.
func GetAPIVersions(db *gorm.DB, apiID uint) ([]APIVersion, error) {
	var versions []APIVersion
	err := db.
		Where("api_id = ?", apiID).
		Order("id DESC").
		Find(&versions).
		Error
	return versions, err
}

// GetLatestAPIVersion returns the most recent version of an API, or
// gorm.ErrRecordNotFound when the API has none.
func GetLatestAPIVersion(db *gorm.DB, apiID uint) (*APIVersion, error) {
	var version APIVersion
	err := db.
		Where("api_id = ?", apiID).
		Order("id DESC").
		First(&version).
		Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}
