package models

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HTTP methods an API definition may use.
const (
	APIMethodGet     = "GET"
	APIMethodPost    = "POST"
	APIMethodPut     = "PUT"
	APIMethodDelete  = "DELETE"
	APIMethodPatch   = "PATCH"
	APIMethodHead    = "HEAD"
	APIMethodOptions = "OPTIONS"
)

// APIMethods lists the accepted HTTP methods.
var APIMethods = []string{
	APIMethodGet,
	APIMethodPost,
	APIMethodPut,
	APIMethodDelete,
	APIMethodPatch,
	APIMethodHead,
	APIMethodOptions,
}

// Business statuses of an API definition. These are presentation-level
// states, not structural lifecycle: structurally an API either exists or
// has been hard-deleted.
const (
	APIStatusDraft      = "draft"
	APIStatusPublished  = "published"
	APIStatusDeprecated = "deprecated"
)

// APIStatuses lists the accepted definition statuses.
var APIStatuses = []string{
	APIStatusDraft,
	APIStatusPublished,
	APIStatusDeprecated,
}

// API is an HTTP operation definition owned by exactly one group.
// (Path, Method) is unique across the whole project, not just the
// sibling set, because OpenAPI operations are globally unique by
// path+method within a document.
type API struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// APIUUID is the stable identity of the definition. It survives
	// overwrite imports, which replace definition fields in place.
	APIUUID uuid.UUID `gorm:"type:uuid;not null;index:idx_apis_uuid" json:"uuid"`

	ProjectID uint `gorm:"not null;uniqueIndex:idx_apis_project_path_method" json:"projectId"`
	GroupID   uint `gorm:"not null;index:idx_apis_group" json:"groupId"`

	Name   string `gorm:"type:varchar(128);not null" json:"name"`
	Path   string `gorm:"type:varchar(500);not null;uniqueIndex:idx_apis_project_path_method" json:"path"`
	Method string `gorm:"type:varchar(10);not null;uniqueIndex:idx_apis_project_path_method" json:"method"`

	Status string `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`

	SortOrder int `gorm:"not null;default:0" json:"sortOrder"`

	// CurrentVersionID points at the published version of record.
	CurrentVersionID *uint       `json:"currentVersionId,omitempty"`
	CurrentVersion   *APIVersion `gorm:"foreignKey:CurrentVersionID" json:"currentVersion,omitempty"`

	// Imported marks definitions that entered through an OpenAPI import
	// rather than being authored in the app.
	Imported bool `gorm:"not null;default:false" json:"imported"`
}

// TableName specifies the table name.
func (API) TableName() string {
	return "apis"
}

// BeforeCreate hook to ensure APIUUID and Status are set.
func (a *API) BeforeCreate(tx *gorm.DB) error {
	if a.APIUUID == uuid.Nil {
		a.APIUUID = uuid.New()
	}
	if a.Status == "" {
		a.Status = APIStatusDraft
	}
	return nil
}

// Create creates a new API definition. The owning group must exist and
// belong to the same project.
func (a *API) Create(db *gorm.DB) error {
	if err := a.validate(); err != nil {
		return err
	}

	var group Group
	if err := db.First(&group, a.GroupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("group %d: %w", a.GroupID, gorm.ErrRecordNotFound)
		}
		return err
	}
	if group.ProjectID != a.ProjectID {
		return fmt.Errorf("group %d belongs to a different project", a.GroupID)
	}

	return db.Create(&a).Error
}

// Get retrieves an API definition by ID.
func (a *API) Get(db *gorm.DB, id uint) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.First(&a, id).Error
}

// GetByUUID retrieves an API definition by its stable UUID.
func (a *API) GetByUUID(db *gorm.DB, id uuid.UUID) error {
	return db.
		Where("api_uuid = ?", id).
		First(&a).
		Error
}

// Update persists the definition fields of the API.
func (a *API) Update(db *gorm.DB) error {
	if err := validation.Validate(a.ID, validation.Required); err != nil {
		return err
	}
	if err := a.validate(); err != nil {
		return err
	}

	return db.
		Model(&a).
		Select("Name", "Path", "Method", "Status", "SortOrder", "CurrentVersionID", "Imported").
		Updates(a).
		Error
}

// Delete removes the API row. Versions are deleted by the caller's
// transaction (cascade delete collects them explicitly).
func (a *API) Delete(db *gorm.DB) error {
	if err := validation.Validate(a.ID, validation.Required); err != nil {
		return err
	}

	return db.Delete(&API{}, a.ID).Error
}

func (a *API) validate() error {
	if err := validation.ValidateStruct(a,
		validation.Field(&a.ProjectID, validation.Required),
		validation.Field(&a.GroupID, validation.Required),
		validation.Field(&a.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&a.Path, validation.Required, validation.Length(1, 500)),
		validation.Field(&a.Method, validation.Required,
			validation.In(sliceToAny(APIMethods)...)),
		validation.Field(&a.Status,
			validation.In(sliceToAny(APIStatuses)...)),
		validation.Field(&a.SortOrder, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

// GetGroupAPIs returns the ordered API definitions directly inside a
// group.
func GetGroupAPIs(db *gorm.DB, groupID uint) ([]API, error) {
	var apis []API
	err := db.
		Where("group_id = ?", groupID).
		Order("sort_order ASC, id ASC").
		Find(&apis).
		Error
	return apis, err
}

// GetAPIsByGroups returns the API definitions of multiple groups in one
// query, ordered for deterministic assembly.
func GetAPIsByGroups(db *gorm.DB, groupIDs []uint) ([]API, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var apis []API
	err := db.
		Where("group_id IN ?", groupIDs).
		Order("sort_order ASC, id ASC").
		Find(&apis).
		Error
	return apis, err
}

// GetAPIByPathMethod looks up a definition by exact (path, method)
// within a project. Returns gorm.ErrRecordNotFound when absent.
func GetAPIByPathMethod(db *gorm.DB, projectID uint, path, method string) (*API, error) {
	var api API
	err := db.
		Where("project_id = ? AND path = ? AND method = ?", projectID, path, method).
		First(&api).
		Error
	if err != nil {
		return nil, err
	}
	return &api, nil
}

func sliceToAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
