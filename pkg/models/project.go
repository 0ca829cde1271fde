package models

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// Project is the scope for one API catalog. Each project owns an
// independent forest of groups and the API definitions inside them, and
// is the uniqueness domain for (path, method).
type Project struct {
	gorm.Model

	// Name is the unique identifier for the project.
	Name string `gorm:"uniqueIndex;not null"`

	// Description is an optional description of the project.
	Description *string
}

// Create creates a new project in the database.
func (p *Project) Create(db *gorm.DB) error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 128)),
	); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.Create(&p).Error
}

// Get retrieves a project by ID.
func (p *Project) Get(db *gorm.DB, id uint) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}

	return db.First(&p, id).Error
}

// GetByName retrieves a project by name.
func (p *Project) GetByName(db *gorm.DB, name string) error {
	if err := validation.Validate(name, validation.Required); err != nil {
		return err
	}

	return db.
		Where("name = ?", name).
		First(&p).
		Error
}

// GetAllProjects retrieves all projects ordered by name.
func GetAllProjects(db *gorm.DB) ([]Project, error) {
	var projects []Project
	err := db.
		Order("name ASC").
		Find(&projects).
		Error
	return projects, err
}
