package models

func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Project{}, // Must be first - other tables reference it
		&Group{},
		&API{},
		&APIVersion{},
	}
}
