package database

import "podshare/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Pod{},
		&models.JoinRequest{},
		&models.PodMember{},
	}
}
