package models

import "gorm.io/datatypes"

// UserSettings stores the versioned settings document of one user.
type UserSettings struct {
	Base
	UserID        string         `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	SchemaVersion int            `gorm:"not null;default:0" json:"schema_version"`
	Document      datatypes.JSON `gorm:"not null" json:"document"`
}
