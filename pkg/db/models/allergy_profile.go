package models

import "time"

// AllergyProfile stores the comma-delimited allergy string for a signed-in user.
type AllergyProfile struct {
	UserID    string    `gorm:"column:user_id;type:text;primaryKey"`
	Allergies string    `gorm:"column:allergies;type:text;not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
