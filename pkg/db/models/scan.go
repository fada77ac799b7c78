package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/allergyscan/pkg/db/types"
)

// Scan is a persisted label scan owned by a signed-in user.
type Scan struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID    string             `gorm:"column:user_id;type:text;not null;index:scans_user_created_idx,priority:1"`
	Text      string             `gorm:"column:text;type:text;not null"`
	ImageRef  string             `gorm:"column:image_ref;type:text;not null;default:''"`
	Allergens dbtypes.StringList `gorm:"column:allergens;type:jsonb;not null"`
	Detected  bool               `gorm:"column:detected;not null;default:false"`
	CreatedAt time.Time          `gorm:"column:created_at;not null;index:scans_user_created_idx,priority:2,sort:desc"`
}
