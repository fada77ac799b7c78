package profiles

import (
	"context"

	"github.com/angelmondragon/allergyscan/internal/repo"
	"github.com/angelmondragon/allergyscan/pkg/db"
	"github.com/angelmondragon/allergyscan/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes allergy_profiles rows.
type Repository interface {
	FindByUser(ctx context.Context, userID string) (*models.AllergyProfile, error)
	Upsert(ctx context.Context, profile *models.AllergyProfile) error
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

// FindByUser returns nil without error when the user has no row.
func (r *repository) FindByUser(ctx context.Context, userID string) (*models.AllergyProfile, error) {
	var row models.AllergyProfile
	err := r.ForUser(ctx, &row, userID).Take(&row).Error
	if db.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) Upsert(ctx context.Context, profile *models.AllergyProfile) error {
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"allergies", "updated_at"}),
	}).Create(profile).Error
}
