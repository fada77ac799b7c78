package scans

import (
	"context"
	"strings"
	"time"

	"github.com/angelmondragon/allergyscan/internal/repo"
	"github.com/angelmondragon/allergyscan/pkg/db"
	"github.com/angelmondragon/allergyscan/pkg/db/models"
	dbtypes "github.com/angelmondragon/allergyscan/pkg/db/types"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RemoteStore persists scans for signed-in users.
type RemoteStore interface {
	InsertScan(ctx context.Context, scan *models.Scan) (*models.Scan, error)
	FetchRecentScans(ctx context.Context, userID string, limit int) ([]models.Scan, error)
	DeleteAllScans(ctx context.Context, userID string) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds the gorm-backed scans store.
func NewRepository(db *gorm.DB) RemoteStore {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) InsertScan(ctx context.Context, scan *models.Scan) (*models.Scan, error) {
	if scan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scan required")
	}
	if strings.TrimSpace(scan.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.Allergens == nil {
		scan.Allergens = dbtypes.StringList{}
	}
	scan.Detected = len(scan.Allergens) > 0

	if err := r.DB(ctx).Create(scan).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "scan already stored").
				WithDetails(map[string]any{"scan_id": scan.ID.String()})
		}
		return nil, err
	}
	return scan, nil
}

func (r *repository) FetchRecentScans(ctx context.Context, userID string, limit int) ([]models.Scan, error) {
	var rows []models.Scan
	err := r.ForUser(ctx, &models.Scan{}, userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteAllScans(ctx context.Context, userID string) (int64, error) {
	res := r.ForUser(ctx, &models.Scan{}, userID).Delete(&models.Scan{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
