package persistence

import (
	"context"

	"github.com/agency/backend/internal/domain/finance"
	"github.com/agency/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSellerProfileRepository resolves seller commission rates from the
// seller_profiles table
type GormSellerProfileRepository struct {
	db *gorm.DB
}

// NewGormSellerProfileRepository creates a new GormSellerProfileRepository
func NewGormSellerProfileRepository(db *gorm.DB) *GormSellerProfileRepository {
	return &GormSellerProfileRepository{db: db}
}

// GetProfile returns the profile of one seller
func (r *GormSellerProfileRepository) GetProfile(ctx context.Context, sellerID uuid.UUID) (*finance.SellerProfile, error) {
	var model models.SellerProfileModel
	if err := r.db.WithContext(ctx).First(&model, "seller_id = ?", sellerID).Error; err != nil {
		return nil, translateError("find seller profile", err)
	}
	profile := model.ToDomain()
	return &profile, nil
}

// GetProfiles returns the known profiles among sellerIDs in one query
func (r *GormSellerProfileRepository) GetProfiles(ctx context.Context, sellerIDs []uuid.UUID) (map[uuid.UUID]finance.SellerProfile, error) {
	profiles := make(map[uuid.UUID]finance.SellerProfile, len(sellerIDs))
	if len(sellerIDs) == 0 {
		return profiles, nil
	}
	var profileModels []models.SellerProfileModel
	if err := r.db.WithContext(ctx).Where("seller_id IN ?", sellerIDs).Find(&profileModels).Error; err != nil {
		return nil, err
	}
	for _, model := range profileModels {
		profiles[model.SellerID] = model.ToDomain()
	}
	return profiles, nil
}

// Save upserts a seller profile
func (r *GormSellerProfileRepository) Save(ctx context.Context, profile finance.SellerProfile) error {
	model := models.SellerProfileModelFromDomain(profile)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"commission_percentage", "contract_commission_percentage", "updated_at"}),
	}).Create(model).Error
}

var _ finance.SellerProfileLookup = (*GormSellerProfileRepository)(nil)
