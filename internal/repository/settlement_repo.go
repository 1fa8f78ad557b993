package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/services/settlement"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) GetActiveConfig(merchantID string) (*models.MerchantConfig, error) {
	var cfg models.MerchantConfig
	err := r.db.First(&cfg, "merchant_id = ? AND active = ?", merchantID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, settlement.ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *SettlementRepository) UpsertConfig(cfg *models.MerchantConfig) error {
	cfg.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "merchant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"mdr_rate_bps", "gst_rate_bps", "tds_rate_bps",
			"rolling_reserve_pct", "active", "updated_at",
		}),
	}).Create(cfg).Error
}

func (r *SettlementRepository) FindBatch(merchantID, cycleDate string) (*models.SettlementBatch, error) {
	var batch models.SettlementBatch
	err := r.db.First(&batch, "merchant_id = ? AND cycle_date = ?", merchantID, cycleDate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// CreateBatchWithItems persists the batch and every item in one
// transaction. A batch without items, or items without a batch, is never
// an acceptable end state; any failure rolls the whole creation back.
func (r *SettlementRepository) CreateBatchWithItems(batch *models.SettlementBatch, items []models.SettlementItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(batch).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.CreateInBatches(items, 500).Error
	})
}

func (r *SettlementRepository) GetBatch(id uuid.UUID) (*models.SettlementBatch, error) {
	var batch models.SettlementBatch
	if err := r.db.First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *SettlementRepository) ListItems(batchID uuid.UUID) ([]models.SettlementItem, error) {
	var items []models.SettlementItem
	err := r.db.
		Where("batch_id = ?", batchID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}
