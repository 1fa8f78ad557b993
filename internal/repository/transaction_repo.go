package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pg-recon-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) BulkCreate(txns []models.PgTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	return r.db.CreateInBatches(txns, 500).Error
}

// ListByCycle returns the cycle's transactions in capture order; the
// matching engine's tie-breaking depends on this ordering being stable.
func (r *TransactionRepository) ListByCycle(cycleDate string) ([]models.PgTransaction, error) {
	var txns []models.PgTransaction
	err := r.db.
		Where("cycle_date = ?", cycleDate).
		Order("captured_at ASC, id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) ListByMerchantCycleStatus(merchantID, cycleDate, status string) ([]models.PgTransaction, error) {
	var txns []models.PgTransaction
	err := r.db.
		Where("merchant_id = ? AND cycle_date = ? AND status = ?", merchantID, cycleDate, status).
		Order("captured_at ASC, id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) UpdateStatus(id uuid.UUID, status string) error {
	return r.db.Model(&models.PgTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *TransactionRepository) UpdateStatuses(ids []uuid.UUID, status string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.PgTransaction{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}
