package repository

import (
	"gorm.io/gorm"

	"pg-recon-backend/internal/models"
)

type BankRecordRepository struct {
	db *gorm.DB
}

func NewBankRecordRepository(db *gorm.DB) *BankRecordRepository {
	return &BankRecordRepository{db: db}
}

func (r *BankRecordRepository) BulkCreate(recs []models.BankRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(recs, 500).Error
}

func (r *BankRecordRepository) ListByCycle(cycleDate string) ([]models.BankRecord, error) {
	var recs []models.BankRecord
	err := r.db.
		Where("cycle_date = ?", cycleDate).
		Order("value_date ASC, id ASC").
		Find(&recs).Error
	return recs, err
}
