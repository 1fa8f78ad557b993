package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pg-recon-backend/internal/models"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Create(run *models.ReconciliationRun) error {
	return r.db.Create(run).Error
}

func (r *RunRepository) Update(run *models.ReconciliationRun) error {
	return r.db.Save(run).Error
}

func (r *RunRepository) Get(id uuid.UUID) (*models.ReconciliationRun, error) {
	var run models.ReconciliationRun
	if err := r.db.First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *RunRepository) CreateMatchRecords(recs []models.MatchRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(recs, 500).Error
}

func (r *RunRepository) ListMatchRecords(runID uuid.UUID) ([]models.MatchRecord, error) {
	var recs []models.MatchRecord
	err := r.db.
		Where("run_id = ?", runID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	return recs, err
}
