package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/services/exception"
	"pg-recon-backend/internal/services/reconciliation"
)

type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// CreateWithWorkflow persists the record and its workflow seed together;
// the unique index on exception_id keeps the pairing 1:1 even under retry.
func (r *ExceptionRepository) CreateWithWorkflow(rec *models.ExceptionRecord, st *models.ExceptionWorkflowState) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		return tx.Create(st).Error
	})
}

func (r *ExceptionRepository) GetRecord(id uuid.UUID) (*models.ExceptionRecord, error) {
	var rec models.ExceptionRecord
	if err := r.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ExceptionRepository) GetWorkflow(exceptionID uuid.UUID) (*models.ExceptionWorkflowState, error) {
	var st models.ExceptionWorkflowState
	if err := r.db.First(&st, "exception_id = ?", exceptionID).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// UpdateWorkflow writes the full state guarded by the version the caller
// read. Zero rows affected means someone else got there first.
func (r *ExceptionRepository) UpdateWorkflow(st *models.ExceptionWorkflowState, expectedVersion int64) error {
	res := r.db.Model(&models.ExceptionWorkflowState{}).
		Where("id = ? AND version = ?", st.ID, expectedVersion).
		Updates(map[string]interface{}{
			// sla_breached is deliberately absent: the sweep owns that
			// column and a transition must not overwrite it from a stale
			// read.
			"status":          st.Status,
			"assigned_to":     st.AssignedTo,
			"snoozed_until":   st.SnoozedUntil,
			"resolution":      st.Resolution,
			"resolution_note": st.ResolutionNote,
			"resolved_at":     st.ResolvedAt,
			"version":         st.Version,
			"updated_at":      st.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return reconciliation.ErrStaleState
	}
	return nil
}

func (r *ExceptionRepository) AppendAudit(entry *models.ExceptionAuditLog) error {
	return r.db.Create(entry).Error
}

func (r *ExceptionRepository) ListWorkflows(status string, limit int) ([]models.ExceptionWorkflowState, error) {
	var states []models.ExceptionWorkflowState
	query := r.db.Order("sla_due_at ASC").Limit(limit)
	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	err := query.Find(&states).Error
	return states, err
}

func (r *ExceptionRepository) ListDueSnoozes(now time.Time) ([]models.ExceptionWorkflowState, error) {
	var states []models.ExceptionWorkflowState
	err := r.db.
		Where("status = ? AND snoozed_until <= ?", exception.StatusSnoozed, now).
		Find(&states).Error
	return states, err
}

// MarkSLABreaches is the periodic sweep behind the derived sla_breached
// flag: past due, not yet flagged, and not in a closed status.
func (r *ExceptionRepository) MarkSLABreaches(now time.Time) (int64, error) {
	res := r.db.Model(&models.ExceptionWorkflowState{}).
		Where("sla_breached = ? AND sla_due_at < ? AND status NOT IN ?",
			false, now, []string{exception.StatusResolved, exception.StatusWontFix}).
		Updates(map[string]interface{}{
			"sla_breached": true,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

func (r *ExceptionRepository) ListByRun(runID uuid.UUID) ([]models.ExceptionRecord, error) {
	var recs []models.ExceptionRecord
	err := r.db.
		Where("run_id = ?", runID).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	return recs, err
}
