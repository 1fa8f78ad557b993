package reconciliation

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/models"
)

// ErrStaleState means a workflow write lost an optimistic-concurrency race:
// the exception changed since it was read. Callers retry with fresh state;
// the conflicting write is never applied.
var ErrStaleState = errors.New("exception state changed since read, retry with fresh state")

// Repository ports. The service owns these contracts; the gorm
// implementations live in internal/repository and are injected at wiring
// time, so the engines stay free of ambient persistence state.

type TransactionRepository interface {
	BulkCreate(txns []models.PgTransaction) error
	ListByCycle(cycleDate string) ([]models.PgTransaction, error)
	ListByMerchantCycleStatus(merchantID, cycleDate, status string) ([]models.PgTransaction, error)
	UpdateStatus(id uuid.UUID, status string) error
	UpdateStatuses(ids []uuid.UUID, status string) error
}

type BankRecordRepository interface {
	BulkCreate(recs []models.BankRecord) error
	ListByCycle(cycleDate string) ([]models.BankRecord, error)
}

type RunRepository interface {
	Create(run *models.ReconciliationRun) error
	Update(run *models.ReconciliationRun) error
	Get(id uuid.UUID) (*models.ReconciliationRun, error)
	CreateMatchRecords(recs []models.MatchRecord) error
	ListMatchRecords(runID uuid.UUID) ([]models.MatchRecord, error)
}

type ExceptionRepository interface {
	// CreateWithWorkflow persists the record and its workflow seed in one
	// transaction; the 1:1 pairing is never created piecemeal.
	CreateWithWorkflow(rec *models.ExceptionRecord, st *models.ExceptionWorkflowState) error
	GetRecord(id uuid.UUID) (*models.ExceptionRecord, error)
	GetWorkflow(exceptionID uuid.UUID) (*models.ExceptionWorkflowState, error)
	// UpdateWorkflow applies st only if the stored row still carries
	// expectedVersion; otherwise it returns ErrStaleState.
	UpdateWorkflow(st *models.ExceptionWorkflowState, expectedVersion int64) error
	AppendAudit(entry *models.ExceptionAuditLog) error
	ListWorkflows(status string, limit int) ([]models.ExceptionWorkflowState, error)
	ListDueSnoozes(now time.Time) ([]models.ExceptionWorkflowState, error)
	MarkSLABreaches(now time.Time) (int64, error)
	ListByRun(runID uuid.UUID) ([]models.ExceptionRecord, error)
}

type SettlementRepository interface {
	GetActiveConfig(merchantID string) (*models.MerchantConfig, error)
	UpsertConfig(cfg *models.MerchantConfig) error
	// FindBatch returns (nil, nil) when no batch exists for the pair.
	FindBatch(merchantID, cycleDate string) (*models.SettlementBatch, error)
	// CreateBatchWithItems is all-or-nothing: on any failure mid-persist
	// neither the batch nor any item remains.
	CreateBatchWithItems(batch *models.SettlementBatch, items []models.SettlementItem) error
	GetBatch(id uuid.UUID) (*models.SettlementBatch, error)
	ListItems(batchID uuid.UUID) ([]models.SettlementItem, error)
}
