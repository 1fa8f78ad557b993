package models

import (
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/money"
)

const (
	RunStatusProcessing = "processing"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
)

// ReconciliationRun is the persisted record of one matching run for a cycle.
type ReconciliationRun struct {
	ID                 uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CycleDate          string      `gorm:"index" json:"cycle_date"`
	TotalTransactions  int         `json:"total_transactions"`
	MatchedCount       int         `json:"matched_count"`
	UnmatchedPgCount   int         `json:"unmatched_pg_count"`
	UnmatchedBankCount int         `json:"unmatched_bank_count"`
	ExceptionCount     int         `json:"exception_count"`
	TotalAmount        money.Paise `json:"total_amount_paise"`
	ReconciledAmount   money.Paise `json:"reconciled_amount_paise"`
	MatchRatePct       float64     `json:"match_rate_pct"`
	Status             string      `gorm:"index" json:"status"`
	StartedAt          time.Time   `json:"started_at"`
	CompletedAt        *time.Time  `json:"completed_at"`
	CreatedAt          time.Time   `json:"created_at"`
}
