package models

import (
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/money"
)

// Exception reason codes (closed set).
const (
	ReasonAmountMismatch = "AMOUNT_MISMATCH"
	ReasonMissingUTR     = "MISSING_UTR"
	ReasonDuplicateUTR   = "DUPLICATE_UTR"
	ReasonMissingInPg    = "MISSING_IN_PG"
	ReasonInvalidData    = "INVALID_DATA"
)

// ExceptionRecord is the immutable fact of a discrepancy found by a run.
// Workflow state lives in ExceptionWorkflowState, 1:1 per record.
type ExceptionRecord struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	RunID          uuid.UUID   `gorm:"index" json:"run_id"`
	TransactionRef string      `gorm:"index" json:"transaction_ref"`
	ReasonCode     string      `gorm:"index" json:"reason_code"`
	Severity       string      `gorm:"index" json:"severity"`
	PgAmount       money.Paise `json:"pg_amount_paise"`
	BankAmount     money.Paise `json:"bank_amount_paise"`
	DeltaAmount    money.Paise `json:"delta_amount_paise"`
	Detail         string      `json:"detail"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ExceptionWorkflowState is the only mutable entity in the core. Version
// backs the optimistic write check; every successful transition bumps it.
// Rows are never deleted, terminal states are kept for audit.
type ExceptionWorkflowState struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ExceptionID    uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"exception_id"`
	Status         string     `gorm:"index" json:"status"`
	Severity       string     `gorm:"index" json:"severity"`
	SlaDueAt       time.Time  `json:"sla_due_at"`
	SlaBreached    bool       `gorm:"index" json:"sla_breached"`
	AssignedTo     string     `json:"assigned_to"`
	SnoozedUntil   *time.Time `json:"snoozed_until"`
	Resolution     string     `json:"resolution"`
	ResolutionNote string     `json:"resolution_note"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
