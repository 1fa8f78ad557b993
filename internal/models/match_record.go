package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"pg-recon-backend/internal/money"
)

// Match outcomes as persisted per PG transaction / bank record.
const (
	MatchOutcomeMatched       = "matched"
	MatchOutcomeUnmatchedPg   = "unmatched_pg"
	MatchOutcomeUnmatchedBank = "unmatched_bank"
	MatchOutcomeException     = "exception"
)

// MatchRecord is one row of a run's result set. Exactly one row exists per
// PG transaction per run, plus one per unclaimed bank record.
type MatchRecord struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID           uuid.UUID      `gorm:"index" json:"run_id"`
	PgTransactionID *uuid.UUID     `gorm:"index" json:"pg_transaction_id"`
	BankRecordID    *uuid.UUID     `gorm:"index" json:"bank_record_id"`
	Outcome         string         `gorm:"index" json:"outcome"`
	ConfidenceScore int            `json:"confidence_score"`
	MatchedOn       datatypes.JSON `json:"matched_on"`
	PgAmount        money.Paise    `json:"pg_amount_paise"`
	BankAmount      money.Paise    `json:"bank_amount_paise"`
	Detail          string         `json:"detail"`
	CreatedAt       time.Time      `json:"created_at"`
}
