package models

import (
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/money"
)

// PG transaction lifecycle statuses. The core only ever moves a transaction
// between these; approval/transfer states live outside this service.
const (
	TxStatusPending    = "PENDING"
	TxStatusReconciled = "RECONCILED"
	TxStatusUnmatched  = "UNMATCHED"
	TxStatusException  = "EXCEPTION"
)

type PgTransaction struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID    string      `gorm:"index" json:"merchant_id"`
	AmountPaise   money.Paise `gorm:"index" json:"amount_paise"`
	CapturedAt    time.Time   `json:"captured_at"`
	PaymentMethod string      `json:"payment_method"`
	UTR           string      `gorm:"index" json:"utr"`
	RRN           string      `json:"rrn"`
	Acquirer      string      `json:"acquirer"`
	CycleDate     string      `gorm:"index" json:"cycle_date"`
	Status        string      `gorm:"index" json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}
