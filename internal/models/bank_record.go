package models

import (
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/money"
)

type BankRecord struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BankRef     string      `gorm:"index" json:"bank_ref"`
	UTR         string      `gorm:"index" json:"utr"`
	AmountPaise money.Paise `json:"amount_paise"`
	ValueDate   time.Time   `json:"value_date"`
	BankName    string      `json:"bank_name"`
	CycleDate   string      `gorm:"index" json:"cycle_date"`
	CreatedAt   time.Time   `json:"created_at"`
}
