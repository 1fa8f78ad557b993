package models

import (
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/money"
)

// BatchStatusPendingApproval is the only status the core ever writes; the
// downstream approval/transfer workflow owns every later transition.
const BatchStatusPendingApproval = "PENDING_APPROVAL"

type SettlementBatch struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID       string      `gorm:"uniqueIndex:idx_merchant_cycle" json:"merchant_id"`
	CycleDate        string      `gorm:"uniqueIndex:idx_merchant_cycle" json:"cycle_date"`
	TransactionCount int         `json:"transaction_count"`
	GrossAmount      money.Paise `json:"gross_amount_paise"`
	Commission       money.Paise `json:"commission_paise"`
	GST              money.Paise `json:"gst_paise"`
	TDS              money.Paise `json:"tds_paise"`
	RollingReserve   money.Paise `json:"rolling_reserve_paise"`
	NetAmount        money.Paise `json:"net_amount_paise"`
	Status           string      `gorm:"index" json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
}

type SettlementItem struct {
	ID              uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID         uuid.UUID   `gorm:"index" json:"batch_id"`
	PgTransactionID uuid.UUID   `gorm:"index" json:"pg_transaction_id"`
	Amount          money.Paise `json:"amount_paise"`
	Commission      money.Paise `json:"commission_paise"`
	GST             money.Paise `json:"gst_paise"`
	TDS             money.Paise `json:"tds_paise"`
	RollingReserve  money.Paise `json:"rolling_reserve_paise"`
	NetSettlement   money.Paise `json:"net_settlement_paise"`
	CreatedAt       time.Time   `json:"created_at"`
}

// MerchantConfig supplies the rates the settlement calculator applies.
// GST is a platform-wide statutory rate, defaulted at creation time.
type MerchantConfig struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID        string    `gorm:"uniqueIndex" json:"merchant_id"`
	MdrRateBps        int64     `json:"mdr_rate_bps"`
	GstRateBps        int64     `json:"gst_rate_bps"`
	TdsRateBps        int64     `json:"tds_rate_bps"`
	RollingReservePct int64     `json:"rolling_reserve_pct"`
	Active            bool      `gorm:"index" json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
