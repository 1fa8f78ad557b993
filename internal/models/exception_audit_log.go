package models

import (
	"time"

	"github.com/google/uuid"
)

// ExceptionAuditLog records every applied workflow transition, append-only.
type ExceptionAuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExceptionID uuid.UUID `gorm:"index" json:"exception_id"`
	Action      string    `json:"action"`
	FromStatus  string    `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	PerformedBy string    `json:"performed_by"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}
