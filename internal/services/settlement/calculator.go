package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/models"
)

// DefaultGstRateBps is the platform-wide statutory GST rate (18%).
const DefaultGstRateBps = 1800

// ErrConfigNotFound means the merchant has no active settlement
// configuration. The calculator refuses to produce a batch in that case;
// a zero-amount batch would silently swallow the misconfiguration.
var ErrConfigNotFound = errors.New("merchant settlement config not found")

// Calculate computes one merchant's settlement batch for a cycle from its
// reconciled transactions. All arithmetic is int64 paise with round-half-up
// applied per transaction, so summed item totals equal the batch totals by
// construction — no aggregate plug adjustment exists or should be added.
// Pure: same inputs always yield the same totals.
func Calculate(merchantID string, reconciled []models.PgTransaction, cycleDate string, cfg *models.MerchantConfig) (*models.SettlementBatch, []models.SettlementItem, error) {
	if cfg == nil || !cfg.Active {
		return nil, nil, ErrConfigNotFound
	}

	now := time.Now()
	batch := &models.SettlementBatch{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		CycleDate:        cycleDate,
		TransactionCount: len(reconciled),
		Status:           models.BatchStatusPendingApproval,
		CreatedAt:        now,
	}

	items := make([]models.SettlementItem, 0, len(reconciled))
	for i := range reconciled {
		tx := &reconciled[i]

		commission := tx.AmountPaise.MulDivBps(cfg.MdrRateBps)
		gst := commission.MulDivBps(cfg.GstRateBps)
		// TDS is withheld against the merchant's tax liability and reported
		// on the batch; it does not reduce the net payable here.
		tds := tx.AmountPaise.MulDivBps(cfg.TdsRateBps)
		preReserve := tx.AmountPaise - commission - gst
		reserve := preReserve.MulDivPct(cfg.RollingReservePct)
		net := preReserve - reserve

		items = append(items, models.SettlementItem{
			ID:              uuid.New(),
			BatchID:         batch.ID,
			PgTransactionID: tx.ID,
			Amount:          tx.AmountPaise,
			Commission:      commission,
			GST:             gst,
			TDS:             tds,
			RollingReserve:  reserve,
			NetSettlement:   net,
			CreatedAt:       now,
		})

		batch.GrossAmount += tx.AmountPaise
		batch.Commission += commission
		batch.GST += gst
		batch.TDS += tds
		batch.RollingReserve += reserve
		batch.NetAmount += net
	}

	return batch, items, nil
}
