package settlement

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/money"
)

func txn(amount money.Paise) models.PgTransaction {
	return models.PgTransaction{
		ID:          uuid.New(),
		MerchantID:  "M1",
		AmountPaise: amount,
		CapturedAt:  time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC),
		Status:      models.TxStatusReconciled,
	}
}

func activeConfig(mdrBps, gstBps, tdsBps, reservePct int64) *models.MerchantConfig {
	return &models.MerchantConfig{
		ID:                uuid.New(),
		MerchantID:        "M1",
		MdrRateBps:        mdrBps,
		GstRateBps:        gstBps,
		TdsRateBps:        tdsBps,
		RollingReservePct: reservePct,
		Active:            true,
	}
}

func TestCalculateSingleTransaction(t *testing.T) {
	// 2% MDR, 18% GST, no reserve on a 1000.00 transaction.
	batch, items, err := Calculate("M1", []models.PgTransaction{txn(100000)}, "2025-11-14", activeConfig(200, 1800, 0, 0))
	if err != nil {
		t.Fatal(err)
	}

	if batch.Commission != 2000 {
		t.Errorf("commission = %d, want 2000", batch.Commission)
	}
	if batch.GST != 360 {
		t.Errorf("gst = %d, want 360", batch.GST)
	}
	if batch.NetAmount != 97640 {
		t.Errorf("net = %d, want 97640", batch.NetAmount)
	}
	if batch.Status != models.BatchStatusPendingApproval {
		t.Errorf("status = %s", batch.Status)
	}
	if len(items) != 1 || items[0].NetSettlement != 97640 {
		t.Errorf("item net = %d, want 97640", items[0].NetSettlement)
	}
}

func TestRollingReserve(t *testing.T) {
	// 5% reserve is taken on the post-commission, post-GST amount.
	batch, items, err := Calculate("M1", []models.PgTransaction{txn(100000)}, "2025-11-14", activeConfig(200, 1800, 0, 5))
	if err != nil {
		t.Fatal(err)
	}
	if batch.RollingReserve != 4882 {
		t.Errorf("reserve = %d, want 4882", batch.RollingReserve)
	}
	if batch.NetAmount != 97640-4882 {
		t.Errorf("net = %d, want %d", batch.NetAmount, 97640-4882)
	}
	if items[0].RollingReserve != 4882 {
		t.Errorf("item reserve = %d", items[0].RollingReserve)
	}
}

func TestTDSRecordedNotDeducted(t *testing.T) {
	// TDS is withheld against tax liability and reported, but the payable
	// stays gross - commission - gst - reserve.
	batch, items, err := Calculate("M1", []models.PgTransaction{txn(100000)}, "2025-11-14", activeConfig(200, 1800, 100, 0))
	if err != nil {
		t.Fatal(err)
	}
	if batch.TDS != 1000 {
		t.Errorf("tds = %d, want 1000", batch.TDS)
	}
	if batch.NetAmount != 97640 {
		t.Errorf("net = %d, TDS must not reduce the payable", batch.NetAmount)
	}
	if items[0].TDS != 1000 {
		t.Errorf("item tds = %d", items[0].TDS)
	}
}

func TestSumInvariants(t *testing.T) {
	txns := []models.PgTransaction{
		txn(100000), txn(33333), txn(101), txn(999999), txn(1), txn(0),
	}
	batch, items, err := Calculate("M1", txns, "2025-11-14", activeConfig(250, 1800, 100, 7))
	if err != nil {
		t.Fatal(err)
	}

	var gross, commission, gst, tds, reserve, net money.Paise
	for _, it := range items {
		gross += it.Amount
		commission += it.Commission
		gst += it.GST
		tds += it.TDS
		reserve += it.RollingReserve
		net += it.NetSettlement
	}

	if gross != batch.GrossAmount || commission != batch.Commission ||
		gst != batch.GST || tds != batch.TDS ||
		reserve != batch.RollingReserve || net != batch.NetAmount {
		t.Errorf("item sums diverge from batch totals: %+v", batch)
	}
	if batch.NetAmount != batch.GrossAmount-batch.Commission-batch.GST-batch.RollingReserve {
		t.Errorf("net equation violated: %+v", batch)
	}
	if batch.TransactionCount != len(txns) {
		t.Errorf("transactionCount = %d", batch.TransactionCount)
	}
}

func TestIdempotentTotals(t *testing.T) {
	txns := []models.PgTransaction{txn(123457), txn(7919)}
	cfg := activeConfig(175, 1800, 100, 4)

	first, _, err := Calculate("M1", txns, "2025-11-14", cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := Calculate("M1", txns, "2025-11-14", cfg)
	if err != nil {
		t.Fatal(err)
	}

	if first.GrossAmount != second.GrossAmount ||
		first.Commission != second.Commission ||
		first.GST != second.GST ||
		first.TDS != second.TDS ||
		first.RollingReserve != second.RollingReserve ||
		first.NetAmount != second.NetAmount {
		t.Errorf("re-running the calculator changed totals:\n%+v\n%+v", first, second)
	}
}

func TestConfigNotFound(t *testing.T) {
	if _, _, err := Calculate("M1", []models.PgTransaction{txn(100)}, "2025-11-14", nil); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("nil config: err = %v, want ErrConfigNotFound", err)
	}

	inactive := activeConfig(200, 1800, 0, 0)
	inactive.Active = false
	if _, _, err := Calculate("M1", []models.PgTransaction{txn(100)}, "2025-11-14", inactive); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("inactive config: err = %v, want ErrConfigNotFound", err)
	}
}

func TestEmptyReconciledSet(t *testing.T) {
	batch, items, err := Calculate("M1", nil, "2025-11-14", activeConfig(200, 1800, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if batch.TransactionCount != 0 || batch.NetAmount != 0 || len(items) != 0 {
		t.Errorf("empty set should produce a zero batch: %+v", batch)
	}
}

func TestRoundHalfUpPerItem(t *testing.T) {
	// 2.5% of 101 paise is 2.525, rounds to 3; computed per item so the
	// batch total is exactly the item sum, never a re-rounded aggregate.
	batch, items, err := Calculate("M1", []models.PgTransaction{txn(101), txn(101)}, "2025-11-14", activeConfig(250, 1800, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Commission != 3 {
		t.Errorf("item commission = %d, want 3", items[0].Commission)
	}
	if batch.Commission != 6 {
		t.Errorf("batch commission = %d, want 6 (per-item rounding)", batch.Commission)
	}
}
