package reconciliation

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/money"
	"pg-recon-backend/internal/services/exception"
	"pg-recon-backend/internal/services/settlement"
)

// In-memory fakes for the repository ports.

type fakeTxRepo struct {
	txns []models.PgTransaction
}

func (f *fakeTxRepo) BulkCreate(txns []models.PgTransaction) error {
	f.txns = append(f.txns, txns...)
	return nil
}

func (f *fakeTxRepo) ListByCycle(cycleDate string) ([]models.PgTransaction, error) {
	var out []models.PgTransaction
	for _, tx := range f.txns {
		if tx.CycleDate == cycleDate {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTxRepo) ListByMerchantCycleStatus(merchantID, cycleDate, status string) ([]models.PgTransaction, error) {
	var out []models.PgTransaction
	for _, tx := range f.txns {
		if tx.MerchantID == merchantID && tx.CycleDate == cycleDate && tx.Status == status {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeTxRepo) UpdateStatus(id uuid.UUID, status string) error {
	for i := range f.txns {
		if f.txns[i].ID == id {
			f.txns[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeTxRepo) UpdateStatuses(ids []uuid.UUID, status string) error {
	for _, id := range ids {
		_ = f.UpdateStatus(id, status)
	}
	return nil
}

func (f *fakeTxRepo) statusOf(id uuid.UUID) string {
	for _, tx := range f.txns {
		if tx.ID == id {
			return tx.Status
		}
	}
	return ""
}

type fakeBankRepo struct {
	recs []models.BankRecord
}

func (f *fakeBankRepo) BulkCreate(recs []models.BankRecord) error {
	f.recs = append(f.recs, recs...)
	return nil
}

func (f *fakeBankRepo) ListByCycle(cycleDate string) ([]models.BankRecord, error) {
	var out []models.BankRecord
	for _, rec := range f.recs {
		if rec.CycleDate == cycleDate {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeRunRepo struct {
	runs    map[uuid.UUID]models.ReconciliationRun
	records []models.MatchRecord
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]models.ReconciliationRun)}
}

func (f *fakeRunRepo) Create(run *models.ReconciliationRun) error {
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRunRepo) Update(run *models.ReconciliationRun) error {
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRunRepo) Get(id uuid.UUID) (*models.ReconciliationRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &run, nil
}

func (f *fakeRunRepo) CreateMatchRecords(recs []models.MatchRecord) error {
	f.records = append(f.records, recs...)
	return nil
}

func (f *fakeRunRepo) ListMatchRecords(runID uuid.UUID) ([]models.MatchRecord, error) {
	var out []models.MatchRecord
	for _, rec := range f.records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeExcRepo struct {
	records   map[uuid.UUID]models.ExceptionRecord
	workflows map[uuid.UUID]models.ExceptionWorkflowState // keyed by exception ID
	audits    []models.ExceptionAuditLog
}

func newFakeExcRepo() *fakeExcRepo {
	return &fakeExcRepo{
		records:   make(map[uuid.UUID]models.ExceptionRecord),
		workflows: make(map[uuid.UUID]models.ExceptionWorkflowState),
	}
}

func (f *fakeExcRepo) CreateWithWorkflow(rec *models.ExceptionRecord, st *models.ExceptionWorkflowState) error {
	if _, exists := f.workflows[rec.ID]; exists {
		return fmt.Errorf("duplicate workflow for exception %s", rec.ID)
	}
	f.records[rec.ID] = *rec
	f.workflows[rec.ID] = *st
	return nil
}

func (f *fakeExcRepo) GetRecord(id uuid.UUID) (*models.ExceptionRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

func (f *fakeExcRepo) GetWorkflow(exceptionID uuid.UUID) (*models.ExceptionWorkflowState, error) {
	st, ok := f.workflows[exceptionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &st, nil
}

func (f *fakeExcRepo) UpdateWorkflow(st *models.ExceptionWorkflowState, expectedVersion int64) error {
	stored, ok := f.workflows[st.ExceptionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != expectedVersion {
		return ErrStaleState
	}
	f.workflows[st.ExceptionID] = *st
	return nil
}

func (f *fakeExcRepo) AppendAudit(entry *models.ExceptionAuditLog) error {
	f.audits = append(f.audits, *entry)
	return nil
}

func (f *fakeExcRepo) ListWorkflows(status string, limit int) ([]models.ExceptionWorkflowState, error) {
	var out []models.ExceptionWorkflowState
	for _, st := range f.workflows {
		if status == "" || status == "all" || st.Status == status {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeExcRepo) ListDueSnoozes(now time.Time) ([]models.ExceptionWorkflowState, error) {
	var out []models.ExceptionWorkflowState
	for _, st := range f.workflows {
		if st.Status == exception.StatusSnoozed && st.SnoozedUntil != nil && !st.SnoozedUntil.After(now) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeExcRepo) MarkSLABreaches(now time.Time) (int64, error) {
	var n int64
	for id, st := range f.workflows {
		if !st.SlaBreached && now.After(st.SlaDueAt) &&
			st.Status != exception.StatusResolved && st.Status != exception.StatusWontFix {
			st.SlaBreached = true
			f.workflows[id] = st
			n++
		}
	}
	return n, nil
}

func (f *fakeExcRepo) ListByRun(runID uuid.UUID) ([]models.ExceptionRecord, error) {
	var out []models.ExceptionRecord
	for _, rec := range f.records {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeSetRepo struct {
	configs     map[string]models.MerchantConfig
	batches     map[string]models.SettlementBatch // merchantID|cycleDate
	items       map[uuid.UUID][]models.SettlementItem
	failPersist bool
}

func newFakeSetRepo() *fakeSetRepo {
	return &fakeSetRepo{
		configs: make(map[string]models.MerchantConfig),
		batches: make(map[string]models.SettlementBatch),
		items:   make(map[uuid.UUID][]models.SettlementItem),
	}
}

func batchKey(merchantID, cycleDate string) string { return merchantID + "|" + cycleDate }

func (f *fakeSetRepo) GetActiveConfig(merchantID string) (*models.MerchantConfig, error) {
	cfg, ok := f.configs[merchantID]
	if !ok || !cfg.Active {
		return nil, settlement.ErrConfigNotFound
	}
	return &cfg, nil
}

func (f *fakeSetRepo) UpsertConfig(cfg *models.MerchantConfig) error {
	f.configs[cfg.MerchantID] = *cfg
	return nil
}

func (f *fakeSetRepo) FindBatch(merchantID, cycleDate string) (*models.SettlementBatch, error) {
	batch, ok := f.batches[batchKey(merchantID, cycleDate)]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

func (f *fakeSetRepo) CreateBatchWithItems(batch *models.SettlementBatch, items []models.SettlementItem) error {
	if f.failPersist {
		// All-or-nothing: on failure neither the batch nor items remain.
		return errors.New("simulated persistence failure")
	}
	f.batches[batchKey(batch.MerchantID, batch.CycleDate)] = *batch
	f.items[batch.ID] = append([]models.SettlementItem(nil), items...)
	return nil
}

func (f *fakeSetRepo) GetBatch(id uuid.UUID) (*models.SettlementBatch, error) {
	for _, b := range f.batches {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSetRepo) ListItems(batchID uuid.UUID) ([]models.SettlementItem, error) {
	return f.items[batchID], nil
}

// Test fixtures.

const cycle = "2025-11-14"

var capturedAt = time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	tx   *fakeTxRepo
	bank *fakeBankRepo
	run  *fakeRunRepo
	exc  *fakeExcRepo
	set  *fakeSetRepo
}

func newFixture() *fixture {
	f := &fixture{
		tx:   &fakeTxRepo{},
		bank: &fakeBankRepo{},
		run:  newFakeRunRepo(),
		exc:  newFakeExcRepo(),
		set:  newFakeSetRepo(),
	}
	f.svc = NewService(f.tx, f.bank, f.run, f.exc, f.set)
	return f
}

func (f *fixture) addTxn(merchant, utr string, amount money.Paise) uuid.UUID {
	tx := models.PgTransaction{
		ID:          uuid.New(),
		MerchantID:  merchant,
		AmountPaise: amount,
		CapturedAt:  capturedAt,
		UTR:         utr,
		CycleDate:   cycle,
		Status:      models.TxStatusPending,
	}
	f.tx.txns = append(f.tx.txns, tx)
	return tx.ID
}

func (f *fixture) addBank(ref, utr string, amount money.Paise) {
	f.bank.recs = append(f.bank.recs, models.BankRecord{
		ID:          uuid.New(),
		BankRef:     ref,
		UTR:         utr,
		AmountPaise: amount,
		ValueDate:   capturedAt,
		CycleDate:   cycle,
	})
}

func (f *fixture) addConfig(merchant string) {
	f.set.configs[merchant] = models.MerchantConfig{
		ID:         uuid.New(),
		MerchantID: merchant,
		MdrRateBps: 200,
		GstRateBps: 1800,
		Active:     true,
	}
}

func (f *fixture) singleExceptionID(t *testing.T) uuid.UUID {
	t.Helper()
	if len(f.exc.records) != 1 {
		t.Fatalf("expected exactly 1 exception, got %d", len(f.exc.records))
	}
	for id := range f.exc.records {
		return id
	}
	panic("unreachable")
}

func TestRunReconciliationEndToEnd(t *testing.T) {
	f := newFixture()
	matchedID := f.addTxn("M1", "UTR001", 150000)
	mismatchID := f.addTxn("M1", "UTR002", 200000)
	unmatchedID := f.addTxn("M2", "UTR404", 7000)
	f.addBank("B1", "UTR001", 150000)
	f.addBank("B2", "UTR002", 210000)
	f.addBank("B3", "UTR999", 1000)
	f.addConfig("M1")

	run, err := f.svc.RunReconciliation(cycle, true)
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != models.RunStatusCompleted {
		t.Errorf("run status = %s", run.Status)
	}
	if run.TotalTransactions != 3 || run.MatchedCount != 1 ||
		run.UnmatchedPgCount != 1 || run.UnmatchedBankCount != 2 || run.ExceptionCount != 1 {
		t.Errorf("run counts off: %+v", run)
	}
	if run.TotalAmount != 357000 || run.ReconciledAmount != 150000 {
		t.Errorf("run amounts off: %+v", run)
	}

	// One row per matched pair, unmatched transaction, unclaimed bank
	// record and exception: 1 + 1 + 2 + 1.
	records, _ := f.run.ListMatchRecords(run.ID)
	if len(records) != 5 {
		t.Errorf("match records = %d, want 5", len(records))
	}

	// Exactly one workflow state per exception record.
	if len(f.exc.records) != 1 || len(f.exc.workflows) != 1 {
		t.Fatalf("exceptions %d workflows %d", len(f.exc.records), len(f.exc.workflows))
	}
	excID := f.singleExceptionID(t)
	rec := f.exc.records[excID]
	if rec.ReasonCode != models.ReasonAmountMismatch || rec.DeltaAmount != 10000 {
		t.Errorf("exception record: %+v", rec)
	}
	st := f.exc.workflows[excID]
	if st.Status != exception.StatusOpen || st.Severity != rec.Severity {
		t.Errorf("workflow seed: %+v", st)
	}

	// Transaction statuses reflect the run.
	if got := f.tx.statusOf(matchedID); got != models.TxStatusReconciled {
		t.Errorf("matched txn status = %s", got)
	}
	if got := f.tx.statusOf(mismatchID); got != models.TxStatusException {
		t.Errorf("mismatch txn status = %s", got)
	}
	if got := f.tx.statusOf(unmatchedID); got != models.TxStatusUnmatched {
		t.Errorf("unmatched txn status = %s", got)
	}

	// Auto-settle created M1's batch from its reconciled transaction.
	batch, _ := f.set.FindBatch("M1", cycle)
	if batch == nil {
		t.Fatal("expected settlement batch for M1")
	}
	if batch.GrossAmount != 150000 || batch.Status != models.BatchStatusPendingApproval {
		t.Errorf("batch: %+v", batch)
	}
	items, _ := f.set.ListItems(batch.ID)
	var net money.Paise
	for _, it := range items {
		net += it.NetSettlement
	}
	if net != batch.NetAmount {
		t.Errorf("item net sum %d != batch net %d", net, batch.NetAmount)
	}
}

func TestDuplicateUTRMarksMatchedTransactionException(t *testing.T) {
	f := newFixture()
	firstID := f.addTxn("M1", "UTR003", 5000)
	secondID := f.addTxn("M1", "UTR003", 5000)
	f.addBank("B1", "UTR003", 5000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}

	if got := f.tx.statusOf(firstID); got != models.TxStatusReconciled {
		t.Errorf("first txn status = %s", got)
	}
	// The second transaction is unmatched and duplicate-flagged; exception
	// status wins so only resolution releases it.
	if got := f.tx.statusOf(secondID); got != models.TxStatusException {
		t.Errorf("duplicate txn status = %s, want EXCEPTION", got)
	}
}

func TestSettlementIdempotentPerMerchantCycle(t *testing.T) {
	f := newFixture()
	f.addTxn("M1", "UTR001", 100000)
	f.addBank("B1", "UTR001", 100000)
	f.addConfig("M1")

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	first, err := f.svc.RunSettlement("M1", cycle)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.RunSettlement("M1", cycle)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Error("re-running settlement must return the existing batch, not create another")
	}
	if len(f.set.batches) != 1 {
		t.Errorf("batches stored = %d, want 1", len(f.set.batches))
	}
}

func TestSettlementConfigNotFound(t *testing.T) {
	f := newFixture()
	f.addTxn("M1", "UTR001", 100000)
	f.addBank("B1", "UTR001", 100000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RunSettlement("M1", cycle); !errors.Is(err, settlement.ErrConfigNotFound) {
		t.Errorf("err = %v, want ErrConfigNotFound", err)
	}
	if len(f.set.batches) != 0 {
		t.Error("no batch may exist without configuration")
	}
}

func TestSettlementRetryAfterPersistFailure(t *testing.T) {
	f := newFixture()
	f.addTxn("M1", "UTR001", 100000)
	f.addBank("B1", "UTR001", 100000)
	f.addConfig("M1")

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}

	f.set.failPersist = true
	if _, err := f.svc.RunSettlement("M1", cycle); err == nil {
		t.Fatal("expected persist failure")
	}
	if len(f.set.batches) != 0 {
		t.Fatal("failed persist must leave nothing behind")
	}

	// The whole (merchant, cycle) settlement is safe to retry.
	f.set.failPersist = false
	batch, err := f.svc.RunSettlement("M1", cycle)
	if err != nil {
		t.Fatal(err)
	}
	if batch.GrossAmount != 100000 {
		t.Errorf("retried batch: %+v", batch)
	}
	if len(f.set.batches) != 1 {
		t.Errorf("batches stored = %d, want 1", len(f.set.batches))
	}
}

func TestResolveExceptionReconcilesTransaction(t *testing.T) {
	f := newFixture()
	txID := f.addTxn("M1", "UTR002", 200000)
	f.addBank("B2", "UTR002", 210000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	excID := f.singleExceptionID(t)

	if _, err := f.svc.AssignException(excID, "ops@example.com"); err != nil {
		t.Fatal(err)
	}
	st, err := f.svc.ResolveException(excID, "BANK_CORRECT", "bank amount confirmed, PG side adjusted", "ops@example.com")
	if err != nil {
		t.Fatal(err)
	}

	if st.Status != exception.StatusResolved {
		t.Errorf("status = %s", st.Status)
	}
	if st.Version != 3 {
		t.Errorf("version = %d, want 3 after two transitions", st.Version)
	}
	// Cross-entity side effect: the originating transaction is released.
	if got := f.tx.statusOf(txID); got != models.TxStatusReconciled {
		t.Errorf("transaction status = %s, want RECONCILED", got)
	}
	if len(f.exc.audits) != 2 {
		t.Errorf("audit entries = %d, want 2", len(f.exc.audits))
	}
}

func TestInvalidTransitionRejectedWithoutMutation(t *testing.T) {
	f := newFixture()
	f.addTxn("M1", "UTR002", 200000)
	f.addBank("B2", "UTR002", 210000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	excID := f.singleExceptionID(t)

	// Resolving straight from open is not allowed.
	if _, err := f.svc.ResolveException(excID, "X", "note", "ops"); !errors.Is(err, exception.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	st := f.exc.workflows[excID]
	if st.Status != exception.StatusOpen || st.Version != 1 {
		t.Errorf("rejected transition mutated stored state: %+v", st)
	}
}

func TestStaleWriteForcesRetry(t *testing.T) {
	f := newFixture()
	f.addTxn("M1", "UTR002", 200000)
	f.addBank("B2", "UTR002", 210000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	excID := f.singleExceptionID(t)

	// Operator A reads, then operator B transitions first.
	readA, err := f.exc.GetWorkflow(excID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.AssignException(excID, "b@example.com"); err != nil {
		t.Fatal(err)
	}

	// A's write against the version they read is rejected and nothing is
	// overwritten; they must re-read and retry.
	if err := exception.Assign(readA, "a@example.com", time.Now()); err != nil {
		t.Fatal(err)
	}
	readA.Version = 2
	if err := f.exc.UpdateWorkflow(readA, 1); !errors.Is(err, ErrStaleState) {
		t.Errorf("err = %v, want ErrStaleState", err)
	}
	if st := f.exc.workflows[excID]; st.AssignedTo != "b@example.com" {
		t.Errorf("lost update: stored assignee = %q", st.AssignedTo)
	}
}

func TestSweepSLA(t *testing.T) {
	f := newFixture()
	// 11 lakh mismatch -> CRITICAL, 2h SLA.
	f.addTxn("M1", "UTR002", 110000000)
	f.addBank("B2", "UTR002", 120000000)

	if _, err := f.svc.RunReconciliation(cycle, false); err != nil {
		t.Fatal(err)
	}
	excID := f.singleExceptionID(t)

	// Snooze it, then sweep past both the wake time and the SLA.
	wake := time.Now().Add(-time.Minute)
	if _, err := f.svc.SnoozeException(excID, wake, "ops"); err != nil {
		t.Fatal(err)
	}

	f.svc.SweepSLA(time.Now().Add(3 * time.Hour))

	st := f.exc.workflows[excID]
	if !st.SlaBreached {
		t.Error("sweep must mark the breached SLA")
	}
	if st.Status != exception.StatusInvestigating {
		t.Errorf("due snooze should wake into investigating, got %s", st.Status)
	}
	if st.SnoozedUntil != nil {
		t.Error("wake must clear snoozed_until")
	}
}
