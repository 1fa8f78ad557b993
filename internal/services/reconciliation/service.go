package reconciliation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/services/exception"
	"pg-recon-backend/internal/services/matching"
	"pg-recon-backend/internal/services/settlement"
)

// Service drives a reconciliation run end to end and owns the mutating
// exception-workflow API. The matching engine and settlement calculator
// stay pure; everything stateful goes through the injected repositories.
type Service struct {
	txRepo   TransactionRepository
	bankRepo BankRecordRepository
	runRepo  RunRepository
	excRepo  ExceptionRepository
	setRepo  SettlementRepository

	tightToleranceBps int64
	looseToleranceBps int64
	minAcceptScore    int
}

func NewService(
	txRepo TransactionRepository,
	bankRepo BankRecordRepository,
	runRepo RunRepository,
	excRepo ExceptionRepository,
	setRepo SettlementRepository,
) *Service {
	cfg := matching.DefaultConfig("")
	return &Service{
		txRepo:            txRepo,
		bankRepo:          bankRepo,
		runRepo:           runRepo,
		excRepo:           excRepo,
		setRepo:           setRepo,
		tightToleranceBps: cfg.TightToleranceBps,
		looseToleranceBps: cfg.LooseToleranceBps,
		minAcceptScore:    cfg.MinAcceptScore,
	}
}

// IngestTransactions stores a parsed upload of PG transactions.
func (s *Service) IngestTransactions(txns []models.PgTransaction) error {
	return s.txRepo.BulkCreate(txns)
}

// IngestBankRecords stores a parsed upload of bank settlement records.
func (s *Service) IngestBankRecords(recs []models.BankRecord) error {
	return s.bankRepo.BulkCreate(recs)
}

// RunReconciliation executes one matching run for a cycle: load inputs,
// match, persist the result set, seed exception workflows, flip transaction
// statuses, and optionally settle every merchant in the cycle. A run never
// fails on data quality; only load/persist problems return an error.
func (s *Service) RunReconciliation(cycleDate string, autoSettle bool) (*models.ReconciliationRun, error) {
	log.Infof("[Recon] Starting run for cycle %s", cycleDate)

	pgTxns, err := s.txRepo.ListByCycle(cycleDate)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	bankRecs, err := s.bankRepo.ListByCycle(cycleDate)
	if err != nil {
		return nil, fmt.Errorf("load bank records: %w", err)
	}

	cfg := matching.Config{
		CycleDate:         cycleDate,
		TightToleranceBps: s.tightToleranceBps,
		LooseToleranceBps: s.looseToleranceBps,
		MinAcceptScore:    s.minAcceptScore,
	}
	res := matching.Reconcile(pgTxns, bankRecs, cfg)

	log.Infof("[Recon] Cycle %s: matched=%d unmatchedPg=%d unmatchedBank=%d exceptions=%d rate=%.1f%%",
		cycleDate, len(res.Matched), len(res.UnmatchedPg), len(res.UnmatchedBank), len(res.Exceptions), res.MatchRatePct)

	now := time.Now()
	run := &models.ReconciliationRun{
		ID:                 uuid.New(),
		CycleDate:          cycleDate,
		TotalTransactions:  res.TotalTransactions,
		MatchedCount:       len(res.Matched),
		UnmatchedPgCount:   len(res.UnmatchedPg),
		UnmatchedBankCount: len(res.UnmatchedBank),
		ExceptionCount:     len(res.Exceptions),
		TotalAmount:        res.TotalAmount,
		ReconciledAmount:   res.ReconciledAmount,
		MatchRatePct:       res.MatchRatePct,
		Status:             models.RunStatusProcessing,
		StartedAt:          now,
		CreatedAt:          now,
	}
	if err := s.runRepo.Create(run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	if err := s.persistResults(run, &res, now); err != nil {
		run.Status = models.RunStatusFailed
		_ = s.runRepo.Update(run)
		return nil, err
	}

	completed := time.Now()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &completed
	if err := s.runRepo.Update(run); err != nil {
		return nil, fmt.Errorf("finalize run: %w", err)
	}

	if autoSettle {
		s.settleCycle(cycleDate, &res)
	}

	log.Infof("[Recon] Run %s completed for cycle %s", run.ID, cycleDate)
	return run, nil
}

func (s *Service) persistResults(run *models.ReconciliationRun, res *matching.Result, now time.Time) error {
	records := make([]models.MatchRecord, 0, len(res.Matched)+len(res.UnmatchedPg)+len(res.UnmatchedBank)+len(res.Exceptions))

	for _, m := range res.Matched {
		tags, _ := json.Marshal(m.MatchedOn)
		bankID := m.Bank.ID
		pgID := m.Pg.ID
		records = append(records, models.MatchRecord{
			ID:              uuid.New(),
			RunID:           run.ID,
			PgTransactionID: &pgID,
			BankRecordID:    &bankID,
			Outcome:         models.MatchOutcomeMatched,
			ConfidenceScore: m.Confidence,
			MatchedOn:       tags,
			PgAmount:        m.Pg.AmountPaise,
			BankAmount:      m.Bank.AmountPaise,
			CreatedAt:       now,
		})
	}
	for _, tx := range res.UnmatchedPg {
		pgID := tx.ID
		records = append(records, models.MatchRecord{
			ID:              uuid.New(),
			RunID:           run.ID,
			PgTransactionID: &pgID,
			Outcome:         models.MatchOutcomeUnmatchedPg,
			PgAmount:        tx.AmountPaise,
			Detail:          "no bank record shares this UTR",
			CreatedAt:       now,
		})
	}
	for _, rec := range res.UnmatchedBank {
		bankID := rec.ID
		records = append(records, models.MatchRecord{
			ID:           uuid.New(),
			RunID:        run.ID,
			BankRecordID: &bankID,
			Outcome:      models.MatchOutcomeUnmatchedBank,
			BankAmount:   rec.AmountPaise,
			Detail:       "bank record unclaimed after matching",
			CreatedAt:    now,
		})
	}
	for i := range res.Exceptions {
		exc := &res.Exceptions[i]
		rec := models.MatchRecord{
			ID:         uuid.New(),
			RunID:      run.ID,
			Outcome:    models.MatchOutcomeException,
			PgAmount:   exc.PgAmount,
			BankAmount: exc.BankAmount,
			Detail:     exc.Detail,
			CreatedAt:  now,
		}
		if exc.Pg != nil {
			pgID := exc.Pg.ID
			rec.PgTransactionID = &pgID
		}
		if exc.Bank != nil {
			bankID := exc.Bank.ID
			rec.BankRecordID = &bankID
		}
		records = append(records, rec)
	}

	if err := s.runRepo.CreateMatchRecords(records); err != nil {
		return fmt.Errorf("persist match records: %w", err)
	}

	if err := s.seedExceptionWorkflows(run, res, now); err != nil {
		return err
	}

	return s.applyTransactionStatuses(res)
}

// seedExceptionWorkflows creates the ExceptionRecord plus its workflow
// state for every engine exception, exactly one workflow per record.
func (s *Service) seedExceptionWorkflows(run *models.ReconciliationRun, res *matching.Result, now time.Time) error {
	for i := range res.Exceptions {
		exc := &res.Exceptions[i]

		ref := ""
		if exc.Pg != nil {
			ref = exc.Pg.ID.String()
		} else if exc.Bank != nil {
			ref = exc.Bank.BankRef
		}

		rec := &models.ExceptionRecord{
			ID:             uuid.New(),
			RunID:          run.ID,
			TransactionRef: ref,
			ReasonCode:     exc.ReasonCode,
			PgAmount:       exc.PgAmount,
			BankAmount:     exc.BankAmount,
			DeltaAmount:    exc.Delta,
			Detail:         exc.Detail,
			CreatedAt:      now,
		}
		st := exception.NewWorkflowState(rec, now)
		rec.Severity = st.Severity

		if err := s.excRepo.CreateWithWorkflow(rec, st); err != nil {
			return fmt.Errorf("create exception %s: %w", rec.ReasonCode, err)
		}
	}
	return nil
}

// applyTransactionStatuses flips PG transaction statuses to reflect the
// run. Exceptions are applied last so a transaction that matched but was
// also flagged (duplicate UTR) lands in EXCEPTION; only resolving the
// exception moves it out.
func (s *Service) applyTransactionStatuses(res *matching.Result) error {
	matched := make([]uuid.UUID, 0, len(res.Matched))
	for _, m := range res.Matched {
		matched = append(matched, m.Pg.ID)
	}
	if err := s.txRepo.UpdateStatuses(matched, models.TxStatusReconciled); err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}

	unmatched := make([]uuid.UUID, 0, len(res.UnmatchedPg))
	for _, tx := range res.UnmatchedPg {
		unmatched = append(unmatched, tx.ID)
	}
	if err := s.txRepo.UpdateStatuses(unmatched, models.TxStatusUnmatched); err != nil {
		return fmt.Errorf("mark unmatched: %w", err)
	}

	excIDs := make([]uuid.UUID, 0, len(res.Exceptions))
	for i := range res.Exceptions {
		if res.Exceptions[i].Pg != nil {
			excIDs = append(excIDs, res.Exceptions[i].Pg.ID)
		}
	}
	if err := s.txRepo.UpdateStatuses(excIDs, models.TxStatusException); err != nil {
		return fmt.Errorf("mark exceptions: %w", err)
	}
	return nil
}

// settleCycle attempts settlement for every merchant with reconciled
// transactions in the run. One merchant's configuration problem never
// blocks the others.
func (s *Service) settleCycle(cycleDate string, res *matching.Result) {
	merchants := make(map[string]bool)
	order := make([]string, 0)
	for _, m := range res.Matched {
		if !merchants[m.Pg.MerchantID] {
			merchants[m.Pg.MerchantID] = true
			order = append(order, m.Pg.MerchantID)
		}
	}
	for _, merchantID := range order {
		if _, err := s.RunSettlement(merchantID, cycleDate); err != nil {
			log.Errorf("[Settle] Merchant %s cycle %s: %v", merchantID, cycleDate, err)
		}
	}
}

// RunSettlement computes and persists one merchant's batch for a cycle.
// Idempotent per (merchant, cycle): an existing batch is returned as-is,
// so retrying after a failed attempt can never double-book.
func (s *Service) RunSettlement(merchantID, cycleDate string) (*models.SettlementBatch, error) {
	if existing, err := s.setRepo.FindBatch(merchantID, cycleDate); err != nil {
		return nil, fmt.Errorf("lookup batch: %w", err)
	} else if existing != nil {
		log.Infof("[Settle] Batch already exists for merchant %s cycle %s", merchantID, cycleDate)
		return existing, nil
	}

	cfg, err := s.setRepo.GetActiveConfig(merchantID)
	if err != nil {
		return nil, err
	}

	reconciled, err := s.txRepo.ListByMerchantCycleStatus(merchantID, cycleDate, models.TxStatusReconciled)
	if err != nil {
		return nil, fmt.Errorf("load reconciled transactions: %w", err)
	}

	batch, items, err := settlement.Calculate(merchantID, reconciled, cycleDate, cfg)
	if err != nil {
		return nil, err
	}

	if err := s.setRepo.CreateBatchWithItems(batch, items); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}

	log.Infof("[Settle] Merchant %s cycle %s: %d txns, net %s",
		merchantID, cycleDate, batch.TransactionCount, batch.NetAmount)
	return batch, nil
}

func (s *Service) GetRun(id uuid.UUID) (*models.ReconciliationRun, error) {
	return s.runRepo.Get(id)
}

func (s *Service) ListMatchRecords(runID uuid.UUID) ([]models.MatchRecord, error) {
	return s.runRepo.ListMatchRecords(runID)
}

func (s *Service) ListRunExceptions(runID uuid.UUID) ([]models.ExceptionRecord, error) {
	return s.excRepo.ListByRun(runID)
}

func (s *Service) GetBatch(id uuid.UUID) (*models.SettlementBatch, error) {
	return s.setRepo.GetBatch(id)
}

func (s *Service) ListBatchItems(batchID uuid.UUID) ([]models.SettlementItem, error) {
	return s.setRepo.ListItems(batchID)
}

func (s *Service) UpsertMerchantConfig(cfg *models.MerchantConfig) error {
	return s.setRepo.UpsertConfig(cfg)
}

func (s *Service) ListExceptions(status string, limit int) ([]models.ExceptionWorkflowState, error) {
	return s.excRepo.ListWorkflows(status, limit)
}

// applyTransition is the shared shape of every workflow mutation: read,
// transition in memory, write back guarded by the version read. A stale
// write surfaces ErrStaleState and leaves the row untouched.
func (s *Service) applyTransition(exceptionID uuid.UUID, action, performedBy, reason string,
	fn func(st *models.ExceptionWorkflowState, now time.Time) error,
) (*models.ExceptionWorkflowState, error) {
	st, err := s.excRepo.GetWorkflow(exceptionID)
	if err != nil {
		return nil, err
	}
	expected := st.Version
	from := st.Status

	now := time.Now()
	if err := fn(st, now); err != nil {
		return nil, err
	}

	st.Version = expected + 1
	if err := s.excRepo.UpdateWorkflow(st, expected); err != nil {
		return nil, err
	}

	_ = s.excRepo.AppendAudit(&models.ExceptionAuditLog{
		ID:          uuid.New(),
		ExceptionID: exceptionID,
		Action:      action,
		FromStatus:  from,
		ToStatus:    st.Status,
		PerformedBy: performedBy,
		Reason:      reason,
		CreatedAt:   now,
	})
	return st, nil
}

func (s *Service) AssignException(exceptionID uuid.UUID, assignee string) (*models.ExceptionWorkflowState, error) {
	return s.applyTransition(exceptionID, "assign", assignee, "",
		func(st *models.ExceptionWorkflowState, now time.Time) error {
			return exception.Assign(st, assignee, now)
		})
}

func (s *Service) SnoozeException(exceptionID uuid.UUID, wakeAt time.Time, performedBy string) (*models.ExceptionWorkflowState, error) {
	return s.applyTransition(exceptionID, "snooze", performedBy, "",
		func(st *models.ExceptionWorkflowState, now time.Time) error {
			return exception.Snooze(st, wakeAt, now)
		})
}

// ResolveException closes the exception and flips the originating
// transaction to RECONCILED — the cross-entity side effect that releases
// the transaction from its exceptional state.
func (s *Service) ResolveException(exceptionID uuid.UUID, resolution, note, performedBy string) (*models.ExceptionWorkflowState, error) {
	st, err := s.applyTransition(exceptionID, "resolve", performedBy, resolution,
		func(st *models.ExceptionWorkflowState, now time.Time) error {
			return exception.Resolve(st, resolution, note, now)
		})
	if err != nil {
		return nil, err
	}

	rec, err := s.excRepo.GetRecord(exceptionID)
	if err != nil {
		return st, fmt.Errorf("load exception record: %w", err)
	}
	if txID, perr := uuid.Parse(rec.TransactionRef); perr == nil {
		if err := s.txRepo.UpdateStatus(txID, models.TxStatusReconciled); err != nil {
			return st, fmt.Errorf("reconcile originating transaction: %w", err)
		}
	}
	return st, nil
}

func (s *Service) EscalateException(exceptionID uuid.UUID, performedBy, reason string) (*models.ExceptionWorkflowState, error) {
	return s.applyTransition(exceptionID, "escalate", performedBy, reason,
		func(st *models.ExceptionWorkflowState, now time.Time) error {
			return exception.Escalate(st, now)
		})
}

func (s *Service) WontFixException(exceptionID uuid.UUID, note, performedBy string) (*models.ExceptionWorkflowState, error) {
	return s.applyTransition(exceptionID, "wont_fix", performedBy, note,
		func(st *models.ExceptionWorkflowState, now time.Time) error {
			return exception.WontFix(st, note, now)
		})
}

// SweepSLA marks breached open exceptions and wakes due snoozes. Runs from
// the server's background ticker.
func (s *Service) SweepSLA(now time.Time) {
	breached, err := s.excRepo.MarkSLABreaches(now)
	if err != nil {
		log.Errorf("[SLASweep] Mark breaches: %v", err)
	} else if breached > 0 {
		log.Warnf("[SLASweep] %d exceptions past SLA", breached)
	}

	due, err := s.excRepo.ListDueSnoozes(now)
	if err != nil {
		log.Errorf("[SLASweep] List due snoozes: %v", err)
		return
	}
	for i := range due {
		st := &due[i]
		expected := st.Version
		if err := exception.Wake(st, now); err != nil {
			continue
		}
		st.Version = expected + 1
		if err := s.excRepo.UpdateWorkflow(st, expected); err != nil {
			// Lost a race with an operator action; the next sweep retries.
			log.Warnf("[SLASweep] Wake %s: %v", st.ExceptionID, err)
		}
	}
}
