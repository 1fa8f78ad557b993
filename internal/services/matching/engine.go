package matching

import (
	"fmt"
	"strings"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/money"
)

// Matching is greedy per-transaction: once a PG transaction claims a bank
// record, a later transaction never steals it back even if it would have
// been a strictly better match. Known limitation, kept for determinism and
// simplicity; do not change without signoff.

type Config struct {
	CycleDate         string
	TightToleranceBps int64 // score 90 band
	LooseToleranceBps int64 // score 70 band
	MinAcceptScore    int
}

func DefaultConfig(cycleDate string) Config {
	return Config{
		CycleDate:         cycleDate,
		TightToleranceBps: 100,
		LooseToleranceBps: 500,
		MinAcceptScore:    70,
	}
}

type Match struct {
	Pg         *models.PgTransaction
	Bank       *models.BankRecord
	Confidence int
	MatchedOn  []string
}

type Exception struct {
	ReasonCode string
	Pg         *models.PgTransaction
	Bank       *models.BankRecord
	PgAmount   money.Paise
	BankAmount money.Paise
	Delta      money.Paise
	Detail     string
}

type Result struct {
	Matched       []Match
	UnmatchedPg   []*models.PgTransaction
	UnmatchedBank []*models.BankRecord
	Exceptions    []Exception

	TotalTransactions int
	TotalAmount       money.Paise
	ReconciledAmount  money.Paise
	MatchRatePct      float64
}

type bankEntry struct {
	rec     *models.BankRecord
	claimed bool
}

// Reconcile pairs PG transactions against bank records for one cycle.
// Pure and deterministic: identical ordered inputs produce identical
// results. Data-quality problems become exception entries, never errors.
func Reconcile(pgTxns []models.PgTransaction, bankRecords []models.BankRecord, cfg Config) Result {
	res := Result{TotalTransactions: len(pgTxns)}

	// Index bank records by normalized UTR, preserving input order so the
	// candidate scan is deterministic. Malformed records are reported as
	// INVALID_DATA and never enter the index.
	index := make(map[string][]*bankEntry)
	entries := make([]*bankEntry, 0, len(bankRecords))
	for i := range bankRecords {
		rec := &bankRecords[i]
		if detail := validateBankRecord(rec); detail != "" {
			res.Exceptions = append(res.Exceptions, Exception{
				ReasonCode: models.ReasonInvalidData,
				Bank:       rec,
				BankAmount: rec.AmountPaise,
				Detail:     detail,
			})
			continue
		}
		e := &bankEntry{rec: rec}
		entries = append(entries, e)
		index[normalizeUTR(rec.UTR)] = append(index[normalizeUTR(rec.UTR)], e)
	}

	for i := range pgTxns {
		tx := &pgTxns[i]
		res.TotalAmount += tx.AmountPaise

		if detail := validatePgTransaction(tx); detail != "" {
			res.Exceptions = append(res.Exceptions, Exception{
				ReasonCode: models.ReasonInvalidData,
				Pg:         tx,
				PgAmount:   tx.AmountPaise,
				Detail:     detail,
			})
			continue
		}

		utr := normalizeUTR(tx.UTR)
		if utr == "" {
			res.Exceptions = append(res.Exceptions, Exception{
				ReasonCode: models.ReasonMissingUTR,
				Pg:         tx,
				PgAmount:   tx.AmountPaise,
				Detail:     "transaction has no UTR, bank lookup skipped",
			})
			continue
		}

		candidates := index[utr]
		if len(candidates) == 0 {
			res.UnmatchedPg = append(res.UnmatchedPg, tx)
			continue
		}

		best, firstUnclaimed := scoreCandidates(tx, candidates, cfg)
		if firstUnclaimed == nil {
			// Every candidate already claimed by an earlier transaction.
			res.UnmatchedPg = append(res.UnmatchedPg, tx)
			continue
		}
		if best == nil {
			// Unclaimed candidates exist but none within tolerance.
			bank := firstUnclaimed.rec
			delta := (tx.AmountPaise - bank.AmountPaise).Abs()
			res.Exceptions = append(res.Exceptions, Exception{
				ReasonCode: models.ReasonAmountMismatch,
				Pg:         tx,
				Bank:       bank,
				PgAmount:   tx.AmountPaise,
				BankAmount: bank.AmountPaise,
				Delta:      delta,
				Detail: fmt.Sprintf("bank amount %s differs from PG amount %s by %s (UTR %s)",
					bank.AmountPaise, tx.AmountPaise, delta, utr),
			})
			continue
		}
		if best.score < cfg.MinAcceptScore {
			res.UnmatchedPg = append(res.UnmatchedPg, tx)
			continue
		}

		best.entry.claimed = true
		res.Matched = append(res.Matched, Match{
			Pg:         tx,
			Bank:       best.entry.rec,
			Confidence: best.score,
			MatchedOn:  best.matchedOn,
		})
		res.ReconciledAmount += tx.AmountPaise
	}

	flagDuplicateUTRs(pgTxns, &res)

	for _, e := range entries {
		if !e.claimed {
			res.UnmatchedBank = append(res.UnmatchedBank, e.rec)
		}
	}

	if res.TotalTransactions > 0 {
		res.MatchRatePct = float64(len(res.Matched)) / float64(res.TotalTransactions) * 100
	}
	return res
}

type scored struct {
	entry     *bankEntry
	score     int
	matchedOn []string
}

// scoreCandidates scans unclaimed candidates in bank-input order and keeps
// the first highest scorer. best is nil when no candidate is within the
// loose tolerance; firstUnclaimed is nil when everything is already claimed.
func scoreCandidates(tx *models.PgTransaction, candidates []*bankEntry, cfg Config) (best *scored, firstUnclaimed *bankEntry) {
	for _, cand := range candidates {
		if cand.claimed {
			continue
		}
		if firstUnclaimed == nil {
			firstUnclaimed = cand
		}

		var s *scored
		switch {
		case cand.rec.AmountPaise == tx.AmountPaise:
			s = &scored{entry: cand, score: 100, matchedOn: []string{"utr", "amount_exact"}}
		case tx.AmountPaise.WithinBps(cand.rec.AmountPaise, cfg.TightToleranceBps):
			s = &scored{entry: cand, score: 90, matchedOn: []string{"utr", "amount_close"}}
		case tx.AmountPaise.WithinBps(cand.rec.AmountPaise, cfg.LooseToleranceBps):
			s = &scored{entry: cand, score: 70, matchedOn: []string{"utr", "amount_loose"}}
		default:
			// Beyond loose tolerance, or PG amount is zero so a percentage
			// comparison is impossible: falls through to the raw-delta
			// mismatch path if nothing else scores.
			continue
		}
		if best == nil || s.score > best.score {
			best = s
		}
	}
	return best, firstUnclaimed
}

// flagDuplicateUTRs adds a DUPLICATE_UTR exception for every transaction
// sharing a UTR beyond the first occurrence, regardless of match outcome.
func flagDuplicateUTRs(pgTxns []models.PgTransaction, res *Result) {
	seen := make(map[string]int)
	for i := range pgTxns {
		tx := &pgTxns[i]
		utr := normalizeUTR(tx.UTR)
		if utr == "" {
			continue
		}
		seen[utr]++
		if seen[utr] > 1 {
			res.Exceptions = append(res.Exceptions, Exception{
				ReasonCode: models.ReasonDuplicateUTR,
				Pg:         tx,
				PgAmount:   tx.AmountPaise,
				Detail:     fmt.Sprintf("UTR %s appears %d times in PG input", utr, seen[utr]),
			})
		}
	}
}

func normalizeUTR(utr string) string {
	return strings.ToUpper(strings.TrimSpace(utr))
}

func validatePgTransaction(tx *models.PgTransaction) string {
	if tx.AmountPaise < 0 {
		return fmt.Sprintf("negative amount %s", tx.AmountPaise)
	}
	if tx.CapturedAt.IsZero() {
		return "missing capture timestamp"
	}
	return ""
}

func validateBankRecord(rec *models.BankRecord) string {
	if rec.AmountPaise < 0 {
		return fmt.Sprintf("negative bank amount %s (ref %s)", rec.AmountPaise, rec.BankRef)
	}
	if rec.ValueDate.IsZero() {
		return fmt.Sprintf("missing value date (ref %s)", rec.BankRef)
	}
	return ""
}
