package exception

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pg-recon-backend/internal/models"
	"pg-recon-backend/internal/money"
)

// Workflow statuses. open → investigating → {resolved | wont_fix |
// escalated}; snoozed is reachable from open or investigating and wakes
// back into investigating. resolved, wont_fix and escalated are terminal;
// rows are never deleted.
const (
	StatusOpen          = "open"
	StatusInvestigating = "investigating"
	StatusSnoozed       = "snoozed"
	StatusResolved      = "resolved"
	StatusWontFix       = "wont_fix"
	StatusEscalated     = "escalated"
)

// Severity levels, lowest to highest.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// slaHours maps severity to its resolution window. Higher severity, shorter
// window.
var slaHours = map[string]int{
	SeverityCritical: 2,
	SeverityHigh:     8,
	SeverityMedium:   24,
	SeverityLow:      72,
}

var allowedTransitions = map[string][]string{
	StatusOpen:          {StatusInvestigating, StatusSnoozed},
	StatusInvestigating: {StatusResolved, StatusWontFix, StatusEscalated, StatusSnoozed},
	StatusSnoozed:       {StatusInvestigating},
	StatusResolved:      {},
	StatusWontFix:       {},
	StatusEscalated:     {},
}

// Validation errors. Callers surface these to the user; they never indicate
// a server fault.
var (
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrMissingAssignee   = errors.New("assignee required")
	ErrMissingWakeTime   = errors.New("wake time required")
	ErrMissingResolution = errors.New("resolution code and note required")
)

// severityRank gives the total ordering over severities.
func severityRank(sev string) int {
	switch sev {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether a outranks b.
func MoreSevere(a, b string) bool {
	return severityRank(a) > severityRank(b)
}

// SeverityForAmount buckets by absolute transaction amount in rupees:
// >=1,00,000 CRITICAL, >=10,000 HIGH, >=1,000 MEDIUM, else LOW.
func SeverityForAmount(amount money.Paise) string {
	rupees := int64(amount.Abs()) / 100
	switch {
	case rupees >= 100000:
		return SeverityCritical
	case rupees >= 10000:
		return SeverityHigh
	case rupees >= 1000:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SLAFor returns the resolution window for a severity.
func SLAFor(severity string) time.Duration {
	h, ok := slaHours[severity]
	if !ok {
		h = slaHours[SeverityLow]
	}
	return time.Duration(h) * time.Hour
}

// NewWorkflowState seeds the workflow for a freshly created exception
// record. Severity and the SLA clock are fixed here and never recomputed,
// even if the transaction amount is later corrected — the SLA clock stays
// stable by design decision, not oversight.
func NewWorkflowState(rec *models.ExceptionRecord, now time.Time) *models.ExceptionWorkflowState {
	severity := SeverityForAmount(rec.PgAmount)
	if rec.PgAmount == 0 && rec.BankAmount != 0 {
		severity = SeverityForAmount(rec.BankAmount)
	}
	return &models.ExceptionWorkflowState{
		ID:          uuid.New(),
		ExceptionID: rec.ID,
		Status:      StatusOpen,
		Severity:    severity,
		SlaDueAt:    now.Add(SLAFor(severity)),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsSLABreached derives the breach flag: past due and still not closed out.
func IsSLABreached(st *models.ExceptionWorkflowState, now time.Time) bool {
	if st.Status == StatusResolved || st.Status == StatusWontFix {
		return false
	}
	return now.After(st.SlaDueAt)
}

func canTransition(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func guard(st *models.ExceptionWorkflowState, to string) error {
	if !canTransition(st.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, st.Status, to)
	}
	return nil
}

// Assign moves an open exception into investigation. The transition
// mutates in memory only; persistence and the optimistic version check
// belong to the caller.
func Assign(st *models.ExceptionWorkflowState, assignee string, now time.Time) error {
	if err := guard(st, StatusInvestigating); err != nil {
		return err
	}
	if assignee == "" {
		return ErrMissingAssignee
	}
	st.Status = StatusInvestigating
	st.AssignedTo = assignee
	st.UpdatedAt = now
	return nil
}

// Snooze parks an open or investigating exception until wakeAt.
func Snooze(st *models.ExceptionWorkflowState, wakeAt time.Time, now time.Time) error {
	if err := guard(st, StatusSnoozed); err != nil {
		return err
	}
	if wakeAt.IsZero() {
		return ErrMissingWakeTime
	}
	st.Status = StatusSnoozed
	st.SnoozedUntil = &wakeAt
	st.UpdatedAt = now
	return nil
}

// Wake returns a snoozed exception to investigation.
func Wake(st *models.ExceptionWorkflowState, now time.Time) error {
	if err := guard(st, StatusInvestigating); err != nil {
		return err
	}
	st.Status = StatusInvestigating
	st.SnoozedUntil = nil
	st.UpdatedAt = now
	return nil
}

// Resolve closes an exception under investigation with a resolution code
// and note. The caller must also flip the originating transaction to
// RECONCILED — resolving the exception is the only way the transaction
// leaves its exceptional state.
func Resolve(st *models.ExceptionWorkflowState, resolution, note string, now time.Time) error {
	if err := guard(st, StatusResolved); err != nil {
		return err
	}
	if resolution == "" || note == "" {
		return ErrMissingResolution
	}
	st.Status = StatusResolved
	st.Resolution = resolution
	st.ResolutionNote = note
	st.ResolvedAt = &now
	st.UpdatedAt = now
	return nil
}

// WontFix closes an exception that will not be actioned.
func WontFix(st *models.ExceptionWorkflowState, note string, now time.Time) error {
	if err := guard(st, StatusWontFix); err != nil {
		return err
	}
	st.Status = StatusWontFix
	st.ResolutionNote = note
	st.UpdatedAt = now
	return nil
}

// Escalate hands an exception under investigation off to the escalation
// queue. Terminal for this workflow.
func Escalate(st *models.ExceptionWorkflowState, now time.Time) error {
	if err := guard(st, StatusEscalated); err != nil {
		return err
	}
	st.Status = StatusEscalated
	st.UpdatedAt = now
	return nil
}
