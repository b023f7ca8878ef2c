package claim

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no claim matches the identifier and scope.
	ErrNotFound = errors.New("claim: not found")
	// ErrInvalidInput wraps caller-side validation failures.
	ErrInvalidInput = errors.New("claim: invalid input")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("claim: invalid status transition")
	// ErrConflict signals the claim changed since it was loaded.
	ErrConflict = errors.New("claim: concurrent modification")
)

// TransitionError reports an edge missing from the transition table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("claim: invalid status transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// allowedTransitions lists the forward edges callers may request. Paid is
// only reachable from Approved and is terminal.
var allowedTransitions = map[Status][]Status{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected, StatusPending},
	StatusApproved:    {StatusPaid},
	StatusRejected:    {},
	StatusPaid:        {},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a *TransitionError when from -> to is not allowed.
func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// Transition moves the claim to status to and appends one history record.
// It never fails and never consults the transition table; callers decide
// whether a transition is permitted or redundant before invoking it.
// A zero actor is recorded as SystemActor.
func (c *Claim) Transition(to Status, notes string, actor Actor, at time.Time) {
	if actor.IsZero() {
		actor = SystemActor
	}
	old := c.status
	c.status = to

	if to == StatusApproved {
		days := int(at.Sub(c.SubmittedAt) / (24 * time.Hour))
		c.storedProcessingDays = &days
	}

	c.history = append(c.history, HistoryRecord{
		ID:          uuid.NewString(),
		ClaimID:     c.ID,
		OldStatus:   old,
		NewStatus:   to,
		ChangedByID: actor.ID,
		ChangedBy:   actor.Display(),
		Notes:       notes,
		ChangedAt:   at,
	})
}

func (c *Claim) last() (HistoryRecord, bool) {
	if len(c.history) == 0 {
		return HistoryRecord{}, false
	}
	return c.history[len(c.history)-1], true
}

// LastStatusUpdate is the time of the latest transition.
func (c *Claim) LastStatusUpdate() *time.Time {
	rec, ok := c.last()
	if !ok {
		return nil
	}
	return &rec.ChangedAt
}

// ReviewedBy is the actor of the latest transition.
func (c *Claim) ReviewedBy() string {
	rec, _ := c.last()
	return rec.ChangedBy
}

// ReviewNotes are the notes of the latest transition.
func (c *Claim) ReviewNotes() string {
	rec, _ := c.last()
	return rec.Notes
}

// approval returns the latest transition when it moved the claim into
// Approved or Rejected.
func (c *Claim) approval() (HistoryRecord, bool) {
	rec, ok := c.last()
	if !ok || !rec.NewStatus.resolves() {
		return HistoryRecord{}, false
	}
	return rec, true
}

// ApprovalDate is set only while the latest transition targeted Approved or Rejected.
func (c *Claim) ApprovalDate() *time.Time {
	rec, ok := c.approval()
	if !ok {
		return nil
	}
	return &rec.ChangedAt
}

func (c *Claim) ApprovedBy() string {
	rec, _ := c.approval()
	return rec.ChangedBy
}

func (c *Claim) ApprovalNotes() string {
	rec, _ := c.approval()
	return rec.Notes
}

// ProcessingTime is ApprovalDate - SubmittedAt; ok is false while unresolved.
func (c *Claim) ProcessingTime() (d time.Duration, ok bool) {
	at := c.ApprovalDate()
	if at == nil {
		return 0, false
	}
	return at.Sub(c.SubmittedAt), true
}

// ProcessingDays is ProcessingTime in fractional days.
func (c *Claim) ProcessingDays() (float64, bool) {
	d, ok := c.ProcessingTime()
	if !ok {
		return 0, false
	}
	return d.Hours() / 24, true
}
