package claim

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"claimflow/document"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusPending     Status = "Pending"
	StatusUnderReview Status = "UnderReview"
	StatusApproved    Status = "Approved"
	StatusRejected    Status = "Rejected"
	StatusPaid        Status = "Paid"
)

// Statuses lists every status in declaration order.
var Statuses = []Status{StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusPaid}

// ParseStatus accepts the canonical name case-insensitively, plus "under_review".
func ParseStatus(s string) (Status, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "")
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// BadgeClass maps the status to the CSS badge used by the pages.
func (s Status) BadgeClass() string {
	switch s {
	case StatusPending:
		return "bg-warning"
	case StatusApproved:
		return "bg-success"
	case StatusRejected:
		return "bg-danger"
	case StatusUnderReview:
		return "bg-info"
	case StatusPaid:
		return "bg-primary"
	default:
		return "bg-secondary"
	}
}

// resolves reports whether entering s stamps the approval fields.
func (s Status) resolves() bool {
	return s == StatusApproved || s == StatusRejected
}

// Period identifies the teaching month a claim covers.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "2006-01".
func ParsePeriod(s string) (Period, error) {
	year, month, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: period %q must be YYYY-MM", ErrInvalidInput, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1900 || y > 9999 {
		return Period{}, fmt.Errorf("%w: period %q has invalid year", ErrInvalidInput, s)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return Period{}, fmt.Errorf("%w: period %q has invalid month", ErrInvalidInput, s)
	}
	return Period{Year: y, Month: time.Month(m)}, nil
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Start is midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Key renders the period as "2006-01".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// String renders the period as "January 2006".
func (p Period) String() string {
	return p.Start().Format("January 2006")
}

// Actor identifies who performed a transition.
type Actor struct {
	ID   string
	Name string
}

// SystemActor is recorded for transitions that have no authenticated user.
var SystemActor = Actor{ID: "system", Name: "System"}

// IsZero reports whether neither id nor name is set.
func (a Actor) IsZero() bool { return a.ID == "" && a.Name == "" }

// Display is the name shown in history, falling back to the id.
func (a Actor) Display() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// HistoryRecord is one immutable entry of a claim's status history.
type HistoryRecord struct {
	ID          string
	ClaimID     string
	OldStatus   Status
	NewStatus   Status
	ChangedByID string
	ChangedBy   string
	Notes       string
	ChangedAt   time.Time
}

// StatusChange renders "Old → New".
func (h HistoryRecord) StatusChange() string {
	return fmt.Sprintf("%s → %s", h.OldStatus, h.NewStatus)
}

// TimeAgo buckets the age of the record relative to now.
func (h HistoryRecord) TimeAgo(now time.Time) string {
	elapsed := now.Sub(h.ChangedAt)
	switch {
	case elapsed >= 24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed/(24*time.Hour)))
	case elapsed >= time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	case elapsed >= time.Minute:
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	default:
		return "Just now"
	}
}

// Lecturer is the owner summary joined onto claims for display and filtering.
type Lecturer struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Department string
}

// FullName joins first and last name.
func (l Lecturer) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Claim is the aggregate root: the claim row, its history and its documents.
//
// Status, amounts and history are only changed through methods so that
// TotalAmount always equals HoursWorked*HourlyRate and every status change has
// exactly one history record.
type Claim struct {
	ID              string
	LecturerID      string
	Lecturer        Lecturer
	Period          Period
	AdditionalNotes string
	SubmittedAt     time.Time
	Documents       []document.Document

	// Version is the optimistic lock token read on load.
	Version int

	hoursWorked          decimal.Decimal
	hourlyRate           decimal.Decimal
	totalAmount          decimal.Decimal
	status               Status
	storedProcessingDays *int
	history              []HistoryRecord
	// persisted counts the history records already written to storage.
	persisted int
}

// NewClaimParams are the inputs of a freshly submitted claim.
type NewClaimParams struct {
	ID              string
	LecturerID      string
	Period          Period
	HoursWorked     decimal.Decimal
	HourlyRate      decimal.Decimal
	AdditionalNotes string
	SubmittedAt     time.Time
}

// New builds a Pending claim with an empty history.
func New(p NewClaimParams) *Claim {
	c := &Claim{
		ID:              p.ID,
		LecturerID:      p.LecturerID,
		Period:          p.Period,
		AdditionalNotes: p.AdditionalNotes,
		SubmittedAt:     p.SubmittedAt,
		status:          StatusPending,
	}
	c.SetHoursWorked(p.HoursWorked)
	c.SetHourlyRate(p.HourlyRate)
	return c
}

func (c *Claim) Status() Status               { return c.status }
func (c *Claim) HoursWorked() decimal.Decimal { return c.hoursWorked }
func (c *Claim) HourlyRate() decimal.Decimal  { return c.hourlyRate }
func (c *Claim) TotalAmount() decimal.Decimal { return c.totalAmount }
func (c *Claim) StatusBadgeClass() string     { return c.status.BadgeClass() }
func (c *Claim) FormattedPeriod() string      { return c.Period.String() }

// StoredProcessingDays is the whole-day snapshot taken on the last approval.
func (c *Claim) StoredProcessingDays() *int { return c.storedProcessingDays }

func (c *Claim) pendingHistory() []HistoryRecord { return c.history[c.persisted:] }

// SetHoursWorked changes the hours and recalculates the total.
func (c *Claim) SetHoursWorked(h decimal.Decimal) {
	c.hoursWorked = h
	c.RecalculateTotal()
}

// SetHourlyRate changes the rate and recalculates the total.
func (c *Claim) SetHourlyRate(r decimal.Decimal) {
	c.hourlyRate = r
	c.RecalculateTotal()
}

// RecalculateTotal sets total = hours × rate.
func (c *Claim) RecalculateTotal() {
	c.totalAmount = c.hoursWorked.Mul(c.hourlyRate)
}

// History returns a copy of the status history in insertion order.
func (c *Claim) History() []HistoryRecord {
	out := make([]HistoryRecord, len(c.history))
	copy(out, c.history)
	return out
}

// Scope restricts which claims a caller may load. Empty fields do not restrict.
type Scope struct {
	LecturerID string
	Department string
}

// Filters drive the claim list queries.
type Filters struct {
	Scope
	Status    Status
	Period    Period
	Lecturer  string
	Page      int
	PageSize  int
	SortKey   string
	SortOrder string
}

// Summary is the dashboard projection for a scope.
type Summary struct {
	Counts         map[Status]int
	Total          int
	ApprovedSince  time.Time
	ApprovedCount  int
	ApprovedAmount decimal.Decimal
}
