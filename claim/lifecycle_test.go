package claim

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestClaim(t *testing.T, hours, rate string, submitted time.Time) *Claim {
	t.Helper()
	return New(NewClaimParams{
		ID:          "claim-1",
		LecturerID:  "lecturer-1",
		Period:      Period{Year: 2025, Month: time.March},
		HoursWorked: decimal.RequireFromString(hours),
		HourlyRate:  decimal.RequireFromString(rate),
		SubmittedAt: submitted,
	})
}

func TestClaim_EndToEndScenario(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := newTestClaim(t, "40", "150", submitted)

	if !c.TotalAmount().Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("expected total 6000, got %s", c.TotalAmount())
	}
	if c.Status() != StatusPending {
		t.Fatalf("expected Pending, got %s", c.Status())
	}
	if len(c.History()) != 0 {
		t.Fatalf("expected empty history, got %d", len(c.History()))
	}
	if c.ApprovalDate() != nil {
		t.Fatalf("expected no approval date on a new claim")
	}

	first := submitted.Add(50 * time.Hour)
	c.Transition(StatusApproved, "ok", Actor{ID: "u-1", Name: "mgr1"}, first)

	if c.Status() != StatusApproved {
		t.Fatalf("expected Approved, got %s", c.Status())
	}
	if at := c.ApprovalDate(); at == nil || !at.Equal(first) {
		t.Fatalf("expected approval date %v, got %v", first, at)
	}
	if c.ApprovedBy() != "mgr1" {
		t.Fatalf("expected approvedBy mgr1, got %q", c.ApprovedBy())
	}
	if days := c.StoredProcessingDays(); days == nil || *days != 2 {
		t.Fatalf("expected stored processing days 2, got %v", days)
	}
	hist := c.History()
	if len(hist) != 1 {
		t.Fatalf("expected 1 history record, got %d", len(hist))
	}
	want := HistoryRecord{OldStatus: StatusPending, NewStatus: StatusApproved, ChangedBy: "mgr1", Notes: "ok"}
	if hist[0].OldStatus != want.OldStatus || hist[0].NewStatus != want.NewStatus || hist[0].ChangedBy != want.ChangedBy || hist[0].Notes != want.Notes {
		t.Fatalf("unexpected first record: %+v", hist[0])
	}
	firstRecord := hist[0]

	second := first.Add(time.Minute)
	c.Transition(StatusRejected, "reconsidered", Actor{ID: "u-2", Name: "mgr2"}, second)

	if c.Status() != StatusRejected {
		t.Fatalf("expected Rejected, got %s", c.Status())
	}
	if at := c.ApprovalDate(); at == nil || !at.Equal(second) {
		t.Fatalf("expected approval date moved to %v, got %v", second, at)
	}
	hist = c.History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(hist))
	}
	if hist[0] != firstRecord {
		t.Fatalf("first record changed: %+v vs %+v", hist[0], firstRecord)
	}
	if hist[1].OldStatus != StatusApproved || hist[1].NewStatus != StatusRejected {
		t.Fatalf("unexpected second record: %s", hist[1].StatusChange())
	}
}

func TestClaim_AmountInvariant(t *testing.T) {
	cases := []struct {
		hours, rate, want string
	}{
		{"40", "150", "6000"},
		{"0.1", "50", "5"},
		{"12.75", "333.33", "4249.9575"},
		{"200", "1000", "200000"},
		{"0.3", "99.99", "29.997"},
	}
	for _, tc := range cases {
		c := newTestClaim(t, "1", "50", time.Now())
		c.SetHoursWorked(decimal.RequireFromString(tc.hours))
		c.SetHourlyRate(decimal.RequireFromString(tc.rate))
		if !c.TotalAmount().Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("%s x %s: expected %s, got %s", tc.hours, tc.rate, tc.want, c.TotalAmount())
		}
		if !c.TotalAmount().Equal(c.HoursWorked().Mul(c.HourlyRate())) {
			t.Errorf("total drifted from hours x rate")
		}
	}
}

func TestClaim_HistoryAppendOnly(t *testing.T) {
	c := newTestClaim(t, "10", "100", time.Now())
	seq := []Status{StatusUnderReview, StatusPending, StatusApproved, StatusPaid, StatusRejected, StatusPending}
	at := time.Now()
	for i, st := range seq {
		c.Transition(st, "", SystemActor, at.Add(time.Duration(i)*time.Second))
	}

	hist := c.History()
	if len(hist) != len(seq) {
		t.Fatalf("expected %d records, got %d", len(seq), len(hist))
	}
	prev := StatusPending
	for i, rec := range hist {
		if rec.OldStatus != prev || rec.NewStatus != seq[i] {
			t.Fatalf("record %d: expected %s -> %s, got %s", i, prev, seq[i], rec.StatusChange())
		}
		prev = rec.NewStatus
	}

	hist[0].Notes = "tampered"
	if c.History()[0].Notes == "tampered" {
		t.Fatalf("History must return a copy")
	}
}

func TestClaim_ApprovalDateFollowsLastTransition(t *testing.T) {
	c := newTestClaim(t, "10", "100", time.Now())
	at := time.Now()

	steps := []struct {
		to      Status
		wantSet bool
	}{
		{StatusUnderReview, false},
		{StatusApproved, true},
		{StatusPending, false},
		{StatusRejected, true},
		{StatusUnderReview, false},
		{StatusApproved, true},
		{StatusPaid, false},
	}
	for i, step := range steps {
		c.Transition(step.to, "n", Actor{Name: "rev"}, at.Add(time.Duration(i)*time.Minute))
		if got := c.ApprovalDate() != nil; got != step.wantSet {
			t.Fatalf("after %s: approval date set=%v, want %v", step.to, got, step.wantSet)
		}
		if _, ok := c.ProcessingTime(); ok != step.wantSet {
			t.Fatalf("after %s: processing time ok=%v, want %v", step.to, ok, step.wantSet)
		}
	}
}

func TestClaim_SameStatusTransitionIsRecorded(t *testing.T) {
	c := newTestClaim(t, "10", "100", time.Now())
	actor := Actor{ID: "u-1", Name: "mgr1"}
	c.Transition(StatusApproved, "first", actor, time.Now())
	c.Transition(StatusApproved, "again", actor, time.Now())

	hist := c.History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 records, got %d", len(hist))
	}
	if hist[1].OldStatus != StatusApproved || hist[1].NewStatus != StatusApproved {
		t.Fatalf("expected Approved -> Approved, got %s", hist[1].StatusChange())
	}
}

func TestClaim_ZeroActorRecordedAsSystem(t *testing.T) {
	c := newTestClaim(t, "10", "100", time.Now())
	c.Transition(StatusUnderReview, "", Actor{}, time.Now())
	if c.ReviewedBy() != "System" {
		t.Fatalf("expected reviewer System, got %q", c.ReviewedBy())
	}

	c.Transition(StatusApproved, "auto", Actor{}, time.Now())
	if c.ApprovedBy() != "System" {
		t.Fatalf("expected approver System, got %q", c.ApprovedBy())
	}
	for _, rec := range c.History() {
		if rec.ChangedBy == "" || rec.ChangedByID != SystemActor.ID {
			t.Fatalf("expected system actor on %s, got %q/%q", rec.StatusChange(), rec.ChangedByID, rec.ChangedBy)
		}
	}
}

func TestClaim_MirroredFieldsTrackLastRecord(t *testing.T) {
	c := newTestClaim(t, "10", "100", time.Now())
	if c.ReviewedBy() != "" || c.LastStatusUpdate() != nil {
		t.Fatalf("expected empty review projection on new claim")
	}

	at := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	c.Transition(StatusUnderReview, "check hours", Actor{ID: "coord-7"}, at)
	if c.ReviewedBy() != "coord-7" {
		t.Fatalf("expected reviewer to fall back to actor id, got %q", c.ReviewedBy())
	}
	if c.ReviewNotes() != "check hours" {
		t.Fatalf("unexpected review notes %q", c.ReviewNotes())
	}
	if got := c.LastStatusUpdate(); got == nil || !got.Equal(at) {
		t.Fatalf("unexpected last status update %v", got)
	}
	if c.ApprovedBy() != "" || c.ApprovalNotes() != "" {
		t.Fatalf("approval projection must be empty after UnderReview")
	}
}

func TestClaim_ProcessingDays(t *testing.T) {
	submitted := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClaim(t, "10", "100", submitted)
	if _, ok := c.ProcessingDays(); ok {
		t.Fatalf("expected no processing days before resolution")
	}
	c.Transition(StatusRejected, "no", SystemActor, submitted.Add(36*time.Hour))
	days, ok := c.ProcessingDays()
	if !ok || days != 1.5 {
		t.Fatalf("expected 1.5 days, got %v (ok=%v)", days, ok)
	}
	if c.StoredProcessingDays() != nil {
		t.Fatalf("stored processing days only snapshot on approval")
	}
}

func TestCheckTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected},
		StatusUnderReview: {StatusApproved, StatusRejected, StatusPending},
		StatusApproved:    {StatusPaid},
	}
	for _, from := range Statuses {
		for _, to := range Statuses {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			err := CheckTransition(from, to)
			if want && err != nil {
				t.Errorf("%s -> %s: unexpected error %v", from, to, err)
			}
			if !want {
				var te *TransitionError
				if !errors.As(err, &te) || !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("%s -> %s: expected TransitionError, got %v", from, to, err)
				}
			}
		}
	}
}
