package claim

import (
	"errors"
	"testing"
	"time"
)

func TestStatus_BadgeClass(t *testing.T) {
	cases := map[Status]string{
		StatusPending:     "bg-warning",
		StatusUnderReview: "bg-info",
		StatusApproved:    "bg-success",
		StatusRejected:    "bg-danger",
		StatusPaid:        "bg-primary",
		Status("Archived"): "bg-secondary",
		Status(""):         "bg-secondary",
	}
	for st, want := range cases {
		if got := st.BadgeClass(); got != want {
			t.Errorf("%q: expected %s, got %s", st, want, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Pending":      StatusPending,
		"approved":     StatusApproved,
		"UNDER_REVIEW": StatusUnderReview,
		"underreview":  StatusUnderReview,
		" paid ":       StatusPaid,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}

	if _, err := ParseStatus("archived"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-03")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Year != 2025 || p.Month != time.March {
		t.Fatalf("unexpected period %+v", p)
	}
	if p.Key() != "2025-03" {
		t.Fatalf("unexpected key %s", p.Key())
	}
	if p.String() != "March 2025" {
		t.Fatalf("unexpected display %s", p.String())
	}
	if !p.Start().Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %v", p.Start())
	}

	for _, bad := range []string{"", "2025", "2025-13", "2025-00", "abcd-01", "03-2025x"} {
		if _, err := ParsePeriod(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestHistoryRecord_TimeAgo(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		age  time.Duration
		want string
	}{
		{10 * time.Second, "Just now"},
		{30 * time.Minute, "30m ago"},
		{5 * time.Hour, "5h ago"},
		{48 * time.Hour, "2d ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
	}
	for _, tc := range cases {
		rec := HistoryRecord{ChangedAt: now.Add(-tc.age)}
		if got := rec.TimeAgo(now); got != tc.want {
			t.Errorf("%v: expected %q, got %q", tc.age, tc.want, got)
		}
	}
}

func TestHistoryRecord_StatusChange(t *testing.T) {
	rec := HistoryRecord{OldStatus: StatusPending, NewStatus: StatusApproved}
	if got := rec.StatusChange(); got != "Pending → Approved" {
		t.Fatalf("unexpected status change %q", got)
	}
}

func TestActor_Display(t *testing.T) {
	if got := (Actor{ID: "u-1"}).Display(); got != "u-1" {
		t.Fatalf("expected id fallback, got %q", got)
	}
	if got := (Actor{ID: "u-1", Name: "Ada"}).Display(); got != "Ada" {
		t.Fatalf("expected name, got %q", got)
	}
	if !(Actor{}).IsZero() || SystemActor.IsZero() {
		t.Fatalf("unexpected IsZero result")
	}
}
