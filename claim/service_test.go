package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo) (*Service, *fakePool) {
	pool := &fakePool{}
	svc := NewService(pool, repo).
		WithClock(func() time.Time { return fixedNow }).
		WithIDGenerator(func() string { return "claim-new" })
	return svc, pool
}

func TestSubmit_CreatesPendingClaim(t *testing.T) {
	repo := newFakeRepo()
	svc, pool := newTestService(repo)

	c, err := svc.Submit(context.Background(), SubmitParams{
		LecturerID:  "lecturer-1",
		Period:      Period{Year: 2025, Month: time.March},
		HoursWorked: decimal.NewFromInt(40),
		HourlyRate:  decimal.NewFromInt(150),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if c.ID != "claim-new" || c.Status() != StatusPending {
		t.Fatalf("unexpected claim %s in %s", c.ID, c.Status())
	}
	if !c.TotalAmount().Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("expected total 6000, got %s", c.TotalAmount())
	}
	if !c.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("expected submitted at %v, got %v", fixedNow, c.SubmittedAt)
	}
	if !pool.lastTx().committed {
		t.Fatalf("expected commit")
	}
	if _, ok := repo.claims["claim-new"]; !ok {
		t.Fatalf("expected claim to be stored")
	}
}

func TestSubmit_Validation(t *testing.T) {
	valid := SubmitParams{
		LecturerID:  "lecturer-1",
		Period:      Period{Year: 2025, Month: time.March},
		HoursWorked: decimal.NewFromInt(10),
		HourlyRate:  decimal.NewFromInt(100),
	}
	cases := map[string]func(p *SubmitParams){
		"missing lecturer": func(p *SubmitParams) { p.LecturerID = "" },
		"missing period":   func(p *SubmitParams) { p.Period = Period{} },
		"hours too low":    func(p *SubmitParams) { p.HoursWorked = decimal.RequireFromString("0.05") },
		"hours too high":   func(p *SubmitParams) { p.HoursWorked = decimal.RequireFromString("200.01") },
		"rate too low":     func(p *SubmitParams) { p.HourlyRate = decimal.RequireFromString("49.99") },
		"rate too high":    func(p *SubmitParams) { p.HourlyRate = decimal.NewFromInt(1001) },
		"three decimals":   func(p *SubmitParams) { p.HoursWorked = decimal.RequireFromString("10.125") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newFakeRepo()
			svc, _ := newTestService(repo)
			p := valid
			mutate(&p)
			if _, err := svc.Submit(context.Background(), p); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(repo.claims) != 0 {
				t.Fatalf("expected nothing stored")
			}
		})
	}
}

func TestApprove_Success(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(pendingClaim("c-1"))
	svc, pool := newTestService(repo)

	res, err := svc.Approve(context.Background(), TransitionRequest{
		ClaimID: "c-1",
		Actor:   Actor{ID: "u-9", Name: "mgr1"},
		Notes:   "ok",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Redundant {
		t.Fatalf("expected a real transition")
	}
	if res.Claim.Status() != StatusApproved || res.Claim.ApprovedBy() != "mgr1" {
		t.Fatalf("unexpected claim state %s by %q", res.Claim.Status(), res.Claim.ApprovedBy())
	}
	if !pool.lastTx().committed {
		t.Fatalf("expected commit")
	}

	stored := repo.claims["c-1"]
	if stored.Version != 1 || len(stored.history) != 1 {
		t.Fatalf("expected version 1 with one record, got v%d with %d", stored.Version, len(stored.history))
	}
	if res.Claim.Version != 1 || len(res.Claim.pendingHistory()) != 0 {
		t.Fatalf("expected returned claim to be marked saved")
	}
}

func TestApprove_RedundantIsNoop(t *testing.T) {
	repo := newFakeRepo()
	c := pendingClaim("c-1")
	c.Transition(StatusApproved, "ok", Actor{Name: "mgr1"}, fixedNow)
	c.persisted = 1
	repo.seed(c)
	svc, pool := newTestService(repo)

	res, err := svc.Approve(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: Actor{Name: "mgr2"}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !res.Redundant {
		t.Fatalf("expected redundant result")
	}
	if len(pool.txs) != 0 {
		t.Fatalf("expected no transaction for a redundant request")
	}
	if got := len(repo.claims["c-1"].history); got != 1 {
		t.Fatalf("expected history untouched, got %d records", got)
	}
}

func TestTransition_Errors(t *testing.T) {
	rejected := pendingClaim("c-rej")
	rejected.Transition(StatusRejected, "no", SystemActor, fixedNow)
	rejected.persisted = 1

	cases := []struct {
		name string
		call func(*Service) error
		want error
	}{
		{
			name: "not found",
			call: func(s *Service) error {
				_, err := s.Approve(context.Background(), TransitionRequest{ClaimID: "missing", Actor: SystemActor})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "out of scope",
			call: func(s *Service) error {
				_, err := s.Approve(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: SystemActor, Scope: Scope{LecturerID: "someone-else"}})
				return err
			},
			want: ErrNotFound,
		},
		{
			name: "reject without notes",
			call: func(s *Service) error {
				_, err := s.Reject(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: SystemActor, Notes: "  "})
				return err
			},
			want: ErrInvalidInput,
		},
		{
			name: "missing actor",
			call: func(s *Service) error {
				_, err := s.Approve(context.Background(), TransitionRequest{ClaimID: "c-1"})
				return err
			},
			want: ErrInvalidInput,
		},
		{
			name: "rejected is terminal",
			call: func(s *Service) error {
				_, err := s.Approve(context.Background(), TransitionRequest{ClaimID: "c-rej", Actor: SystemActor})
				return err
			},
			want: ErrInvalidTransition,
		},
		{
			name: "paid requires approval",
			call: func(s *Service) error {
				_, err := s.UpdateStatus(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: SystemActor}, StatusPaid)
				return err
			},
			want: ErrInvalidTransition,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			repo.seed(pendingClaim("c-1"))
			repo.seed(rejected.clone())
			svc, _ := newTestService(repo)

			if err := tc.call(svc); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := len(repo.claims["c-1"].history); got != 0 {
				t.Fatalf("expected no history change, got %d records", got)
			}
		})
	}
}

func TestRequestInformation_PrefixesMessage(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(pendingClaim("c-1"))
	svc, _ := newTestService(repo)

	res, err := svc.RequestInformation(context.Background(), TransitionRequest{
		ClaimID: "c-1",
		Actor:   Actor{ID: "coord-1", Name: "Coordinator"},
		Notes:   "attach the timesheet",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Claim.Status() != StatusUnderReview {
		t.Fatalf("expected UnderReview, got %s", res.Claim.Status())
	}
	if want := "Additional information requested: attach the timesheet"; res.Claim.ReviewNotes() != want {
		t.Fatalf("expected %q, got %q", want, res.Claim.ReviewNotes())
	}
}

func TestRequestInformation_OnClaimUnderReviewRecordsQuestion(t *testing.T) {
	c := pendingClaim("c-1")
	c.Transition(StatusUnderReview, "first look", Actor{Name: "coord1"}, fixedNow)
	c.persisted = len(c.history)
	repo := newFakeRepo()
	repo.seed(c)
	svc, pool := newTestService(repo)

	res, err := svc.RequestInformation(context.Background(), TransitionRequest{
		ClaimID: "c-1",
		Actor:   Actor{ID: "coord-1", Name: "Coordinator"},
		Notes:   "attach the timesheet",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Redundant {
		t.Fatal("information request on a claim under review must not be redundant")
	}
	if got := len(res.Claim.History()); got != 2 {
		t.Fatalf("expected 2 history records, got %d", got)
	}
	if want := "Additional information requested: attach the timesheet"; res.Claim.ReviewNotes() != want {
		t.Fatalf("expected %q, got %q", want, res.Claim.ReviewNotes())
	}
	if res.Claim.Version != 1 {
		t.Fatalf("expected version 1, got %d", res.Claim.Version)
	}
	if !pool.lastTx().committed {
		t.Fatal("expected the question to be committed")
	}
}

func TestRequestInformation_RespectsTransitionTable(t *testing.T) {
	c := pendingClaim("c-1")
	c.Transition(StatusApproved, "ok", Actor{Name: "mgr1"}, fixedNow)
	c.persisted = len(c.history)
	repo := newFakeRepo()
	repo.seed(c)
	svc, _ := newTestService(repo)

	_, err := svc.RequestInformation(context.Background(), TransitionRequest{
		ClaimID: "c-1",
		Actor:   Actor{Name: "coord1"},
		Notes:   "why?",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSendForReview_AlreadyUnderReviewIsRedundant(t *testing.T) {
	c := pendingClaim("c-1")
	c.Transition(StatusUnderReview, "first look", Actor{Name: "coord1"}, fixedNow)
	c.persisted = len(c.history)
	repo := newFakeRepo()
	repo.seed(c)
	svc, _ := newTestService(repo)

	res, err := svc.SendForReview(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: Actor{Name: "coord1"}})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !res.Redundant || len(res.Claim.History()) != 1 {
		t.Fatalf("expected redundant no-op, got redundant=%v history=%d", res.Redundant, len(res.Claim.History()))
	}
}

func TestTransition_RetriesOnConflict(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(pendingClaim("c-1"))
	// A concurrent reviewer moves the claim to UnderReview between our load and save.
	repo.interleave = func(stored *Claim) {
		stored.Transition(StatusUnderReview, "looking", Actor{Name: "other"}, fixedNow)
		stored.persisted = len(stored.history)
		stored.Version++
	}
	repo.conflicts = 1
	svc, pool := newTestService(repo)

	res, err := svc.Approve(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: Actor{Name: "mgr1"}, Notes: "ok"})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(pool.txs) != 2 {
		t.Fatalf("expected two attempts, got %d", len(pool.txs))
	}

	hist := repo.claims["c-1"].History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(hist))
	}
	if hist[1].OldStatus != StatusUnderReview || hist[1].NewStatus != StatusApproved {
		t.Fatalf("expected retry to apply on the reloaded state, got %s", hist[1].StatusChange())
	}
	if res.Claim.Version != 2 {
		t.Fatalf("expected version 2, got %d", res.Claim.Version)
	}
}

func TestTransition_ConflictExhaustsAttempts(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(pendingClaim("c-1"))
	repo.conflicts = 10
	svc, pool := newTestService(repo)
	svc.WithRetry(2, 0)

	_, err := svc.SendForReview(context.Background(), TransitionRequest{ClaimID: "c-1", Actor: SystemActor})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(pool.txs) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(pool.txs))
	}
	for _, tx := range pool.txs {
		if tx.committed || !tx.rolled {
			t.Fatalf("expected every conflicting attempt to roll back")
		}
	}
}

func TestBulkApprove_IndependentOutcomes(t *testing.T) {
	repo := newFakeRepo()
	repo.seed(pendingClaim("c-1"))
	rejected := pendingClaim("c-2")
	rejected.Transition(StatusRejected, "no", SystemActor, fixedNow)
	rejected.persisted = 1
	repo.seed(rejected)
	repo.seed(pendingClaim("c-3"))
	svc, _ := newTestService(repo)

	ids := []string{"c-1", "c-2", "missing", "c-3"}
	out := svc.BulkApprove(context.Background(), ids, Scope{}, Actor{Name: "mgr1"}, "batch")
	if len(out) != len(ids) {
		t.Fatalf("expected %d outcomes, got %d", len(ids), len(out))
	}
	for i, o := range out {
		if o.ClaimID != ids[i] {
			t.Fatalf("outcome %d out of order: %s", i, o.ClaimID)
		}
	}
	if out[0].Err != nil || out[3].Err != nil {
		t.Fatalf("expected c-1 and c-3 to succeed: %v, %v", out[0].Err, out[3].Err)
	}
	if !errors.Is(out[1].Err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for c-2, got %v", out[1].Err)
	}
	if !errors.Is(out[2].Err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", out[2].Err)
	}
	if repo.claims["c-1"].Status() != StatusApproved || repo.claims["c-3"].Status() != StatusApproved {
		t.Fatalf("expected both pending claims approved")
	}
}

func pendingClaim(id string) *Claim {
	return New(NewClaimParams{
		ID:          id,
		LecturerID:  "lecturer-1",
		Period:      Period{Year: 2025, Month: time.March},
		HoursWorked: decimal.NewFromInt(10),
		HourlyRate:  decimal.NewFromInt(100),
		SubmittedAt: fixedNow.Add(-48 * time.Hour),
	})
}

func (c *Claim) clone() *Claim {
	cp := *c
	cp.history = c.History()
	return &cp
}

type fakeRepo struct {
	mu     sync.Mutex
	claims map[string]*Claim
	// conflicts is the number of Save calls that fail with ErrConflict.
	conflicts  int
	interleave func(stored *Claim)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{claims: map[string]*Claim{}}
}

func (f *fakeRepo) seed(c *Claim) {
	f.claims[c.ID] = c
}

func (f *fakeRepo) Create(ctx context.Context, tx pgx.Tx, c *Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[c.ID]; ok {
		return fmt.Errorf("duplicate claim %s", c.ID)
	}
	f.claims[c.ID] = c.clone()
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, id string, scope Scope) (*Claim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.claims[id]
	if !ok || (scope.LecturerID != "" && scope.LecturerID != c.LecturerID) {
		return nil, ErrNotFound
	}
	return c.clone(), nil
}

func (f *fakeRepo) Save(ctx context.Context, tx pgx.Tx, c *Claim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.claims[c.ID]
	if !ok {
		return ErrNotFound
	}
	if f.conflicts > 0 {
		f.conflicts--
		if f.interleave != nil {
			f.interleave(stored)
		}
		return ErrConflict
	}
	if stored.Version != c.Version {
		return ErrConflict
	}
	saved := c.clone()
	saved.persisted = len(saved.history)
	saved.Version++
	f.claims[c.ID] = saved
	return nil
}

func (f *fakeRepo) List(ctx context.Context, filters Filters) ([]*Claim, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Summarize(ctx context.Context, scope Scope, since time.Time) (Summary, error) {
	return Summary{}, nil
}

type fakePool struct {
	mu  sync.Mutex
	txs []*fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := &fakeTx{}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakePool) lastTx() *fakeTx {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.txs) == 0 {
		return &fakeTx{}
	}
	return f.txs[len(f.txs)-1]
}

type fakeTx struct {
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolled = true
	}
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
