package claim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	minHours = decimal.RequireFromString("0.1")
	maxHours = decimal.NewFromInt(200)
	minRate  = decimal.NewFromInt(50)
	maxRate  = decimal.NewFromInt(1000)
)

const (
	maxAdditionalNotes = 1000
	maxReviewNotes     = 500

	defaultMaxAttempts     = 3
	defaultBulkConcurrency = 4

	// RequestInformationPrefix is prepended to the reviewer's message.
	RequestInformationPrefix = "Additional information requested: "
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service is the calling layer around the lifecycle: it loads claims under a
// scope, rejects redundant or disallowed transitions, and persists each
// transition atomically.
type Service struct {
	pool            TxBeginner
	repo            Repository
	logger          *slog.Logger
	now             func() time.Time
	idGenerator     func() string
	maxAttempts     int
	bulkConcurrency int
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:            pool,
		repo:            repo,
		logger:          slog.Default(),
		now:             time.Now,
		idGenerator:     func() string { return uuid.NewString() },
		maxAttempts:     defaultMaxAttempts,
		bulkConcurrency: defaultBulkConcurrency,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithRetry sets how many times a conflicting transition is reloaded and
// re-applied, and how many bulk transitions run at once.
func (s *Service) WithRetry(maxAttempts, bulkConcurrency int) *Service {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if bulkConcurrency > 0 {
		s.bulkConcurrency = bulkConcurrency
	}
	return s
}

// SubmitParams carries a lecturer's new claim.
type SubmitParams struct {
	LecturerID      string
	Period          Period
	HoursWorked     decimal.Decimal
	HourlyRate      decimal.Decimal
	AdditionalNotes string
}

func (p SubmitParams) validate() error {
	if p.LecturerID == "" {
		return fmt.Errorf("%w: lecturer id required", ErrInvalidInput)
	}
	if p.Period.IsZero() {
		return fmt.Errorf("%w: period required", ErrInvalidInput)
	}
	if p.HoursWorked.LessThan(minHours) || p.HoursWorked.GreaterThan(maxHours) {
		return fmt.Errorf("%w: hours worked must be between 0.1 and 200", ErrInvalidInput)
	}
	if p.HourlyRate.LessThan(minRate) || p.HourlyRate.GreaterThan(maxRate) {
		return fmt.Errorf("%w: hourly rate must be between 50 and 1000", ErrInvalidInput)
	}
	if !p.HoursWorked.Equal(p.HoursWorked.Round(2)) || !p.HourlyRate.Equal(p.HourlyRate.Round(2)) {
		return fmt.Errorf("%w: hours and rate allow at most two decimals", ErrInvalidInput)
	}
	if utf8.RuneCountInString(p.AdditionalNotes) > maxAdditionalNotes {
		return fmt.Errorf("%w: additional notes exceed %d characters", ErrInvalidInput, maxAdditionalNotes)
	}
	return nil
}

// Submit creates a Pending claim with an empty history.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (*Claim, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	c := New(NewClaimParams{
		ID:              s.idGenerator(),
		LecturerID:      params.LecturerID,
		Period:          params.Period,
		HoursWorked:     params.HoursWorked,
		HourlyRate:      params.HourlyRate,
		AdditionalNotes: strings.TrimSpace(params.AdditionalNotes),
		SubmittedAt:     s.now(),
	})

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Create(ctx, tx, c); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("claim: commit submit: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string, scope Scope) (*Claim, error) {
	return s.repo.Get(ctx, id, scope)
}

// ListResult is one page of claims plus the unpaged total.
type ListResult struct {
	Items []*Claim
	Total int
}

func (s *Service) List(ctx context.Context, filters Filters) (ListResult, error) {
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Items: items, Total: total}, nil
}

// Summary returns status counts for the scope and the approvals of the current month.
func (s *Service) Summary(ctx context.Context, scope Scope) (Summary, error) {
	return s.repo.Summarize(ctx, scope, PeriodOf(s.now().UTC()).Start())
}

// TransitionRequest asks for one claim to move to a new status.
type TransitionRequest struct {
	ClaimID string
	Scope   Scope
	Actor   Actor
	Notes   string
}

// Result is the outcome of a transition request. Redundant is set when the
// claim already had the requested status; no mutation happened then.
type Result struct {
	Claim     *Claim
	Redundant bool
}

// Approve moves the claim to Approved.
func (s *Service) Approve(ctx context.Context, req TransitionRequest) (Result, error) {
	return s.transition(ctx, req, StatusApproved, false)
}

// Reject moves the claim to Rejected. Notes are required.
func (s *Service) Reject(ctx context.Context, req TransitionRequest) (Result, error) {
	if strings.TrimSpace(req.Notes) == "" {
		return Result{}, fmt.Errorf("%w: rejection notes are required", ErrInvalidInput)
	}
	return s.transition(ctx, req, StatusRejected, false)
}

// SendForReview moves the claim to UnderReview.
func (s *Service) SendForReview(ctx context.Context, req TransitionRequest) (Result, error) {
	return s.transition(ctx, req, StatusUnderReview, false)
}

// RequestInformation moves the claim to UnderReview recording the reviewer's
// question. A claim already under review takes the question as a new history
// record instead of a redundant no-op.
func (s *Service) RequestInformation(ctx context.Context, req TransitionRequest) (Result, error) {
	msg := strings.TrimSpace(req.Notes)
	if msg == "" {
		return Result{}, fmt.Errorf("%w: information request message is required", ErrInvalidInput)
	}
	req.Notes = RequestInformationPrefix + msg
	return s.transition(ctx, req, StatusUnderReview, true)
}

// UpdateStatus moves the claim to any status the transition table allows.
func (s *Service) UpdateStatus(ctx context.Context, req TransitionRequest, to Status) (Result, error) {
	if to == StatusRejected && strings.TrimSpace(req.Notes) == "" {
		return Result{}, fmt.Errorf("%w: rejection notes are required", ErrInvalidInput)
	}
	return s.transition(ctx, req, to, false)
}

// transition applies one status change. With repeat set, a claim already at
// the target records the change again.
func (s *Service) transition(ctx context.Context, req TransitionRequest, to Status, repeat bool) (Result, error) {
	if req.ClaimID == "" {
		return Result{}, fmt.Errorf("%w: claim id required", ErrInvalidInput)
	}
	if req.Actor.IsZero() {
		return Result{}, fmt.Errorf("%w: actor required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(req.Notes) > maxReviewNotes {
		return Result{}, fmt.Errorf("%w: notes exceed %d characters", ErrInvalidInput, maxReviewNotes)
	}

	for attempt := 1; ; attempt++ {
		// A failed save leaves the aggregate with an unsaved history record,
		// so every attempt starts from a fresh load.
		c, err := s.repo.Get(ctx, req.ClaimID, req.Scope)
		if err != nil {
			return Result{}, err
		}
		switch {
		case c.Status() == to && repeat:
		case c.Status() == to:
			return Result{Claim: c, Redundant: true}, nil
		default:
			if err := CheckTransition(c.Status(), to); err != nil {
				return Result{}, err
			}
		}

		c.Transition(to, req.Notes, req.Actor, s.now())

		err = s.commit(ctx, c)
		if err == nil {
			return Result{Claim: c}, nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= s.maxAttempts {
			return Result{}, err
		}
		s.logger.Warn("claim transition conflict, retrying",
			slog.String("claim_id", req.ClaimID),
			slog.String("target", string(to)),
			slog.Int("attempt", attempt),
		)
	}
}

func (s *Service) commit(ctx context.Context, c *Claim) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("claim: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Save(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("claim: commit transition: %w", err)
	}

	c.persisted = len(c.history)
	c.Version++
	return nil
}

// BulkOutcome is the per-claim result of BulkApprove.
type BulkOutcome struct {
	ClaimID   string
	Claim     *Claim
	Redundant bool
	Err       error
}

// BulkApprove approves each claim independently; one failure never affects
// the others. Outcomes are returned in input order.
func (s *Service) BulkApprove(ctx context.Context, ids []string, scope Scope, actor Actor, notes string) []BulkOutcome {
	out := make([]BulkOutcome, len(ids))

	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.Approve(ctx, TransitionRequest{ClaimID: id, Scope: scope, Actor: actor, Notes: notes})
			out[i] = BulkOutcome{ClaimID: id, Claim: res.Claim, Redundant: res.Redundant, Err: err}
			if err != nil {
				s.logger.Error("bulk approve failed",
					slog.String("claim_id", id),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
