package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"claimflow/document"
)

// OutboxTopicStatusChanged is enqueued with every saved transition.
const OutboxTopicStatusChanged = "claim.status_changed"

// Repository is the persistence collaborator of the lifecycle.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, c *Claim) error
	Get(ctx context.Context, id string, scope Scope) (*Claim, error)
	Save(ctx context.Context, tx pgx.Tx, c *Claim) error
	List(ctx context.Context, filters Filters) ([]*Claim, int, error)
	Summarize(ctx context.Context, scope Scope, since time.Time) (Summary, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const claimColumns = `
	c.id::text, c.lecturer_id::text, u.first_name, u.last_name, u.email, COALESCE(u.department, ''),
	c.period, c.hours_worked::text, c.hourly_rate::text, COALESCE(c.additional_notes, ''),
	c.status, c.submitted_at, c.stored_processing_days, c.version`

// Create inserts a new claim row. The claim must have an empty history.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, c *Claim) error {
	if len(c.history) != 0 {
		return fmt.Errorf("claim: create with non-empty history")
	}

	const insertSQL = `
		INSERT INTO claims (id, lecturer_id, period, hours_worked, hourly_rate, total_amount,
			additional_notes, status, submitted_at, version)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, 0)
	`
	if _, err := tx.Exec(ctx, insertSQL,
		c.ID,
		c.LecturerID,
		c.Period.Start(),
		c.hoursWorked.String(),
		c.hourlyRate.String(),
		c.totalAmount.String(),
		nullableString(c.AdditionalNotes),
		c.status,
		c.SubmittedAt,
	); err != nil {
		return fmt.Errorf("claim: insert: %w", err)
	}
	return nil
}

// Get loads the aggregate constrained by scope.
func (r *PGRepository) Get(ctx context.Context, id string, scope Scope) (*Claim, error) {
	claimID, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	where, args := scopeClause(scope, []any{claimID})
	query := `SELECT` + claimColumns + `
		FROM claims c
		JOIN users u ON u.id = c.lecturer_id
		WHERE c.id = $1` + where

	c, err := scanClaim(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("claim: get: %w", err)
	}

	if err := r.loadHistory(ctx, []*Claim{c}); err != nil {
		return nil, err
	}
	docs, err := r.loadDocuments(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Documents = docs
	return c, nil
}

// Save writes the claim row, its unsaved history records and an outbox
// message inside tx. The row update is guarded by the version read on load;
// a stale version yields ErrConflict.
func (r *PGRepository) Save(ctx context.Context, tx pgx.Tx, c *Claim) error {
	pending := c.pendingHistory()

	var (
		approvalDate  *time.Time
		approvedBy    any
		approvalNotes any
	)
	if rec, ok := c.approval(); ok {
		approvalDate = &rec.ChangedAt
		approvedBy = nullableString(rec.ChangedBy)
		approvalNotes = nullableString(rec.Notes)
	}

	const updateSQL = `
		UPDATE claims
		SET status = $2,
		    hours_worked = $3::numeric,
		    hourly_rate = $4::numeric,
		    total_amount = $5::numeric,
		    approval_date = $6,
		    approved_by = $7,
		    approval_notes = $8,
		    last_status_update = $9,
		    reviewed_by = $10,
		    review_notes = $11,
		    stored_processing_days = $12,
		    version = version + 1
		WHERE id = $1 AND version = $13
	`
	tag, err := tx.Exec(ctx, updateSQL,
		c.ID,
		c.status,
		c.hoursWorked.String(),
		c.hourlyRate.String(),
		c.totalAmount.String(),
		approvalDate,
		approvedBy,
		approvalNotes,
		c.LastStatusUpdate(),
		nullableString(c.ReviewedBy()),
		nullableString(c.ReviewNotes()),
		c.storedProcessingDays,
		c.Version,
	)
	if err != nil {
		return fmt.Errorf("claim: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	const historySQL = `
		INSERT INTO claim_status_history (id, claim_id, seq, old_status, new_status, changed_by_id, changed_by, change_notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for i, rec := range pending {
		if _, err := tx.Exec(ctx, historySQL,
			rec.ID,
			c.ID,
			c.persisted+i+1,
			rec.OldStatus,
			rec.NewStatus,
			nullableString(rec.ChangedByID),
			nullableString(rec.ChangedBy),
			nullableString(rec.Notes),
			rec.ChangedAt,
		); err != nil {
			return fmt.Errorf("claim: insert history: %w", err)
		}

		payload, err := json.Marshal(map[string]any{
			"claim_id":    c.ID,
			"lecturer_id": c.LecturerID,
			"previous":    rec.OldStatus,
			"next":        rec.NewStatus,
			"actor":       rec.ChangedBy,
			"changed_at":  rec.ChangedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("claim: marshal outbox payload: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2)`, OutboxTopicStatusChanged, payload); err != nil {
			return fmt.Errorf("claim: enqueue outbox: %w", err)
		}
	}

	return nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]*Claim, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	where, args := scopeClause(filters.Scope, nil)
	if filters.Status != "" {
		args = append(args, filters.Status)
		where += fmt.Sprintf(" AND c.status = $%d", len(args))
	}
	if !filters.Period.IsZero() {
		args = append(args, filters.Period.Start())
		where += fmt.Sprintf(" AND c.period = $%d", len(args))
	}
	if term := strings.TrimSpace(filters.Lecturer); term != "" {
		args = append(args, "%"+escapeLike(term)+"%")
		n := len(args)
		where += fmt.Sprintf(" AND (u.first_name ILIKE $%d OR u.last_name ILIKE $%d OR u.email ILIKE $%d)", n, n, n)
	}

	sortKey := mapSortKey(filters.SortKey)
	sortOrder := strings.ToUpper(filters.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	from := `
		FROM claims c
		JOIN users u ON u.id = c.lecturer_id
		WHERE 1=1` + where

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		claimColumns, from, sortKey, sortOrder, filters.PageSize, (filters.Page-1)*filters.PageSize)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("claim: list: %w", err)
	}
	defer rows.Close()

	claims := []*Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("claim: scan: %w", err)
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("claim: iterate: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("claim: count: %w", err)
	}

	if err := r.loadHistory(ctx, claims); err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

// Summarize counts claims per status in scope and totals approvals since the given time.
func (r *PGRepository) Summarize(ctx context.Context, scope Scope, since time.Time) (Summary, error) {
	where, args := scopeClause(scope, nil)
	from := `
		FROM claims c
		JOIN users u ON u.id = c.lecturer_id
		WHERE 1=1` + where

	rows, err := r.pool.Query(ctx, `SELECT c.status, COUNT(*)`+from+` GROUP BY c.status`, args...)
	if err != nil {
		return Summary{}, fmt.Errorf("claim: summarize counts: %w", err)
	}
	defer rows.Close()

	sum := Summary{Counts: make(map[Status]int, len(Statuses)), ApprovedSince: since}
	for _, st := range Statuses {
		sum.Counts[st] = 0
	}
	for rows.Next() {
		var (
			st Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return Summary{}, fmt.Errorf("claim: scan summary: %w", err)
		}
		sum.Counts[st] = n
		sum.Total += n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("claim: iterate summary: %w", err)
	}

	args = append(args, since)
	approvedSQL := fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(c.total_amount), 0)::text%s AND c.status = 'Approved' AND c.approval_date >= $%d`, from, len(args))
	var amount string
	if err := r.pool.QueryRow(ctx, approvedSQL, args...).Scan(&sum.ApprovedCount, &amount); err != nil {
		return Summary{}, fmt.Errorf("claim: summarize approved: %w", err)
	}
	if sum.ApprovedAmount, err = decimal.NewFromString(amount); err != nil {
		return Summary{}, fmt.Errorf("claim: parse approved amount: %w", err)
	}
	return sum, nil
}

// OwnerOf returns the lecturer that submitted the claim.
func (r *PGRepository) OwnerOf(ctx context.Context, claimID string) (string, error) {
	id, ok := parseID(claimID)
	if !ok {
		return "", ErrNotFound
	}
	var owner string
	err := r.pool.QueryRow(ctx, `SELECT lecturer_id::text FROM claims WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("claim: owner: %w", err)
	}
	return owner, nil
}

func (r *PGRepository) loadHistory(ctx context.Context, claims []*Claim) error {
	if len(claims) == 0 {
		return nil
	}
	byID := make(map[string]*Claim, len(claims))
	ids := make([]string, 0, len(claims))
	for _, c := range claims {
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	const query = `
		SELECT id::text, claim_id::text, old_status, new_status, COALESCE(changed_by_id, ''),
		       COALESCE(changed_by, ''), COALESCE(change_notes, ''), changed_at
		FROM claim_status_history
		WHERE claim_id = ANY($1::uuid[])
		ORDER BY claim_id, seq
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("claim: load history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec HistoryRecord
		if err := rows.Scan(&rec.ID, &rec.ClaimID, &rec.OldStatus, &rec.NewStatus, &rec.ChangedByID, &rec.ChangedBy, &rec.Notes, &rec.ChangedAt); err != nil {
			return fmt.Errorf("claim: scan history: %w", err)
		}
		if c, ok := byID[rec.ClaimID]; ok {
			c.history = append(c.history, rec)
			c.persisted++
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("claim: iterate history: %w", err)
	}
	return nil
}

func (r *PGRepository) loadDocuments(ctx context.Context, claimID string) ([]document.Document, error) {
	const query = `
		SELECT id::text, claim_id::text, original_file_name, file_name, file_size, content_type,
		       COALESCE(description, ''), uploaded_by, upload_date
		FROM supporting_documents
		WHERE claim_id = $1
		ORDER BY upload_date
	`
	id, ok := parseID(claimID)
	if !ok {
		return []document.Document{}, nil
	}
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("claim: load documents: %w", err)
	}
	defer rows.Close()

	docs := []document.Document{}
	for rows.Next() {
		var d document.Document
		if err := rows.Scan(&d.ID, &d.ClaimID, &d.OriginalName, &d.StoredName, &d.Size, &d.ContentType, &d.Description, &d.UploadedBy, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("claim: scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claim: iterate documents: %w", err)
	}
	return docs, nil
}

func scanClaim(row pgx.Row) (*Claim, error) {
	var (
		c      Claim
		period time.Time
		hours  string
		rate   string
	)
	if err := row.Scan(
		&c.ID,
		&c.LecturerID,
		&c.Lecturer.FirstName,
		&c.Lecturer.LastName,
		&c.Lecturer.Email,
		&c.Lecturer.Department,
		&period,
		&hours,
		&rate,
		&c.AdditionalNotes,
		&c.status,
		&c.SubmittedAt,
		&c.storedProcessingDays,
		&c.Version,
	); err != nil {
		return nil, err
	}

	h, err := decimal.NewFromString(hours)
	if err != nil {
		return nil, fmt.Errorf("claim: parse hours: %w", err)
	}
	rt, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("claim: parse rate: %w", err)
	}
	c.Lecturer.ID = c.LecturerID
	c.Period = PeriodOf(period)
	c.SetHoursWorked(h)
	c.SetHourlyRate(rt)
	return &c, nil
}

// scopeClause appends the ownership and department predicates to args.
func scopeClause(scope Scope, args []any) (string, []any) {
	var b strings.Builder
	if scope.LecturerID != "" {
		lecturerID, ok := parseID(scope.LecturerID)
		if !ok {
			// A malformed owner id can match no claim.
			b.WriteString(" AND false")
			return b.String(), args
		}
		args = append(args, lecturerID)
		fmt.Fprintf(&b, " AND c.lecturer_id = $%d", len(args))
	}
	if scope.Department != "" {
		args = append(args, scope.Department)
		fmt.Fprintf(&b, " AND u.department = $%d", len(args))
	}
	return b.String(), args
}

func mapSortKey(key string) string {
	switch key {
	case "period":
		return "c.period"
	case "totalAmount":
		return "c.total_amount"
	case "status":
		return "c.status"
	case "approvalDate":
		return "c.approval_date"
	case "lecturer":
		return "u.last_name"
	case "submittedAt":
		fallthrough
	default:
		return "c.submitted_at"
	}
}

// parseID turns an external identifier into the uuid the columns are keyed
// on. Callers treat a malformed id as an unknown one.
func parseID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	return parsed, err == nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
