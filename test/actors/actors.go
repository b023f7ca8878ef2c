package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"claimflow/claim"
)

// ClaimIDs is the shared set of claims the reviewers race over.
type ClaimIDs struct {
	mu  sync.Mutex
	ids []string
}

func (c *ClaimIDs) Add(id string) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

// Pick returns a random known claim id, or "" while none exist.
func (c *ClaimIDs) Pick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return ""
	}
	return c.ids[rand.Intn(len(c.ids))]
}

// Sample returns up to n random known claim ids.
func (c *ClaimIDs) Sample(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, n)
	for i := 0; i < n && len(c.ids) > 0; i++ {
		out = append(out, c.ids[rand.Intn(len(c.ids))])
	}
	return out
}

// fatal reports errors that mean an actor built a bad request. Contention
// errors and connection loss from chaos are tolerated.
func fatal(err error) bool {
	return errors.Is(err, claim.ErrInvalidInput)
}

// Submitter keeps submitting claims for one lecturer.
func Submitter(ctx context.Context, svc *claim.Service, lecturerID string, ids *ClaimIDs, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		hours := decimal.New(int64(1+rand.Intn(1600)), -1)  // 0.1 .. 160.0
		rate := decimal.New(int64(5000+rand.Intn(95000)), -2) // 50.00 .. 999.99
		c, err := svc.Submit(ctx, claim.SubmitParams{
			LecturerID:  lecturerID,
			Period:      claim.PeriodOf(time.Now()),
			HoursWorked: hours,
			HourlyRate:  rate,
		})
		if err == nil {
			ids.Add(c.ID)
		}
		time.Sleep(time.Duration(20+rand.Intn(30)) * time.Millisecond)
	}
}

// Reviewer drives random transitions through the service so that several
// reviewers contend on the same claims.
func Reviewer(ctx context.Context, svc *claim.Service, actor claim.Actor, ids *ClaimIDs, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		id := ids.Pick()
		if id == "" {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		req := claim.TransitionRequest{ClaimID: id, Actor: actor, Notes: fmt.Sprintf("stress %d", rand.Intn(1000))}

		var err error
		switch rand.Intn(5) {
		case 0:
			_, err = svc.SendForReview(ctx, req)
		case 1:
			_, err = svc.Approve(ctx, req)
		case 2:
			_, err = svc.Reject(ctx, req)
		case 3:
			_, err = svc.RequestInformation(ctx, req)
		default:
			_, err = svc.UpdateStatus(ctx, req, claim.StatusPaid)
		}
		if fatal(err) {
			return fmt.Errorf("reviewer %s on %s: %w", actor.ID, id, err)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// BulkApprover approves random batches, some ids repeated within a batch.
func BulkApprover(ctx context.Context, svc *claim.Service, actor claim.Actor, ids *ClaimIDs, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		batch := ids.Sample(1 + rand.Intn(8))
		if len(batch) > 0 {
			for _, o := range svc.BulkApprove(ctx, batch, claim.Scope{}, actor, "bulk") {
				if fatal(o.Err) {
					return fmt.Errorf("bulk approve %s: %w", o.ClaimID, o.Err)
				}
			}
		}
		time.Sleep(time.Duration(100+rand.Intn(100)) * time.Millisecond)
	}
}

// OutboxWorker consumes pending outbox messages with SKIP LOCKED and marks processed after random failures.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' AND topic=$1 ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`, claim.OutboxTopicStatusChanged)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, last_attempt=NOW() WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed', last_attempt=NOW() WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}

// HistoryTamperer tries to rewrite history rows, which the trigger must refuse.
func HistoryTamperer(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tag, err := pool.Exec(ctx, `UPDATE claim_status_history SET change_notes='tampered'
		                            WHERE id = (SELECT id FROM claim_status_history ORDER BY random() LIMIT 1)`)
		if err == nil && tag.RowsAffected() > 0 {
			return errors.New("history row was updated")
		}
		time.Sleep(time.Duration(150+rand.Intn(100)) * time.Millisecond)
	}
}
