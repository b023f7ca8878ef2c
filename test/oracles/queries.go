package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_version_matches_history",
			SQL: `SELECT c.id, c.version, COUNT(h.id) FROM claims c
                  LEFT JOIN claim_status_history h ON h.claim_id = c.id
                  GROUP BY c.id, c.version HAVING c.version <> COUNT(h.id)`,
		},
		{
			Name: "O2_status_is_last_history",
			SQL: `SELECT c.id, c.status, h.new_status FROM claims c
                  JOIN LATERAL (
                      SELECT new_status FROM claim_status_history
                      WHERE claim_id = c.id ORDER BY seq DESC LIMIT 1) h ON true
                  WHERE h.new_status <> c.status`,
		},
		{
			Name: "O3_history_chain",
			SQL: `WITH chain AS (
                      SELECT claim_id, seq, old_status,
                             LAG(new_status) OVER (PARTITION BY claim_id ORDER BY seq) AS prev,
                             ROW_NUMBER() OVER (PARTITION BY claim_id ORDER BY seq) AS rn
                      FROM claim_status_history)
                  SELECT * FROM chain
                  WHERE seq <> rn
                     OR (prev IS NULL AND old_status <> 'Pending')
                     OR (prev IS NOT NULL AND old_status <> prev)`,
		},
		{
			Name: "O4_approval_date_from_last_record",
			SQL: `SELECT c.id, c.status, c.approval_date, h.changed_at FROM claims c
                  LEFT JOIN LATERAL (
                      SELECT changed_at FROM claim_status_history
                      WHERE claim_id = c.id ORDER BY seq DESC LIMIT 1) h ON true
                  WHERE (c.status IN ('Approved','Rejected') AND c.approval_date IS DISTINCT FROM h.changed_at)
                     OR (c.status NOT IN ('Approved','Rejected') AND c.approval_date IS NOT NULL)`,
		},
		{
			Name: "O5_total_amount",
			SQL:  `SELECT id, hours_worked, hourly_rate, total_amount FROM claims WHERE total_amount <> hours_worked * hourly_rate`,
		},
		{
			Name: "O6_terminal_states",
			SQL: `SELECT h.* FROM claim_status_history h
                  WHERE h.old_status IN ('Rejected','Paid')
                     OR (h.new_status = 'Paid' AND h.old_status <> 'Approved')`,
		},
		{
			Name: "O7_outbox_per_transition",
			SQL: `SELECT c.id FROM claims c
                  WHERE c.version <> (SELECT COUNT(*) FROM outbox o WHERE (o.payload->>'claim_id')::uuid = c.id)`,
		},
		{
			Name: "O8_history_worm_trigger",
			SQL: `SELECT 'missing_history_worm_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname='claim_status_history_no_update')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
