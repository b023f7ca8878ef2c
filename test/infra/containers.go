package infra

import (
	"context"
	"fmt"
	"os"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// Workload describes the claim lifecycle stress run the database must carry.
type Workload struct {
	Reviewers int
	Lecturers int
}

// Connections is the pool size the run needs: one connection per reviewer and
// submitter, plus the bulk approver, outbox worker, history tamperer and
// oracle checks. The remainder absorbs backends the chaos actor terminates.
func (w Workload) Connections() int {
	return w.Reviewers + w.Lecturers + 8
}

// serverConnections leaves room for the migration and teardown connections
// opened next to the pool.
func (w Workload) serverConnections() int {
	return 2*w.Connections() + 10
}

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 starts a Postgres 16 container sized for w and returns a DSN.
// If overrideDSN or STRESS_TEST_PG_DSN is set, it reuses that database.
func StartPostgres16(ctx context.Context, overrideDSN string, w Workload) (*PGContainer, string, error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, nil
	}
	if dsn := os.Getenv("STRESS_TEST_PG_DSN"); dsn != "" {
		return &PGContainer{}, dsn, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16",
		postgres.WithDatabase("claimflow"),
		postgres.WithUsername("claimflow"),
		postgres.WithPassword("claimflow"),
		testcontainers.WithCmd("postgres",
			"-c", "fsync=off",
			"-c", fmt.Sprintf("max_connections=%d", w.serverConnections()),
		),
	)
	if err != nil {
		return nil, "", err
	}

	dsn, err := pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", err
	}
	return &PGContainer{C: pgC}, dsn, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}
