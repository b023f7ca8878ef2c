package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestMigrations_Ordered(t *testing.T) {
	names, err := Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	want := []string{"001_users.sql", "002_claims.sql", "003_outbox.sql", "004_actor_names.sql"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestMigrate_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if _, err := Migrate(ctx, pool); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	again, err := Migrate(ctx, pool)
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected second run to apply nothing, applied %v", again)
	}

	// A full name is two 50 character parts joined by a space.
	rows, err := pool.Query(ctx, `SELECT table_name, column_name, character_maximum_length
		FROM information_schema.columns
		WHERE (table_name, column_name) IN (
			('claims', 'approved_by'), ('claims', 'reviewed_by'),
			('claim_status_history', 'changed_by'), ('supporting_documents', 'uploaded_by'))`)
	if err != nil {
		t.Fatalf("query column widths: %v", err)
	}
	defer rows.Close()
	seen := 0
	for rows.Next() {
		var table, column string
		var width int
		if err := rows.Scan(&table, &column, &width); err != nil {
			t.Fatalf("scan column width: %v", err)
		}
		if width < 101 {
			t.Fatalf("%s.%s holds %d characters, too narrow for a full name", table, column, width)
		}
		seen++
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("column widths: %v", err)
	}
	if seen != 4 {
		t.Fatalf("expected 4 actor name columns, found %d", seen)
	}
}

func TestMigrations_ActorNamesFitFullName(t *testing.T) {
	body, err := migrationFS.ReadFile("migrations/004_actor_names.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, column := range []string{"approved_by", "reviewed_by", "changed_by", "uploaded_by"} {
		if !strings.Contains(string(body), "COLUMN "+column+" TYPE varchar(101)") {
			t.Fatalf("expected %s to be widened to varchar(101)", column)
		}
	}
}
