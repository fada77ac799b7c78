package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCapturesChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "scans_pkey",
		TableName:      "scans",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeDependency, fmt.Errorf("insert scan: %w", pgErr), "remote insert")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(dump.Chain), dump.Chain)
	}
	if dump.PGCode != "23505" || dump.PGTable != "scans" {
		t.Fatalf("postgres details missing: %+v", dump)
	}

	fields := dump.Fields()
	if fields["pg_constraint"] != "scans_pkey" {
		t.Fatalf("expected constraint field, got %v", fields["pg_constraint"])
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg_column should be omitted")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Fields()) != 1 {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
