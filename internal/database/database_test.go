package database

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/gbl08ma/sqalx"

	"github.com/hazemshokry/train-tracking-app/internal/apperr"
	"github.com/hazemshokry/train-tracking-app/internal/logger"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	mm := NewMigrationManager(db, logger.Nop())
	for i := 0; i < 2; i++ {
		if err := mm.RunMigrations(); err != nil {
			t.Fatalf("RunMigrations #%d: %v", i+1, err)
		}
	}

	applied, err := mm.GetAppliedMigrations()
	if err != nil {
		t.Fatalf("GetAppliedMigrations: %v", err)
	}
	if !applied[1] || len(applied) != 1 {
		t.Fatalf("applied: got %v", applied)
	}

	for _, table := range []string{"reports", "report_validations", "user_reliability", "calculated_estimates", "rewards"} {
		var n int
		if err := db.Get(&n, "SELECT COUNT(*) FROM "+table); err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db, logger.Nop()).RunMigrations(); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	boom := errors.New("boom")
	err := Transaction(db.Root, func(tx sqalx.Node) error {
		if _, err := tx.Exec("INSERT INTO stations (id, name) VALUES (1, 'Cairo')"); err != nil {
			return err
		}
		// nested work joins the outer transaction
		return Transaction(tx, func(inner sqalx.Node) error {
			if _, err := inner.Exec("INSERT INTO stations (id, name) VALUES (2, 'Giza')"); err != nil {
				return err
			}
			return boom
		})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Transaction: got %v, want %v", err, boom)
	}

	var n int
	if err := db.Get(&n, "SELECT COUNT(*) FROM stations"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("stations after rollback: got %d, want 0", n)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header\nCREATE TABLE a (x INTEGER);\n\nCREATE INDEX i ON a(x);\n")
	if len(got) != 2 || got[0] != "CREATE TABLE a (x INTEGER)" {
		t.Fatalf("splitStatements: got %q", got)
	}
}

func TestForUpdateOnlyOnPostgres(t *testing.T) {
	db := openTestDB(t)
	q, _, _ := db.ForUpdate(db.Builder.Select("id").From("stations")).ToSql()
	if q != "SELECT id FROM stations" {
		t.Fatalf("sqlite ForUpdate: got %q", q)
	}
	pg := &DB{Dialect: Postgres, Builder: db.Builder}
	q, _, _ = pg.ForUpdate(pg.Builder.Select("id").From("stations")).ToSql()
	if q != "SELECT id FROM stations FOR UPDATE" {
		t.Fatalf("postgres ForUpdate: got %q", q)
	}
}

func TestBuilderPlaceholdersPerDialect(t *testing.T) {
	cases := map[Dialect]string{
		SQLite:   "SELECT id FROM stations WHERE id = ?",
		Postgres: "SELECT id FROM stations WHERE id = $1",
	}
	for dialect, want := range cases {
		q, _, err := builderFor(dialect).Select("id").From("stations").Where("id = ?", 1).ToSql()
		if err != nil {
			t.Fatalf("%s ToSql: %v", dialect, err)
		}
		if q != want {
			t.Fatalf("%s: got %q, want %q", dialect, q, want)
		}
	}
}

func TestRollbackFailureKeepsCause(t *testing.T) {
	cause := apperr.Invalid("bad input")
	rbErr := errors.New("connection reset")

	err := rollbackFailed(cause, rbErr)
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("rollbackFailed: lost the cause kind: %v", err)
	}
	if !errors.Is(err, rbErr) {
		t.Fatalf("rollbackFailed: lost the rollback error: %v", err)
	}
	if got := rollbackFailed(cause, sql.ErrTxDone); got != cause {
		t.Fatalf("rollbackFailed(ErrTxDone): got %v, want the cause unchanged", got)
	}
}
