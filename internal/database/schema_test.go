package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	sql  []string
	args int
	err  error
}

func (r *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args += len(args)
	return pgconn.CommandTag{}, r.err
}

func TestEnsureSchema(t *testing.T) {
	db := &recordingExecer{}
	if err := EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.sql) != 1 || db.args != 0 {
		t.Fatalf("expected one argument-free exec, got %d statements with %d args", len(db.sql), db.args)
	}
	for _, table := range []string{"businesses", "reviews", "reports", "ingest_jobs", "users"} {
		if !strings.Contains(db.sql[0], "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Fatalf("schema does not create %s", table)
		}
	}

	db = &recordingExecer{err: errors.New("permission denied")}
	if err := EnsureSchema(context.Background(), db); err == nil || !strings.Contains(err.Error(), "apply schema") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
