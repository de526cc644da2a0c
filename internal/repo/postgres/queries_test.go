package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/animus-labs/stamps/internal/repo"
)

func TestAppendStatusQueriesSerializePerRun(t *testing.T) {
	if !strings.Contains(lockRunQuery, "FOR UPDATE") {
		t.Fatalf("expected run row lock before computing the next seq")
	}
	if !strings.Contains(nextStatusSeqQuery, "MAX(seq)") || !strings.Contains(nextStatusSeqQuery, "run_id = $1") {
		t.Fatalf("expected seq to be derived from the run's history")
	}
	if !strings.Contains(listRunStatusesQuery, "ORDER BY run_id, seq ASC") {
		t.Fatalf("expected history ordered by seq")
	}
}

func TestCreateRunQueries(t *testing.T) {
	if !strings.Contains(lockStampQuery, "FOR UPDATE") {
		t.Fatalf("expected stamp row lock")
	}
	if !strings.Contains(nextRunOrderQuery, "build_id = $1 AND stamp_id = $2") {
		t.Fatalf("expected run order scoped to build and stamp")
	}
	if strings.Count(insertRunQuery, "$") != 8 {
		t.Fatalf("unexpected placeholder count in insert run query")
	}
	if strings.Count(insertRunStatusQuery, "$") != 7 {
		t.Fatalf("unexpected placeholder count in insert status query")
	}
}

func TestStampQueries(t *testing.T) {
	if !strings.Contains(selectStampQuery, "stamp_id = $1") {
		t.Fatalf("expected stamp id predicate")
	}
	if !strings.Contains(updateStampDataTypeQuery, "data_type_config = $3") {
		t.Fatalf("expected config column in update")
	}
	if strings.Contains(updateStampDataTypeQuery, "validation_runs") {
		t.Fatalf("data type update must not touch existing runs")
	}
}

func TestListRunsQuery(t *testing.T) {
	query, args := listRunsQuery(repo.RunFilter{StampID: " vs-1 ", Limit: 20})
	if !strings.Contains(query, "WHERE stamp_id = $1") || !strings.HasSuffix(query, "LIMIT $2") {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 2 || args[0] != "vs-1" || args[1] != 20 {
		t.Fatalf("unexpected args %v", args)
	}

	query, args = listRunsQuery(repo.RunFilter{BuildID: "b-1", StampID: "vs-1"})
	if !strings.Contains(query, "build_id = $1 AND stamp_id = $2") || strings.Contains(query, "LIMIT") {
		t.Fatalf("unexpected query %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("unexpected args %v", args)
	}

	query, _ = listRunsQuery(repo.RunFilter{})
	if strings.Contains(query, "WHERE") || !strings.Contains(query, "ORDER BY created_at DESC") {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestNewStoresRejectNilDB(t *testing.T) {
	if NewRunStore(nil) != nil || NewStampStore(nil) != nil {
		t.Fatalf("expected nil stores for nil db")
	}
}

func TestInsertRunErrorClassification(t *testing.T) {
	if err := insertRunError("s1", &pgconn.PgError{Code: "23503"}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected foreign key violation to map to ErrNotFound, got %v", err)
	}
	if err := insertRunError("s1", &pgconn.PgError{Code: "23505"}); !errors.Is(err, repo.ErrConflict) {
		t.Fatalf("expected unique violation to map to ErrConflict, got %v", err)
	}
	other := errors.New("connection reset")
	if err := insertRunError("s1", other); !errors.Is(err, other) || errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected other errors wrapped as is, got %v", err)
	}
}
