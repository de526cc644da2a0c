package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/platform/auditlog"
	platformpg "github.com/animus-labs/stamps/internal/platform/postgres"
	"github.com/animus-labs/stamps/internal/repo"
)

const (
	// Locking the stamp row serializes run creation per stamp so that run
	// orders stay dense.
	lockStampQuery = `SELECT stamp_id FROM validation_stamps WHERE stamp_id = $1 FOR UPDATE`

	nextRunOrderQuery = `SELECT COUNT(*) + 1 FROM validation_runs WHERE build_id = $1 AND stamp_id = $2`

	insertRunQuery = `INSERT INTO validation_runs (
			run_id,
			build_id,
			stamp_id,
			run_order,
			data_type_id,
			data,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	selectRunQuery = `SELECT run_id, build_id, stamp_id, run_order, data_type_id, data, created_at, created_by
		 FROM validation_runs
		 WHERE run_id = $1`

	lockRunQuery = `SELECT run_id FROM validation_runs WHERE run_id = $1 FOR UPDATE`

	nextStatusSeqQuery = `SELECT COALESCE(MAX(seq), 0) + 1 FROM validation_run_statuses WHERE run_id = $1`

	insertRunStatusQuery = `INSERT INTO validation_run_statuses (
			status_entry_id,
			run_id,
			seq,
			status,
			description,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`

	listRunStatusesQuery = `SELECT status_entry_id, run_id, seq, status, description, created_at, created_by
		 FROM validation_run_statuses
		 WHERE run_id = ANY($1)
		 ORDER BY run_id, seq ASC`

	listRunsBaseQuery = `SELECT run_id, build_id, stamp_id, run_order, data_type_id, data, created_at, created_by
		FROM validation_runs`
)

type RunStore struct {
	db TxDB
}

func NewRunStore(db TxDB) *RunStore {
	if db == nil {
		return nil
	}
	return &RunStore{db: db}
}

func (s *RunStore) CreateRun(ctx context.Context, run domain.ValidationRun) (domain.ValidationRun, error) {
	if s == nil || s.db == nil {
		return domain.ValidationRun{}, fmt.Errorf("run store not initialized")
	}
	if err := run.Validate(); err != nil {
		return domain.ValidationRun{}, err
	}
	if len(run.Statuses) != 1 {
		return domain.ValidationRun{}, fmt.Errorf("a new validation run must carry exactly one status")
	}
	run.Signature.Time = normalizeTime(run.Signature.Time)
	var typeID sql.NullString
	var data any
	if run.Data != nil {
		typeID = nullIfEmpty(run.Data.TypeID)
		data = nullJSON(run.Data.Raw)
	}

	err := platformpg.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var stampID string
		if err := tx.QueryRowContext(ctx, lockStampQuery, run.StampID).Scan(&stampID); err != nil {
			return handleNotFound(err)
		}
		if err := tx.QueryRowContext(ctx, nextRunOrderQuery, run.BuildID, run.StampID).Scan(&run.RunOrder); err != nil {
			return fmt.Errorf("next run order: %w", err)
		}
		_, err := tx.ExecContext(
			ctx,
			insertRunQuery,
			strings.TrimSpace(run.ID),
			strings.TrimSpace(run.BuildID),
			strings.TrimSpace(run.StampID),
			run.RunOrder,
			typeID,
			data,
			run.Signature.Time,
			strings.TrimSpace(run.Signature.User),
		)
		if err != nil {
			return insertRunError(run.StampID, err)
		}

		status := run.Statuses[0]
		status.RunID = run.ID
		status.Seq = 1
		if err := insertStatus(ctx, tx, status); err != nil {
			return err
		}
		run.Statuses[0] = status

		_, err = auditlog.Insert(ctx, tx, auditlog.OriginFromContext(ctx).Apply(auditlog.Event{
			OccurredAt:   run.Signature.Time,
			Actor:        run.Signature.User,
			Action:       auditlog.ActionRunCreate,
			ResourceType: auditlog.ResourceRun,
			ResourceID:   run.ID,
			Payload: map[string]any{
				"build_id":  run.BuildID,
				"stamp_id":  run.StampID,
				"run_order": run.RunOrder,
				"status":    status.Status,
				"data_type": typeID.String,
			},
		}))
		return err
	})
	if err != nil {
		return domain.ValidationRun{}, err
	}
	return run, nil
}

func (s *RunStore) AppendStatus(ctx context.Context, status domain.ValidationRunStatus) (domain.ValidationRunStatus, error) {
	if s == nil || s.db == nil {
		return domain.ValidationRunStatus{}, fmt.Errorf("run store not initialized")
	}
	if !status.Status.Valid() {
		return domain.ValidationRunStatus{}, fmt.Errorf("invalid validation run status %q", status.Status)
	}
	status.Signature.Time = normalizeTime(status.Signature.Time)

	err := platformpg.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var runID string
		if err := tx.QueryRowContext(ctx, lockRunQuery, status.RunID).Scan(&runID); err != nil {
			return handleNotFound(err)
		}
		if err := tx.QueryRowContext(ctx, nextStatusSeqQuery, status.RunID).Scan(&status.Seq); err != nil {
			return fmt.Errorf("next status seq: %w", err)
		}
		if err := insertStatus(ctx, tx, status); err != nil {
			return err
		}
		_, err := auditlog.Insert(ctx, tx, auditlog.OriginFromContext(ctx).Apply(auditlog.Event{
			OccurredAt:   status.Signature.Time,
			Actor:        status.Signature.User,
			Action:       auditlog.ActionRunStatusAppend,
			ResourceType: auditlog.ResourceRun,
			ResourceID:   status.RunID,
			Payload: map[string]any{
				"seq":         status.Seq,
				"status":      status.Status,
				"description": status.Description,
			},
		}))
		return err
	})
	if err != nil {
		return domain.ValidationRunStatus{}, err
	}
	return status, nil
}

func insertStatus(ctx context.Context, tx *sql.Tx, status domain.ValidationRunStatus) error {
	_, err := tx.ExecContext(
		ctx,
		insertRunStatusQuery,
		strings.TrimSpace(status.ID),
		strings.TrimSpace(status.RunID),
		status.Seq,
		string(status.Status),
		nullIfEmpty(status.Description),
		status.Signature.Time,
		strings.TrimSpace(status.Signature.User),
	)
	if err != nil {
		switch {
		case platformpg.IsUniqueViolation(err):
			return fmt.Errorf("status seq %d of run %s: %w", status.Seq, status.RunID, repo.ErrConflict)
		case platformpg.IsForeignKeyViolation(err):
			return fmt.Errorf("validation run %s: %w", status.RunID, repo.ErrNotFound)
		}
		return fmt.Errorf("insert validation run status: %w", err)
	}
	return nil
}

func insertRunError(stampID string, err error) error {
	switch {
	case platformpg.IsForeignKeyViolation(err):
		return fmt.Errorf("validation stamp %s: %w", stampID, repo.ErrNotFound)
	case platformpg.IsUniqueViolation(err):
		return fmt.Errorf("insert validation run: %w", repo.ErrConflict)
	}
	return fmt.Errorf("insert validation run: %w", err)
}

func (s *RunStore) GetRun(ctx context.Context, id string) (domain.ValidationRun, error) {
	if s == nil || s.db == nil {
		return domain.ValidationRun{}, fmt.Errorf("run store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ValidationRun{}, fmt.Errorf("validation run id is required")
	}
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRunQuery, id))
	if err != nil {
		return domain.ValidationRun{}, handleNotFound(err)
	}
	statuses, err := s.listStatuses(ctx, []string{run.ID})
	if err != nil {
		return domain.ValidationRun{}, err
	}
	run.Statuses = statuses[run.ID]
	return run, nil
}

func (s *RunStore) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ValidationRun, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialized")
	}
	query, args := listRunsQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.ValidationRun, 0)
	ids := make([]string, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan validation run: %w", err)
		}
		runs = append(runs, run)
		ids = append(ids, run.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list validation runs: %w", err)
	}
	if len(runs) == 0 {
		return runs, nil
	}

	statuses, err := s.listStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		runs[i].Statuses = statuses[runs[i].ID]
	}
	return runs, nil
}

func listRunsQuery(filter repo.RunFilter) (string, []any) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if v := strings.TrimSpace(filter.BuildID); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("build_id = $%d", len(args)))
	}
	if v := strings.TrimSpace(filter.StampID); v != "" {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf("stamp_id = $%d", len(args)))
	}
	query := listRunsBaseQuery
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, run_order DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

func (s *RunStore) listStatuses(ctx context.Context, runIDs []string) (map[string][]domain.ValidationRunStatus, error) {
	rows, err := s.db.QueryContext(ctx, listRunStatusesQuery, runIDs)
	if err != nil {
		return nil, fmt.Errorf("list validation run statuses: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.ValidationRunStatus, len(runIDs))
	for rows.Next() {
		var status domain.ValidationRunStatus
		var statusID string
		var description sql.NullString
		if err := rows.Scan(&status.ID, &status.RunID, &status.Seq, &statusID, &description,
			&status.Signature.Time, &status.Signature.User); err != nil {
			return nil, fmt.Errorf("scan validation run status: %w", err)
		}
		status.Status = domain.StatusID(statusID)
		status.Description = description.String
		status.Signature.Time = status.Signature.Time.UTC()
		out[status.RunID] = append(out[status.RunID], status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list validation run statuses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (domain.ValidationRun, error) {
	var run domain.ValidationRun
	var typeID sql.NullString
	var data []byte
	if err := row.Scan(&run.ID, &run.BuildID, &run.StampID, &run.RunOrder, &typeID, &data,
		&run.Signature.Time, &run.Signature.User); err != nil {
		return domain.ValidationRun{}, err
	}
	run.Signature.Time = run.Signature.Time.UTC()
	if typeID.Valid && len(data) > 0 {
		run.Data = &domain.RunData{TypeID: typeID.String, Raw: json.RawMessage(data)}
	}
	return run, nil
}
