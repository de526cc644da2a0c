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
	insertStampQuery = `INSERT INTO validation_stamps (
			stamp_id,
			branch_id,
			name,
			description,
			data_type_id,
			data_type_config,
			data_required,
			created_at,
			created_by
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	selectStampQuery = `SELECT stamp_id, branch_id, name, description, data_type_id, data_type_config, data_required,
			created_at, created_by
		 FROM validation_stamps
		 WHERE stamp_id = $1`

	updateStampDataTypeQuery = `UPDATE validation_stamps
		 SET data_type_id = $2, data_type_config = $3, data_required = $4
		 WHERE stamp_id = $1`
)

type StampStore struct {
	db TxDB
}

func NewStampStore(db TxDB) *StampStore {
	if db == nil {
		return nil
	}
	return &StampStore{db: db}
}

func (s *StampStore) CreateStamp(ctx context.Context, stamp domain.ValidationStamp) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("stamp store not initialized")
	}
	if err := stamp.Validate(); err != nil {
		return err
	}
	typeID, config, required := dataTypeColumns(stamp.DataType)
	createdAt := normalizeTime(stamp.Signature.Time)

	return platformpg.InTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			insertStampQuery,
			strings.TrimSpace(stamp.ID),
			strings.TrimSpace(stamp.BranchID),
			strings.TrimSpace(stamp.Name),
			nullIfEmpty(stamp.Description),
			typeID,
			config,
			required,
			createdAt,
			strings.TrimSpace(stamp.Signature.User),
		)
		if err != nil {
			if platformpg.IsUniqueViolation(err) {
				return fmt.Errorf("validation stamp %q on branch %q: %w", stamp.Name, stamp.BranchID, repo.ErrConflict)
			}
			return fmt.Errorf("insert validation stamp: %w", err)
		}
		_, err = auditlog.Insert(ctx, tx, auditlog.OriginFromContext(ctx).Apply(auditlog.Event{
			OccurredAt:   createdAt,
			Actor:        stamp.Signature.User,
			Action:       auditlog.ActionStampCreate,
			ResourceType: auditlog.ResourceStamp,
			ResourceID:   stamp.ID,
			Payload: map[string]any{
				"branch_id": stamp.BranchID,
				"name":      stamp.Name,
				"data_type": dataTypePayload(stamp.DataType),
			},
		}))
		return err
	})
}

func (s *StampStore) GetStamp(ctx context.Context, id string) (domain.ValidationStamp, error) {
	if s == nil || s.db == nil {
		return domain.ValidationStamp{}, fmt.Errorf("stamp store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.ValidationStamp{}, fmt.Errorf("validation stamp id is required")
	}
	var stamp domain.ValidationStamp
	var description sql.NullString
	var typeID sql.NullString
	var config []byte
	var required bool
	row := s.db.QueryRowContext(ctx, selectStampQuery, id)
	if err := row.Scan(&stamp.ID, &stamp.BranchID, &stamp.Name, &description, &typeID, &config, &required,
		&stamp.Signature.Time, &stamp.Signature.User); err != nil {
		return domain.ValidationStamp{}, handleNotFound(err)
	}
	stamp.Description = description.String
	stamp.Signature.Time = stamp.Signature.Time.UTC()
	if typeID.Valid {
		stamp.DataType = &domain.DataTypeConfig{
			TypeID:   typeID.String,
			Config:   json.RawMessage(config),
			Required: required,
		}
	}
	return stamp, nil
}

func (s *StampStore) UpdateStampDataType(ctx context.Context, id string, config *domain.DataTypeConfig, signature domain.Signature) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("stamp store not initialized")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("validation stamp id is required")
	}
	typeID, rawConfig, required := dataTypeColumns(config)

	return platformpg.InTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, updateStampDataTypeQuery, id, typeID, rawConfig, required)
		if err != nil {
			return fmt.Errorf("update validation stamp data type: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update validation stamp data type: %w", err)
		}
		if affected == 0 {
			return repo.ErrNotFound
		}
		_, err = auditlog.Insert(ctx, tx, auditlog.OriginFromContext(ctx).Apply(auditlog.Event{
			OccurredAt:   normalizeTime(signature.Time),
			Actor:        signature.User,
			Action:       auditlog.ActionStampDataTypeUpdate,
			ResourceType: auditlog.ResourceStamp,
			ResourceID:   id,
			Payload:      map[string]any{"data_type": dataTypePayload(config)},
		}))
		return err
	})
}

func dataTypeColumns(config *domain.DataTypeConfig) (sql.NullString, any, bool) {
	if config == nil {
		return sql.NullString{}, nil, false
	}
	return nullIfEmpty(config.TypeID), nullJSON(config.Config), config.Required
}

func dataTypePayload(config *domain.DataTypeConfig) any {
	if config == nil {
		return nil
	}
	return map[string]any{
		"type_id":  config.TypeID,
		"config":   config.Config,
		"required": config.Required,
	}
}
