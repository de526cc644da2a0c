// Package repo declares the persistence contracts of the validation engine.
package repo

import (
	"context"
	"errors"

	"github.com/animus-labs/stamps/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type RunFilter struct {
	BuildID string
	StampID string
	Limit   int
}

// StampRepository manages validation stamps and their data type binding.
type StampRepository interface {
	CreateStamp(ctx context.Context, stamp domain.ValidationStamp) error
	GetStamp(ctx context.Context, id string) (domain.ValidationStamp, error)
	// UpdateStampDataType replaces the binding; nil clears it.
	UpdateStampDataType(ctx context.Context, id string, config *domain.DataTypeConfig, signature domain.Signature) error
}

// RunRepository manages validation runs and their append-only status history.
//
// CreateRun stores the run together with its single initial status and
// assigns RunOrder. AppendStatus assigns the next sequence number; concurrent
// appends to one run are serialized.
type RunRepository interface {
	CreateRun(ctx context.Context, run domain.ValidationRun) (domain.ValidationRun, error)
	GetRun(ctx context.Context, id string) (domain.ValidationRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.ValidationRun, error)
	AppendStatus(ctx context.Context, status domain.ValidationRunStatus) (domain.ValidationRunStatus, error)
}
