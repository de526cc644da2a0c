// Package validation is the validation run engine. It enforces the data
// contract between a validation stamp and the runs created against it, and
// maintains each run's append-only status history.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/repo"
)

type Service struct {
	stamps   repo.StampRepository
	runs     repo.RunRepository
	registry *datatype.Registry
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func New(stamps repo.StampRepository, runs repo.RunRepository, registry *datatype.Registry, logger *slog.Logger) *Service {
	if stamps == nil || runs == nil || registry == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		stamps:   stamps,
		runs:     runs,
		registry: registry,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

func (s *Service) Registry() *datatype.Registry {
	return s.registry
}

type CreateStampInput struct {
	ID          string
	BranchID    string
	Name        string
	Description string
	DataType    *domain.DataTypeConfig
	Signature   domain.Signature
}

func (s *Service) CreateStamp(ctx context.Context, in CreateStampInput) (domain.ValidationStamp, error) {
	stamp := domain.ValidationStamp{
		ID:          strings.TrimSpace(in.ID),
		BranchID:    strings.TrimSpace(in.BranchID),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Signature:   in.Signature.Normalize(s.now()),
	}
	if stamp.ID == "" {
		stamp.ID = s.newID()
	}
	if in.DataType != nil {
		cfg, err := s.normalizeDataType(ctx, in.DataType)
		if err != nil {
			return domain.ValidationStamp{}, err
		}
		stamp.DataType = cfg
	}
	if err := stamp.Validate(); err != nil {
		return domain.ValidationStamp{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := s.stamps.CreateStamp(ctx, stamp); err != nil {
		return domain.ValidationStamp{}, err
	}
	return stamp, nil
}

func (s *Service) GetStamp(ctx context.Context, id string) (domain.ValidationStamp, error) {
	stamp, err := s.stamps.GetStamp(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ValidationStamp{}, &StampNotFoundError{StampID: id}
		}
		return domain.ValidationStamp{}, err
	}
	return stamp, nil
}

// SetStampDataType binds the stamp to a data type, or unbinds it when config
// is nil. Existing runs keep the data they were created with.
func (s *Service) SetStampDataType(ctx context.Context, stampID string, config *domain.DataTypeConfig, signature domain.Signature) (domain.ValidationStamp, error) {
	var normalized *domain.DataTypeConfig
	if config != nil {
		var err error
		if normalized, err = s.normalizeDataType(ctx, config); err != nil {
			return domain.ValidationStamp{}, err
		}
	}
	if err := s.stamps.UpdateStampDataType(ctx, stampID, normalized, signature.Normalize(s.now())); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ValidationStamp{}, &StampNotFoundError{StampID: stampID}
		}
		return domain.ValidationStamp{}, err
	}
	return s.GetStamp(ctx, stampID)
}

// normalizeDataType validates a binding and stores its config in canonical form.
func (s *Service) normalizeDataType(ctx context.Context, config *domain.DataTypeConfig) (*domain.DataTypeConfig, error) {
	dt, err := s.resolve(ctx, config.TypeID)
	if err != nil {
		return nil, err
	}
	c, err := dt.DeserializeConfig(config.Config)
	if err != nil {
		return nil, &ConfigInputError{TypeID: dt.ID(), Cause: err}
	}
	if err := dt.ValidateConfig(c); err != nil {
		return nil, &ConfigInputError{TypeID: dt.ID(), Cause: err}
	}
	raw, err := dt.SerializeConfig(c)
	if err != nil {
		return nil, fmt.Errorf("serialize %s config: %w", dt.ID(), err)
	}
	return &domain.DataTypeConfig{TypeID: dt.ID(), Config: raw, Required: config.Required}, nil
}

// resolve logs unknown data types at error level: they are configuration defects.
func (s *Service) resolve(ctx context.Context, typeID string) (datatype.DataType, error) {
	dt, err := s.registry.Resolve(typeID)
	if err != nil {
		s.logger.ErrorContext(ctx, "validation data type not found", "type_id", typeID, "error", err)
		return nil, err
	}
	return dt, nil
}

// DataInput is run data in its wire form. An empty TypeID means the type
// bound to the stamp.
type DataInput struct {
	TypeID string
	Value  json.RawMessage
}

type CreateRunInput struct {
	BuildID string
	StampID string
	// Status may be empty when the stamp's data type can compute it.
	Status      domain.StatusID
	Signature   domain.Signature
	Description string
	Data        *DataInput
}

func (s *Service) CreateRun(ctx context.Context, in CreateRunInput) (domain.ValidationRun, error) {
	buildID := strings.TrimSpace(in.BuildID)
	if buildID == "" {
		return domain.ValidationRun{}, fmt.Errorf("%w: build id is required", ErrInvalidArgument)
	}
	stamp, err := s.GetStamp(ctx, strings.TrimSpace(in.StampID))
	if err != nil {
		return domain.ValidationRun{}, err
	}

	data, computed, err := s.checkData(ctx, stamp, in.Data)
	if err != nil {
		return domain.ValidationRun{}, err
	}

	status := in.Status
	switch {
	case status != "":
		if !status.Valid() {
			return domain.ValidationRun{}, &InvalidStatusError{Status: status}
		}
	case computed != nil:
		status = computed.Status
	default:
		return domain.ValidationRun{}, &StatusRequiredError{StampID: stamp.ID}
	}

	signature := in.Signature.Normalize(s.now())
	run := domain.ValidationRun{
		ID:        s.newID(),
		BuildID:   buildID,
		StampID:   stamp.ID,
		Signature: signature,
		Data:      data,
		Statuses: []domain.ValidationRunStatus{{
			ID:          s.newID(),
			Status:      status,
			Signature:   signature,
			Description: strings.TrimSpace(in.Description),
		}},
	}
	created, err := s.runs.CreateRun(ctx, run)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ValidationRun{}, &StampNotFoundError{StampID: stamp.ID}
		}
		return domain.ValidationRun{}, err
	}
	return s.hydrate(ctx, created)
}

// checkData enforces the stamp's data contract and returns the data in
// stored form along with the status it computes, if any.
func (s *Service) checkData(ctx context.Context, stamp domain.ValidationStamp, in *DataInput) (*domain.RunData, *datatype.ComputedStatus, error) {
	cfg := stamp.DataType
	if in != nil && datatype.IsAbsent(in.Value) {
		in = nil
	}
	switch {
	case cfg == nil && in == nil:
		return nil, nil, nil
	case cfg == nil:
		return nil, nil, &UnrequestedDataError{StampID: stamp.ID}
	case in == nil:
		if cfg.Required {
			return nil, nil, &MissingDataError{StampID: stamp.ID, TypeID: cfg.TypeID}
		}
		return nil, nil, nil
	}

	if typeID := strings.TrimSpace(in.TypeID); typeID != "" && typeID != cfg.TypeID {
		return nil, nil, &DataInputError{
			StampID: stamp.ID,
			TypeID:  cfg.TypeID,
			Cause:   &datatype.FieldError{Field: "type", Message: fmt.Sprintf("stamp expects %s, got %s", cfg.TypeID, typeID)},
		}
	}
	dt, err := s.resolve(ctx, cfg.TypeID)
	if err != nil {
		return nil, nil, err
	}
	config, err := dt.DeserializeConfig(cfg.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("stored %s config of validation stamp %s: %w", dt.ID(), stamp.ID, err)
	}
	value, err := dt.Deserialize(in.Value)
	if err != nil {
		return nil, nil, &DataInputError{StampID: stamp.ID, TypeID: dt.ID(), Cause: err}
	}
	value, err = dt.Validate(config, value)
	if err != nil {
		return nil, nil, &DataInputError{StampID: stamp.ID, TypeID: dt.ID(), Cause: err}
	}
	raw, err := dt.Serialize(value)
	if err != nil {
		return nil, nil, fmt.Errorf("serialize %s data: %w", dt.ID(), err)
	}

	data := &domain.RunData{TypeID: dt.ID(), Raw: raw}
	status, ok, err := dt.ComputeStatus(config, value)
	if err != nil || !ok {
		return data, nil, err
	}
	return data, &status, nil
}

// AppendStatus adds an entry to the run's history. Any status may follow any
// other; the data is not revalidated.
func (s *Service) AppendStatus(ctx context.Context, runID string, status domain.StatusID, signature domain.Signature, description string) (domain.ValidationRunStatus, error) {
	if !status.Valid() {
		return domain.ValidationRunStatus{}, &InvalidStatusError{Status: status}
	}
	runID = strings.TrimSpace(runID)
	entry, err := s.runs.AppendStatus(ctx, domain.ValidationRunStatus{
		ID:          s.newID(),
		RunID:       runID,
		Status:      status,
		Signature:   signature.Normalize(s.now()),
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ValidationRunStatus{}, &RunNotFoundError{RunID: runID}
		}
		return domain.ValidationRunStatus{}, err
	}
	return entry, nil
}

func (s *Service) GetRun(ctx context.Context, id string) (domain.ValidationRun, error) {
	run, err := s.runs.GetRun(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.ValidationRun{}, &RunNotFoundError{RunID: id}
		}
		return domain.ValidationRun{}, err
	}
	return s.hydrate(ctx, run)
}

func (s *Service) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ValidationRun, error) {
	runs, err := s.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i], err = s.hydrate(ctx, runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// hydrate decodes the stored data back to its typed form.
func (s *Service) hydrate(ctx context.Context, run domain.ValidationRun) (domain.ValidationRun, error) {
	if run.Data == nil {
		return run, nil
	}
	dt, err := s.resolve(ctx, run.Data.TypeID)
	if err != nil {
		return domain.ValidationRun{}, err
	}
	value, err := dt.Deserialize(run.Data.Raw)
	if err != nil {
		return domain.ValidationRun{}, fmt.Errorf("decode %s data of validation run %s: %w", dt.ID(), run.ID, err)
	}
	data := *run.Data
	data.Value = value
	run.Data = &data
	return run, nil
}
