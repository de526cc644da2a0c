// Package memory is an in-process implementation of the repo contracts, used
// by tests and by the service when VALIDATION_STORE=memory.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/repo"
)

type Store struct {
	mu       sync.Mutex
	stamps   map[string]domain.ValidationStamp
	runs     map[string]domain.ValidationRun
	runOrder []string
}

func New() *Store {
	return &Store{
		stamps: make(map[string]domain.ValidationStamp),
		runs:   make(map[string]domain.ValidationRun),
	}
}

func (s *Store) CreateStamp(ctx context.Context, stamp domain.ValidationStamp) error {
	if err := stamp.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.stamps[stamp.ID]; exists {
		return fmt.Errorf("validation stamp %q: %w", stamp.ID, repo.ErrConflict)
	}
	for _, existing := range s.stamps {
		if existing.BranchID == stamp.BranchID && existing.Name == stamp.Name {
			return fmt.Errorf("validation stamp %q on branch %q: %w", stamp.Name, stamp.BranchID, repo.ErrConflict)
		}
	}
	stamp.DataType = stamp.DataType.Clone()
	s.stamps[stamp.ID] = stamp
	return nil
}

func (s *Store) GetStamp(ctx context.Context, id string) (domain.ValidationStamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.stamps[strings.TrimSpace(id)]
	if !ok {
		return domain.ValidationStamp{}, repo.ErrNotFound
	}
	stamp.DataType = stamp.DataType.Clone()
	return stamp, nil
}

func (s *Store) UpdateStampDataType(ctx context.Context, id string, config *domain.DataTypeConfig, signature domain.Signature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp, ok := s.stamps[strings.TrimSpace(id)]
	if !ok {
		return repo.ErrNotFound
	}
	stamp.DataType = config.Clone()
	s.stamps[stamp.ID] = stamp
	return nil
}

func (s *Store) CreateRun(ctx context.Context, run domain.ValidationRun) (domain.ValidationRun, error) {
	if err := run.Validate(); err != nil {
		return domain.ValidationRun{}, err
	}
	if len(run.Statuses) != 1 {
		return domain.ValidationRun{}, fmt.Errorf("a new validation run must carry exactly one status")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stamps[run.StampID]; !ok {
		return domain.ValidationRun{}, repo.ErrNotFound
	}
	if _, exists := s.runs[run.ID]; exists {
		return domain.ValidationRun{}, fmt.Errorf("validation run %q: %w", run.ID, repo.ErrConflict)
	}
	run.RunOrder = 1
	for _, existing := range s.runs {
		if existing.BuildID == run.BuildID && existing.StampID == run.StampID {
			run.RunOrder++
		}
	}
	run.Statuses = []domain.ValidationRunStatus{run.Statuses[0]}
	run.Statuses[0].RunID = run.ID
	run.Statuses[0].Seq = 1
	s.runs[run.ID] = run
	s.runOrder = append(s.runOrder, run.ID)
	return cloneRun(run), nil
}

func (s *Store) GetRun(ctx context.Context, id string) (domain.ValidationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[strings.TrimSpace(id)]
	if !ok {
		return domain.ValidationRun{}, repo.ErrNotFound
	}
	return cloneRun(run), nil
}

// ListRuns returns the most recently created runs first.
func (s *Store) ListRuns(ctx context.Context, filter repo.RunFilter) ([]domain.ValidationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ValidationRun, 0)
	for i := len(s.runOrder) - 1; i >= 0; i-- {
		run := s.runs[s.runOrder[i]]
		if filter.BuildID != "" && run.BuildID != filter.BuildID {
			continue
		}
		if filter.StampID != "" && run.StampID != filter.StampID {
			continue
		}
		out = append(out, cloneRun(run))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) AppendStatus(ctx context.Context, status domain.ValidationRunStatus) (domain.ValidationRunStatus, error) {
	if !status.Status.Valid() {
		return domain.ValidationRunStatus{}, fmt.Errorf("invalid validation run status %q", status.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[status.RunID]
	if !ok {
		return domain.ValidationRunStatus{}, repo.ErrNotFound
	}
	status.Seq = len(run.Statuses) + 1
	run.Statuses = append(run.Statuses, status)
	s.runs[run.ID] = run
	return status, nil
}

func cloneRun(run domain.ValidationRun) domain.ValidationRun {
	statuses := make([]domain.ValidationRunStatus, len(run.Statuses))
	copy(statuses, run.Statuses)
	run.Statuses = statuses
	if run.Data != nil {
		data := *run.Data
		data.Raw = append([]byte(nil), run.Data.Raw...)
		data.Value = nil
		run.Data = &data
	}
	return run
}
