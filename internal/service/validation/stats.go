package validation

import (
	"context"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/repo"
	"github.com/animus-labs/stamps/internal/stats"
)

// StampStats summarizes recent runs of one stamp.
type StampStats struct {
	StampID    string                  `json:"stamp_id"`
	TypeID     string                  `json:"type_id,omitempty"`
	Compliance stats.Stats             `json:"compliance"`
	Statuses   map[domain.StatusID]int `json:"statuses"`
}

// StampStats aggregates the compliance of the last limit runs of the stamp.
// Runs are classified against the stamp's current configuration; runs
// without data, with data of another type, or with an undetermined status
// have no value.
func (s *Service) StampStats(ctx context.Context, stampID string, limit int) (StampStats, error) {
	stamp, err := s.GetStamp(ctx, stampID)
	if err != nil {
		return StampStats{}, err
	}
	runs, err := s.ListRuns(ctx, repo.RunFilter{StampID: stamp.ID, Limit: limit})
	if err != nil {
		return StampStats{}, err
	}

	out := StampStats{StampID: stamp.ID}
	var dt datatype.DataType
	var config any
	if stamp.DataType != nil {
		if dt, err = s.resolve(ctx, stamp.DataType.TypeID); err != nil {
			return StampStats{}, err
		}
		if config, err = dt.DeserializeConfig(stamp.DataType.Config); err != nil {
			return StampStats{}, err
		}
		out.TypeID = dt.ID()
	}

	out.Compliance = stats.Aggregate(runs, func(run domain.ValidationRun) (float64, bool) {
		if dt == nil || run.Data == nil || run.Data.TypeID != dt.ID() {
			return 0, false
		}
		status, ok, err := dt.ComputeStatus(config, run.Data.Value)
		if err != nil || !ok {
			return 0, false
		}
		return float64(status.Compliance), true
	})
	out.Statuses = stats.Distribution(runs, func(run domain.ValidationRun) (domain.StatusID, bool) {
		last, ok := run.LastStatus()
		return last.Status, ok
	})
	return out, nil
}
