package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// RunData is the typed payload of a run. Value is the decoded form when the
// run has been hydrated; Raw is the serialized form as stored.
type RunData struct {
	TypeID string
	Raw    json.RawMessage
	Value  any
}

type ValidationRunStatus struct {
	ID          string
	RunID       string
	Seq         int
	Status      StatusID
	Signature   Signature
	Description string
}

// ValidationRun owns its status history. The history is append-only and is
// never empty once persisted.
type ValidationRun struct {
	ID        string
	BuildID   string
	StampID   string
	RunOrder  int
	Signature Signature
	Data      *RunData
	Statuses  []ValidationRunStatus
}

// LastStatus is the tail of the history.
func (r ValidationRun) LastStatus() (ValidationRunStatus, bool) {
	if len(r.Statuses) == 0 {
		return ValidationRunStatus{}, false
	}
	return r.Statuses[len(r.Statuses)-1], true
}

func (r ValidationRun) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("validation run id is required")
	}
	if strings.TrimSpace(r.BuildID) == "" {
		return errors.New("build id is required")
	}
	if strings.TrimSpace(r.StampID) == "" {
		return errors.New("validation stamp id is required")
	}
	if len(r.Statuses) == 0 {
		return errors.New("validation run requires an initial status")
	}
	for _, status := range r.Statuses {
		if !status.Status.Valid() {
			return errors.New("validation run status is invalid")
		}
	}
	return nil
}
