package domain

import (
	"fmt"
	"strings"
)

// StatusID identifies a validation run status. The set is closed.
type StatusID string

const (
	StatusPassed        StatusID = "PASSED"
	StatusWarning       StatusID = "WARNING"
	StatusFailed        StatusID = "FAILED"
	StatusDefective     StatusID = "DEFECTIVE"
	StatusExplained     StatusID = "EXPLAINED"
	StatusFixed         StatusID = "FIXED"
	StatusInvestigating StatusID = "INVESTIGATING"
	StatusInterrupted   StatusID = "INTERRUPTED"
)

var statusIDs = []StatusID{
	StatusPassed,
	StatusWarning,
	StatusFailed,
	StatusDefective,
	StatusExplained,
	StatusFixed,
	StatusInvestigating,
	StatusInterrupted,
}

// StatusIDs returns the known status identifiers in display order.
func StatusIDs() []StatusID {
	out := make([]StatusID, len(statusIDs))
	copy(out, statusIDs)
	return out
}

func (s StatusID) Valid() bool {
	for _, known := range statusIDs {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatusID accepts any casing and surrounding whitespace.
func ParseStatusID(raw string) (StatusID, error) {
	id := StatusID(strings.ToUpper(strings.TrimSpace(raw)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown validation run status %q", raw)
	}
	return id, nil
}
