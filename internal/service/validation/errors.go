package validation

import (
	"errors"
	"fmt"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/repo"
)

var (
	// ErrDataInput is wrapped by every error caused by the data supplied with a run.
	ErrDataInput = errors.New("invalid validation run data")
	// ErrInvalidArgument is wrapped by errors caused by malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DataTypeNotFoundError is a stamp referencing an unregistered data type.
type DataTypeNotFoundError = datatype.NotFoundError

type MissingDataError struct {
	StampID string
	TypeID  string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("validation stamp %s requires %s data", e.StampID, e.TypeID)
}

func (e *MissingDataError) Unwrap() error { return ErrDataInput }

type UnrequestedDataError struct {
	StampID string
}

func (e *UnrequestedDataError) Error() string {
	return fmt.Sprintf("validation stamp %s does not accept data", e.StampID)
}

func (e *UnrequestedDataError) Unwrap() error { return ErrDataInput }

// DataInputError carries the field level cause reported by the data type.
type DataInputError struct {
	StampID string
	TypeID  string
	Cause   error
}

func (e *DataInputError) Error() string {
	return fmt.Sprintf("invalid %s data for validation stamp %s: %v", e.TypeID, e.StampID, e.Cause)
}

func (e *DataInputError) Unwrap() []error { return []error{ErrDataInput, e.Cause} }

// Field is the offending field, if the data type reported one.
func (e *DataInputError) Field() string {
	var fe *datatype.FieldError
	if errors.As(e.Cause, &fe) {
		return fe.Field
	}
	return ""
}

type ConfigInputError struct {
	TypeID string
	Cause  error
}

func (e *ConfigInputError) Error() string {
	return fmt.Sprintf("invalid %s configuration: %v", e.TypeID, e.Cause)
}

func (e *ConfigInputError) Unwrap() []error { return []error{ErrInvalidArgument, e.Cause} }

type StatusRequiredError struct {
	StampID string
}

func (e *StatusRequiredError) Error() string {
	return fmt.Sprintf("a status is required for validation stamp %s: none given and none computable from data", e.StampID)
}

type InvalidStatusError struct {
	Status domain.StatusID
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("unknown validation run status %q", e.Status)
}

type RunNotFoundError struct {
	RunID string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("validation run not found: %s", e.RunID)
}

func (e *RunNotFoundError) Unwrap() error { return repo.ErrNotFound }

type StampNotFoundError struct {
	StampID string
}

func (e *StampNotFoundError) Error() string {
	return fmt.Sprintf("validation stamp not found: %s", e.StampID)
}

func (e *StampNotFoundError) Unwrap() error { return repo.ErrNotFound }
