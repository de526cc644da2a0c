// Package datatype defines the contract for typed validation run data and
// the built-in data types.
//
// A data type is parameterized by the value type T carried by each run and
// the configuration type C stored on the validation stamp. Implementations
// are stateless; the engine only ever sees them through the erased DataType
// interface returned by Erase.
package datatype

import (
	"encoding/json"
	"fmt"

	"github.com/animus-labs/stamps/internal/domain"
)

// ComputedStatus is the classification of a value against a configuration.
// Compliance projects it onto 0..100 for aggregation.
type ComputedStatus struct {
	Status     domain.StatusID
	Compliance int
}

// Type is the typed contract implemented by each data kind.
type Type[T, C any] interface {
	ID() string
	Name() string
	// Validate checks value against config and returns its normalized form.
	// Failures are *FieldError.
	Validate(config C, value T) (T, error)
	ValidateConfig(config C) error
	// ComputeStatus must be pure. It returns false when config does not
	// allow a classification.
	ComputeStatus(config C, value T) (ComputedStatus, bool)

	Serialize(value T) (json.RawMessage, error)
	Deserialize(raw json.RawMessage) (T, error)
	SerializeConfig(config C) (json.RawMessage, error)
	DeserializeConfig(raw json.RawMessage) (C, error)
}

// DataType is a Type with its parameters erased.
type DataType interface {
	ID() string
	Name() string
	Validate(config any, value any) (any, error)
	ValidateConfig(config any) error
	ComputeStatus(config any, value any) (ComputedStatus, bool, error)

	Serialize(value any) (json.RawMessage, error)
	Deserialize(raw json.RawMessage) (any, error)
	SerializeConfig(config any) (json.RawMessage, error)
	DeserializeConfig(raw json.RawMessage) (any, error)
}

// FieldError reports the field and constraint a value or config violated.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func fieldError(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when no data type is registered for TypeID.
type NotFoundError struct {
	TypeID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("validation data type not found: %q", e.TypeID)
}

// Erase adapts a typed data type to DataType. Values and configs of the
// wrong Go type are rejected with an error.
func Erase[T, C any](t Type[T, C]) DataType {
	return erased[T, C]{typed: t}
}

type erased[T, C any] struct {
	typed Type[T, C]
}

func (e erased[T, C]) ID() string   { return e.typed.ID() }
func (e erased[T, C]) Name() string { return e.typed.Name() }

func (e erased[T, C]) Validate(config any, value any) (any, error) {
	c, err := e.config(config)
	if err != nil {
		return nil, err
	}
	v, err := e.value(value)
	if err != nil {
		return nil, err
	}
	return e.typed.Validate(c, v)
}

func (e erased[T, C]) ValidateConfig(config any) error {
	c, err := e.config(config)
	if err != nil {
		return err
	}
	return e.typed.ValidateConfig(c)
}

func (e erased[T, C]) ComputeStatus(config any, value any) (ComputedStatus, bool, error) {
	c, err := e.config(config)
	if err != nil {
		return ComputedStatus{}, false, err
	}
	v, err := e.value(value)
	if err != nil {
		return ComputedStatus{}, false, err
	}
	status, ok := e.typed.ComputeStatus(c, v)
	return status, ok, nil
}

func (e erased[T, C]) Serialize(value any) (json.RawMessage, error) {
	v, err := e.value(value)
	if err != nil {
		return nil, err
	}
	return e.typed.Serialize(v)
}

func (e erased[T, C]) Deserialize(raw json.RawMessage) (any, error) {
	return e.typed.Deserialize(raw)
}

func (e erased[T, C]) SerializeConfig(config any) (json.RawMessage, error) {
	c, err := e.config(config)
	if err != nil {
		return nil, err
	}
	return e.typed.SerializeConfig(c)
}

func (e erased[T, C]) DeserializeConfig(raw json.RawMessage) (any, error) {
	return e.typed.DeserializeConfig(raw)
}

func (e erased[T, C]) value(v any) (T, error) {
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: value has type %T, want %T", e.typed.ID(), v, zero)
	}
	return typed, nil
}

// A nil config is the zero C so that types without configuration can be
// bound with no config payload.
func (e erased[T, C]) config(v any) (C, error) {
	var zero C
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(C)
	if !ok {
		return zero, fmt.Errorf("%s: config has type %T, want %T", e.typed.ID(), v, zero)
	}
	return typed, nil
}
