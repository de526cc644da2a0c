package datatype

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/animus-labs/stamps/internal/domain"
)

// jsonWire implements the wire half of Type with strict JSON.
type jsonWire[T, C any] struct{}

func (jsonWire[T, C]) Serialize(value T) (json.RawMessage, error) {
	return json.Marshal(value)
}

func (jsonWire[T, C]) Deserialize(raw json.RawMessage) (T, error) {
	return decodeStrict[T](raw)
}

func (jsonWire[T, C]) SerializeConfig(config C) (json.RawMessage, error) {
	return json.Marshal(config)
}

// An absent config payload decodes to the zero config.
func (jsonWire[T, C]) DeserializeConfig(raw json.RawMessage) (C, error) {
	if IsAbsent(raw) {
		var zero C
		return zero, nil
	}
	return decodeStrict[C](raw)
}

// IsAbsent reports whether a payload carries no value: empty, blank or JSON null.
func IsAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeStrict[T any](raw json.RawMessage) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(raw)
	if IsAbsent(trimmed) {
		return out, &FieldError{Message: "value is required"}
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return out, &FieldError{Message: "unexpected trailing data"}
	}
	return out, nil
}

func decodeError(err error) *FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &FieldError{Field: typeErr.Field, Message: "must be " + typeErr.Type.String()}
	}
	msg := err.Error()
	if field, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return &FieldError{Field: strings.Trim(field, `"`), Message: "unknown field"}
	}
	return &FieldError{Message: strings.TrimPrefix(msg, "json: ")}
}

// classified is the projection used by types without a natural percentage.
func classified(status domain.StatusID) ComputedStatus {
	switch status {
	case domain.StatusPassed:
		return ComputedStatus{Status: status, Compliance: 100}
	case domain.StatusWarning:
		return ComputedStatus{Status: status, Compliance: 50}
	default:
		return ComputedStatus{Status: status, Compliance: 0}
	}
}
