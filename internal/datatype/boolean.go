package datatype

import "github.com/animus-labs/stamps/internal/domain"

// BooleanConfig.Required makes a false value a failure instead of a warning.
type BooleanConfig struct {
	Required bool `json:"required"`
}

type booleanType struct {
	jsonWire[bool, BooleanConfig]
}

// BooleanType returns the "boolean" data type.
func BooleanType() Type[bool, BooleanConfig] {
	return booleanType{}
}

func (booleanType) ID() string   { return "boolean" }
func (booleanType) Name() string { return "Boolean" }

func (booleanType) Validate(config BooleanConfig, value bool) (bool, error) {
	return value, nil
}

func (booleanType) ValidateConfig(config BooleanConfig) error {
	return nil
}

func (booleanType) ComputeStatus(config BooleanConfig, value bool) (ComputedStatus, bool) {
	switch {
	case value:
		return classified(domain.StatusPassed), true
	case config.Required:
		return classified(domain.StatusFailed), true
	default:
		return classified(domain.StatusWarning), true
	}
}
