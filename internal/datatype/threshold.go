package datatype

import (
	"math/bits"

	"github.com/animus-labs/stamps/internal/domain"
)

// ThresholdConfig classifies a number against optional warning and failure
// thresholds. OkIfGreater defaults to true: higher values are better.
type ThresholdConfig struct {
	WarningThreshold *int  `json:"warningThreshold,omitempty"`
	FailureThreshold *int  `json:"failureThreshold,omitempty"`
	OkIfGreater      *bool `json:"okIfGreater,omitempty"`
}

func (c ThresholdConfig) okIfGreater() bool {
	return c.OkIfGreater == nil || *c.OkIfGreater
}

func (c ThresholdConfig) validate(bounded bool) error {
	if bounded {
		for _, f := range []struct {
			name  string
			value *int
		}{
			{"warningThreshold", c.WarningThreshold},
			{"failureThreshold", c.FailureThreshold},
		} {
			if f.value != nil && (*f.value < 0 || *f.value > 100) {
				return fieldError(f.name, "must be between 0 and 100")
			}
		}
	}
	if c.WarningThreshold == nil || c.FailureThreshold == nil {
		return nil
	}
	if c.okIfGreater() && *c.WarningThreshold < *c.FailureThreshold {
		return fieldError("warningThreshold", "must be >= failureThreshold when higher values are better")
	}
	if !c.okIfGreater() && *c.WarningThreshold > *c.FailureThreshold {
		return fieldError("warningThreshold", "must be <= failureThreshold when lower values are better")
	}
	return nil
}

func (c ThresholdConfig) classify(value int) (domain.StatusID, bool) {
	if c.WarningThreshold == nil && c.FailureThreshold == nil {
		return "", false
	}
	breaches := func(threshold *int) bool {
		if threshold == nil {
			return false
		}
		if c.okIfGreater() {
			return value <= *threshold
		}
		return value >= *threshold
	}
	switch {
	case breaches(c.FailureThreshold):
		return domain.StatusFailed, true
	case breaches(c.WarningThreshold):
		return domain.StatusWarning, true
	default:
		return domain.StatusPassed, true
	}
}

// percentStatus classifies a percentage and uses it as the compliance.
func (c ThresholdConfig) percentStatus(percent int) (ComputedStatus, bool) {
	status, ok := c.classify(percent)
	if !ok {
		return ComputedStatus{}, false
	}
	compliance := percent
	if !c.okIfGreater() {
		compliance = 100 - percent
	}
	return ComputedStatus{Status: status, Compliance: compliance}, true
}

type percentageType struct {
	jsonWire[int, ThresholdConfig]
}

// PercentageType returns the "threshold-percentage" data type.
func PercentageType() Type[int, ThresholdConfig] {
	return percentageType{}
}

func (percentageType) ID() string   { return "threshold-percentage" }
func (percentageType) Name() string { return "Percentage with thresholds" }

func (percentageType) Validate(config ThresholdConfig, value int) (int, error) {
	if value < 0 || value > 100 {
		return value, fieldError("value", "percentage must be between 0 and 100")
	}
	return value, nil
}

func (percentageType) ValidateConfig(config ThresholdConfig) error {
	return config.validate(true)
}

func (percentageType) ComputeStatus(config ThresholdConfig, value int) (ComputedStatus, bool) {
	return config.percentStatus(value)
}

type numberType struct {
	jsonWire[int, ThresholdConfig]
}

// NumberType returns the "threshold-number" data type.
func NumberType() Type[int, ThresholdConfig] {
	return numberType{}
}

func (numberType) ID() string   { return "threshold-number" }
func (numberType) Name() string { return "Number with thresholds" }

func (numberType) Validate(config ThresholdConfig, value int) (int, error) {
	return value, nil
}

func (numberType) ValidateConfig(config ThresholdConfig) error {
	return config.validate(false)
}

func (numberType) ComputeStatus(config ThresholdConfig, value int) (ComputedStatus, bool) {
	status, ok := config.classify(value)
	if !ok {
		return ComputedStatus{}, false
	}
	return classified(status), true
}

type Fraction struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// Percent rounds down and is clamped to [0, 100]. The product is computed in
// 128 bits so large counts do not overflow.
func (f Fraction) Percent() int {
	switch {
	case f.Denominator <= 0 || f.Numerator <= 0:
		return 0
	case f.Numerator >= f.Denominator:
		return 100
	}
	hi, lo := bits.Mul64(uint64(f.Numerator), 100)
	q, _ := bits.Div64(hi, lo, uint64(f.Denominator))
	return int(q)
}

type fractionType struct {
	jsonWire[Fraction, ThresholdConfig]
}

// FractionType returns the "fraction" data type. Thresholds apply to the
// fraction expressed as a percentage.
func FractionType() Type[Fraction, ThresholdConfig] {
	return fractionType{}
}

func (fractionType) ID() string   { return "fraction" }
func (fractionType) Name() string { return "Fraction" }

func (fractionType) Validate(config ThresholdConfig, value Fraction) (Fraction, error) {
	if value.Denominator <= 0 {
		return value, fieldError("denominator", "must be > 0")
	}
	if value.Numerator < 0 {
		return value, fieldError("numerator", "must be >= 0")
	}
	if value.Numerator > value.Denominator {
		return value, fieldError("numerator", "must be <= denominator")
	}
	return value, nil
}

func (fractionType) ValidateConfig(config ThresholdConfig) error {
	return config.validate(true)
}

func (fractionType) ComputeStatus(config ThresholdConfig, value Fraction) (ComputedStatus, bool) {
	if value.Denominator <= 0 {
		return ComputedStatus{}, false
	}
	return config.percentStatus(value.Percent())
}
