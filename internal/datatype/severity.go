package datatype

import (
	"github.com/animus-labs/stamps/internal/domain"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

func (s Severity) valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// SeverityCounts is a count of issues per severity, as reported by scanners
// and static analysis.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

func (c SeverityCounts) count(level Severity) int {
	switch level {
	case SeverityCritical:
		return c.Critical
	case SeverityHigh:
		return c.High
	case SeverityMedium:
		return c.Medium
	default:
		return c.Low
	}
}

type SeverityLevel struct {
	Level Severity `json:"level"`
	Value int      `json:"value"`
}

type SeverityConfig struct {
	WarningLevel *SeverityLevel `json:"warningLevel,omitempty"`
	FailedLevel  *SeverityLevel `json:"failedLevel,omitempty"`
}

type severityCountsType struct {
	jsonWire[SeverityCounts, SeverityConfig]
}

// SeverityCountsType returns the "severity-counts" data type.
func SeverityCountsType() Type[SeverityCounts, SeverityConfig] {
	return severityCountsType{}
}

func (severityCountsType) ID() string   { return "severity-counts" }
func (severityCountsType) Name() string { return "Critical / high / medium / low" }

func (severityCountsType) Validate(config SeverityConfig, value SeverityCounts) (SeverityCounts, error) {
	for _, f := range []struct {
		name  Severity
		count int
	}{
		{SeverityCritical, value.Critical},
		{SeverityHigh, value.High},
		{SeverityMedium, value.Medium},
		{SeverityLow, value.Low},
	} {
		if f.count < 0 {
			return value, fieldError(string(f.name), "%s count must be >= 0", f.name)
		}
	}
	return value, nil
}

func (severityCountsType) ValidateConfig(config SeverityConfig) error {
	if err := validateSeverityLevel("warningLevel", config.WarningLevel); err != nil {
		return err
	}
	return validateSeverityLevel("failedLevel", config.FailedLevel)
}

func validateSeverityLevel(field string, level *SeverityLevel) error {
	if level == nil {
		return nil
	}
	if !level.Level.valid() {
		return fieldError(field+".level", "unknown severity %q", level.Level)
	}
	if level.Value < 1 {
		return fieldError(field+".value", "must be >= 1")
	}
	return nil
}

func (severityCountsType) ComputeStatus(config SeverityConfig, value SeverityCounts) (ComputedStatus, bool) {
	if config.WarningLevel == nil && config.FailedLevel == nil {
		return ComputedStatus{}, false
	}
	if l := config.FailedLevel; l != nil && value.count(l.Level) >= l.Value {
		return classified(domain.StatusFailed), true
	}
	if l := config.WarningLevel; l != nil && value.count(l.Level) >= l.Value {
		return classified(domain.StatusWarning), true
	}
	return classified(domain.StatusPassed), true
}
