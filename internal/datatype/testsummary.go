package datatype

import "github.com/animus-labs/stamps/internal/domain"

type TestSummary struct {
	Passed  int `json:"passed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type TestSummaryConfig struct {
	WarningIfSkipped bool `json:"warningIfSkipped"`
}

type testSummaryType struct {
	jsonWire[TestSummary, TestSummaryConfig]
}

// TestSummaryType returns the "test-summary" data type.
func TestSummaryType() Type[TestSummary, TestSummaryConfig] {
	return testSummaryType{}
}

func (testSummaryType) ID() string   { return "test-summary" }
func (testSummaryType) Name() string { return "Test summary" }

func (testSummaryType) Validate(config TestSummaryConfig, value TestSummary) (TestSummary, error) {
	switch {
	case value.Passed < 0:
		return value, fieldError("passed", "must be >= 0")
	case value.Skipped < 0:
		return value, fieldError("skipped", "must be >= 0")
	case value.Failed < 0:
		return value, fieldError("failed", "must be >= 0")
	}
	return value, nil
}

func (testSummaryType) ValidateConfig(config TestSummaryConfig) error {
	return nil
}

func (testSummaryType) ComputeStatus(config TestSummaryConfig, value TestSummary) (ComputedStatus, bool) {
	switch {
	case value.Failed > 0:
		return classified(domain.StatusFailed), true
	case value.Skipped > 0 && config.WarningIfSkipped:
		return classified(domain.StatusWarning), true
	default:
		return classified(domain.StatusPassed), true
	}
}
