package datatype

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/animus-labs/stamps/internal/domain"
)

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		typeID string
		value  any
		config any
	}{
		{"severity-counts", SeverityCounts{Critical: 2, High: 4, Medium: 8}, SeverityConfig{FailedLevel: &SeverityLevel{Level: SeverityCritical, Value: 1}}},
		{"severity-counts", SeverityCounts{}, SeverityConfig{}},
		{"threshold-percentage", 87, ThresholdConfig{WarningThreshold: intp(80), FailureThreshold: intp(60)}},
		{"threshold-percentage", 0, ThresholdConfig{FailureThreshold: intp(0), OkIfGreater: boolp(false)}},
		{"threshold-number", -12, ThresholdConfig{WarningThreshold: intp(10)}},
		{"fraction", Fraction{Numerator: 3, Denominator: 4}, ThresholdConfig{}},
		{"test-summary", TestSummary{Passed: 10, Skipped: 1}, TestSummaryConfig{WarningIfSkipped: true}},
		{"boolean", false, BooleanConfig{Required: true}},
	}
	for _, tc := range cases {
		dt, err := Builtin().Resolve(tc.typeID)
		if err != nil {
			t.Fatalf("Resolve(%q) err=%v", tc.typeID, err)
		}
		raw, err := dt.Serialize(tc.value)
		if err != nil {
			t.Fatalf("%s Serialize() err=%v", tc.typeID, err)
		}
		got, err := dt.Deserialize(raw)
		if err != nil {
			t.Fatalf("%s Deserialize(%s) err=%v", tc.typeID, raw, err)
		}
		if !reflect.DeepEqual(got, tc.value) {
			t.Fatalf("%s value round trip=%#v, want %#v", tc.typeID, got, tc.value)
		}

		rawConfig, err := dt.SerializeConfig(tc.config)
		if err != nil {
			t.Fatalf("%s SerializeConfig() err=%v", tc.typeID, err)
		}
		gotConfig, err := dt.DeserializeConfig(rawConfig)
		if err != nil {
			t.Fatalf("%s DeserializeConfig(%s) err=%v", tc.typeID, rawConfig, err)
		}
		if !reflect.DeepEqual(gotConfig, tc.config) {
			t.Fatalf("%s config round trip=%#v, want %#v", tc.typeID, gotConfig, tc.config)
		}
	}
}

func TestSeverityCountsValidate(t *testing.T) {
	dt := Erase(SeverityCountsType())
	value, err := dt.Deserialize(json.RawMessage(`{"critical":-1,"high":0,"medium":0}`))
	if err != nil {
		t.Fatalf("Deserialize() err=%v", err)
	}
	_, err = dt.Validate(SeverityConfig{}, value)
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "critical" {
		t.Fatalf("expected critical field error, got %v", err)
	}

	if _, err := dt.Deserialize(json.RawMessage(`{"critical":1,"blocker":2}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := dt.Deserialize(json.RawMessage(`{"critical":"many"}`)); !errors.As(err, &fe) || fe.Field != "critical" {
		t.Fatalf("expected typed field error, got %v", err)
	}
}

func TestSeverityCountsComputeStatus(t *testing.T) {
	typ := SeverityCountsType()
	cfg := SeverityConfig{
		WarningLevel: &SeverityLevel{Level: SeverityHigh, Value: 5},
		FailedLevel:  &SeverityLevel{Level: SeverityCritical, Value: 1},
	}
	cases := []struct {
		value SeverityCounts
		want  domain.StatusID
	}{
		{SeverityCounts{Critical: 1}, domain.StatusFailed},
		{SeverityCounts{High: 5}, domain.StatusWarning},
		{SeverityCounts{High: 4, Low: 100}, domain.StatusPassed},
	}
	for _, tc := range cases {
		got, ok := typ.ComputeStatus(cfg, tc.value)
		if !ok || got.Status != tc.want {
			t.Fatalf("ComputeStatus(%+v)=%+v ok=%v, want %s", tc.value, got, ok, tc.want)
		}
	}
	if _, ok := typ.ComputeStatus(SeverityConfig{}, SeverityCounts{Critical: 3}); ok {
		t.Fatalf("expected undetermined status without levels")
	}
	if err := typ.ValidateConfig(SeverityConfig{FailedLevel: &SeverityLevel{Level: "blocker", Value: 1}}); err == nil {
		t.Fatalf("expected unknown severity error")
	}
}

func TestPercentageComputeStatus(t *testing.T) {
	typ := PercentageType()
	cfg := ThresholdConfig{WarningThreshold: intp(80), FailureThreshold: intp(60)}
	cases := []struct {
		value int
		want  ComputedStatus
	}{
		{90, ComputedStatus{Status: domain.StatusPassed, Compliance: 90}},
		{80, ComputedStatus{Status: domain.StatusWarning, Compliance: 80}},
		{60, ComputedStatus{Status: domain.StatusFailed, Compliance: 60}},
	}
	for _, tc := range cases {
		got, ok := typ.ComputeStatus(cfg, tc.value)
		if !ok || got != tc.want {
			t.Fatalf("ComputeStatus(%d)=%+v, want %+v", tc.value, got, tc.want)
		}
	}

	lower := ThresholdConfig{WarningThreshold: intp(10), FailureThreshold: intp(20), OkIfGreater: boolp(false)}
	got, ok := typ.ComputeStatus(lower, 15)
	if !ok || got != (ComputedStatus{Status: domain.StatusWarning, Compliance: 85}) {
		t.Fatalf("lower-is-better ComputeStatus()=%+v", got)
	}
	if _, ok := typ.ComputeStatus(ThresholdConfig{}, 50); ok {
		t.Fatalf("expected undetermined status without thresholds")
	}
	if _, err := typ.Validate(cfg, 101); err == nil {
		t.Fatalf("expected out of range error")
	}
	if err := typ.ValidateConfig(ThresholdConfig{WarningThreshold: intp(50), FailureThreshold: intp(70)}); err == nil {
		t.Fatalf("expected inconsistent thresholds error")
	}
	if err := typ.ValidateConfig(ThresholdConfig{FailureThreshold: intp(120)}); err == nil {
		t.Fatalf("expected bounded threshold error")
	}
}

func TestFraction(t *testing.T) {
	typ := FractionType()
	for _, bad := range []Fraction{{1, 0}, {-1, 2}, {3, 2}} {
		if _, err := typ.Validate(ThresholdConfig{}, bad); err == nil {
			t.Fatalf("Validate(%+v) expected error", bad)
		}
	}
	got, ok := typ.ComputeStatus(ThresholdConfig{FailureThreshold: intp(50)}, Fraction{Numerator: 1, Denominator: 3})
	if !ok || got != (ComputedStatus{Status: domain.StatusFailed, Compliance: 33}) {
		t.Fatalf("ComputeStatus()=%+v", got)
	}
}

func TestFractionPercentLargeCounts(t *testing.T) {
	cases := []struct {
		f    Fraction
		want int
	}{
		{Fraction{Numerator: 1e17, Denominator: 1e17}, 100},
		{Fraction{Numerator: 1e17, Denominator: 2e17}, 50},
		{Fraction{Numerator: math.MaxInt64 - 1, Denominator: math.MaxInt64}, 99},
		{Fraction{Numerator: 0, Denominator: math.MaxInt64}, 0},
		{Fraction{Numerator: 1, Denominator: 0}, 0},
	}
	for _, tc := range cases {
		if got := tc.f.Percent(); got != tc.want {
			t.Fatalf("%+v.Percent()=%d, want %d", tc.f, got, tc.want)
		}
	}
	got, ok := FractionType().ComputeStatus(ThresholdConfig{FailureThreshold: intp(50)}, Fraction{Numerator: 1e17, Denominator: 1e17})
	if !ok || got != (ComputedStatus{Status: domain.StatusPassed, Compliance: 100}) {
		t.Fatalf("ComputeStatus() on large counts=%+v", got)
	}
}

func TestTestSummaryAndBoolean(t *testing.T) {
	ts := TestSummaryType()
	if got, _ := ts.ComputeStatus(TestSummaryConfig{}, TestSummary{Passed: 3, Skipped: 1}); got.Status != domain.StatusPassed {
		t.Fatalf("skipped without warning flag should pass, got %s", got.Status)
	}
	if got, _ := ts.ComputeStatus(TestSummaryConfig{WarningIfSkipped: true}, TestSummary{Skipped: 1}); got != (ComputedStatus{Status: domain.StatusWarning, Compliance: 50}) {
		t.Fatalf("unexpected status %+v", got)
	}
	if got, _ := ts.ComputeStatus(TestSummaryConfig{}, TestSummary{Failed: 1}); got.Status != domain.StatusFailed {
		t.Fatalf("failed tests should fail, got %s", got.Status)
	}
	if _, err := ts.Validate(TestSummaryConfig{}, TestSummary{Skipped: -1}); err == nil {
		t.Fatalf("expected negative skipped error")
	}

	b := BooleanType()
	if got, _ := b.ComputeStatus(BooleanConfig{Required: true}, false); got.Status != domain.StatusFailed {
		t.Fatalf("required false should fail, got %s", got.Status)
	}
	if got, _ := b.ComputeStatus(BooleanConfig{}, false); got.Status != domain.StatusWarning {
		t.Fatalf("optional false should warn, got %s", got.Status)
	}
	if got, _ := b.ComputeStatus(BooleanConfig{}, true); got.Compliance != 100 {
		t.Fatalf("true should be fully compliant, got %+v", got)
	}
}

func TestDeserializeRejectsNull(t *testing.T) {
	for _, dt := range Builtin().Types() {
		for _, raw := range []string{`null`, "  null\n", ``} {
			_, err := dt.Deserialize(json.RawMessage(raw))
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Message != "value is required" {
				t.Fatalf("%s: Deserialize(%q) expected value is required, got %v", dt.ID(), raw, err)
			}
		}
	}
	if !IsAbsent(json.RawMessage(" null ")) || IsAbsent(json.RawMessage(`"null"`)) || IsAbsent(json.RawMessage(`0`)) {
		t.Fatalf("IsAbsent misclassifies payloads")
	}
}

func TestErasedRejectsWrongTypes(t *testing.T) {
	dt := Erase(PercentageType())
	if _, err := dt.Validate(ThresholdConfig{}, "42"); err == nil {
		t.Fatalf("expected value type error")
	}
	if _, _, err := dt.ComputeStatus(BooleanConfig{}, 42); err == nil {
		t.Fatalf("expected config type error")
	}
	if _, err := dt.Serialize(42.0); err == nil {
		t.Fatalf("expected serialize type error")
	}
	cfg, err := dt.DeserializeConfig(nil)
	if err != nil || !reflect.DeepEqual(cfg, ThresholdConfig{}) {
		t.Fatalf("DeserializeConfig(nil)=%#v err=%v", cfg, err)
	}
	if _, ok, err := dt.ComputeStatus(nil, 42); err != nil || ok {
		t.Fatalf("nil config should be zero config, ok=%v err=%v", ok, err)
	}
}
