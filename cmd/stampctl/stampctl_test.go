package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/domain"
	"github.com/animus-labs/stamps/internal/repo/memory"
	"github.com/animus-labs/stamps/internal/service/validation"
)

func memoryApp(svc *validation.Service) *app {
	return &app{
		openService: func(ctx context.Context, cfg cliConfig, logger *slog.Logger) (*validation.Service, func(), error) {
			return svc, func() {}, nil
		},
		migrate: func(ctx context.Context, cfg cliConfig) error { return nil },
	}
}

func execute(t *testing.T, a *app, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--no-color"))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newMemoryService(t *testing.T) *validation.Service {
	t.Helper()
	store := memory.New()
	return validation.New(store, store, datatype.Builtin(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDataTypesJSON(t *testing.T) {
	out, err := execute(t, memoryApp(nil), "", "data-types", "-o", "json")
	if err != nil {
		t.Fatalf("data-types err=%v", err)
	}
	var items []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(items) != len(datatype.Builtin().Types()) {
		t.Fatalf("expected every builtin type, got %d", len(items))
	}
	found := false
	for _, item := range items {
		found = found || item.ID == "severity-counts"
	}
	if !found {
		t.Fatalf("severity-counts missing from %v", items)
	}
}

func TestCheckYAMLDocuments(t *testing.T) {
	config := writeFile(t, "config.yaml", "failedLevel:\n  level: critical\n  value: 1\n")
	data := writeFile(t, "data.yaml", "critical: 2\nhigh: 4\nmedium: 8\n")

	out, err := execute(t, memoryApp(nil), "", "check", "--type", "severity-counts", "--config-file", config, "--data", data)
	if err != nil {
		t.Fatalf("check err=%v", err)
	}
	if !strings.Contains(out, `"critical":2`) || !strings.Contains(out, `"medium":8`) {
		t.Fatalf("expected canonical data, got %q", out)
	}
	if !strings.Contains(out, "status:  FAILED (compliance 0)") {
		t.Fatalf("expected computed FAILED status, got %q", out)
	}
}

func TestCheckStdinAndUndetermined(t *testing.T) {
	out, err := execute(t, memoryApp(nil), `{"critical":0,"high":1}`, "check", "--type", "severity-counts", "--data", "-")
	if err != nil {
		t.Fatalf("check err=%v", err)
	}
	if !strings.Contains(out, "status:  undetermined") {
		t.Fatalf("expected undetermined status, got %q", out)
	}
}

func TestCheckRejectsInvalidInput(t *testing.T) {
	data := writeFile(t, "data.json", `{"critical":-1}`)
	_, err := execute(t, memoryApp(nil), "", "check", "--type", "severity-counts", "--data", data)
	var fieldErr *datatype.FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "critical" {
		t.Fatalf("expected field error on critical, got %v", err)
	}

	_, err = execute(t, memoryApp(nil), "", "check", "--type", "sonar-measures")
	var notFound *datatype.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	if _, err := execute(t, memoryApp(nil), "", "check", "--type", "boolean", "--config-file", "-", "--data", "-"); err == nil {
		t.Fatalf("expected error when both documents read stdin")
	}

	_, err = execute(t, memoryApp(nil), "", "check", "--type", "boolean", "--data", writeFile(t, "null.json", "null"))
	if !errors.As(err, &fieldErr) || fieldErr.Message != "value is required" {
		t.Fatalf("expected value is required for null data, got %v", err)
	}
}

func TestStatsCommand(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t)
	_, err := svc.CreateStamp(ctx, validation.CreateStampInput{
		ID:       "coverage",
		BranchID: "main",
		Name:     "coverage",
		DataType: &domain.DataTypeConfig{
			TypeID: "threshold-percentage",
			Config: json.RawMessage(`{"warningThreshold":4,"failureThreshold":2}`),
		},
		Signature: domain.Signature{User: "ci"},
	})
	if err != nil {
		t.Fatalf("CreateStamp() err=%v", err)
	}
	for _, value := range []string{"5", "3", "5", "1"} {
		_, err := svc.CreateRun(ctx, validation.CreateRunInput{
			BuildID:   "b1",
			StampID:   "coverage",
			Signature: domain.Signature{User: "ci"},
			Data:      &validation.DataInput{Value: json.RawMessage(value)},
		})
		if err != nil {
			t.Fatalf("CreateRun(%s) err=%v", value, err)
		}
	}

	out, err := execute(t, memoryApp(svc), "", "stats", "--stamp", "coverage")
	if err != nil {
		t.Fatalf("stats err=%v", err)
	}
	for _, want := range []string{
		"runs:        4, 4 with a value",
		"min 1 (x1)  avg 3.5  max 5 (x2)",
		"FAILED 1, PASSED 2, WARNING 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}

	if _, err := execute(t, memoryApp(svc), "", "stats", "--stamp", "ghost"); err == nil {
		t.Fatalf("expected error for unknown stamp")
	}
}

func TestRunShow(t *testing.T) {
	ctx := context.Background()
	svc := newMemoryService(t)
	if _, err := svc.CreateStamp(ctx, validation.CreateStampInput{ID: "lint", BranchID: "main", Name: "lint", Signature: domain.Signature{User: "ci"}}); err != nil {
		t.Fatalf("CreateStamp() err=%v", err)
	}
	run, err := svc.CreateRun(ctx, validation.CreateRunInput{BuildID: "b7", StampID: "lint", Status: domain.StatusFailed, Signature: domain.Signature{User: "ci"}})
	if err != nil {
		t.Fatalf("CreateRun() err=%v", err)
	}
	if _, err := svc.AppendStatus(ctx, run.ID, domain.StatusDefective, domain.Signature{User: "alice"}, "flaky runner"); err != nil {
		t.Fatalf("AppendStatus() err=%v", err)
	}

	out, err := execute(t, memoryApp(svc), "", "run", "show", run.ID)
	if err != nil {
		t.Fatalf("run show err=%v", err)
	}
	failed := strings.Index(out, "FAILED")
	defective := strings.Index(out, "DEFECTIVE")
	if !strings.Contains(out, "build:   b7") || failed < 0 || defective < failed || !strings.Contains(out, "flaky runner") {
		t.Fatalf("unexpected run output %q", out)
	}

	_, err = execute(t, memoryApp(svc), "", "run", "show", "ghost")
	var notFound *validation.RunNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected RunNotFoundError, got %v", err)
	}
}

func TestMigrateUsesConfiguredDatabase(t *testing.T) {
	a := memoryApp(nil)
	var gotURL string
	a.migrate = func(ctx context.Context, cfg cliConfig) error {
		gotURL = cfg.Database.URL
		return nil
	}
	out, err := execute(t, a, "", "migrate", "--database-url", "postgres://db/stamps")
	if err != nil || !strings.Contains(out, "schema applied") {
		t.Fatalf("migrate out=%q err=%v", out, err)
	}
	if gotURL != "postgres://db/stamps" {
		t.Fatalf("expected flag url, got %q", gotURL)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "stampctl.yaml", "database:\n  url: postgres://file/stamps\n  ping_timeout: 5s\noutput:\n  format: JSON\n")
	cfg, err := loadConfig(path, nil)
	if err != nil {
		t.Fatalf("loadConfig() err=%v", err)
	}
	if cfg.Database.URL != "postgres://file/stamps" || cfg.Database.PingTimeout.Seconds() != 5 || cfg.Output.Format != "json" || !cfg.Output.Color {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("STAMPCTL_DATABASE_URL", "postgres://env/stamps")
	cfg, err = loadConfig(path, nil)
	if err != nil || cfg.Database.URL != "postgres://env/stamps" {
		t.Fatalf("expected env override, got %+v err=%v", cfg, err)
	}

	t.Setenv("STAMPCTL_OUTPUT_FORMAT", "xml")
	if _, err := loadConfig("", nil); err == nil {
		t.Fatalf("expected error for unsupported output format")
	}
}

func TestToJSON(t *testing.T) {
	raw, err := toJSON([]byte("passed: 10\nskipped: 1\n"))
	if err != nil {
		t.Fatalf("toJSON() err=%v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil || got["passed"] != 10 || got["skipped"] != 1 {
		t.Fatalf("unexpected conversion %s err=%v", raw, err)
	}
	raw, err = toJSON([]byte(" {\"a\": 1} \n"))
	if err != nil || string(raw) != `{"a": 1}` {
		t.Fatalf("expected JSON kept verbatim, got %s err=%v", raw, err)
	}
	if raw, err := toJSON([]byte("  \n")); err != nil || raw != nil {
		t.Fatalf("expected nil for blank document, got %s err=%v", raw, err)
	}
}
