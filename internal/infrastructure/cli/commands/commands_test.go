package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/doeshing/calltrail/internal/app"
	"github.com/doeshing/calltrail/internal/application/introspection"
	"github.com/doeshing/calltrail/internal/domain"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	raw := "config_format_version: \"1\"\n" +
		"instance_id: cli-test\n" +
		"history:\n  replay_on_start: true\n" +
		"journal:\n  driver: jsonl\n  path: " + filepath.Join(dir, "history.jsonl") + "\n" +
		"fleet:\n  timeout: 2s\n  default_connection: default\n  connections:\n    default:\n      - name: self\n        url: local\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestContainer(t *testing.T, configPath string) *app.Container {
	t.Helper()
	c, err := app.BuildContainer(context.Background(), app.Options{ConfigPath: configPath})
	if err != nil {
		t.Fatalf("BuildContainer error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func recordCalls(t *testing.T, configPath string, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		c := newTestContainer(t, configPath)
		out, err := run(t, NewRecordCommand(c), "--tool", tool, "--duration-ms", "12", "--args", `{"q":"x"}`)
		if err != nil {
			t.Fatalf("record %s: %v", tool, err)
		}
		if !strings.Contains(out, "Recorded "+tool) {
			t.Fatalf("record output = %q", out)
		}
	}
}

func TestRecordThenCallsAcrossRestarts(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	recordCalls(t, path, "read_file", "grep", "read_file")

	c := newTestContainer(t, path)
	out, err := run(t, NewCallsCommand(c), "--local", "--json", "--tool", "read_file")
	if err != nil {
		t.Fatalf("calls error: %v", err)
	}
	var report introspection.ToolCallsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Result.Count != 2 || report.Result.TotalEntriesInMemory != 3 {
		t.Fatalf("unexpected result %+v", report.Result)
	}
	if report.Result.FilterToolName == nil || *report.Result.FilterToolName != "read_file" {
		t.Errorf("filter_tool_name = %v", report.Result.FilterToolName)
	}
}

func TestCallsThroughFleetRendersSummary(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	recordCalls(t, path, "grep")

	c := newTestContainer(t, path)
	out, err := run(t, NewCallsCommand(c))
	if err != nil {
		t.Fatalf("calls error: %v", err)
	}
	if !strings.Contains(out, "Tool Call History\nCalls: 1 | Latest: grep") {
		t.Fatalf("output = %q", out)
	}
}

func TestCallsRejectsBadFilters(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	c := newTestContainer(t, path)

	if _, err := run(t, NewCallsCommand(c), "--local", "--since", "yesterday"); err == nil {
		t.Fatal("expected an error for an unparseable since")
	}
	if _, err := run(t, NewCallsCommand(c), "--local", "--connection", "default"); err == nil {
		t.Fatal("expected an error for --local with --connection")
	}
	if _, err := run(t, NewCallsCommand(c), "--connection", "nope"); err == nil {
		t.Fatal("expected an error for an unknown connection")
	}
}

func TestUsageCountsThisProcessOnly(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	recordCalls(t, path, "grep")

	c := newTestContainer(t, path)
	out, err := run(t, NewUsageCommand(c), "--json")
	if err != nil {
		t.Fatalf("usage error: %v", err)
	}
	var report introspection.UsageReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Result.TotalCalls != 0 || report.Summary != "Usage Statistics\nTotal: 0 | Success: 0 | Failed: 0 | Rate: 0.0%" {
		t.Fatalf("unexpected report %+v", report)
	}

	out, err = run(t, NewUsageCommand(c), "--servers")
	if err != nil {
		t.Fatalf("usage --servers error: %v", err)
	}
	if !strings.Contains(out, "Connection default: 1/1 servers available") {
		t.Fatalf("output = %q", out)
	}
}

func TestRecordValidation(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	c := newTestContainer(t, path)

	if _, err := run(t, NewRecordCommand(c)); err == nil || err.Error() != ErrToolRequired {
		t.Fatalf("missing tool error = %v", err)
	}
	if _, err := run(t, NewRecordCommand(c), "--tool", "x", "--args", "{not json"); err == nil {
		t.Fatal("expected an error for invalid args JSON")
	}
}

func TestHistorySubcommands(t *testing.T) {
	dir := t.TempDir()
	path := writeTestConfig(t, dir)

	c := newTestContainer(t, path)
	out, err := run(t, NewHistoryCommand(c), "list")
	if err != nil || !strings.Contains(out, MsgNoHistoryRecorded) {
		t.Fatalf("empty list = %q, %v", out, err)
	}

	recordCalls(t, path, "a", "b", "a")
	c = newTestContainer(t, path)

	out, err = run(t, NewHistoryCommand(c), "list", "--limit", "2")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "| b ") || !strings.Contains(lines[1], "| a ") {
		t.Fatalf("list output = %q", out)
	}

	out, err = run(t, NewHistoryCommand(c), "stats")
	if err != nil {
		t.Fatalf("stats error: %v", err)
	}
	if !strings.Contains(out, "Entries analyzed: 3") || !strings.Contains(out, "a (2 calls, 0 failed)") {
		t.Fatalf("stats output = %q", out)
	}

	exportPath := filepath.Join(dir, "export.jsonl")
	if _, err := run(t, NewHistoryCommand(c), "export", exportPath); err != nil {
		t.Fatalf("export error: %v", err)
	}
	raw, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatal(err)
	}
	exported := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(exported) != 3 {
		t.Fatalf("exported %d lines", len(exported))
	}
	var first domain.Record
	if err := json.Unmarshal([]byte(exported[0]), &first); err != nil || first.ToolName != "a" || first.InstanceID != "cli-test" {
		t.Fatalf("first exported record = %+v, %v", first, err)
	}

	out, err = run(t, NewHistoryCommand(c), "path")
	if err != nil || strings.TrimSpace(out) != filepath.Join(dir, "history.jsonl") {
		t.Fatalf("path = %q, %v", out, err)
	}
}

func TestConfigGetSetDiff(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	c := newTestContainer(t, path)

	out, err := run(t, NewConfigCommand(c), "get", "--key", "fleet.timeout")
	if err != nil || strings.TrimSpace(out) != "2s" {
		t.Fatalf("get = %q, %v", out, err)
	}

	if _, err := run(t, NewConfigCommand(c), "set", "fleet.parallelism", "3"); err != nil {
		t.Fatalf("set error: %v", err)
	}
	out, err = run(t, NewConfigCommand(c), "get", "--key", "fleet.parallelism")
	if err != nil || strings.TrimSpace(out) != "3" {
		t.Fatalf("get after set = %q, %v", out, err)
	}
	if backups, _ := filepath.Glob(path + ".*.bak"); len(backups) != 1 {
		t.Errorf("expected one backup next to the config, got %v", backups)
	}

	if _, err := run(t, NewConfigCommand(c), "set", "logging.level", "loud"); err == nil {
		t.Fatal("expected validation to reject an unknown log level")
	}

	out, err = run(t, NewConfigCommand(c), "diff")
	if err != nil || !strings.Contains(out, "Parallelism") {
		t.Fatalf("diff = %q, %v", out, err)
	}

	out, err = run(t, NewConfigCommand(c), "validate")
	if err != nil || !strings.Contains(out, MsgConfigurationValid) {
		t.Fatalf("validate = %q, %v", out, err)
	}
}

func TestDoctorReportsChecks(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	c := newTestContainer(t, path)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, NewDoctorCommand(c))
	if err != nil {
		t.Fatalf("doctor error: %v\n%s", err, out)
	}
	for _, want := range []string{"[OK] Config file", "[OK] Journal (jsonl)", "[OK] Connection default"} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, NewVersionCommand())
	if err != nil || !strings.HasPrefix(out, "calltrail version ") {
		t.Fatalf("version = %q, %v", out, err)
	}
}

func TestCallsNegativeOffsetKeepsMostRecent(t *testing.T) {
	path := writeTestConfig(t, t.TempDir())
	recordCalls(t, path, "a", "b", "c")

	c := newTestContainer(t, path)
	cmd := NewCallsCommand(c)
	if usage := cmd.Flags().Lookup("offset").Usage; !strings.Contains(usage, "most recent") {
		t.Errorf("offset usage = %q", usage)
	}
	out, err := run(t, cmd, "--local", "--json", "--offset", "-1")
	if err != nil {
		t.Fatalf("calls error: %v", err)
	}
	var report introspection.ToolCallsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if report.Result.Count != 1 || report.Result.Calls[0].ToolName != "c" {
		t.Fatalf("unexpected result %+v", report.Result)
	}
}
