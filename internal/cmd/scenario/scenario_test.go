package scenario

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Scenario != "" {
		t.Fatalf("expected empty scenario path, got %q", cfg.Scenario)
	}
	if !cfg.Assertions {
		t.Fatal("expected assertions to default to true")
	}
	if cfg.Verbose {
		t.Fatal("expected verbose to default to false")
	}
	if cfg.Timeout != 10*time.Second {
		t.Fatalf("expected default timeout, got %s", cfg.Timeout)
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("ORDERCORE_SCENARIO_FILE", "env.lua")
	t.Setenv("ORDERCORE_SCENARIO_ASSERT", "true")

	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-scenario", "flag.lua", "-assert=false", "-timeout", "2s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Scenario != "flag.lua" {
		t.Fatalf("expected flag to win, got %q", cfg.Scenario)
	}
	if cfg.Assertions {
		t.Fatal("expected assertions disabled")
	}
	if cfg.Timeout != 2*time.Second {
		t.Fatalf("expected 2s timeout, got %s", cfg.Timeout)
	}
}

func TestRunRequiresScenarioPath(t *testing.T) {
	err := Run(context.Background(), Config{}, nil, nil)
	if err == nil {
		t.Fatal("expected error for missing scenario path")
	}
}

func TestRunExecutesScenarioFile(t *testing.T) {
	path := writeScenario(t, `
local scene = Scenario.new("cli")

scene:create_order({ id = "O1", customer = "ada", items = { laptop = 1 } })
scene:expect_status("O1", "completed")
scene:expect_version("O1", 5)

return scene
`)

	var out bytes.Buffer
	cfg := Config{Scenario: path, Assertions: true, Timeout: 10 * time.Second}
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "scenario cli: 3 steps, 2 checks, 0 failed") {
		t.Fatalf("unexpected report output: %q", out.String())
	}
}

func TestRunLogOnlyModePrintsFailures(t *testing.T) {
	path := writeScenario(t, `
local scene = Scenario.new("logonly")

scene:create_order({ id = "O1", customer = "ada", items = { laptop = 1 } })
scene:expect_status("O1", "cancelled")

return scene
`)

	var out, errOut bytes.Buffer
	cfg := Config{Scenario: path, Assertions: false, Timeout: 10 * time.Second}
	if err := Run(context.Background(), cfg, &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "1 failed") {
		t.Fatalf("expected failure count in report, got %q", out.String())
	}
	if !strings.Contains(out.String(), "want cancelled") {
		t.Fatalf("expected failure detail in report, got %q", out.String())
	}
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.lua")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}
