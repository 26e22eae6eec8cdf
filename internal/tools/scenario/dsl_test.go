package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateOrderChainingCreatesSteps(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local scene = Scenario.new("chain")

-- Order + chained expectations
scene:create_order({id = "O1", customer = "ada", items = {laptop = 1}}):expect_status("completed"):expect_version(5)

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "chain" {
		t.Fatalf("name = %q, want chain", scenario.Name)
	}
	if len(scenario.Steps) != 3 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 3)
	}

	create := scenario.Steps[0]
	if create.Kind != "create_order" {
		t.Fatalf("step kind = %q, want %q", create.Kind, "create_order")
	}
	if create.Args["customer"] != "ada" {
		t.Fatalf("customer = %v, want ada", create.Args["customer"])
	}
	items, ok := create.Args["items"].(map[string]any)
	if !ok {
		t.Fatalf("items = %T, want map", create.Args["items"])
	}
	if items["laptop"] != 1 {
		t.Fatalf("laptop quantity = %v (%T), want int 1", items["laptop"], items["laptop"])
	}

	status := scenario.Steps[1]
	if status.Kind != "expect_status" {
		t.Fatalf("step kind = %q, want %q", status.Kind, "expect_status")
	}
	if status.Args["order"] != "O1" {
		t.Fatalf("expect_status order = %v, want O1", status.Args["order"])
	}
	if status.Args["status"] != "completed" {
		t.Fatalf("expect_status status = %v, want completed", status.Args["status"])
	}

	version := scenario.Steps[2]
	if version.Kind != "expect_version" {
		t.Fatalf("step kind = %q, want %q", version.Kind, "expect_version")
	}
	if version.Args["order"] != "O1" {
		t.Fatalf("expect_version order = %v, want O1", version.Args["order"])
	}
	if version.Args["version"] != 5 {
		t.Fatalf("expect_version version = %v (%T), want int 5", version.Args["version"], version.Args["version"])
	}
}

func TestScenarioRecordsSubmitAndUndoSteps(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local scene = Scenario.new("flow")
scene:create_order({id = "O1", customer = "ada", items = {laptop = 1}})

-- Follow-up commands
scene:submit({order = "O1", type = "order.cancel", payload = {reason = "changed mind", tags = {"late", "manual"}}})
scene:submit_stale({order = "O1", type = "order.cancel", expected_version = 1})
scene:undo("O1")
scene:redo()
scene:sleep(5)

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 6 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 6)
	}

	submit := scenario.Steps[1]
	if submit.Kind != "submit" {
		t.Fatalf("step kind = %q, want %q", submit.Kind, "submit")
	}
	if submit.Args["type"] != "order.cancel" {
		t.Fatalf("submit type = %v, want order.cancel", submit.Args["type"])
	}
	payload, ok := submit.Args["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want map", submit.Args["payload"])
	}
	if payload["reason"] != "changed mind" {
		t.Fatalf("payload reason = %v, want changed mind", payload["reason"])
	}
	tags, ok := payload["tags"].([]any)
	if !ok {
		t.Fatalf("payload tags = %T, want list", payload["tags"])
	}
	if len(tags) != 2 || tags[0] != "late" || tags[1] != "manual" {
		t.Fatalf("payload tags = %v, want [late manual]", tags)
	}

	stale := scenario.Steps[2]
	if stale.Kind != "submit_stale" {
		t.Fatalf("step kind = %q, want %q", stale.Kind, "submit_stale")
	}
	if stale.Args["expected_version"] != 1 {
		t.Fatalf("expected_version = %v (%T), want int 1", stale.Args["expected_version"], stale.Args["expected_version"])
	}

	undo := scenario.Steps[3]
	if undo.Kind != "undo" {
		t.Fatalf("step kind = %q, want %q", undo.Kind, "undo")
	}
	if undo.Args["order"] != "O1" {
		t.Fatalf("undo order = %v, want O1", undo.Args["order"])
	}

	redo := scenario.Steps[4]
	if redo.Kind != "redo" {
		t.Fatalf("step kind = %q, want %q", redo.Kind, "redo")
	}
	if len(redo.Args) != 0 {
		t.Fatalf("redo args = %v, want empty", redo.Args)
	}

	sleep := scenario.Steps[5]
	if sleep.Kind != "sleep" {
		t.Fatalf("step kind = %q, want %q", sleep.Kind, "sleep")
	}
	if sleep.Args["ms"] != 5 {
		t.Fatalf("sleep ms = %v, want 5", sleep.Args["ms"])
	}
}

func TestScenarioExpectStepsUsePositionalArgs(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local scene = Scenario.new("expects")
scene:create_order({id = "O1", customer = "ada", items = {laptop = 1}})

-- Expectations
scene:expect_event("O1", 2, "order.inventory_checked", {caused_by = 1})
scene:expect_event_count("O1", 5)
scene:expect_stock("laptop", 9)

return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 4 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 4)
	}

	evt := scenario.Steps[1]
	if evt.Kind != "expect_event" {
		t.Fatalf("step kind = %q, want %q", evt.Kind, "expect_event")
	}
	if evt.Args["order"] != "O1" || evt.Args["seq"] != 2 || evt.Args["type"] != "order.inventory_checked" {
		t.Fatalf("expect_event args = %v", evt.Args)
	}
	if evt.Args["caused_by"] != 1 {
		t.Fatalf("caused_by = %v, want 1", evt.Args["caused_by"])
	}

	count := scenario.Steps[2]
	if count.Kind != "expect_event_count" {
		t.Fatalf("step kind = %q, want %q", count.Kind, "expect_event_count")
	}
	if count.Args["count"] != 5 {
		t.Fatalf("count = %v, want 5", count.Args["count"])
	}

	stock := scenario.Steps[3]
	if stock.Kind != "expect_stock" {
		t.Fatalf("step kind = %q, want %q", stock.Kind, "expect_stock")
	}
	if stock.Args["item"] != "laptop" || stock.Args["quantity"] != 9 {
		t.Fatalf("expect_stock args = %v", stock.Args)
	}
}

func TestScenarioCreateOrderRequiresCustomer(t *testing.T) {
	path := writeScenarioFixture(t, `-- Missing customer
local scene = Scenario.new("missing_customer")
scene:create_order({items = {laptop = 1}})

return scene
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "customer is required") {
		t.Fatalf("error = %q, want customer is required", err.Error())
	}
}

func TestScenarioSubmitStaleRequiresExpectedVersion(t *testing.T) {
	path := writeScenarioFixture(t, `-- Missing pin
local scene = Scenario.new("missing_pin")
scene:create_order({id = "O1", customer = "ada", items = {laptop = 1}})
scene:submit_stale({order = "O1", type = "order.cancel"})

return scene
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "expected_version is required") {
		t.Fatalf("error = %q, want expected_version is required", err.Error())
	}
}

func TestScenarioNameDefaultsToFileName(t *testing.T) {
	path := writeScenarioFixture(t, `local scene = Scenario.new()
return scene
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "scenario" {
		t.Fatalf("name = %q, want scenario", scenario.Name)
	}
}

func TestScenarioScriptMustReturnScenario(t *testing.T) {
	path := writeScenarioFixture(t, `return 42
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "must return Scenario") {
		t.Fatalf("error = %q, want must return Scenario", err.Error())
	}
}

func writeScenarioFixture(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lua")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}
