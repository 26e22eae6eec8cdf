// Package scenario loads Lua scenario scripts and runs them against a fresh
// in-process coordination core. Scripts build a Scenario value through a
// small DSL and return it; the Runner replays the recorded steps, submitting
// commands and checking expectations against the journal and aggregate state.
package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const (
	scenarioTypeName = "scenario"
	orderRefTypeName = "order_ref"
)

// Scenario is a named sequence of recorded steps.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one recorded DSL call with its arguments.
type Step struct {
	Kind string
	Args map[string]any
}

// orderRef lets a script chain expectations onto the order a create_order
// call named.
type orderRef struct {
	scenario *Scenario
	order    string
}

// LoadScenarioFromFile runs a Lua script and returns the Scenario it built.
// The script must end with `return scene`.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerLuaTypes(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	registerScenarioType(state)
	registerOrderRefType(state)
	registerScenarioConstructor(state)
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerOrderRefType(state *lua.State) {
	lua.NewMetaTable(state, orderRefTypeName)
	state.NewTable()
	lua.SetFunctions(state, orderRefMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "create_order", Function: scenarioCreateOrder},
	{Name: "submit", Function: scenarioSubmit},
	{Name: "submit_stale", Function: scenarioSubmitStale},
	{Name: "undo", Function: scenarioUndo},
	{Name: "redo", Function: scenarioRedo},
	{Name: "expect_status", Function: scenarioExpectStatus},
	{Name: "expect_version", Function: scenarioExpectVersion},
	{Name: "expect_event", Function: scenarioExpectEvent},
	{Name: "expect_event_count", Function: scenarioExpectEventCount},
	{Name: "expect_stock", Function: scenarioExpectStock},
	{Name: "sleep", Function: scenarioSleep},
}

func scenarioCreateOrder(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	if requiredString(data, "customer") == "" {
		lua.Errorf(state, "create_order customer is required")
		return 0
	}
	if len(readIntMap(data, "items")) == 0 {
		lua.Errorf(state, "create_order items are required")
		return 0
	}
	appendStep(scenario, "create_order", data)
	state.PushUserData(&orderRef{scenario: scenario, order: orderAlias(data)})
	lua.SetMetaTableNamed(state, orderRefTypeName)
	return 1
}

func scenarioSubmit(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	if requiredString(data, "type") == "" {
		lua.Errorf(state, "submit type is required")
		return 0
	}
	appendStep(scenario, "submit", data)
	return 0
}

func scenarioSubmitStale(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	data := tableToMap(state, 2)
	if requiredString(data, "type") == "" {
		lua.Errorf(state, "submit_stale type is required")
		return 0
	}
	if _, ok := readInt(data, "expected_version"); !ok {
		lua.Errorf(state, "submit_stale expected_version is required")
		return 0
	}
	appendStep(scenario, "submit_stale", data)
	return 0
}

func scenarioUndo(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "undo", referenceArgs(state, 2))
	return 0
}

func scenarioRedo(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "redo", referenceArgs(state, 2))
	return 0
}

func scenarioExpectStatus(state *lua.State) int {
	scenario := checkScenario(state)
	order := lua.CheckString(state, 2)
	status := lua.CheckString(state, 3)
	appendStep(scenario, "expect_status", map[string]any{"order": order, "status": status})
	return 0
}

func scenarioExpectVersion(state *lua.State) int {
	scenario := checkScenario(state)
	order := lua.CheckString(state, 2)
	version := lua.CheckInteger(state, 3)
	appendStep(scenario, "expect_version", map[string]any{"order": order, "version": version})
	return 0
}

func scenarioExpectEvent(state *lua.State) int {
	scenario := checkScenario(state)
	order := lua.CheckString(state, 2)
	seq := lua.CheckInteger(state, 3)
	kind := lua.CheckString(state, 4)
	data := map[string]any{"order": order, "seq": seq, "type": kind}
	for key, value := range optionalTable(state, 5) {
		data[key] = value
	}
	appendStep(scenario, "expect_event", data)
	return 0
}

func scenarioExpectEventCount(state *lua.State) int {
	scenario := checkScenario(state)
	order := lua.CheckString(state, 2)
	count := lua.CheckInteger(state, 3)
	appendStep(scenario, "expect_event_count", map[string]any{"order": order, "count": count})
	return 0
}

func scenarioExpectStock(state *lua.State) int {
	scenario := checkScenario(state)
	item := lua.CheckString(state, 2)
	quantity := lua.CheckInteger(state, 3)
	appendStep(scenario, "expect_stock", map[string]any{"item": item, "quantity": quantity})
	return 0
}

func scenarioSleep(state *lua.State) int {
	scenario := checkScenario(state)
	ms := lua.CheckInteger(state, 2)
	appendStep(scenario, "sleep", map[string]any{"ms": ms})
	return 0
}

var orderRefMethods = []lua.RegistryFunction{
	{Name: "expect_status", Function: orderRefExpectStatus},
	{Name: "expect_version", Function: orderRefExpectVersion},
}

func orderRefExpectStatus(state *lua.State) int {
	ref := checkOrderRef(state)
	status := lua.CheckString(state, 2)
	args := map[string]any{"status": status}
	if ref.order != "" {
		args["order"] = ref.order
	}
	appendStep(ref.scenario, "expect_status", args)
	state.PushValue(1)
	return 1
}

func orderRefExpectVersion(state *lua.State) int {
	ref := checkOrderRef(state)
	version := lua.CheckInteger(state, 2)
	args := map[string]any{"version": version}
	if ref.order != "" {
		args["order"] = ref.order
	}
	appendStep(ref.scenario, "expect_version", args)
	state.PushValue(1)
	return 1
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func checkOrderRef(state *lua.State) *orderRef {
	ud := lua.CheckUserData(state, 1, orderRefTypeName)
	if ref, ok := ud.(*orderRef); ok && ref != nil && ref.scenario != nil {
		return ref
	}
	lua.ArgumentError(state, 1, "order reference expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) int {
	if scenario == nil {
		return -1
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	return len(scenario.Steps) - 1
}

// referenceArgs reads an optional order reference that may be given as a
// plain string or as an argument table.
func referenceArgs(state *lua.State, index int) map[string]any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return map[string]any{"order": value}
	case lua.TypeTable:
		return tableToMap(state, index)
	default:
		return map[string]any{}
	}
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	case lua.TypeUserData:
		return state.ToUserData(index)
	default:
		return nil
	}
}

// tableToGo converts a table to a []any when its keys form the contiguous
// sequence 1..n, and to a map otherwise.
func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

// normalizeNumber maps whole Lua numbers to int so item quantities and
// versions survive the float round trip.
func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
