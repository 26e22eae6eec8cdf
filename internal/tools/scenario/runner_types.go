package scenario

import (
	"fmt"
	"log"

	"github.com/louisbranch/ordercore/internal/bus"
	"github.com/louisbranch/ordercore/internal/journal"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
	"github.com/louisbranch/ordercore/internal/store"
	"github.com/louisbranch/ordercore/internal/workers"
)

// scenarioEnv bundles the in-process core one scenario run executes against.
type scenarioEnv struct {
	core    *pipeline.Pipeline
	journal *journal.Memory
	runtime *workers.Runtime
}

func newScenarioEnv(workersCfg workers.Config, workerLogger *log.Logger) (*scenarioEnv, error) {
	commands, events, err := order.NewRegistries()
	if err != nil {
		return nil, fmt.Errorf("build registries: %w", err)
	}
	jrnl := journal.NewMemory(events)
	core, err := pipeline.New(pipeline.Config{
		Store:    store.New(),
		Journal:  jrnl,
		Bus:      bus.New(),
		Commands: commands,
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	if workersCfg.Logger == nil {
		workersCfg.Logger = workerLogger
	}
	runtime, err := workers.NewRuntime(core, workersCfg)
	if err != nil {
		return nil, fmt.Errorf("start workers: %w", err)
	}

	return &scenarioEnv{core: core, journal: jrnl, runtime: runtime}, nil
}

func (e *scenarioEnv) close() {
	e.runtime.Close()
}

// scenarioState tracks the names a script binds while it runs.
type scenarioState struct {
	// orders maps script order references to aggregate ids.
	orders map[string]string
	// lastOrder is the reference of the most recently created order.
	lastOrder string
	// lastResult is the outcome of the most recent submit, undo, or redo.
	lastResult *pipeline.Result
	// checks counts the expectations evaluated so far.
	checks int
}
