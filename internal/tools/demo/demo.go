// Package demo walks one order through the full coordination flow against an
// in-process core: create, synchronous worker cascade, stale resubmission,
// undo, redo, then a closing report of the journal, state, notification
// counts, and telemetry tail.
package demo

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/louisbranch/ordercore/internal/bus"
	"github.com/louisbranch/ordercore/internal/journal"
	"github.com/louisbranch/ordercore/internal/order"
	"github.com/louisbranch/ordercore/internal/pipeline"
	"github.com/louisbranch/ordercore/internal/replay"
	"github.com/louisbranch/ordercore/internal/storage"
	"github.com/louisbranch/ordercore/internal/storage/sqlite"
	"github.com/louisbranch/ordercore/internal/store"
	"github.com/louisbranch/ordercore/internal/telemetry"
	"github.com/louisbranch/ordercore/internal/workers"
)

// Config holds demo walkthrough settings.
type Config struct {
	// DBPath selects the sqlite journal. Empty keeps the journal in memory.
	DBPath string
	// Verbose routes worker activity to the error writer.
	Verbose bool
}

// Run builds the core and drives the walkthrough, printing the narrative to
// out and worker chatter to errOut.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	env, err := buildEnv(ctx, cfg, errOut)
	if err != nil {
		return err
	}
	defer env.close(errOut)

	if cfg.DBPath != "" {
		fmt.Fprintf(out, "journal: sqlite at %s (%d orders rebuilt)\n", cfg.DBPath, env.rebuilt)
	} else {
		fmt.Fprintln(out, "journal: in memory")
	}

	return env.walkthrough(ctx, out)
}

// telemetryTail lists the newest telemetry events for the closing report.
type telemetryTail interface {
	ListTelemetryEvents(ctx context.Context, limit int) ([]storage.TelemetryEvent, error)
}

// demoEnv is one assembled core with its worker fleet subscribed.
type demoEnv struct {
	core    *pipeline.Pipeline
	journal journal.Journal
	runtime *workers.Runtime
	tail    telemetryTail
	rebuilt int
	closeDB func() error
}

// buildEnv assembles the journal, store, pipeline, and worker fleet. The
// store is warmed from the journal before any command runs, so a restart
// against the same database resumes where the last run stopped.
func buildEnv(ctx context.Context, cfg Config, errOut io.Writer) (*demoEnv, error) {
	commands, events, err := order.NewRegistries()
	if err != nil {
		return nil, fmt.Errorf("build registries: %w", err)
	}

	env := &demoEnv{}
	var telemetryStore storage.TelemetryStore
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath, events)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		env.journal = db
		env.tail = db
		env.closeDB = db.Close
		telemetryStore = db
	} else {
		recorder := &memoryTelemetry{}
		env.journal = journal.NewMemory(events)
		env.tail = recorder
		telemetryStore = recorder
	}

	st := store.New()
	rebuilt, err := replay.Rebuild(ctx, env.journal, st)
	if err != nil {
		env.closeStore(errOut)
		return nil, fmt.Errorf("rebuild store: %w", err)
	}
	env.rebuilt = rebuilt

	emitter := telemetry.NewEmitter(telemetryStore)
	snapshots, _ := env.journal.(storage.SnapshotStore)
	core, err := pipeline.New(pipeline.Config{
		Store:     st,
		Journal:   env.journal,
		Bus:       bus.New(),
		Commands:  commands,
		Telemetry: emitter,
		Snapshots: snapshots,
	})
	if err != nil {
		env.closeStore(errOut)
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	env.core = core

	workerLogger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		workerLogger = log.New(errOut, "", 0)
	}
	runtime, err := workers.NewRuntime(core, workers.Config{
		Telemetry: emitter,
		Logger:    workerLogger,
	})
	if err != nil {
		env.closeStore(errOut)
		return nil, fmt.Errorf("start workers: %w", err)
	}
	env.runtime = runtime

	return env, nil
}

func (e *demoEnv) close(errOut io.Writer) {
	if e.runtime != nil {
		e.runtime.Close()
	}
	e.closeStore(errOut)
}

func (e *demoEnv) closeStore(errOut io.Writer) {
	if e.closeDB == nil {
		return
	}
	if err := e.closeDB(); err != nil {
		fmt.Fprintf(errOut, "close store: %v\n", err)
	}
	e.closeDB = nil
}

// memoryTelemetry keeps the telemetry tail in process for runs without a
// database path.
type memoryTelemetry struct {
	mu     sync.Mutex
	events []storage.TelemetryEvent
}

func (m *memoryTelemetry) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *memoryTelemetry) ListTelemetryEvents(ctx context.Context, limit int) ([]storage.TelemetryEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]storage.TelemetryEvent(nil), events...), nil
}
