package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/louisbranch/ordercore/internal/workers"
)

// Config controls scenario execution.
type Config struct {
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger

	// Workers tunes the worker fleet each run starts with. The zero value
	// selects the demo defaults.
	Workers workers.Config
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
		Verbose:    false,
	}
}

// Report summarizes a scenario run.
type Report struct {
	Scenario string
	// Steps is the number of steps that ran, including a failing one.
	Steps int
	// Checks is the number of expectations evaluated.
	Checks int
	// Failures lists the expectation failures in step order.
	Failures []string
}

// Runner executes Lua scenarios against an in-process coordination core.
// Every RunScenario call builds a fresh core with the full worker fleet
// subscribed, so scripts never observe each other's state.
type Runner struct {
	assertions *Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
	workers    workers.Config
	report     Report
}

// NewRunner prepares a scenario runner. Config defaults (logger, timeout)
// are applied here.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Runner{
		assertions: &Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
		workers:    cfg.Workers,
	}
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return NewRunner(cfg).RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps against a fresh core.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}

	env, err := newScenarioEnv(r.workers, r.workerLogger())
	if err != nil {
		return err
	}
	defer env.close()

	r.assertions.reset()
	r.report = Report{Scenario: scenario.Name}
	state := &scenarioState{orders: map[string]string{}}

	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, env, state, step)
		cancel()
		r.report.Steps = stepNumber
		r.report.Checks = state.checks
		r.report.Failures = r.assertions.Failures()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s (%d checks, %d failed)", scenario.Name, r.report.Checks, len(r.report.Failures))
	return nil
}

// Report returns the summary of the last RunScenario call.
func (r *Runner) Report() Report {
	return r.report
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

// workerLogger silences worker chatter unless the run is verbose.
func (r *Runner) workerLogger() *log.Logger {
	if r.verbose && r.logger != nil {
		return r.logger
	}
	return log.New(io.Discard, "", 0)
}
