package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	entrypoint "github.com/louisbranch/ordercore/internal/platform/cmd"
	"github.com/louisbranch/ordercore/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Scenario   string        `env:"ORDERCORE_SCENARIO_FILE"`
	Assertions bool          `env:"ORDERCORE_SCENARIO_ASSERT"  envDefault:"true"`
	Verbose    bool          `env:"ORDERCORE_SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"ORDERCORE_SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command under telemetry.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}

	scn, err := scenario.LoadScenarioFromFile(cfg.Scenario)
	if err != nil {
		return err
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(context.Context) error {
		runner := scenario.NewRunner(scenario.Config{
			Timeout:    cfg.Timeout,
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     log.New(errOut, "", 0),
		})
		runErr := runner.RunScenario(ctx, scn)
		printReport(out, runner.Report())
		return runErr
	})
}

// printReport writes the run summary. Log-only mode keeps failures in the
// report instead of stopping the run, so they surface here.
func printReport(out io.Writer, report scenario.Report) {
	fmt.Fprintf(out, "scenario %s: %d steps, %d checks, %d failed\n",
		report.Scenario, report.Steps, report.Checks, len(report.Failures))
	for _, failure := range report.Failures {
		fmt.Fprintf(out, "  failed: %s\n", failure)
	}
}
