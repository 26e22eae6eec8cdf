// Package demo parses demo walkthrough flags and launches the run.
package demo

import (
	"context"
	"flag"
	"io"

	entrypoint "github.com/louisbranch/ordercore/internal/platform/cmd"
	"github.com/louisbranch/ordercore/internal/tools/demo"
)

// Config holds demo command configuration.
type Config struct {
	DBPath  string `env:"ORDERCORE_DB_PATH"`
	Verbose bool   `env:"ORDERCORE_VERBOSE"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite journal path (empty keeps the journal in memory)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose worker logging")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the demo walkthrough under telemetry.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDemo, func(context.Context) error {
		return demo.Run(ctx, demo.Config{DBPath: cfg.DBPath, Verbose: cfg.Verbose}, out, errOut)
	})
}
