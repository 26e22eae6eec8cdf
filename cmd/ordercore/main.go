// Package main runs the order coordination demo walkthrough.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/ordercore/internal/platform/config"

	democmd "github.com/louisbranch/ordercore/internal/cmd/demo"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := democmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("ordercore: %v", err)
	}

	if err := democmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("ordercore: %v", err)
	}
}
