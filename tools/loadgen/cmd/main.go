// Package main provides the CLI entry point for the load generator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vectorcraft/tuner/tools/loadgen/internal/config"
	"github.com/vectorcraft/tuner/tools/loadgen/internal/runner"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath  string
	duration    time.Duration
	workers     int
	qps         float64
	validate    bool
	list        bool
	showVersion bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")
	flag.DurationVar(&duration, "duration", 0, "Override run duration (e.g. 5m)")
	flag.DurationVar(&duration, "d", 0, "Override run duration (shorthand)")
	flag.IntVar(&workers, "workers", 0, "Override worker count")
	flag.Float64Var(&qps, "qps", 0, "Override request rate")
	flag.BoolVar(&validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&list, "list", false, "List configured endpoints and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `loadgen - VectorCraft tuner load generator

USAGE:
    loadgen -config <path> [options]

Drives configurable request mixes against a running tuner instance.
Responses feed a parameter pool, so endpoints that need live test or
action identifiers pick them up from earlier calls in the same run.

OPTIONS:
    -config, -c <path>   Path to the YAML configuration file
    -duration, -d <dur>  Override run duration (e.g. "5m")
    -workers <n>         Override concurrent worker count
    -qps <n>             Override request rate
    -validate            Validate configuration and exit
    -list                List configured endpoints and exit
    -version             Show version information

EXAMPLE:
    loadgen -config configs/tuner.yaml -d 2m -qps 50
`)
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("loadgen %s (built %s)\n", version, buildTime)
		return
	}

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "error: -config is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if duration > 0 {
		cfg.Duration = duration
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if qps > 0 {
		cfg.QPS = qps
	}

	if validate {
		fmt.Printf("configuration %q is valid (%d endpoints)\n", cfg.Name, len(cfg.Endpoints))
		return
	}

	if list {
		for _, ep := range cfg.Endpoints {
			auth := ""
			if ep.RequireAuth {
				auth = " [auth]"
			}
			fmt.Printf("%-28s %-6s %s (weight %d)%s\n", ep.Name, ep.Method, ep.Path, ep.Weight, auth)
		}
		return
	}

	r, err := runner.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("running %q against %s for %s (%d workers, %.0f qps)\n",
		cfg.Name, cfg.Target.BaseURL, cfg.Duration, cfg.Workers, cfg.QPS)

	report, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	report.Print(os.Stdout)

	if report.TotalRequests > 0 && report.FailedRequests == report.TotalRequests {
		os.Exit(1) // nothing succeeded; the target is probably down
	}
}
