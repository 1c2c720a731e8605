// Package cli implements the storyscope command: flag parsing, wiring of
// the engine, insights, report storage and telemetry, and the subcommands.
package cli

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ErrUsage is returned for a missing or unknown subcommand or bad arguments.
var ErrUsage = errors.New("usage: storyscope [-config file] [-verbose] <analyze|batch|schema|policy|serve> [flags] [args]")

type Command string

const (
	CommandAnalyze Command = "analyze"
	CommandBatch   Command = "batch"
	CommandSchema  Command = "schema"
	CommandPolicy  Command = "policy"
	CommandServe   Command = "serve"
)

// Config holds the parsed command line. Zero values defer to the config file.
type Config struct {
	ConfigPath string `env:"STORYSCOPE_CONFIG"`
	Verbose    bool   `env:"STORYSCOPE_VERBOSE"`

	Command Command
	// Inputs are snapshot files for analyze (exactly one) and batch.
	Inputs     []string
	SchemaName string

	PolicyFile string
	Sequential bool
	Save       bool
	Insights   bool
	Workers    int
	Addr       string
}

// ParseConfig parses the global flags, the subcommand and its flags.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "path to config file")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() == 0 {
		return Config{}, ErrUsage
	}

	cfg.Command = Command(fs.Arg(0))
	sub := flag.NewFlagSet(string(cfg.Command), flag.ContinueOnError)
	sub.SetOutput(fs.Output())

	switch cfg.Command {
	case CommandAnalyze, CommandBatch, CommandServe:
		sub.StringVar(&cfg.PolicyFile, "policy", "", "scoring policy YAML decoded over the defaults")
		sub.BoolVar(&cfg.Sequential, "sequential", false, "run analysis components one after another")
		sub.BoolVar(&cfg.Insights, "insights", false, "enable model-backed insights")
	case CommandSchema, CommandPolicy:
	default:
		return Config{}, fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
	}
	switch cfg.Command {
	case CommandAnalyze:
		sub.BoolVar(&cfg.Save, "save", false, "store the report under the report directory")
	case CommandBatch:
		sub.BoolVar(&cfg.Save, "save", false, "store each report under the report directory")
		sub.IntVar(&cfg.Workers, "workers", 0, "concurrent analyses (0 uses the config file)")
	case CommandServe:
		sub.StringVar(&cfg.Addr, "addr", "", "listen address (empty uses the config file)")
	case CommandPolicy:
		sub.StringVar(&cfg.PolicyFile, "policy", "", "scoring policy YAML decoded over the defaults")
	}

	if err := sub.Parse(fs.Args()[1:]); err != nil {
		return Config{}, err
	}
	if rest := sub.Args(); len(rest) > 0 {
		cfg.Inputs = rest
	}

	switch cfg.Command {
	case CommandAnalyze:
		if len(cfg.Inputs) != 1 {
			return Config{}, fmt.Errorf("%w: analyze takes exactly one snapshot file", ErrUsage)
		}
	case CommandBatch:
		if len(cfg.Inputs) == 0 {
			return Config{}, fmt.Errorf("%w: batch needs at least one snapshot file", ErrUsage)
		}
		if cfg.Workers < 0 {
			return Config{}, fmt.Errorf("%w: -workers must not be negative", ErrUsage)
		}
	case CommandSchema:
		if len(cfg.Inputs) != 1 {
			return Config{}, fmt.Errorf("%w: schema takes one name", ErrUsage)
		}
		cfg.SchemaName, cfg.Inputs = cfg.Inputs[0], nil
	default:
		if len(cfg.Inputs) > 0 {
			return Config{}, fmt.Errorf("%w: unexpected arguments %v", ErrUsage, cfg.Inputs)
		}
	}
	return cfg, nil
}
