package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hedge_advisor/internal/config"
	"hedge_advisor/internal/core"
	"hedge_advisor/internal/journal"
	"hedge_advisor/pkg/logging"
)

var (
	// Version information (set via build flags)
	version   = "dev"
	buildTime = "unknown"
)

const usageText = `Usage: hedge_advisor <command> [flags]

Commands:
  recommend   compute the long/short deltas for one position pair
  hedges      group a positions file into hedges and advise each one
  simulate    replay a position along a simulated price path
  serve       run the HTTP/WebSocket server
  version     print version information

Run "hedge_advisor <command> -h" for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}

	var err error
	switch args[0] {
	case "recommend":
		err = runRecommend(ctx, args[1:], stdout, stderr)
	case "hedges":
		err = runHedges(ctx, args[1:], stdout, stderr)
	case "simulate":
		err = runSimulate(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "hedge_advisor version %s (built %s)\n", version, buildTime)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads path, or returns the built-in defaults when path is empty
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		return cfg, cfg.Validate()
	}
	return config.LoadConfig(path)
}

// newLogger writes to w so command output on stdout stays machine readable
func newLogger(cfg *config.Config, w io.Writer) (core.ILogger, error) {
	logger, err := logging.NewZapLoggerWithWriter(cfg.System.LogLevel, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

func openJournal(cfg *config.Config) (journal.Store, error) {
	switch cfg.Journal.Driver {
	case "sqlite":
		return journal.NewSQLiteStore(cfg.Journal.Path)
	default:
		return journal.NewMemoryStore(cfg.Journal.Capacity), nil
	}
}

// flagWasSet reports whether name was given on the command line
func flagWasSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
