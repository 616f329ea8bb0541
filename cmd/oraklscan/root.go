package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const (
	appName = "oraklscan"
	version = "v1.4.2"
)

var logLevelFlag string

// Execute builds the command tree and runs it.
func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:     appName,
		Short:   "Options-flow and STRAT pattern scanner",
		Long:    "oraklscan watches option chains for unusual flow and hourly bars for STRAT reversal sequences, posting signals to per-strategy chat webhooks.",
		Version: version,
	}
	addGlobalFlags(root.PersistentFlags())

	root.AddCommand(scanCmd())
	root.AddCommand(probeCmd())
	return root.ExecuteContext(ctx)
}

func addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&logLevelFlag, "log-level", "", "log level override (trace|debug|info|warn|error)")
}

// setupLogging configures zerolog from config plus the CLI override. The
// console writer is for humans at a TTY; anything else gets JSON lines.
func setupLogging(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	if logLevelFlag != "" {
		level = logLevelFlag
	}
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	console := format == "console"
	if format == "auto" || format == "" {
		console = term.IsTerminal(int(os.Stderr.Fd()))
	}
	if console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
