package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oraklabs/oraklscan/internal/application"
)

// probeCmd runs one strategy against one symbol and prints the outcome.
// Alerts still post to the strategy's webhook; dedup applies as usual.
func probeCmd() *cobra.Command {
	var symbol, strategy string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Scan a single symbol once and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context(), strings.ToUpper(symbol), strategy)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "underlying symbol to scan")
	cmd.Flags().StringVar(&strategy, "strategy", application.StratGolden, "strategy to run")
	_ = cmd.MarkFlagRequired("symbol")
	return cmd
}

func runProbe(ctx context.Context, symbol, name string) error {
	cfg, err := application.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	sc, ok := cfg.Strategies[name]
	if !ok {
		return fmt.Errorf("unknown strategy %q", name)
	}
	if sc.Webhook == "" {
		return fmt.Errorf("%s_WEBHOOK is not set", strings.ToUpper(name))
	}

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	s, _, err := buildStrategy(name, cfg, rt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	res, err := s.ScanSymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("probe %s/%s: %w", name, symbol, err)
	}

	out := struct {
		Strategy string `json:"strategy"`
		Symbol   string `json:"symbol"`
		Signals  int    `json:"signals"`
		Alerts   int    `json:"alerts"`
		Skips    int    `json:"skips"`
	}{name, symbol, res.Signals, res.Alerts, len(res.Skips)}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
