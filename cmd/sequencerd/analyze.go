package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/logging"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		ids      []string
		poolFile string
		period   int
		top      int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report exposure rates from the configured ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if poolFile != "" {
				b, err := os.ReadFile(poolFile)
				if err != nil {
					return fmt.Errorf("read pool: %w", err)
				}
				var p exam.Pool
				if err := json.Unmarshal(b, &p); err != nil {
					return fmt.Errorf("pool %s: %w", poolFile, err)
				}
				ids = append(ids, p.IDs()...)
			}
			ids = append(ids, args...)
			ids = slices.DeleteFunc(ids, func(s string) bool { return strings.TrimSpace(s) == "" })
			if len(ids) == 0 {
				return fmt.Errorf("no question ids: pass --ids, --pool or arguments")
			}

			cfg := config.FromEnv()
			log := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON, Service: "sequencerd"})
			l, closeLedger, err := openLedger(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeLedger()

			rep, err := engine.New(l, engine.WithLogger(log)).Analyze(cmd.Context(), ids, period)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			_, err = fmt.Fprint(out, renderReport(rep, top))
			return err
		},
	}
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "question ids (comma separated)")
	cmd.Flags().StringVar(&poolFile, "pool", "", "take question ids from a pool JSON file")
	cmd.Flags().IntVar(&period, "period", 30, "period in days; 0 means all time")
	cmd.Flags().IntVar(&top, "top", 0, "only show the n most exposed questions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
