package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-sequencer/internal/config"
	"github.com/mind-engage/mindengage-sequencer/internal/engine"
	"github.com/mind-engage/mindengage-sequencer/internal/exam"
	"github.com/mind-engage/mindengage-sequencer/internal/ledger"
	"github.com/mind-engage/mindengage-sequencer/internal/sequencer"
)

type previewFlags struct {
	pool      string
	defaults  string
	overrides string
	learner   string
	samples   int
	asJSON    bool
}

func newPreviewCmd() *cobra.Command {
	var f previewFlags
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print sample orderings for a pool without recording exposure",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if !cmd.Flags().Changed("defaults") {
				f.defaults = cfg.DefaultsFile
			}
			if !cmd.Flags().Changed("samples") {
				f.samples = cfg.PreviewSamples
			}
			samples, err := runPreview(cmd, f)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(samples)
			}
			_, err = fmt.Fprint(out, renderPreview(samples))
			return err
		},
	}
	cmd.Flags().StringVar(&f.pool, "pool", "", "pool JSON file (test_set_id, questions)")
	cmd.Flags().StringVar(&f.defaults, "defaults", "", "YAML defaults file (default DEFAULTS_FILE)")
	cmd.Flags().StringVar(&f.overrides, "overrides", "", "JSON overrides applied on top of the defaults")
	cmd.Flags().StringVar(&f.learner, "learner", "preview", "learner id to sequence for")
	cmd.Flags().IntVarP(&f.samples, "samples", "n", 3, "number of sample sessions")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print results as JSON")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}

// runPreview sequences against an empty in-memory ledger, so repetition
// constraints never apply and nothing is persisted.
func runPreview(cmd *cobra.Command, f previewFlags) ([]engine.Result, error) {
	b, err := os.ReadFile(f.pool)
	if err != nil {
		return nil, fmt.Errorf("read pool: %w", err)
	}
	var pool exam.Pool
	if err := json.Unmarshal(b, &pool); err != nil {
		return nil, fmt.Errorf("pool %s: %w", f.pool, err)
	}
	defaults, err := config.LoadDefaults(f.defaults)
	if err != nil {
		return nil, err
	}
	var o sequencer.Overrides
	if f.overrides != "" {
		if err := json.Unmarshal([]byte(f.overrides), &o); err != nil {
			return nil, fmt.Errorf("overrides: %w", err)
		}
	}
	rc := defaults.Resolve(pool.TestSetID, o)

	eng := engine.New(ledger.NewMemoryStore())
	n := max(f.samples, 1)
	samples := make([]engine.Result, 0, n)
	for i := 0; i < n; i++ {
		res, err := eng.Sequence(cmd.Context(), pool, rc, f.learner, uuid.NewString(), true)
		if err != nil {
			return nil, err
		}
		samples = append(samples, res)
	}
	return samples, nil
}
