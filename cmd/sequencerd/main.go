package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sequencerd",
		Short: "Question sequencing and exposure control",
		Long: `sequencerd orders question pools per learner session, shuffles answer
options, and tracks how often each question is shown.

Configuration comes from the environment (HTTP_ADDR, LEDGER_DRIVER,
LEDGER_DSN, BADGER_DIR, AUTH_HMAC_SECRET, DEFAULTS_FILE, LOG_LEVEL, ...).`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newPreviewCmd(), newAnalyzeCmd(), newTokenCmd())
	return root
}
