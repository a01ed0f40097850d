package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation cycle and exit",
	Long: `Retry pending order side effects and deduct inventory for ready or
paid orders that never had their stock consumed. Safe to run while a
server is running; both steps are idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.reconciler(cfg).RunOnce(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
