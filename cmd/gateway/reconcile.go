package main

import (
	"encoding/json"

	"github.com/DanielPopoola/chargecore/internal/application/services"
	"github.com/DanielPopoola/chargecore/internal/worker"
	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "reconcile [chargeId]",
		Short: "Compare charges with their gateway and resolve stalled ones",
		Long: `Reconcile one charge, or with no argument, one batch of stalled charges.

Examples:
  chargecore reconcile ch_3f2a...
  chargecore reconcile --batch-size 200`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOrBackground(cmd.Context())

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var reports []*services.ReconciliationReport
			if len(args) == 1 {
				report, err := a.reconciliation().Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				reports = append(reports, report)
			} else {
				if batchSize <= 0 {
					batchSize = a.cfg.Reconcile.BatchSize
				}
				r := worker.NewReconciler(a.reconciliation(), a.cfg.Reconcile.Interval, a.cfg.Reconcile.StalledAge, batchSize, a.logger)
				reports, err = r.RunOnce(ctx)
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "charges per batch (defaults to reconcile.batch_size)")
	return cmd
}
