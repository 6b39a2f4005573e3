package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenecast/internal/logging"
	"scenecast/internal/pipeline"
	"scenecast/internal/posting"
	"scenecast/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and environment health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			colorize := stdoutIsTerminal()

			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Queue:")
			fmt.Fprintln(out, renderTable(
				[]string{"Total", "Pending", "Processing", "Posted", "Review", "Failed"},
				[][]string{{
					fmt.Sprint(summary.Total),
					fmt.Sprint(summary.Pending),
					fmt.Sprint(summary.Processing),
					fmt.Sprint(summary.Posted),
					fmt.Sprint(summary.Review),
					fmt.Sprint(summary.Failed),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))

			if skipChecks {
				return nil
			}

			fmt.Fprintln(out, "Environment:")
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				fmt.Fprintln(out, renderPreflightLine(result, colorize))
			}

			// Posting credentials get a live check when configured.
			if cfg.Posting.ServiceURL != "" && cfg.Posting.Handle != "" {
				client, err := posting.NewClient(cfg.Posting)
				if err != nil {
					fmt.Fprintln(out, renderStatusLine("Posting account", statusError, err.Error(), colorize))
					return nil
				}
				postStage := pipeline.NewPostStage(cfg, store, client, logging.NewNop())
				fmt.Fprintln(out, renderHealthLine(postStage.HealthCheck(cmd.Context()), colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Only show queue counts")
	return cmd
}
