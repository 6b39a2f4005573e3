package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scenecast/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the scene queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			if !skipPreflight {
				results := preflight.RunAll(cmd.Context(), cfg)
				for _, result := range results {
					if !result.Passed {
						fmt.Fprintln(cmd.OutOrStdout(), renderPreflightLine(result, stdoutIsTerminal()))
					}
				}
				if !preflight.AllPassed(results) {
					return fmt.Errorf("preflight checks failed; fix the issues above or rerun with --skip-preflight")
				}
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			manager, err := ctx.buildPipeline(store, logger, false, false)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := manager.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Processing scenes; press Ctrl+C to stop.")
			<-runCtx.Done()
			manager.Stop()
			fmt.Fprintln(cmd.OutOrStdout(), "Stopped.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before starting")
	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render pending scenes without posting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(ctx, cmd, true, false, "rendered")
		},
	}
}

func newPostCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "post",
		Short: "Post rendered scenes without rendering new ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(ctx, cmd, false, true, "posted")
		},
	}
}

// runOneShot drains one stage of the queue and exits.
func runOneShot(ctx *commandContext, cmd *cobra.Command, renderOnly, postOnly bool, verb string) error {
	logger, err := ctx.newLogger()
	if err != nil {
		return err
	}
	store, err := ctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	manager, err := ctx.buildPipeline(store, logger, renderOnly, postOnly)
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	total := 0
	for {
		processed, err := manager.RunOnce(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				break
			}
			return err
		}
		total += processed
		if processed == 0 {
			break
		}
		if runCtx.Err() != nil {
			break
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d scene(s) %s\n", total, verb)
	return nil
}
