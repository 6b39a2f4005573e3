package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scenecast/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skip-config": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			if !force {
				if _, _, exists, err := config.Load(""); err == nil && exists {
					return fmt.Errorf("configuration already exists; use --force to overwrite %s", path)
				}
			}
			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Staging directory: %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "Output directory:  %s\n", cfg.Paths.OutputDir)
			fmt.Fprintf(out, "Log directory:     %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "FFmpeg binary:     %s\n", cfg.FFmpegBinary())
			fmt.Fprintf(out, "FFprobe binary:    %s\n", cfg.FFprobeBinary())
			fmt.Fprintf(out, "Posting service:   %s\n", cfg.Posting.ServiceURL)
			fmt.Fprintf(out, "Posting handle:    %s\n", cfg.Posting.Handle)
			fmt.Fprintf(out, "Reply choices:     %t\n", cfg.Posting.ReplyChoices)
			fmt.Fprintf(out, "Video FPS:         %d\n", cfg.Visualization.FPS)
			fmt.Fprintf(out, "Waveform style:    %s\n", cfg.Visualization.Style)
			fmt.Fprintf(out, "Play area glow:    %t\n", cfg.Visualization.PlayAreaGlow)
			return nil
		},
	}
}
