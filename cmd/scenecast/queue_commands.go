package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scenecast/internal/scenes"
	"scenecast/internal/services"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the scene queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueShowCommand(ctx))
	cmd.AddCommand(newQueueRetryCommand(ctx))
	cmd.AddCommand(newQueueStaleCommand(ctx))
	cmd.AddCommand(newQueueRemoveCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []scenes.Status
			if statusFilter != "" {
				status, ok := scenes.ParseStatus(statusFilter)
				if !ok {
					return fmt.Errorf("unknown status %q (one of: %s)", statusFilter, knownStatuses())
				}
				statuses = append(statuses, status)
			}

			items, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Title,
					string(item.Status),
					formatProgress(item),
					item.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Progress", "Updated"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show scenes with this status")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one scene in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSceneID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("%w: scene %d", services.ErrNotFound, id)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scene %d: %s\n", item.ID, item.Title)
			fmt.Fprintf(out, "  Status:     %s\n", item.Status)
			fmt.Fprintf(out, "  Audio:      %s\n", item.AudioPath)
			if item.BackgroundPath != "" {
				fmt.Fprintf(out, "  Background: %s\n", item.BackgroundPath)
			}
			if item.RenderedFile != "" {
				fmt.Fprintf(out, "  Video:      %s\n", item.RenderedFile)
			}
			if item.PostURI != "" {
				fmt.Fprintf(out, "  Post:       %s\n", item.PostURI)
			}
			if progress := formatProgress(item); progress != "" {
				fmt.Fprintf(out, "  Progress:   %s\n", progress)
			}
			if item.ErrorMessage != "" {
				fmt.Fprintf(out, "  Error:      %s\n", item.ErrorMessage)
			}
			if snap, err := item.Snapshot(); err == nil && item.SnapshotJSON != "" {
				fmt.Fprintf(out, "  Render:     %s\n", snap.Identity())
			}
			if text := strings.TrimSpace(item.SceneText); text != "" {
				fmt.Fprintf(out, "  Text:\n")
				for _, line := range strings.Split(text, "\n") {
					fmt.Fprintf(out, "    %s\n", line)
				}
			}
			return nil
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Move failed scenes back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseSceneID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			retried, err := store.RetryFailed(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scene(s) queued for retry\n", retried)
			return nil
		},
	}
}

func newQueueStaleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stale <id>",
		Short: "Force a re-render of a rendered or posted scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSceneID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.MarkStale(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scene %d will re-render on the next pass\n", id)
			return nil
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a scene from the queue",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSceneID(args[0])
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scene %d removed\n", id)
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove posted scenes from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context(), all)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d scene(s) removed\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every scene, not just posted ones")
	return cmd
}

func parseSceneID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid scene id %q", arg)
	}
	return id, nil
}

func formatProgress(item *scenes.Item) string {
	stage := strings.TrimSpace(item.ProgressStage)
	if stage == "" {
		return ""
	}
	return fmt.Sprintf("%s %.0f%%", stage, item.ProgressPercent)
}

func knownStatuses() string {
	all := scenes.AllStatuses()
	parts := make([]string, len(all))
	for i, status := range all {
		parts[i] = string(status)
	}
	return strings.Join(parts, ", ")
}
