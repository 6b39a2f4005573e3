package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scenecast/internal/config"
	"scenecast/internal/overlay"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var (
		title          string
		text           string
		textFile       string
		backgroundPath string
	)

	cmd := &cobra.Command{
		Use:   "add <audio-file>",
		Short: "Queue a scene for rendering",
		Long: `Queue a scene for rendering and posting. Scene text may carry numbered
choices after a "` + overlay.ChoiceSeparator + `" separator line; each choice is posted as a reply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file %s: %w", audioPath, err)
			}
			if backgroundPath != "" {
				if backgroundPath, err = config.ExpandPath(backgroundPath); err != nil {
					return err
				}
				if _, err := os.Stat(backgroundPath); err != nil {
					return fmt.Errorf("background image %s: %w", backgroundPath, err)
				}
			}

			sceneText := text
			if textFile != "" {
				path, err := config.ExpandPath(textFile)
				if err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("scene text file: %w", err)
				}
				sceneText = string(data)
			}

			if title == "" {
				title = titleFromPath(audioPath)
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.NewScene(cmd.Context(), title, sceneText, audioPath, backgroundPath)
			if err != nil {
				return err
			}
			_, choices := overlay.SplitScene(item.SceneText)
			fmt.Fprintf(cmd.OutOrStdout(), "Added scene %d: %s (%d choices)\n", item.ID, item.Title, len(choices))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Scene title (defaults to the audio file name)")
	cmd.Flags().StringVar(&text, "text", "", "Scene text, with choices after a separator line")
	cmd.Flags().StringVar(&textFile, "text-file", "", "Read scene text from a file")
	cmd.Flags().StringVar(&backgroundPath, "background", "", "Background illustration for the video")
	cmd.MarkFlagsMutuallyExclusive("text", "text-file")

	return cmd
}

// titleFromPath derives a presentable title from an audio file name:
// "the-dark-forest.mp3" becomes "The Dark Forest".
func titleFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.English).String(name)
}
