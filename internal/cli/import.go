package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/sources/homepage"
)

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import a homepage bookmarks.yaml",
		Long:  "Add every entry of a homepage bookmarks.yaml whose URL is not already in your list.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}

			config, err := homepage.NewBookmarkLoader(args[0]).Load()
			if err != nil {
				return err
			}
			entries, err := homepage.MapBookmarks(config)
			if err != nil {
				return err
			}

			snap, err := c.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch existing bookmarks: %w", err)
			}
			have := make(map[string]struct{}, len(snap.Bookmarks))
			for _, b := range snap.Bookmarks {
				have[b.URL] = struct{}{}
			}

			bar := progressbar.NewOptions(len(entries),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Importing"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			imported, skipped, failed := 0, 0, 0
			for _, entry := range entries {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if _, ok := have[entry.URL]; ok {
					skipped++
					_ = bar.Add(1)
					continue
				}
				if _, err := c.Add(cmd.Context(), entry.Title, entry.URL); err != nil {
					failed++
					e.logger.Warn("failed to import bookmark",
						logger.String("title", entry.Title),
						logger.String("url", entry.URL),
						logger.Error(err))
				} else {
					have[entry.URL] = struct{}{}
					imported++
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			fmt.Fprintf(cmd.OutOrStdout(), "Import complete: %d imported, %d skipped, %d failed\n", imported, skipped, failed)
			return nil
		},
	}
}
