package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkdeck/internal/bookmarks"
	"github.com/MrSnakeDoc/linkdeck/internal/identity"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/version"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("aborted")

func newTokenCmd(e *env) *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development token signed with the shared secret",
		Long:  "Issue a token for --user signed with LINKDECKCTL_SECRET. Meant for local setups where the CLI shares the server secret.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := e.v.GetString(keySecret)
			if secret == "" {
				return errors.New("no secret configured (LINKDECKCTL_SECRET)")
			}
			token, err := identity.NewIssuer(secret, e.v.GetString(keyIssuer)).Issue(user, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "User id the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your bookmarks, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			snap, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newAddCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "add TITLE URL",
		Short: "Add a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			b, err := c.Add(cmd.Context(), args[0], args[1])
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.Field != "" {
					return fmt.Errorf("%s: %s", apiErr.Field, apiErr.Message)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s %s (%s)\n", b.ID, b.Title, b.URL)
			return nil
		},
	}
}

func newRmCmd(e *env) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Remove a bookmark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}

			var confirmer bookmarks.Confirmer = bookmarks.Confirmed(yes)
			if !yes {
				confirmer = promptConfirmer(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			id := args[0]
			if !confirmer.Confirm(cmd.Context(), id) {
				return ErrAborted
			}

			if err := c.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

// promptConfirmer asks on out and accepts y or yes from in.
func promptConfirmer(in io.Reader, out io.Writer) bookmarks.Confirmer {
	return bookmarks.ConfirmFunc(func(_ context.Context, id string) bool {
		fmt.Fprintf(out, "Delete bookmark %s? [y/N] ", id)
		line, _ := bufio.NewReader(in).ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	})
}

func newReloadCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Ask the server to reload your list from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			if err := c.Reload(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reload queued")
			return nil
		},
	}
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print your list every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			err = c.Watch(cmd.Context(), func(snap livelist.Snapshot) {
				fmt.Fprintf(out, "── %s\n", time.Now().Format(time.TimeOnly))
				printSnapshot(out, snap)
			})
			if err != nil {
				e.logger.Warn("live feed ended", logger.Error(err))
			}
			return err
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("linkdeckctl"))
		},
	}
}

func printSnapshot(w io.Writer, snap livelist.Snapshot) {
	switch {
	case snap.IsLoading:
		fmt.Fprintln(w, "Loading...")
		return
	case snap.LoadErr != "":
		fmt.Fprintf(w, "Failed to load bookmarks: %s\n", snap.LoadErr)
	}
	if len(snap.Bookmarks) == 0 {
		fmt.Fprintln(w, "No bookmarks yet")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tURL\tADDED")
	for _, b := range snap.Bookmarks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.URL, b.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}
