// Package cli implements linkdeckctl, the command-line client for a linkdeck server.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

const (
	keyServer  = "server"
	keyToken   = "token"
	keySecret  = "secret"
	keyIssuer  = "issuer"
	keyTimeout = "timeout"
)

// env is the state shared by every subcommand.
type env struct {
	v      *viper.Viper
	logger logger.Logger
}

func (e *env) client() (*Client, error) {
	token := e.v.GetString(keyToken)
	if token == "" {
		return nil, errors.New("no token configured: run `linkdeckctl token --user ID` and set LINKDECKCTL_TOKEN")
	}
	return NewClient(e.v.GetString(keyServer), token, e.v.GetDuration(keyTimeout))
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	e := &env{v: newViper(), logger: logger.NewNop()}

	var configFile string
	root := &cobra.Command{
		Use:           "linkdeckctl",
		Short:         "Command-line client for a linkdeck server",
		Long:          "List, add, remove and watch your linkdeck bookmarks from a terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e.logger = logger.New("warn", true)
			return readConfig(e.v, configFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: ~/.config/linkdeck/config.yaml)")
	flags.String(keyServer, "", "Server base URL (env LINKDECKCTL_SERVER)")
	flags.String(keyToken, "", "Bearer token (env LINKDECKCTL_TOKEN)")
	flags.Duration(keyTimeout, 0, "HTTP timeout (env LINKDECKCTL_TIMEOUT)")
	for _, key := range []string{keyServer, keyToken, keyTimeout} {
		_ = e.v.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(
		newTokenCmd(e),
		newListCmd(e),
		newAddCmd(e),
		newRmCmd(e),
		newReloadCmd(e),
		newWatchCmd(e),
		newImportCmd(e),
		newLogoutCmd(e),
		newVersionCmd(),
	)
	return root
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(keyServer, "http://localhost:8080")
	v.SetDefault(keyIssuer, "linkdeck")
	v.SetDefault(keyTimeout, 10*time.Second)

	v.SetEnvPrefix("LINKDECKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// readConfig loads the explicit file, or ~/.config/linkdeck/config.yaml when present.
func readConfig(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "linkdeck"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "linkdeck"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// Execute runs linkdeckctl until done or interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
