// Package cli provides the command-line interface for wire-desktop.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wireapp/wire-desktop/internal/config"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/version"
)

var (
	// Global flags
	dataDir      string
	outputFormat string
	verbose      bool
	debug        bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wire-desktop",
		Short: "Wire desktop host: accounts, host bridge and backups",
		Long: `wire-desktop ` + version.Version + ` - Built: ` + version.BuildTime + `
Host process for the Wire desktop client.

Runs the host bridge the account webviews talk to, manages the
multi-account list and exports or restores local conversation
backups.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: per-user application data)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate a shell completion script",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(out)
			case "zsh":
				return rootCmd.GenZshCompletion(out)
			case "fish":
				return rootCmd.GenFishCompletion(out, true)
			default:
				return rootCmd.GenPowerShellCompletion(out)
			}
		},
	}
	rootCmd.AddCommand(completionCmd)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newAccountsCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newBridgeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context. It is cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// environment is the resolved data directory and settings of one command.
type environment struct {
	paths    config.Paths
	settings *config.Store
	env      config.Env
}

// loadEnvironment resolves the data directory (flag, then environment,
// then the per-user default) and loads the settings with environment
// overrides applied.
func loadEnvironment() (*environment, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	dir := dataDir
	if dir == "" {
		dir = env.DataDir
	}
	paths := config.NewPaths(dir)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := config.NewStore(paths, GetLogger(), nil)
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	store.SetEnv(env)

	if level, err := logging.ParseLevel(store.Get().LogLevel); err == nil && !verbose && !debug {
		logging.SetGlobalLevel(level)
	}
	return &environment{paths: paths, settings: store, env: env}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := struct {
				Version   string `json:"version" yaml:"version"`
				BuildTime string `json:"buildTime" yaml:"buildTime"`
			}{version.Version, version.BuildTime}
			return render(cmd.OutOrStdout(), outputFormat, info, func(t *table) {
				t.row("Version", info.Version)
				t.row("Built", info.BuildTime)
			})
		},
	}
}
