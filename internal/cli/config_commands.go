package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wireapp/wire-desktop/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage wire-desktop settings",
		Long: `Settings management commands.

Commands:
  show     - Display the effective settings
  path     - Show where settings and data live
  migrate  - Bring the settings file up to the current schema`,
	}

	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())
	configCmd.AddCommand(newConfigMigrateCmd())
	return configCmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective settings",
		Long: `Display the settings as the host uses them.

Values come from:
  1. Settings file (<data-dir>/config/init.json)
  2. Environment variables (WIRE_DESKTOP_*)

Environment values win and are never written back to the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			s := env.settings.Get()
			redacted := s
			if redacted.Backup.AzureSASURL != "" {
				redacted.Backup.AzureSASURL = "<set>"
			}

			return render(cmd.OutOrStdout(), outputFormat, redacted, func(t *table) {
				t.row("General:")
				t.row("  Webapp URL", s.WebappURL)
				t.row("  Locale", dash(s.Locale))
				t.row("  Log level", s.LogLevel)
				t.row("  Maximum accounts", s.MaximumAccounts)
				t.row("  Spell check", s.SpellCheck)
				t.row("  Unread badge", s.ShowUnreadBadge)
				t.row("  SSO port", s.SSOPort)
				t.row()
				t.row("Proxy:")
				t.row("  Proxy URL", dash(s.ProxyURL))
				t.row("  No proxy", dash(s.NoProxy))
				t.row()
				t.row("Backup:")
				t.row("  Directory", dash(s.Backup.Directory))
				t.row("  S3 bucket", dash(s.Backup.S3Bucket))
				if s.Backup.S3Bucket != "" {
					t.row("  S3 region", dash(s.Backup.S3Region))
					t.row("  S3 prefix", dash(s.Backup.S3Prefix))
					t.row("  S3 endpoint", dash(s.Backup.S3Endpoint))
				}
				if s.Backup.AzureSASURL != "" {
					// Never display the SAS token
					t.row("  Azure SAS URL", "<set>")
					t.row("  Azure prefix", dash(s.Backup.AzureBlobPrefix))
				} else {
					t.row("  Azure SAS URL", "-")
				}
				t.row()
				t.row("Settings file", env.settings.Path())
				t.row("Config version", s.ConfigVersion)
			})
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show where settings and data live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			dir := dataDir
			if dir == "" {
				dir = env.DataDir
			}
			p := config.NewPaths(dir)

			locations := struct {
				DataDir  string `json:"dataDir" yaml:"dataDir"`
				Settings string `json:"settings" yaml:"settings"`
				Accounts string `json:"accounts" yaml:"accounts"`
				Logs     string `json:"logs" yaml:"logs"`
				Socket   string `json:"socket" yaml:"socket"`
				Backups  string `json:"backups" yaml:"backups"`
			}{p.DataDir, p.Settings(), p.Accounts(), p.Logs(), p.Socket(), p.Backups()}

			return render(cmd.OutOrStdout(), outputFormat, locations, func(t *table) {
				t.row("Data directory", locations.DataDir)
				t.row("Settings", locations.Settings, fileStatus(locations.Settings))
				t.row("Accounts", locations.Accounts, fileStatus(locations.Accounts))
				t.row("Logs", locations.Logs)
				t.row("Bridge socket", locations.Socket, fileStatus(locations.Socket))
				t.row("Backups", locations.Backups)
			})
		},
	}
}

func fileStatus(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "(missing)"
	}
	return fmt.Sprintf("(%d bytes, modified %s)", info.Size(), info.ModTime().Format("2006-01-02 15:04:05"))
}

// newConfigMigrateCmd creates the 'config migrate' command.
func newConfigMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the settings file up to the current schema",
		Long: `Load the settings file, import a legacy init.json if present, fill
missing fields with defaults and drop deprecated keys.

A backup of the previous file is kept until the migrated file is
written. Running migrate on a current file changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := config.LoadEnv()
			if err != nil {
				return err
			}
			dir := dataDir
			if dir == "" {
				dir = env.DataDir
			}
			paths := config.NewPaths(dir)
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			result, err := config.NewStore(paths, GetLogger(), nil).Load()
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			return render(cmd.OutOrStdout(), outputFormat, result, func(t *table) {
				if !result.Migrated && !result.LegacyImported {
					t.row("Settings are up to date")
					return
				}
				t.row("Migrated", result.Description)
				t.row("Version", fmt.Sprintf("%d -> %d", result.FromVersion, result.ToVersion))
				if result.LegacyImported {
					t.row("Legacy file", "imported")
				}
				for _, f := range result.MissingFields {
					t.row("Added", f)
				}
				for _, f := range result.RenamedFields {
					t.row("Renamed", f)
				}
				for _, f := range result.RemovedFields {
					t.row("Removed", f)
				}
			})
		},
	}
}
