package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wireapp/wire-desktop/internal/backup"
	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/cloud/providers"
	"github.com/wireapp/wire-desktop/internal/http"
	"github.com/wireapp/wire-desktop/internal/progress"
	"github.com/wireapp/wire-desktop/internal/services"
	"github.com/wireapp/wire-desktop/internal/storage"
)

// newBackupCmd creates the 'backup' command group.
func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, import and inspect conversation backups",
		Long: `Backup archives hold the local conversation database of one account.

Commands:
  export   - Write a backup archive, optionally publishing it
  import   - Restore an archive into an account
  inspect  - Show the metadata and tables of an archive`,
	}

	cmd.AddCommand(newBackupExportCmd())
	cmd.AddCommand(newBackupImportCmd())
	cmd.AddCommand(newBackupInspectCmd())
	return cmd
}

func newBackupService(env *environment) *services.BackupService {
	return services.NewBackupService(
		func(accountID string) (*storage.ConversationStore, error) {
			return storage.Open(env.paths.Database(accountID))
		},
		services.WithLogger(GetLogger()),
	)
}

// destinations builds the publish targets from the backup settings.
func destinations(ctx context.Context, env *environment) ([]cloud.Destination, error) {
	s := env.settings.Get()
	client, err := http.NewClient(http.ClientOptions{ProxyURL: s.ProxyURL, NoProxy: s.NoProxy})
	if err != nil {
		return nil, err
	}
	return providers.FromSettings(ctx, s.Backup, client)
}

type exportSummary struct {
	Path      string         `json:"path" yaml:"path"`
	Rows      int            `json:"rows" yaml:"rows"`
	Tables    map[string]int `json:"tables" yaml:"tables"`
	Published []publishEntry `json:"published,omitempty" yaml:"published,omitempty"`
}

type publishEntry struct {
	Destination string `json:"destination" yaml:"destination"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newBackupExportCmd() *cobra.Command {
	var (
		target  string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "export <account-id>",
		Short: "Write a backup archive of an account",
		Long: `Export the local conversation database of a signed in account.

The archive is named backup-YYYY-MM-DD_HH-mm-ss.tar.gz and written to
--target, the configured backup directory, or the Downloads folder.

With --publish the archive is also uploaded to every destination set in
the backup settings (S3 bucket, Azure container). A failed upload
keeps the local archive.

Examples:
  wire-desktop backup export 6f1c2b9e --target ~/backups
  wire-desktop backup export 6f1c2b9e --publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			ctx := GetContext()

			book, err := openAccountBook(ctx, env)
			if err != nil {
				return err
			}
			acc, err := book.find(ctx, args[0])
			if err != nil {
				return err
			}

			if target == "" {
				target = env.settings.Get().Backup.Directory
			}
			if target == "" {
				target = env.paths.Backups()
			}

			var dests []cloud.Destination
			if publish {
				dests, err = destinations(ctx, env)
				if err != nil {
					return err
				}
				if len(dests) == 0 {
					return errors.New("--publish given but no backup destination is configured")
				}
			}

			svc := newBackupService(env)
			res, err := svc.Export(ctx, acc, services.ExportOptions{
				TargetDir: target,
				Reporter:  progress.NewCLIProgress(),
			})
			if err != nil {
				return fmt.Errorf("export failed: %s", backup.UserMessage(err))
			}

			summary := exportSummary{Path: res.Path, Rows: res.Rows, Tables: res.Tables}

			var publishErr error
			if len(dests) > 0 {
				results, err := publishArchive(ctx, svc, acc.ID, res.Path, dests)
				for _, r := range results {
					e := publishEntry{Destination: r.Destination, Location: r.Location}
					if r.Err != nil {
						e.Error = r.Err.Error()
					}
					summary.Published = append(summary.Published, e)
				}
				publishErr = err
			}

			if err := render(cmd.OutOrStdout(), outputFormat, summary, func(t *table) {
				t.row("Archive", summary.Path)
				t.row("Rows", summary.Rows)
				for _, name := range sortedKeys(summary.Tables) {
					t.row("  "+name, summary.Tables[name])
				}
				for _, p := range summary.Published {
					if p.Error != "" {
						t.row("Failed", p.Destination, p.Error)
					} else {
						t.row("Published", p.Location)
					}
				}
			}); err != nil {
				return err
			}
			return publishErr
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Directory to write the archive to")
	cmd.Flags().BoolVar(&publish, "publish", false, "Upload the archive to the configured destinations")
	return cmd
}

// publishArchive uploads path with one progress bar per destination.
func publishArchive(ctx context.Context, svc *services.BackupService, accountID, path string, dests []cloud.Destination) ([]cloud.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	ui := progress.NewPublishUI(info.Size())
	for _, d := range dests {
		ui.AddBar(d.Name())
	}

	results, err := svc.Publish(ctx, accountID, path, dests, ui.Callback())
	for _, r := range results {
		if bar, ok := ui.Bar(r.Destination); ok {
			bar.Complete(r.Location, r.Err)
		}
	}
	ui.Wait()
	return results, err
}

func newBackupImportCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "import <account-id> <archive>",
		Short: "Restore a backup archive into an account",
		Long: `Import a backup archive into the local database of an account.

The archive must belong to the same user and must not come from a newer
major version. Every table in the archive replaces the local table of
the same name; tables this version does not know are skipped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			ctx := GetContext()

			book, err := openAccountBook(ctx, env)
			if err != nil {
				return err
			}
			acc, err := book.find(ctx, args[0])
			if err != nil {
				return err
			}

			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Replace local conversations of %s with %s?", acc.ID, args[1]))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			res, err := newBackupService(env).Import(ctx, acc, args[1], services.ImportOptions{
				Reporter: progress.NewCLIProgress(),
			})
			if err != nil {
				if backup.KindOf(err) != 0 {
					return fmt.Errorf("import failed: %s", backup.UserMessage(err))
				}
				return fmt.Errorf("import failed: %w", err)
			}

			return render(cmd.OutOrStdout(), outputFormat, res, func(t *table) {
				t.row("Created", res.Meta.CreationTime.Format("2006-01-02 15:04:05"))
				t.row("Version", dash(res.Meta.Version))
				t.row("Rows", res.Rows)
				for _, name := range sortedKeys(res.Tables) {
					t.row("  "+name, res.Tables[name])
				}
				for _, name := range res.Skipped {
					t.row("Skipped", name)
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newBackupInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the metadata and tables of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewBackupService(nil, services.WithLogger(GetLogger()))
			info, err := svc.Inspect(args[0])
			if err != nil {
				return fmt.Errorf("cannot read %s: %s", args[0], backup.UserMessage(err))
			}

			return render(cmd.OutOrStdout(), outputFormat, info, func(t *table) {
				t.row("User", dash(info.Meta.UserID))
				t.row("Client", dash(info.Meta.ClientID))
				t.row("Platform", dash(info.Meta.Platform))
				t.row("Version", dash(info.Meta.Version))
				t.row("Created", info.Meta.CreationTime.Format("2006-01-02 15:04:05"))
				t.row()
				t.row("TABLE", "ROWS")
				for _, name := range sortedKeys(info.Tables) {
					t.row(name, info.Tables[name])
				}
			})
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
