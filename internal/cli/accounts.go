package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/ipc"
)

// accountBook reads and changes the account list. With a running bridge
// every change goes through it; otherwise the accounts file is edited
// directly.
type accountBook struct {
	env       *environment
	client    *ipc.Client
	store     *account.Store
	persister *account.Persister
}

func openAccountBook(ctx context.Context, env *environment) (*accountBook, error) {
	client := ipc.NewClient(env.paths.Socket())
	if client.IsServiceRunning(ctx) {
		GetLogger().Debug().Str("socket", env.paths.Socket()).Msg("Using running bridge")
		return &accountBook{env: env, client: client}, nil
	}

	state, err := account.LoadState(env.paths.Accounts(), env.settings.Get().MaximumAccounts)
	if err != nil {
		return nil, err
	}
	return &accountBook{
		env:       env,
		store:     account.NewStore(state, account.WithStoreLogger(GetLogger())),
		persister: account.NewPersister(env.paths.Accounts(), 0, GetLogger()),
	}, nil
}

func (b *accountBook) list(ctx context.Context) (*ipc.AccountsData, error) {
	if b.client != nil {
		return b.client.GetAccounts(ctx)
	}
	s := b.store.Snapshot()
	return &ipc.AccountsData{
		Accounts:        account.Accounts(s),
		MaximumAccounts: s.MaximumAccounts,
		CanAddAccount:   account.CanAddAccount(s),
	}, nil
}

func (b *accountBook) add(ctx context.Context, ssoCode string) (*ipc.AccountsData, error) {
	if b.client != nil {
		return b.client.AddAccount(ctx, ssoCode)
	}
	if _, ok := b.store.AddAccount(ssoCode); !ok {
		return nil, fmt.Errorf("cannot add another account (limit %d, or a sign-in is already pending)", b.store.Snapshot().MaximumAccounts)
	}
	if err := b.commit(); err != nil {
		return nil, err
	}
	return b.list(ctx)
}

func (b *accountBook) lookup(id string) error {
	if _, ok := account.AccountByID(b.store.Snapshot(), id); !ok {
		return fmt.Errorf("unknown account %q", id)
	}
	return nil
}

func (b *accountBook) switchTo(ctx context.Context, id string) error {
	if b.client != nil {
		return b.client.SwitchAccount(ctx, id)
	}
	if err := b.lookup(id); err != nil {
		return err
	}
	b.store.Dispatch(account.SwitchAccount{ID: id})
	return b.commit()
}

func (b *accountBook) remove(ctx context.Context, id string) error {
	if b.client != nil {
		return b.client.DeleteAccount(ctx, id)
	}
	if err := b.lookup(id); err != nil {
		return err
	}
	b.store.Dispatch(account.DeleteAccount{ID: id})
	return b.commit()
}

func (b *accountBook) badge(ctx context.Context) (int, error) {
	if b.client != nil {
		return b.client.GetBadgeCount(ctx)
	}
	return account.TotalBadgeCount(b.store.Snapshot()), nil
}

// find returns the account record with id.
func (b *accountBook) find(ctx context.Context, id string) (account.Account, error) {
	data, err := b.list(ctx)
	if err != nil {
		return account.Account{}, err
	}
	for _, acc := range data.Accounts {
		if acc.ID == id {
			return acc, nil
		}
	}
	return account.Account{}, fmt.Errorf("unknown account %q", id)
}

func (b *accountBook) commit() error {
	b.persister.Schedule(b.store.Snapshot())
	return b.persister.Flush()
}

// newAccountsCmd creates the 'accounts' command group.
func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage the account list",
		Long: `Inspect and change the multi-account list.

When the bridge is running, changes are sent to it so open webviews
follow along. Otherwise the accounts file is edited directly.

Commands:
  list    - Show all accounts
  add     - Start signing in another account
  switch  - Make an account visible
  remove  - Remove an account
  badge   - Show the total unread count`,
	}

	cmd.AddCommand(newAccountsListCmd())
	cmd.AddCommand(newAccountsAddCmd())
	cmd.AddCommand(newAccountsSwitchCmd())
	cmd.AddCommand(newAccountsRemoveCmd())
	cmd.AddCommand(newAccountsBadgeCmd())
	return cmd
}

// withAccountBook loads the environment and account list for one command.
func withAccountBook(fn func(ctx context.Context, b *accountBook) error) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}
	ctx := GetContext()
	book, err := openAccountBook(ctx, env)
	if err != nil {
		return err
	}
	return fn(ctx, book)
}

func printAccounts(w io.Writer, data *ipc.AccountsData) error {
	return render(w, outputFormat, data, func(t *table) {
		t.row("ID", "USER", "NAME", "VISIBLE", "UNREAD", "STATE")
		for _, acc := range data.Accounts {
			state := "signed in"
			if !acc.IsBound() {
				state = "pending"
			}
			if acc.Lifecycle != account.LifecycleNone {
				state += " (" + string(acc.Lifecycle) + ")"
			}
			visible := ""
			if acc.Visible {
				visible = "*"
			}
			t.row(acc.ID, dash(acc.UserID), dash(acc.Name), visible, acc.BadgeCount, state)
		}
		t.row()
		t.row(fmt.Sprintf("%d of %d accounts", len(data.Accounts), data.MaximumAccounts))
	})
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newAccountsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show all accounts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccountBook(func(ctx context.Context, b *accountBook) error {
				data, err := b.list(ctx)
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), data)
			})
		},
	}
}

func newAccountsAddCmd() *cobra.Command {
	var ssoCode string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Start signing in another account",
		Long: `Add an unbound account that becomes visible and waits for sign-in.

Example:
  wire-desktop accounts add --sso-code wire-3fa85f64-5717-4562-b3fc-2c963f66afa6`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccountBook(func(ctx context.Context, b *accountBook) error {
				data, err := b.add(ctx, ssoCode)
				if err != nil {
					return err
				}
				GetLogger().Info().Int("accounts", len(data.Accounts)).Msg("Account added")
				return printAccounts(cmd.OutOrStdout(), data)
			})
		},
	}

	cmd.Flags().StringVar(&ssoCode, "sso-code", "", "Company login code to start SSO with")
	return cmd
}

func newAccountsSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <account-id>",
		Short: "Make an account visible",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccountBook(func(ctx context.Context, b *accountBook) error {
				if err := b.switchTo(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", args[0])
				return nil
			})
		},
	}
}

func newAccountsRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <account-id>",
		Aliases: []string{"rm"},
		Short:   "Remove an account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccountBook(func(ctx context.Context, b *accountBook) error {
				acc, err := b.find(ctx, args[0])
				if err != nil {
					return err
				}
				if !yes {
					label := acc.ID
					if acc.Name != "" {
						label = fmt.Sprintf("%s (%s)", acc.Name, acc.ID)
					}
					ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove account "+label+"?")
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
						return nil
					}
				}
				if err := b.remove(ctx, acc.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", acc.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newAccountsBadgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "badge",
		Short: "Show the total unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccountBook(func(ctx context.Context, b *accountBook) error {
				total, err := b.badge(ctx)
				if err != nil {
					return err
				}
				data := struct {
					Total int `json:"total" yaml:"total"`
				}{total}
				return render(cmd.OutOrStdout(), outputFormat, data, func(t *table) {
					t.row("Unread", total)
				})
			})
		},
	}
}
