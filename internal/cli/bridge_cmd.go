package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/avatar"
	"github.com/wireapp/wire-desktop/internal/bridge"
	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/cloud/providers"
	"github.com/wireapp/wire-desktop/internal/config"
	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/contextmenu"
	"github.com/wireapp/wire-desktop/internal/events"
	"github.com/wireapp/wire-desktop/internal/http"
	"github.com/wireapp/wire-desktop/internal/ipc"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/services"
	"github.com/wireapp/wire-desktop/internal/sso"
	"github.com/wireapp/wire-desktop/internal/storage"
)

// newBridgeCmd creates the 'bridge' command group.
func newBridgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run or query the host bridge",
		Long: `The host bridge is the per-user socket the account webviews and the
sidebar talk to.

Commands:
  serve   - Run the bridge in the foreground
  status  - Show the state of a running bridge`,
	}
	cmd.AddCommand(newBridgeServeCmd())
	cmd.AddCommand(newBridgeStatusCmd())
	return cmd
}

func newBridgeServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge in the foreground",
		Long: `Run the host bridge until interrupted.

Serves the bridge socket, listens for SSO callbacks on the loopback
interface, keeps the accounts file and the avatar cache in sync and
writes JSON logs to <data-dir>/logs/bridge.log.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}

			h, err := startHost(env)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bridge listening on %s\n", h.ipc.SocketPath())
			if url := h.sso.CallbackURL(); url != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "SSO callback: %s\n", url)
			}

			<-GetContext().Done()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return h.Close(ctx)
		},
	}
}

func newBridgeStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment()
			if err != nil {
				return err
			}
			client := ipc.NewClient(env.paths.Socket())
			st, err := client.GetStatus(GetContext())
			if err != nil {
				return fmt.Errorf("bridge is not running: %w", err)
			}
			return render(cmd.OutOrStdout(), outputFormat, st, func(t *table) {
				t.row("Version", st.Version)
				t.row("Uptime", st.Uptime)
				t.row("Accounts", st.AccountCount)
				t.row("Visible account", dash(st.VisibleAccountID))
				t.row("Unread", st.BadgeCount)
				t.row("SSO listener", st.SSOListening)
				t.row("Socket", st.SocketPath)
			})
		},
	}
}

// host is a running bridge and everything it drives.
type host struct {
	logger    *logging.Logger
	bus       *events.EventBus
	settings  *config.Store
	store     *account.Store
	persister *account.Persister
	avatars   *avatar.Cache
	sso       *sso.Server
	ipc       *ipc.Server

	stop   context.CancelFunc
	detach []func()
}

// startHost wires the account store, the bridge handler and the listeners
// for env. The settings store is reloaded onto the host event bus.
func startHost(env *environment) (*host, error) {
	bus := events.NewEventBus(constants.EventBusDefaultBuffer)
	logger := logging.NewLogger(logging.ModeHost, bus)
	if err := logger.EnableFileOutput(env.paths.Logs(), "bridge"); err != nil {
		logger.Warn().Err(err).Msg("File logging disabled")
	}

	settings := config.NewStore(env.paths, logger, bus)
	if _, err := settings.Load(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	settings.SetEnv(env.env)
	s := settings.Get()

	state, err := account.LoadState(env.paths.Accounts(), s.MaximumAccounts)
	if err != nil {
		// A damaged accounts file starts an empty list rather than blocking startup
		logger.Error().Err(err).Msg("Failed to load accounts, starting empty")
		state = account.NewState(s.MaximumAccounts)
	}

	h := &host{logger: logger, bus: bus, settings: settings}
	h.store = account.NewStore(state, account.WithEventBus(bus), account.WithStoreLogger(logger.Component("accounts")))
	h.persister = account.NewPersister(env.paths.Accounts(), constants.PersistDebounce, logger)
	h.detach = append(h.detach, h.persister.Attach(h.store))

	httpClient, err := http.NewClient(http.ClientOptions{ProxyURL: s.ProxyURL, NoProxy: s.NoProxy})
	if err != nil {
		h.abort()
		return nil, err
	}

	h.avatars = avatar.NewCache(env.paths.Avatars(), s.WebappURL, http.NewRetryClient(httpClient, logger), logger)
	h.detach = append(h.detach, h.avatars.Attach(h.store))

	ctx, cancel := context.WithCancel(context.Background())
	h.stop = cancel
	h.detach = append(h.detach, h.store.Subscribe(func(st account.State) {
		go h.refreshAvatars(ctx, st)
	}))
	go h.refreshAvatars(ctx, h.store.Snapshot())

	var key []byte
	if env.env.SSOKey != "" {
		key = []byte(env.env.SSOKey)
	}
	completer := sso.NewCompleter(h.store, key)
	h.sso = sso.NewServer(completer, logger, s.SSOPort)
	if err := h.sso.Start(); err != nil {
		// Logins through the custom URL scheme still reach SSOCallback
		logger.Warn().Err(err).Msg("SSO callback listener not started")
	}

	svc := services.NewBackupService(
		func(accountID string) (*storage.ConversationStore, error) {
			return storage.Open(env.paths.Database(accountID))
		},
		services.WithEventBus(bus),
		services.WithLogger(logger),
	)

	handler := bridge.NewHandler(h.store, contextmenu.New(bus), settings, env.paths,
		bridge.WithCompleter(completer),
		bridge.WithArchiver(svc),
		bridge.WithDestinations(func(ctx context.Context) ([]cloud.Destination, error) {
			return providers.FromSettings(ctx, settings.Get().Backup, httpClient)
		}),
		bridge.WithEventBus(bus),
		bridge.WithLogger(logger),
		bridge.WithStatus(env.paths.Socket(), h.sso.Running),
	)

	h.ipc = ipc.NewServer(handler, logger, env.paths.Socket())
	if err := h.ipc.Start(); err != nil {
		h.abort()
		return nil, err
	}

	go bridge.RelayBadges(ctx, bus, h.store, bridge.BadgeSinkFunc(func(total int) {
		if settings.Get().ShowUnreadBadge {
			logger.Debug().Int("total", total).Msg("Unread badge updated")
		}
	}))

	logger.Info().
		Int("accounts", len(state.Accounts)).
		Str("socket", env.paths.Socket()).
		Msg("Bridge started")
	return h, nil
}

func (h *host) refreshAvatars(ctx context.Context, s account.State) {
	for _, acc := range s.Accounts {
		if acc.Picture == "" {
			continue
		}
		if _, err := h.avatars.Fetch(ctx, acc); err != nil && ctx.Err() == nil {
			h.logger.Debug().Err(err).Str("account_id", acc.ID).Msg("Avatar not cached")
		}
	}
}

// abort releases what startHost set up before it failed.
func (h *host) abort() {
	if h.stop != nil {
		h.stop()
	}
	if h.sso != nil {
		h.sso.Shutdown(context.Background())
	}
	for _, fn := range h.detach {
		fn()
	}
	h.bus.Close()
	h.logger.Close()
}

// Close stops the listeners and writes any pending account change.
func (h *host) Close(ctx context.Context) error {
	h.ipc.Stop()
	if err := h.sso.Shutdown(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("SSO listener shutdown failed")
	}
	h.stop()
	for _, fn := range h.detach {
		fn()
	}

	err := h.persister.Flush()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to persist accounts")
	}
	h.logger.Info().Msg("Bridge stopped")
	h.bus.Close()
	h.logger.Close()
	return err
}
