// Package bridge answers host bridge requests from the webviews and the
// sidebar by driving the account store, the context menu and the backup
// service.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/cloud"
	"github.com/wireapp/wire-desktop/internal/config"
	"github.com/wireapp/wire-desktop/internal/contextmenu"
	"github.com/wireapp/wire-desktop/internal/events"
	"github.com/wireapp/wire-desktop/internal/ipc"
	"github.com/wireapp/wire-desktop/internal/logging"
	"github.com/wireapp/wire-desktop/internal/services"
	"github.com/wireapp/wire-desktop/internal/sso"
	"github.com/wireapp/wire-desktop/internal/version"
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrAccountLimit   = errors.New("cannot add another account")
	ErrNoArchiver     = errors.New("backups are not available")
	ErrNoSSO          = errors.New("single sign-on is not available")
)

// Archiver exports the data of one account.
type Archiver interface {
	Export(ctx context.Context, acc account.Account, opts services.ExportOptions) (*services.ExportResult, error)
}

// SettingsSource provides the current settings.
type SettingsSource interface {
	Get() config.Settings
}

// Handler implements ipc.Handler.
type Handler struct {
	store    *account.Store
	menu     *contextmenu.Menu
	settings SettingsSource
	paths    config.Paths
	logger   *logging.Logger
	bus      *events.EventBus

	completer    *sso.Completer
	archiver     Archiver
	destinations func(ctx context.Context) ([]cloud.Destination, error)
	ssoRunning   func() bool
	socketPath   string
	started      time.Time
}

// Option configures a Handler.
type Option func(*Handler)

func WithCompleter(c *sso.Completer) Option {
	return func(h *Handler) { h.completer = c }
}

func WithArchiver(a Archiver) Option {
	return func(h *Handler) { h.archiver = a }
}

// WithDestinations sets where SaveArchive publishes finished archives.
func WithDestinations(fn func(ctx context.Context) ([]cloud.Destination, error)) Option {
	return func(h *Handler) { h.destinations = fn }
}

func WithEventBus(bus *events.EventBus) Option {
	return func(h *Handler) { h.bus = bus }
}

func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l.Component("bridge")
		}
	}
}

// WithStatus provides the values GetStatus reports about the surrounding
// servers.
func WithStatus(socketPath string, ssoRunning func() bool) Option {
	return func(h *Handler) {
		h.socketPath = socketPath
		h.ssoRunning = ssoRunning
	}
}

// NewHandler creates a handler over store and menu.
func NewHandler(store *account.Store, menu *contextmenu.Menu, settings SettingsSource, paths config.Paths, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		menu:     menu,
		settings: settings,
		paths:    paths,
		logger:   logging.NewNopLogger(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle dispatches req by type. Unknown types yield nil.
func (h *Handler) Handle(ctx context.Context, req *ipc.Request) *ipc.Response {
	var (
		result interface{}
		err    error
	)

	switch req.Type {
	case ipc.MsgUnreadCountChanged:
		err = h.unreadCountChanged(req)
	case ipc.MsgPageLoaded:
		err = h.withAccount(req, func(acc account.Account) {
			h.store.Dispatch(account.UpdateAccountLifecycle{ID: acc.ID, Lifecycle: account.LifecycleReady})
		})
	case ipc.MsgNavigate:
		result, err = h.navigate(req)
	case ipc.MsgNotificationClick, ipc.MsgSwitchAccount:
		err = h.withAccount(req, func(acc account.Account) {
			h.store.Dispatch(account.SwitchAccount{ID: acc.ID})
		})
	case ipc.MsgSSOCallback:
		result, err = h.ssoCallback(req)
	case ipc.MsgSaveArchive:
		result, err = h.saveArchive(ctx, req)
	case ipc.MsgGetAccounts:
		result = h.accounts(h.store.Snapshot())
	case ipc.MsgAddAccount:
		result, err = h.addAccount(req)
	case ipc.MsgDeleteAccount:
		err = h.withAccount(req, func(acc account.Account) {
			h.menu.Close()
			h.store.Dispatch(account.DeleteAccount{ID: acc.ID})
		})
	case ipc.MsgShowContextMenu:
		result, err = h.showContextMenu(req)
	case ipc.MsgHideContextMenu:
		h.menu.Close()
	case ipc.MsgSelectMenuItem:
		err = h.selectMenuItem(req)
	case ipc.MsgGetBadgeCount:
		result = ipc.BadgeCountData{Total: account.TotalBadgeCount(h.store.Snapshot())}
	case ipc.MsgGetStatus:
		result = h.status()
	default:
		return nil
	}

	if err != nil {
		h.logger.Debug().Str("type", string(req.Type)).Err(err).Msg("Bridge request failed")
		return ipc.NewErrorResponse(err.Error())
	}
	return ipc.NewOKResponse(result)
}

func (h *Handler) lookup(id string) (account.Account, error) {
	acc, ok := account.AccountByID(h.store.Snapshot(), id)
	if !ok {
		return account.Account{}, fmt.Errorf("%w: %q", ErrUnknownAccount, id)
	}
	return acc, nil
}

func (h *Handler) withAccount(req *ipc.Request, fn func(account.Account)) error {
	acc, err := h.lookup(req.AccountID)
	if err != nil {
		return err
	}
	fn(acc)
	return nil
}

func (h *Handler) unreadCountChanged(req *ipc.Request) error {
	var data ipc.UnreadCountData
	if err := req.Payload(&data); err != nil {
		return err
	}
	return h.withAccount(req, func(acc account.Account) {
		h.store.Dispatch(account.UpdateAccountBadgeCount{ID: acc.ID, Count: data.Count})
	})
}

func (h *Handler) navigate(req *ipc.Request) (*ipc.NavigateResult, error) {
	var data ipc.NavigateData
	if err := req.Payload(&data); err != nil {
		return nil, err
	}
	if _, err := h.lookup(req.AccountID); err != nil {
		return nil, err
	}

	result := CheckNavigation(h.settings.Get().WebappOrigin(), data.URL)
	if !result.Allowed {
		h.logger.Info().
			Str("account_id", req.AccountID).
			Str("url", data.URL).
			Bool("external", result.External).
			Msg("In-app navigation blocked")
		if h.bus != nil {
			h.bus.Publish(&events.NavigationEvent{
				BaseEvent: events.NewBase(events.EventNavigationBlocked),
				AccountID: req.AccountID,
				URL:       data.URL,
				External:  result.External,
			})
		}
	}
	return &result, nil
}

func (h *Handler) ssoCallback(req *ipc.Request) (*account.Account, error) {
	if h.completer == nil {
		return nil, ErrNoSSO
	}
	var data ipc.SSOCallbackData
	if err := req.Payload(&data); err != nil {
		return nil, err
	}
	acc, err := h.completer.Complete(data.Token, data.State)
	if err != nil {
		return nil, err
	}
	h.logger.Info().Str("account_id", acc.ID).Msg("SSO login completed")
	return &acc, nil
}

func (h *Handler) saveArchive(ctx context.Context, req *ipc.Request) (*ipc.SaveArchiveResult, error) {
	if h.archiver == nil {
		return nil, ErrNoArchiver
	}
	acc, err := h.lookup(req.AccountID)
	if err != nil {
		return nil, err
	}

	var data ipc.SaveArchiveData
	if len(req.Data) > 0 {
		if err := req.Payload(&data); err != nil {
			return nil, err
		}
	}
	target := data.Target
	if target == "" {
		target = h.settings.Get().Backup.Directory
	}
	if target == "" {
		target = h.paths.Backups()
	}

	opts := services.ExportOptions{TargetDir: target}
	if h.destinations != nil {
		dests, err := h.destinations(ctx)
		if err != nil {
			return nil, err
		}
		opts.Destinations = dests
	}

	res, err := h.archiver.Export(ctx, acc, opts)
	if err != nil && (res == nil || !errors.Is(err, services.ErrPublishFailed)) {
		return nil, err
	}
	if err != nil {
		// The local archive exists; a failed upload is logged, not fatal
		h.logger.Warn().Err(err).Str("path", res.Path).Msg("Archive saved locally only")
	}
	return &ipc.SaveArchiveResult{Path: res.Path}, nil
}

func (h *Handler) accounts(s account.State) ipc.AccountsData {
	return ipc.AccountsData{
		Accounts:        account.Accounts(s),
		MaximumAccounts: s.MaximumAccounts,
		CanAddAccount:   account.CanAddAccount(s),
	}
}

func (h *Handler) addAccount(req *ipc.Request) (*ipc.AccountsData, error) {
	var data ipc.AddAccountData
	if len(req.Data) > 0 {
		if err := req.Payload(&data); err != nil {
			return nil, err
		}
	}
	if _, ok := h.store.AddAccount(data.SSOCode); !ok {
		return nil, ErrAccountLimit
	}
	out := h.accounts(h.store.Snapshot())
	return &out, nil
}

func (h *Handler) showContextMenu(req *ipc.Request) ([]string, error) {
	var data ipc.ContextMenuData
	if err := req.Payload(&data); err != nil {
		return nil, err
	}
	if _, err := h.lookup(req.AccountID); err != nil {
		return nil, err
	}
	h.menu.Open(data.X, data.Y, req.AccountID, data.IsAtLeastAdmin)

	items := h.menu.Items()
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = string(item)
	}
	return out, nil
}

func (h *Handler) selectMenuItem(req *ipc.Request) error {
	var data ipc.MenuItemData
	if err := req.Payload(&data); err != nil {
		return err
	}
	if action, ok := h.menu.Select(contextmenu.Item(data.Item)); ok {
		h.store.Dispatch(action)
	}
	return nil
}

func (h *Handler) status() ipc.StatusData {
	s := h.store.Snapshot()
	st := ipc.StatusData{
		Version:      version.Version,
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		AccountCount: len(s.Accounts),
		BadgeCount:   account.TotalBadgeCount(s),
		SocketPath:   h.socketPath,
	}
	if cur := account.CurrentAccount(s); cur != nil {
		st.VisibleAccountID = cur.ID
	}
	if h.ssoRunning != nil {
		st.SSOListening = h.ssoRunning()
	}
	return st
}

var _ ipc.Handler = (*Handler)(nil)
