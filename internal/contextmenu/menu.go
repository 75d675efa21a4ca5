// Package contextmenu tracks the transient account context menu opened on
// an account icon in the sidebar.
package contextmenu

import (
	"sync"

	"github.com/wireapp/wire-desktop/internal/account"
	"github.com/wireapp/wire-desktop/internal/events"
)

// Item is one entry of the account context menu.
type Item string

const (
	ItemEditAccount Item = "edit_account"
	ItemManageTeam  Item = "manage_team"
	ItemLogOut      Item = "log_out"
	ItemRemove      Item = "remove_account"
)

// State is the menu as last opened. It is never persisted.
type State struct {
	X              int
	Y              int
	AccountID      string
	IsAtLeastAdmin bool
	Visible        bool
}

// Menu holds the context menu state. The zero value is a closed menu.
type Menu struct {
	mu    sync.Mutex
	state State
	bus   *events.EventBus
}

// New creates a closed menu publishing visibility changes on bus (may be nil).
func New(bus *events.EventBus) *Menu {
	return &Menu{bus: bus}
}

// Open shows the menu for accountID at the given position, replacing any
// menu already open.
func (m *Menu) Open(x, y int, accountID string, isAtLeastAdmin bool) State {
	m.mu.Lock()
	m.state = State{X: x, Y: y, AccountID: accountID, IsAtLeastAdmin: isAtLeastAdmin, Visible: true}
	s := m.state
	m.mu.Unlock()

	m.publish(s)
	return s
}

// Close hides the menu. Closing a closed menu does nothing.
func (m *Menu) Close() {
	m.mu.Lock()
	if !m.state.Visible {
		m.mu.Unlock()
		return
	}
	m.state = State{}
	m.mu.Unlock()

	m.publish(State{})
}

// State returns the current menu state.
func (m *Menu) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Items lists the entries for the open menu. Team management is offered to
// admins only; a closed menu has no entries.
func (m *Menu) Items() []Item {
	s := m.State()
	if !s.Visible {
		return nil
	}
	items := []Item{ItemEditAccount}
	if s.IsAtLeastAdmin {
		items = append(items, ItemManageTeam)
	}
	return append(items, ItemLogOut, ItemRemove)
}

// Select closes the menu and returns the store action for item. ok is false
// for items handled by the web client (edit, manage team) or when the menu
// was not open.
func (m *Menu) Select(item Item) (action account.Action, ok bool) {
	s := m.State()
	m.Close()
	if !s.Visible {
		return nil, false
	}

	switch item {
	case ItemLogOut:
		return account.ResetIdentity{ID: s.AccountID}, true
	case ItemRemove:
		return account.DeleteAccount{ID: s.AccountID}, true
	default:
		return nil, false
	}
}

func (m *Menu) publish(s State) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&events.ContextMenuEvent{
		BaseEvent: events.NewBase(events.EventContextMenu),
		AccountID: s.AccountID,
		Visible:   s.Visible,
		X:         s.X,
		Y:         s.Y,
	})
}
