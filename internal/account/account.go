// Package account holds the multi-account session store: an immutable
// account list, a pure reducer applying actions to it, selectors deriving
// values from it, and a Store that commits actions one at a time.
package account

import (
	"github.com/wireapp/wire-desktop/internal/constants"
)

// Lifecycle is the transient state of an account's webview session. It is
// never persisted.
type Lifecycle string

const (
	LifecycleNone     Lifecycle = ""
	LifecycleLoading  Lifecycle = "loading"
	LifecycleReady    Lifecycle = "ready"
	LifecycleCrashed  Lifecycle = "crashed"
	LifecycleSignedIn Lifecycle = "signed_in"
)

// Account is one account record. Records are values; a State never shares
// them with another State.
type Account struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userID,omitempty"`
	TeamID     string    `json:"teamID,omitempty"`
	Name       string    `json:"name,omitempty"`
	AccentID   int       `json:"accentID,omitempty"`
	Picture    string    `json:"picture,omitempty"`
	DarkMode   bool      `json:"darkMode"`
	Visible    bool      `json:"visible"`
	BadgeCount int       `json:"badgeCount"`
	SessionID  string    `json:"sessionID,omitempty"`
	SSOCode    string    `json:"ssoCode,omitempty"`
	Lifecycle  Lifecycle `json:"-"`
}

// IsBound reports whether sign-in completed for the account.
func (a Account) IsBound() bool {
	return a.UserID != ""
}

// State is an immutable snapshot of the account list.
type State struct {
	Accounts        []Account
	MaximumAccounts int
}

// NewState returns an empty State with the given cap. Non-positive caps use
// the default.
func NewState(maximumAccounts int) State {
	if maximumAccounts <= 0 {
		maximumAccounts = constants.DefaultMaximumAccounts
	}
	if maximumAccounts > constants.MaximumAccountsCap {
		maximumAccounts = constants.MaximumAccountsCap
	}
	return State{Accounts: []Account{}, MaximumAccounts: maximumAccounts}
}

// Clone returns a State that shares no memory with s.
func (s State) Clone() State {
	out := State{MaximumAccounts: s.MaximumAccounts, Accounts: make([]Account, len(s.Accounts))}
	copy(out.Accounts, s.Accounts)
	return out
}

// Equal reports whether a and b hold the same records in the same order.
func Equal(a, b State) bool {
	if a.MaximumAccounts != b.MaximumAccounts || len(a.Accounts) != len(b.Accounts) {
		return false
	}
	for i := range a.Accounts {
		if a.Accounts[i] != b.Accounts[i] {
			return false
		}
	}
	return true
}

func (s State) indexOf(id string) int {
	for i, a := range s.Accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}
