// Package sso completes single sign-on logins redirected to a loopback
// callback.
package sso

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wireapp/wire-desktop/internal/account"
)

var (
	ErrInvalidToken    = errors.New("invalid sso token")
	ErrMissingSubject  = errors.New("sso token has no subject")
	ErrNoPendingLogin  = errors.New("no account is waiting for sign-in")
	ErrStateMismatch   = errors.New("sso state does not match the pending login")
	ErrAlreadySignedIn = errors.New("user is already signed in on another account")
)

// Identity is the user described by an SSO token.
type Identity struct {
	UserID string
	TeamID string
	Name   string
}

// ParseToken extracts the identity from token. With a non-empty key the
// HMAC signature and expiry are verified; without one the claims are read
// unverified, the web client validates the session later.
func ParseToken(token string, key []byte) (Identity, error) {
	claims := jwt.MapClaims{}
	if len(key) > 0 {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
		if err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, ErrMissingSubject
	}
	id := Identity{UserID: sub}
	if team, ok := claims["team"].(string); ok {
		id.TeamID = team
	}
	if name, ok := claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}

// Completer binds the pending account of a store to SSO identities.
type Completer struct {
	store *account.Store
	key   []byte
}

// NewCompleter creates a completer for store. key may be nil.
func NewCompleter(store *account.Store, key []byte) *Completer {
	return &Completer{store: store, key: key}
}

// Complete binds the unbound account whose session id equals state to the
// user in token.
func (c *Completer) Complete(token, state string) (account.Account, error) {
	pending, ok := account.UnboundAccount(c.store.Snapshot())
	if !ok {
		return account.Account{}, ErrNoPendingLogin
	}
	if state == "" || state != pending.SessionID {
		return account.Account{}, ErrStateMismatch
	}

	id, err := ParseToken(token, c.key)
	if err != nil {
		return account.Account{}, err
	}

	patch := account.AccountPatch{UserID: account.StringPtr(id.UserID)}
	if id.TeamID != "" {
		patch.TeamID = account.StringPtr(id.TeamID)
	}
	if id.Name != "" {
		patch.Name = account.StringPtr(id.Name)
	}
	// The session may have been reset or aborted since the check above
	next := c.store.Dispatch(account.UpdateAccount{ID: pending.ID, Patch: patch, ExpectedSessionID: state})

	bound, ok := account.AccountByID(next, pending.ID)
	if !ok {
		return account.Account{}, ErrNoPendingLogin
	}
	if bound.SessionID != state {
		return account.Account{}, ErrStateMismatch
	}
	if bound.UserID != id.UserID {
		return account.Account{}, ErrAlreadySignedIn
	}
	return bound, nil
}
