package account

// Action is a request to change the account list. Actions are plain values;
// Reduce interprets them.
type Action interface {
	Name() string
}

// AddAccountWithSession appends a new unbound account and makes it visible.
// Ignored when the list is full or an unbound account already exists. The
// Store fills ID and SessionID when they are empty.
type AddAccountWithSession struct {
	ID        string
	SessionID string
	// SSOCode is set when the login was started from an SSO link.
	SSOCode string
}

// SwitchAccount makes the account with ID the only visible one. Unknown IDs
// are ignored.
type SwitchAccount struct {
	ID string
}

// UpdateAccountBadgeCount sets the unread count of one account. Negative
// counts are stored as zero.
type UpdateAccountBadgeCount struct {
	ID    string
	Count int
}

// DeleteAccount removes one account. When it was visible the first remaining
// account becomes visible.
type DeleteAccount struct {
	ID string
}

// AccountPatch lists the fields UpdateAccount may change. Nil fields are left
// alone.
type AccountPatch struct {
	UserID   *string
	TeamID   *string
	Name     *string
	Picture  *string
	AccentID *int
	DarkMode *bool
}

// UpdateAccount applies a patch to one account. Setting UserID binds an
// unbound account. A non-empty ExpectedSessionID makes the update a no-op
// unless the account still carries that session.
type UpdateAccount struct {
	ID                string
	Patch             AccountPatch
	ExpectedSessionID string
}

// UpdateAccountLifecycle records the webview session state of one account.
type UpdateAccountLifecycle struct {
	ID        string
	Lifecycle Lifecycle
}

// AbortAccountCreation drops an unbound account whose sign-in was cancelled
// and shows the last remaining account.
type AbortAccountCreation struct {
	ID string
}

// ResetIdentity clears the identity of an account after sign-out, turning it
// back into an unbound account with a fresh session. Any other unbound
// account is dropped so at most one remains. The Store fills SessionID when
// empty.
type ResetIdentity struct {
	ID        string
	SessionID string
}

func (AddAccountWithSession) Name() string   { return "AddAccountWithSession" }
func (SwitchAccount) Name() string           { return "SwitchAccount" }
func (UpdateAccountBadgeCount) Name() string { return "UpdateAccountBadgeCount" }
func (DeleteAccount) Name() string           { return "DeleteAccount" }
func (UpdateAccount) Name() string           { return "UpdateAccount" }
func (UpdateAccountLifecycle) Name() string  { return "UpdateAccountLifecycle" }
func (AbortAccountCreation) Name() string    { return "AbortAccountCreation" }
func (ResetIdentity) Name() string           { return "ResetIdentity" }

// StringPtr and friends build AccountPatch values.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
