package account

// Accounts returns a copy of the account list.
func Accounts(s State) []Account {
	return s.Clone().Accounts
}

// CurrentAccount returns the visible account, or nil when the list is empty.
func CurrentAccount(s State) *Account {
	for i := range s.Accounts {
		if s.Accounts[i].Visible {
			acc := s.Accounts[i]
			return &acc
		}
	}
	return nil
}

// AccountByID returns the account with id.
func AccountByID(s State, id string) (Account, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.Accounts[i], true
	}
	return Account{}, false
}

// AccountByUserID returns the account bound to userID.
func AccountByUserID(s State, userID string) (Account, bool) {
	if userID == "" {
		return Account{}, false
	}
	for _, acc := range s.Accounts {
		if acc.UserID == userID {
			return acc, true
		}
	}
	return Account{}, false
}

// UnboundAccount returns the account still waiting for sign-in.
func UnboundAccount(s State) (Account, bool) {
	for _, acc := range s.Accounts {
		if !acc.IsBound() {
			return acc, true
		}
	}
	return Account{}, false
}

// IsAddingAccount reports whether an unbound account exists.
func IsAddingAccount(s State) bool {
	_, ok := UnboundAccount(s)
	return ok
}

// AccountLimitReached reports whether the list holds MaximumAccounts records.
func AccountLimitReached(s State) bool {
	return len(s.Accounts) >= s.MaximumAccounts
}

// CanAddAccount reports whether AddAccountWithSession would take effect.
func CanAddAccount(s State) bool {
	return !AccountLimitReached(s) && !IsAddingAccount(s)
}

// TotalBadgeCount is the aggregate unread count shown on the tray/dock badge.
func TotalBadgeCount(s State) int {
	total := 0
	for _, acc := range s.Accounts {
		total += acc.BadgeCount
	}
	return total
}

// HasUnread reports whether any account has unread messages.
func HasUnread(s State) bool {
	return TotalBadgeCount(s) > 0
}
