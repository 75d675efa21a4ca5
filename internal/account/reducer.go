package account

// Reduce applies action to s and returns the resulting State. It never
// modifies s: every change produces a fresh slice. Actions that do not apply
// (unknown ids, full list) return s unchanged.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case AddAccountWithSession:
		return addAccount(s, a)
	case SwitchAccount:
		return switchAccount(s, a.ID)
	case UpdateAccountBadgeCount:
		count := a.Count
		if count < 0 {
			count = 0
		}
		return updateOne(s, a.ID, func(acc *Account) { acc.BadgeCount = count })
	case DeleteAccount:
		return deleteAccount(s, a.ID)
	case UpdateAccount:
		return updateAccount(s, a)
	case UpdateAccountLifecycle:
		return updateOne(s, a.ID, func(acc *Account) { acc.Lifecycle = a.Lifecycle })
	case AbortAccountCreation:
		return abortAccountCreation(s, a.ID)
	case ResetIdentity:
		return resetIdentity(s, a)
	default:
		return s
	}
}

func addAccount(s State, a AddAccountWithSession) State {
	if a.ID == "" || AccountLimitReached(s) || IsAddingAccount(s) || s.indexOf(a.ID) >= 0 {
		return s
	}

	next := State{MaximumAccounts: s.MaximumAccounts, Accounts: make([]Account, 0, len(s.Accounts)+1)}
	for _, acc := range s.Accounts {
		acc.Visible = false
		next.Accounts = append(next.Accounts, acc)
	}
	next.Accounts = append(next.Accounts, Account{
		ID:        a.ID,
		SessionID: a.SessionID,
		SSOCode:   a.SSOCode,
		Visible:   true,
	})
	return next
}

func switchAccount(s State, id string) State {
	if s.indexOf(id) < 0 {
		return s
	}
	next := s.Clone()
	for i := range next.Accounts {
		next.Accounts[i].Visible = next.Accounts[i].ID == id
	}
	return next
}

func deleteAccount(s State, id string) State {
	idx := s.indexOf(id)
	if idx < 0 {
		return s
	}
	wasVisible := s.Accounts[idx].Visible

	next := State{MaximumAccounts: s.MaximumAccounts, Accounts: make([]Account, 0, len(s.Accounts)-1)}
	next.Accounts = append(next.Accounts, s.Accounts[:idx]...)
	next.Accounts = append(next.Accounts, s.Accounts[idx+1:]...)

	if wasVisible && len(next.Accounts) > 0 {
		next.Accounts[0].Visible = true
	}
	return next
}

func updateAccount(s State, a UpdateAccount) State {
	idx := s.indexOf(a.ID)
	if idx < 0 {
		return s
	}
	if a.ExpectedSessionID != "" && s.Accounts[idx].SessionID != a.ExpectedSessionID {
		return s
	}
	p := a.Patch
	return updateOne(s, a.ID, func(acc *Account) {
		if p.UserID != nil && *p.UserID != "" && !userIDTaken(s, a.ID, *p.UserID) {
			acc.UserID = *p.UserID
		}
		if p.TeamID != nil {
			acc.TeamID = *p.TeamID
		}
		if p.Name != nil {
			acc.Name = *p.Name
		}
		if p.Picture != nil {
			acc.Picture = *p.Picture
		}
		if p.AccentID != nil {
			acc.AccentID = *p.AccentID
		}
		if p.DarkMode != nil {
			acc.DarkMode = *p.DarkMode
		}
	})
}

// userIDTaken reports whether an account other than id is bound to userID.
func userIDTaken(s State, id, userID string) bool {
	for _, acc := range s.Accounts {
		if acc.ID != id && acc.UserID == userID {
			return true
		}
	}
	return false
}

func abortAccountCreation(s State, id string) State {
	idx := s.indexOf(id)
	if idx < 0 || s.Accounts[idx].IsBound() {
		return s
	}

	next := State{MaximumAccounts: s.MaximumAccounts, Accounts: make([]Account, 0, len(s.Accounts)-1)}
	next.Accounts = append(next.Accounts, s.Accounts[:idx]...)
	next.Accounts = append(next.Accounts, s.Accounts[idx+1:]...)

	if n := len(next.Accounts); n > 0 && CurrentAccount(next) == nil {
		next.Accounts[n-1].Visible = true
	}
	return next
}

func resetIdentity(s State, a ResetIdentity) State {
	idx := s.indexOf(a.ID)
	if idx < 0 {
		return s
	}

	next := State{MaximumAccounts: s.MaximumAccounts, Accounts: make([]Account, 0, len(s.Accounts))}
	for _, acc := range s.Accounts {
		if acc.ID == a.ID {
			acc = Account{
				ID:        acc.ID,
				Visible:   acc.Visible,
				SessionID: a.SessionID,
				Lifecycle: acc.Lifecycle,
			}
		} else if !acc.IsBound() {
			continue
		}
		next.Accounts = append(next.Accounts, acc)
	}

	if n := len(next.Accounts); n > 0 && CurrentAccount(next) == nil {
		next.Accounts[0].Visible = true
	}
	return next
}

// updateOne copies s and applies fn to the account with id. The result is
// s itself when nothing changed.
func updateOne(s State, id string, fn func(*Account)) State {
	idx := s.indexOf(id)
	if idx < 0 {
		return s
	}
	updated := s.Accounts[idx]
	fn(&updated)
	if updated == s.Accounts[idx] {
		return s
	}
	next := s.Clone()
	next.Accounts[idx] = updated
	return next
}
