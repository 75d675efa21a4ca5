package account

import (
	"testing"
)

// bound builds a signed-in account record.
func bound(id, userID string, visible bool) Account {
	return Account{ID: id, UserID: userID, Visible: visible, SessionID: "s-" + id}
}

func stateOf(max int, accounts ...Account) State {
	s := NewState(max)
	s.Accounts = append(s.Accounts, accounts...)
	return s
}

func visibleIDs(s State) []string {
	var ids []string
	for _, acc := range s.Accounts {
		if acc.Visible {
			ids = append(ids, acc.ID)
		}
	}
	return ids
}

func TestReduce_AddAccountWithSession(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", true))

	next := Reduce(s, AddAccountWithSession{ID: "b", SessionID: "sess-b"})

	if len(next.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(next.Accounts))
	}
	added := next.Accounts[1]
	if added.ID != "b" || added.SessionID != "sess-b" || added.IsBound() {
		t.Errorf("unexpected new account %+v", added)
	}
	if ids := visibleIDs(next); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("new account should be the only visible one, visible = %v", ids)
	}
	// Input state untouched
	if len(s.Accounts) != 1 || !s.Accounts[0].Visible {
		t.Errorf("input state was modified: %+v", s.Accounts)
	}
}

func TestReduce_AddAccountAtCapIsNoOp(t *testing.T) {
	s := stateOf(2, bound("a", "u-a", true), bound("b", "u-b", false))

	next := Reduce(s, AddAccountWithSession{ID: "c", SessionID: "sess-c"})

	if !Equal(s, next) {
		t.Errorf("add at cap changed state: %+v", next.Accounts)
	}
}

func TestReduce_AddAccountWithUnboundPendingIsNoOp(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", false), Account{ID: "b", Visible: true})

	next := Reduce(s, AddAccountWithSession{ID: "c", SessionID: "sess-c"})

	if !Equal(s, next) {
		t.Errorf("second unbound account was added: %+v", next.Accounts)
	}
}

func TestReduce_AddAccountRequiresID(t *testing.T) {
	s := NewState(3)
	if next := Reduce(s, AddAccountWithSession{}); len(next.Accounts) != 0 {
		t.Errorf("account without id was added")
	}
}

func TestReduce_SwitchAccount(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", true), bound("b", "u-b", false), bound("c", "u-c", false))

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"switch to b", "b", "b"},
		{"switch to current", "a", "a"},
		{"unknown id ignored", "zzz", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Reduce(s, SwitchAccount{ID: tt.target})
			ids := visibleIDs(next)
			if len(ids) != 1 || ids[0] != tt.want {
				t.Errorf("expected only %s visible, got %v", tt.want, ids)
			}
		})
	}
}

func TestReduce_UpdateAccountBadgeCount(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", true), bound("b", "u-b", false))

	next := Reduce(s, UpdateAccountBadgeCount{ID: "b", Count: 4})
	if next.Accounts[1].BadgeCount != 4 {
		t.Errorf("expected badge 4, got %d", next.Accounts[1].BadgeCount)
	}
	if s.Accounts[1].BadgeCount != 0 {
		t.Error("input state was modified")
	}

	next = Reduce(next, UpdateAccountBadgeCount{ID: "b", Count: -3})
	if next.Accounts[1].BadgeCount != 0 {
		t.Errorf("negative count should clamp to 0, got %d", next.Accounts[1].BadgeCount)
	}

	unchanged := Reduce(s, UpdateAccountBadgeCount{ID: "nope", Count: 9})
	if !Equal(s, unchanged) {
		t.Error("unknown id changed state")
	}
}

func TestReduce_DeleteAccount(t *testing.T) {
	tests := []struct {
		name        string
		state       State
		delete      string
		wantIDs     []string
		wantVisible []string
	}{
		{
			name:        "delete visible falls back to first remaining",
			state:       stateOf(3, bound("a", "u-a", false), bound("b", "u-b", true), bound("c", "u-c", false)),
			delete:      "b",
			wantIDs:     []string{"a", "c"},
			wantVisible: []string{"a"},
		},
		{
			name:        "delete hidden keeps visibility",
			state:       stateOf(3, bound("a", "u-a", false), bound("b", "u-b", true)),
			delete:      "a",
			wantIDs:     []string{"b"},
			wantVisible: []string{"b"},
		},
		{
			name:        "delete last account",
			state:       stateOf(3, bound("a", "u-a", true)),
			delete:      "a",
			wantIDs:     nil,
			wantVisible: nil,
		},
		{
			name:        "unknown id",
			state:       stateOf(3, bound("a", "u-a", true)),
			delete:      "x",
			wantIDs:     []string{"a"},
			wantVisible: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := Reduce(tt.state, DeleteAccount{ID: tt.delete})
			var ids []string
			for _, acc := range next.Accounts {
				ids = append(ids, acc.ID)
			}
			if !equalStrings(ids, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if got := visibleIDs(next); !equalStrings(got, tt.wantVisible) {
				t.Errorf("visible = %v, want %v", got, tt.wantVisible)
			}
		})
	}
}

func TestReduce_UpdateAccountBindsUnbound(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", false), Account{ID: "b", Visible: true, SessionID: "sess-b"})

	next := Reduce(s, UpdateAccount{ID: "b", Patch: AccountPatch{
		UserID:   StringPtr("u-b"),
		TeamID:   StringPtr("team-1"),
		Name:     StringPtr("Bea"),
		AccentID: IntPtr(4),
		DarkMode: BoolPtr(true),
	}})

	got, _ := AccountByID(next, "b")
	if !got.IsBound() || got.UserID != "u-b" || got.TeamID != "team-1" || got.Name != "Bea" || got.AccentID != 4 || !got.DarkMode {
		t.Errorf("patch not applied: %+v", got)
	}
	if IsAddingAccount(next) {
		t.Error("no unbound account should remain")
	}
}

func TestReduce_UpdateAccountRejectsDuplicateUser(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", false), Account{ID: "b", Visible: true})

	next := Reduce(s, UpdateAccount{ID: "b", Patch: AccountPatch{UserID: StringPtr("u-a"), Name: StringPtr("dup")}})

	got, _ := AccountByID(next, "b")
	if got.IsBound() {
		t.Error("account must not bind to a user id held by another account")
	}
	if got.Name != "dup" {
		t.Error("other patch fields should still apply")
	}
}

func TestReduce_UpdateAccountExpectedSession(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", false), Account{ID: "b", Visible: true, SessionID: "sess-2"})
	patch := AccountPatch{UserID: StringPtr("u-b")}

	if next := Reduce(s, UpdateAccount{ID: "b", Patch: patch, ExpectedSessionID: "sess-1"}); !Equal(next, s) {
		t.Errorf("stale session should leave state unchanged, got %+v", next.Accounts)
	}

	next := Reduce(s, UpdateAccount{ID: "b", Patch: patch, ExpectedSessionID: "sess-2"})
	if got, _ := AccountByID(next, "b"); got.UserID != "u-b" {
		t.Errorf("matching session should bind, got %+v", got)
	}
}

func TestReduce_UpdateAccountLifecycle(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", true))
	next := Reduce(s, UpdateAccountLifecycle{ID: "a", Lifecycle: LifecycleReady})
	if next.Accounts[0].Lifecycle != LifecycleReady {
		t.Errorf("lifecycle not updated: %q", next.Accounts[0].Lifecycle)
	}
}

func TestReduce_AbortAccountCreation(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", false), bound("b", "u-b", false), Account{ID: "c", Visible: true})

	next := Reduce(s, AbortAccountCreation{ID: "c"})
	if len(next.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(next.Accounts))
	}
	if ids := visibleIDs(next); len(ids) != 1 || ids[0] != "b" {
		t.Errorf("expected last account visible, got %v", ids)
	}

	// Bound accounts cannot be aborted
	if again := Reduce(next, AbortAccountCreation{ID: "a"}); !Equal(next, again) {
		t.Error("aborting a bound account changed state")
	}
}

func TestReduce_ResetIdentity(t *testing.T) {
	s := stateOf(3, Account{ID: "a", UserID: "u-a", Name: "Ann", Picture: "p", TeamID: "t", Visible: true, SessionID: "old"},
		Account{ID: "b", SessionID: "pending"})

	next := Reduce(s, ResetIdentity{ID: "a", SessionID: "new"})

	if len(next.Accounts) != 1 {
		t.Fatalf("other unbound account should be dropped, got %+v", next.Accounts)
	}
	got := next.Accounts[0]
	if got.IsBound() || got.Name != "" || got.Picture != "" || got.TeamID != "" {
		t.Errorf("identity not cleared: %+v", got)
	}
	if got.SessionID != "new" || !got.Visible {
		t.Errorf("expected fresh visible session, got %+v", got)
	}
}

func TestReduce_UnknownActionIsNoOp(t *testing.T) {
	s := stateOf(3, bound("a", "u-a", true))
	if next := Reduce(s, nil); !Equal(s, next) {
		t.Error("nil action changed state")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
