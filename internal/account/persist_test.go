package account

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestEncode_ZeroesBadgesAndDropsLifecycle(t *testing.T) {
	s := stateOf(3, Account{ID: "a", UserID: "u-a", Visible: true, BadgeCount: 9, Lifecycle: LifecycleReady})

	data, err := Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	if !strings.Contains(text, `"badgeCount": 0`) {
		t.Errorf("badge count should be persisted as 0: %s", text)
	}
	if strings.Contains(strings.ToLower(text), "lifecycle") || strings.Contains(text, "ready") {
		t.Errorf("lifecycle must not be persisted: %s", text)
	}
	if s.Accounts[0].BadgeCount != 9 {
		t.Error("Encode modified its input")
	}
}

func TestLoadState_MissingFile(t *testing.T) {
	s, err := LoadState(filepath.Join(t.TempDir(), "accounts.json"), 3)
	if err != nil {
		t.Fatalf("LoadState failed on missing file: %v", err)
	}
	if len(s.Accounts) != 0 || s.MaximumAccounts != 3 {
		t.Errorf("unexpected fresh state %+v", s)
	}
}

func TestLoadState_RepairsInvariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	raw := map[string]any{
		"version": 1,
		"accounts": []map[string]any{
			{"id": "a", "userID": "u-a", "badgeCount": 4},
			{"id": "", "userID": "u-x"},
			{"id": "b", "visible": true},
			{"id": "c", "visible": true},
			{"id": "a", "userID": "dup"},
			{"id": "d", "userID": "u-d", "visible": true},
			{"id": "e", "userID": "u-e"},
		},
	}
	data, _ := json.Marshal(raw)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadState(path, 3)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}

	var ids []string
	for _, acc := range s.Accounts {
		ids = append(ids, acc.ID)
		if acc.BadgeCount != 0 {
			t.Errorf("badge count should load as 0 for %s", acc.ID)
		}
	}
	if want := []string{"a", "b", "d"}; !equalStrings(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if got := visibleIDs(s); len(got) != 1 || got[0] != "b" {
		t.Errorf("expected only b visible, got %v", got)
	}
}

func TestLoadState_NoVisibleRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte(`{"version":1,"accounts":[{"id":"a","userID":"u"},{"id":"b","userID":"v"}]}`), 0600); err != nil {
		t.Fatal(err)
	}
	s, err := LoadState(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(s); len(got) != 1 || got[0] != "a" {
		t.Errorf("expected first account visible, got %v", got)
	}
}

func TestLoadState_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	if err := os.WriteFile(path, []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadState(path, 3); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestPersister_CoalescesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "accounts.json")
	p := NewPersister(path, 50*time.Millisecond, nil)
	store := NewStore(NewState(3))
	detach := p.Attach(store)
	defer detach()

	acc, _ := store.AddAccount("")
	store.Dispatch(UpdateAccount{ID: acc.ID, Patch: AccountPatch{UserID: StringPtr("u1"), Name: StringPtr("One")}})
	store.Dispatch(UpdateAccountBadgeCount{ID: acc.ID, Count: 12})

	deadline := time.Now().Add(2 * time.Second)
	for p.Writes() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if p.Writes() != 1 {
		t.Fatalf("expected exactly one coalesced write, got %d", p.Writes())
	}

	loaded, err := LoadState(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Accounts) != 1 || loaded.Accounts[0].UserID != "u1" || loaded.Accounts[0].BadgeCount != 0 {
		t.Errorf("unexpected persisted state %+v", loaded.Accounts)
	}
}

func TestPersister_FlushAndSkipUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	p := NewPersister(path, time.Hour, nil)

	s := stateOf(3, bound("a", "u-a", true))
	p.Schedule(s)
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if p.Writes() != 1 {
		t.Fatalf("expected 1 write, got %d", p.Writes())
	}

	// A badge-only change encodes identically and is skipped
	p.Schedule(Reduce(s, UpdateAccountBadgeCount{ID: "a", Count: 5}))
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if p.Writes() != 1 {
		t.Errorf("badge-only change should not be written, writes = %d", p.Writes())
	}

	// Nothing pending
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}
