package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wireapp/wire-desktop/internal/events"
)

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return m
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestStore_LoadCreatesDefaults(t *testing.T) {
	paths := NewPaths(t.TempDir())
	store := NewStore(paths, nil, nil)

	if _, err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := store.Get()
	if got.MaximumAccounts != 3 || got.WebappURL != "https://app.wire.com" || got.ConfigVersion != 1 {
		t.Errorf("unexpected defaults %+v", got)
	}

	info, err := os.Stat(paths.Settings())
	if err != nil {
		t.Fatalf("settings file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %o", info.Mode().Perm())
	}
}

func TestStore_LoadFillsMissingFields(t *testing.T) {
	paths := NewPaths(t.TempDir())
	writeFile(t, paths.Settings(), `{"configVersion":1,"locale":"de","window":{"width":640}}`)

	store := NewStore(paths, nil, nil)
	result, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !result.Migrated {
		t.Error("expected migration for missing fields")
	}

	got := store.Get()
	if got.Locale != "de" || got.Window.Width != 640 {
		t.Errorf("existing values overwritten: %+v", got)
	}
	if got.Window.Height != 768 || !got.SpellCheck {
		t.Errorf("missing values not filled: %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(paths.Settings()))
	for _, e := range entries {
		if strings.Contains(e.Name(), ".backup.") {
			t.Errorf("backup file left behind: %s", e.Name())
		}
	}
}

func TestStore_LoadUnchangedDoesNotRewrite(t *testing.T) {
	paths := NewPaths(t.TempDir())
	store := NewStore(paths, nil, nil)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(paths.Settings())

	time.Sleep(10 * time.Millisecond)
	again := NewStore(paths, nil, nil)
	result, err := again.Load()
	if err != nil {
		t.Fatal(err)
	}
	if result.Migrated {
		t.Errorf("second load should not migrate: %+v", result)
	}
	after, _ := os.Stat(paths.Settings())
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("settings file rewritten without changes")
	}
}

func TestStore_ImportsLegacyFile(t *testing.T) {
	paths := NewPaths(t.TempDir())
	writeFile(t, paths.LegacySettings(), `{"locale":"fr","showMenu":false,"fullscreen":true,"zoomFactor":1.5,"spelling":false}`)
	writeFile(t, paths.Settings(), `{"configVersion":1,"locale":"de"}`)

	store := NewStore(paths, nil, nil)
	result, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !result.LegacyImported {
		t.Error("expected legacy import")
	}

	got := store.Get()
	if got.Locale != "de" {
		t.Errorf("new file should win, locale = %q", got.Locale)
	}
	if got.ShowMenuBar || got.SpellCheck {
		t.Errorf("renamed legacy keys not applied: %+v", got)
	}

	onDisk := readJSON(t, paths.Settings())
	for _, key := range []string{"fullscreen", "zoomFactor", "showMenu", "spelling"} {
		if _, ok := onDisk[key]; ok {
			t.Errorf("deprecated key %s still on disk", key)
		}
	}
	if _, err := os.Stat(paths.LegacySettings()); !os.IsNotExist(err) {
		t.Error("legacy file should be removed after import")
	}
}

func TestStore_LoadKeepsNewerVersion(t *testing.T) {
	paths := NewPaths(t.TempDir())
	future := DefaultSettings()
	future.ConfigVersion = 7
	data, _ := json.Marshal(future)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	m["futureOption"] = "on"
	data, _ = json.Marshal(m)
	writeFile(t, paths.Settings(), string(data))

	store := NewStore(paths, nil, nil)
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v := store.Get().ConfigVersion; v != 7 {
		t.Errorf("version downgraded to %d", v)
	}

	if err := store.Update(func(s *Settings) { s.Locale = "es" }); err != nil {
		t.Fatal(err)
	}
	onDisk := readJSON(t, paths.Settings())
	if onDisk["futureOption"] != "on" {
		t.Error("unknown key dropped on update")
	}
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"corrupt json", "{not json", nil},
		{"invalid url", `{"webappURL":"ftp://example.com"}`, ErrInvalidWebappURL},
		{"too many accounts", `{"maximumAccounts":99}`, ErrInvalidMaximumAccounts},
		{"bad log level", `{"logLevel":"loud"}`, ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths := NewPaths(t.TempDir())
			writeFile(t, paths.Settings(), tt.content)

			_, err := NewStore(paths, nil, nil).Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStore_UpdateValidatesAndPublishes(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventConfigChanged)

	paths := NewPaths(t.TempDir())
	store := NewStore(paths, nil, bus)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	<-ch // load

	if err := store.Update(func(s *Settings) { s.MaximumAccounts = 0 }); !errors.Is(err, ErrInvalidMaximumAccounts) {
		t.Errorf("expected validation error, got %v", err)
	}
	if store.Get().MaximumAccounts != 3 {
		t.Error("invalid update changed settings")
	}

	if err := store.Update(func(s *Settings) { s.MaximumAccounts = 5; s.Backup.S3Bucket = "archive" }); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.(*events.ConfigChangedEvent).Source != "update" {
			t.Errorf("unexpected source %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for config event")
	}

	reloaded := NewStore(paths, nil, nil)
	if _, err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	got := reloaded.Get()
	if got.MaximumAccounts != 5 || got.Backup.S3Bucket != "archive" {
		t.Errorf("update not persisted: %+v", got)
	}
}

func TestStore_EnvOverridesNotPersisted(t *testing.T) {
	paths := NewPaths(t.TempDir())
	store := NewStore(paths, nil, nil)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	store.SetEnv(Env{MaxAccounts: 8, LogLevel: "debug"})
	if got := store.Get(); got.MaximumAccounts != 8 || got.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", got)
	}
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}
	if onDisk := readJSON(t, paths.Settings()); onDisk["maximumAccounts"] != float64(3) {
		t.Errorf("env override written to disk: %v", onDisk["maximumAccounts"])
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WIRE_DESKTOP_MAX_ACCOUNTS", "4")
	t.Setenv("WIRE_DESKTOP_WEBAPP_URL", "https://wire.example.com")
	t.Setenv("WIRE_DESKTOP_DATA_DIR", "/tmp/wire")

	env, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv failed: %v", err)
	}
	if env.MaxAccounts != 4 || env.WebappURL != "https://wire.example.com" || env.DataDir != "/tmp/wire" {
		t.Errorf("unexpected env %+v", env)
	}

	t.Setenv("WIRE_DESKTOP_MAX_ACCOUNTS", "many")
	if _, err := LoadEnv(); err == nil {
		t.Error("expected error for non-numeric MAX_ACCOUNTS")
	}
}

func TestSettings_WebappOrigin(t *testing.T) {
	s := Settings{WebappURL: "https://app.wire.com/auth/?x=1"}
	if got := s.WebappOrigin(); got != "https://app.wire.com" {
		t.Errorf("WebappOrigin() = %q", got)
	}

	// Callable on the value Store.Get returns
	store := NewStore(NewPaths(t.TempDir()), nil, nil)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}
	if got := store.Get().WebappOrigin(); got != "https://app.wire.com" {
		t.Errorf("Get().WebappOrigin() = %q", got)
	}
	if err := store.Get().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestPaths(t *testing.T) {
	p := NewPaths("/data")
	tests := []struct {
		got, want string
	}{
		{p.Settings(), filepath.Join("/data", "config", "init.json")},
		{p.LegacySettings(), filepath.Join("/data", "init.json")},
		{p.Accounts(), filepath.Join("/data", "accounts.json")},
		{p.Socket(), filepath.Join("/data", "bridge.sock")},
		{p.Database("a1"), filepath.Join("/data", "accounts", "a1", "storage.db")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
	if NewPaths("").DataDir == "" {
		t.Error("empty data dir should fall back to UserDataDir")
	}
}
