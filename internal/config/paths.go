// Package config provides settings and path management for Wire Desktop.
package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/wireapp/wire-desktop/internal/constants"
)

// UserDataDir returns the per-user data directory. Everything the app
// persists lives below it: settings, the account list, logs, avatars and
// the bridge socket.
//
// Locations:
//   - Windows: %APPDATA%\wire-desktop
//   - macOS: ~/Library/Application Support/wire-desktop
//   - Linux: ~/.config/wire-desktop
func UserDataDir() string {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), constants.AppName)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, constants.AppName)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), constants.AppName)
		}
		return filepath.Join(homeDir, ".config", constants.AppName)
	}
	return filepath.Join(configDir, constants.AppName)
}

// Paths groups the file locations derived from one user data directory.
type Paths struct {
	DataDir string
}

// NewPaths returns Paths rooted at dataDir, or at UserDataDir when empty.
func NewPaths(dataDir string) Paths {
	if dataDir == "" {
		dataDir = UserDataDir()
	}
	return Paths{DataDir: dataDir}
}

// Settings is the versioned settings file.
func (p Paths) Settings() string {
	return filepath.Join(p.DataDir, "config", "init.json")
}

// LegacySettings is the settings file written by releases before the
// config directory existed.
func (p Paths) LegacySettings() string {
	return filepath.Join(p.DataDir, "init.json")
}

func (p Paths) Accounts() string {
	return filepath.Join(p.DataDir, constants.AccountsFileName)
}

// Logs is the log directory.
func (p Paths) Logs() string {
	return filepath.Join(p.DataDir, "logs")
}

func (p Paths) Avatars() string {
	return filepath.Join(p.DataDir, "avatars")
}

// Socket is the host bridge Unix socket.
func (p Paths) Socket() string {
	return filepath.Join(p.DataDir, constants.BridgeSocketName)
}

// Database is the local conversation store of one account.
func (p Paths) Database(accountID string) string {
	return filepath.Join(p.DataDir, "accounts", accountID, "storage.db")
}

// Backups is the default directory for exported archives.
func (p Paths) Backups() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(p.DataDir, "backups")
	}
	return filepath.Join(homeDir, "Downloads")
}

// EnsureDirs creates the data and log directories with owner-only permissions.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.Logs(), filepath.Dir(p.Settings())} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
