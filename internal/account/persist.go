package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// fileVersion is the format version of accounts.json.
const fileVersion = 1

type accountsFile struct {
	Version  int       `json:"version"`
	Accounts []Account `json:"accounts"`
}

// Encode returns the persisted form of s. Badge counts are written as zero;
// lifecycle is never written.
func Encode(s State) ([]byte, error) {
	f := accountsFile{Version: fileVersion, Accounts: make([]Account, len(s.Accounts))}
	for i, acc := range s.Accounts {
		acc.BadgeCount = 0
		f.Accounts[i] = acc
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal accounts: %w", err)
	}
	return data, nil
}

// LoadState reads accounts.json. A missing file yields an empty State.
// Loaded records are repaired to satisfy the list invariants: records without
// an id and duplicate ids are dropped, only the first unbound record is kept,
// the list is cut to maximumAccounts, and exactly one record is visible.
func LoadState(path string, maximumAccounts int) (State, error) {
	s := NewState(maximumAccounts)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var f accountsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return s, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	seen := make(map[string]bool)
	unbound := false
	visible := false
	for _, acc := range f.Accounts {
		if acc.ID == "" || seen[acc.ID] {
			continue
		}
		if !acc.IsBound() {
			if unbound {
				continue
			}
			unbound = true
		}
		if len(s.Accounts) >= s.MaximumAccounts {
			break
		}
		seen[acc.ID] = true
		acc.BadgeCount = 0
		acc.Lifecycle = LifecycleNone
		if acc.Visible {
			if visible {
				acc.Visible = false
			}
			visible = true
		}
		s.Accounts = append(s.Accounts, acc)
	}
	if !visible && len(s.Accounts) > 0 {
		s.Accounts[0].Visible = true
	}
	return s, nil
}

// Persister writes the account list to disk, coalescing changes that arrive
// within the debounce window into one write. A crash inside the window loses
// the pending change.
type Persister struct {
	path     string
	debounce time.Duration
	logger   *logging.Logger

	mu          sync.Mutex
	pending     *State
	timer       *time.Timer
	lastWritten []byte
	writes      int
}

// NewPersister creates a persister for path. A non-positive debounce uses the
// default window.
func NewPersister(path string, debounce time.Duration, logger *logging.Logger) *Persister {
	if debounce <= 0 {
		debounce = constants.PersistDebounce
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Persister{path: path, debounce: debounce, logger: logger}
}

// Attach subscribes the persister to store and returns the unsubscribe func.
func (p *Persister) Attach(store *Store) func() {
	return store.Subscribe(p.Schedule)
}

// Schedule records s as the state to write when the window closes.
func (p *Persister) Schedule(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := s.Clone()
	p.pending = &snapshot
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, p.fire)
	}
}

func (p *Persister) fire() {
	if err := p.Flush(); err != nil {
		p.logger.Error().Err(err).Str("path", p.path).Msg("Failed to persist accounts")
	}
}

// Flush writes the pending state now, if any.
func (p *Persister) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.pending == nil {
		return nil
	}
	s := *p.pending
	p.pending = nil

	data, err := Encode(s)
	if err != nil {
		return err
	}
	// Badge-only and lifecycle-only changes encode identically
	if bytes.Equal(data, p.lastWritten) {
		return nil
	}
	if err := writeFileAtomic(p.path, data); err != nil {
		return err
	}
	p.lastWritten = data
	p.writes++
	return nil
}

// Writes returns how many times the file was written.
func (p *Persister) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create accounts directory: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile) // Clean up temp file
		return fmt.Errorf("failed to rename accounts file: %w", err)
	}
	return nil
}
