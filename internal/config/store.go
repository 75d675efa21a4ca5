package config

import (
	"fmt"
	"os"
	"sync"

	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/wireapp/wire-desktop/internal/events"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// Store owns the settings file. It is safe for concurrent use.
type Store struct {
	paths    Paths
	migrator *ConfigMigrator
	logger   *logging.Logger
	bus      *events.EventBus

	mu       sync.RWMutex
	k        *koanf.Koanf
	settings Settings
	env      Env
}

// NewStore creates a settings store for paths. Call Load before Get.
func NewStore(paths Paths, logger *logging.Logger, bus *events.EventBus) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.Component("config")
	return &Store{
		paths:    paths,
		migrator: NewConfigMigrator(logger, paths.Settings()),
		logger:   logger,
		bus:      bus,
		k:        koanf.New("."),
		settings: DefaultSettings(),
	}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.paths.Settings()
}

// Load reads the settings file, imports the legacy file if one exists, and
// migrates the result to the current schema. A missing file is created from
// defaults. The file is rewritten only when something changed, after a
// backup copy of the previous content has been taken.
func (s *Store) Load() (*MigrationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.paths.Settings()
	k := koanf.New(".")
	exists := true
	if err := checkSettingsFile(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		exists = false
	} else if err := k.Load(file.Provider(path), jsonparser.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	legacyImported, err := s.migrator.ImportLegacy(s.paths.LegacySettings(), k)
	if err != nil {
		return nil, err
	}

	defaults := DefaultSettings()
	result, err := s.migrator.AutoMigrate(defaults, k)
	if err != nil {
		return nil, err
	}
	result.LegacyImported = legacyImported
	result.Migrated = result.Migrated || legacyImported

	var loaded Settings
	if err := k.UnmarshalWithConf("", &loaded, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}

	if result.Migrated || !exists {
		backupPath, err := s.migrator.CreateBackup()
		if err != nil {
			return result, err
		}
		result.BackupPath = backupPath
		if err := s.migrator.SaveConfig(k); err != nil {
			return result, err
		}
		if backupPath != "" {
			if err := os.Remove(backupPath); err != nil {
				s.logger.Warn().Err(err).Str("path", backupPath).Msg("Failed to remove settings backup")
			}
		}
		if legacyImported {
			if err := os.Remove(s.paths.LegacySettings()); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to remove legacy settings file")
			}
		}
		if result.Migrated {
			s.logger.Info().
				Strs("missing", result.MissingFields).
				Strs("renamed", result.RenamedFields).
				Strs("removed", result.RemovedFields).
				Bool("legacy", legacyImported).
				Msg("Settings migrated")
		}
	}

	s.k = k
	s.settings = loaded
	source := "load"
	if result.Migrated {
		source = "migrate"
	}
	s.publish(source)
	return result, nil
}

// Get returns a copy of the current settings with environment overrides
// applied.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	s.env.Apply(&out)
	return out
}

// Update applies fn to a copy of the settings, validates the result and
// saves it. The stored settings are unchanged when fn's result is invalid.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}

	// Unknown keys written by newer releases survive the rewrite
	k := s.k.Copy()
	if err := k.Load(structs.Provider(next, "json"), nil); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.migrator.SaveConfig(k); err != nil {
		return err
	}

	s.k = k
	s.settings = next
	s.publish("update")
	return nil
}

func (s *Store) publish(source string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(&events.ConfigChangedEvent{
		BaseEvent: events.NewBase(events.EventConfigChanged),
		Source:    source,
	})
}

// Save writes the current settings back to disk.
func (s *Store) Save() error {
	return s.Update(func(*Settings) {})
}

// SetEnv records environment overrides. They are visible through Get and
// never written to disk.
func (s *Store) SetEnv(env Env) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env = env
}
