package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsonparser "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/wireapp/wire-desktop/internal/constants"
	"github.com/wireapp/wire-desktop/internal/logging"
)

// BackupFilePattern names the copy of the settings file taken before a
// migration rewrites it: <name>.backup.<timestamp>.json
const BackupFilePattern = "%s.backup.%s.json"

// renamedKeys maps keys used by older releases to their current name.
var renamedKeys = map[string]string{
	"showMenu": "showMenuBar",
	"spelling": "spellCheck",
}

// deprecatedKeys are dropped on load.
var deprecatedKeys = []string{
	"fullscreen",
	"maximized",
	"zoomFactor",
	"bounds",
}

// MigrationResult describes what a migration changed.
type MigrationResult struct {
	Migrated       bool     `json:"migrated"`
	LegacyImported bool     `json:"legacyImported"`
	MissingFields  []string `json:"missingFields"`
	RenamedFields  []string `json:"renamedFields"`
	RemovedFields  []string `json:"removedFields"`
	FromVersion    int      `json:"fromVersion"`
	ToVersion      int      `json:"toVersion"`
	BackupPath     string   `json:"backupPath,omitempty"`
	Description    string   `json:"description"`
}

// ConfigMigrator brings a loaded settings tree up to the current schema.
type ConfigMigrator struct {
	logger     *logging.Logger
	configDir  string
	configName string
	configPath string
	now        func() time.Time
}

// NewConfigMigrator creates a migrator for the settings file at configPath.
func NewConfigMigrator(logger *logging.Logger, configPath string) *ConfigMigrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	base := filepath.Base(configPath)
	return &ConfigMigrator{
		logger:     logger,
		configDir:  filepath.Dir(configPath),
		configName: base[:len(base)-len(filepath.Ext(base))],
		configPath: configPath,
		now:        time.Now,
	}
}

// ImportLegacy merges keys from the legacy settings file into current. Keys
// already present in current win. Returns false when there is no legacy file.
func (cm *ConfigMigrator) ImportLegacy(legacyPath string, current *koanf.Koanf) (bool, error) {
	if err := checkSettingsFile(legacyPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	legacy := koanf.New(".")
	if err := legacy.Load(file.Provider(legacyPath), jsonparser.Parser()); err != nil {
		return false, fmt.Errorf("failed to parse legacy settings: %w", err)
	}
	for _, key := range legacy.Keys() {
		if !current.Exists(key) {
			if err := current.Set(key, legacy.Get(key)); err != nil {
				return false, fmt.Errorf("failed to import %s: %w", key, err)
			}
		}
	}
	return true, nil
}

// AutoMigrate renames and drops outdated keys, fills keys missing from
// current with the value in defaults, and stamps the current schema version.
// The result reports what changed; current is modified in place and not saved.
func (cm *ConfigMigrator) AutoMigrate(defaults Settings, current *koanf.Koanf) (*MigrationResult, error) {
	defaultKoanf := koanf.New(".")
	if err := defaultKoanf.Load(structs.Provider(defaults, "json"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default settings: %w", err)
	}

	result := &MigrationResult{
		FromVersion: current.Int("configVersion"),
		ToVersion:   constants.SettingsVersion,
	}

	for oldKey, newKey := range renamedKeys {
		if !current.Exists(oldKey) {
			continue
		}
		if !current.Exists(newKey) {
			if err := current.Set(newKey, current.Get(oldKey)); err != nil {
				return nil, fmt.Errorf("failed to rename %s: %w", oldKey, err)
			}
		}
		current.Delete(oldKey)
		result.RenamedFields = append(result.RenamedFields, oldKey)
	}
	for _, key := range deprecatedKeys {
		if current.Exists(key) {
			current.Delete(key)
			result.RemovedFields = append(result.RemovedFields, key)
		}
	}

	result.MissingFields = cm.detectMissingFields(current.Raw(), defaultKoanf.Raw())
	if err := cm.mergeDefaultFields(current, defaultKoanf, result.MissingFields); err != nil {
		return nil, err
	}

	// A newer file is kept as is; fields it adds are ignored on unmarshal
	if result.FromVersion < constants.SettingsVersion {
		if err := current.Set("configVersion", constants.SettingsVersion); err != nil {
			return nil, err
		}
	} else if result.FromVersion > constants.SettingsVersion {
		cm.logger.Warn().
			Int("file_version", result.FromVersion).
			Int("supported_version", constants.SettingsVersion).
			Msg("Settings file was written by a newer release")
	}

	result.Migrated = len(result.MissingFields) > 0 || len(result.RenamedFields) > 0 ||
		len(result.RemovedFields) > 0 || result.FromVersion < constants.SettingsVersion
	if result.Migrated {
		if err := current.Set("metadata.lastUpdated", cm.now().Format(time.RFC3339)); err != nil {
			return nil, err
		}
	}
	result.Description = fmt.Sprintf("%d missing, %d renamed, %d removed fields",
		len(result.MissingFields), len(result.RenamedFields), len(result.RemovedFields))
	return result, nil
}

func (cm *ConfigMigrator) detectMissingFields(current, defaults map[string]interface{}) []string {
	var missing []string
	cm.findMissing("", defaults, current, &missing)
	return missing
}

// findMissing collects dotted paths present in defaultMap but absent from
// currentMap. A key holding a non-map value where the default is a map is
// left alone.
func (cm *ConfigMigrator) findMissing(prefix string, defaultMap, currentMap map[string]interface{}, missing *[]string) {
	for key, defaultVal := range defaultMap {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		currentVal, exists := currentMap[key]
		if !exists {
			*missing = append(*missing, fullKey)
		} else if defaultNested, ok := defaultVal.(map[string]interface{}); ok {
			if currentNested, ok := currentVal.(map[string]interface{}); ok {
				cm.findMissing(fullKey, defaultNested, currentNested, missing)
			}
		}
	}
}

func (cm *ConfigMigrator) mergeDefaultFields(current, defaults *koanf.Koanf, missingFields []string) error {
	for _, field := range missingFields {
		if !defaults.Exists(field) {
			continue
		}
		if err := current.Set(field, defaults.Get(field)); err != nil {
			return fmt.Errorf("failed to merge default for %s: %w", field, err)
		}
	}
	return nil
}

// CreateBackup copies the settings file next to itself. Returns "" when
// there is no file yet.
func (cm *ConfigMigrator) CreateBackup() (string, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read settings file: %w", err)
	}

	timestamp := cm.now().Format("20060102150405")
	backupPath := filepath.Join(cm.configDir, fmt.Sprintf(BackupFilePattern, cm.configName, timestamp))
	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("failed to create settings backup: %w", err)
	}
	return backupPath, nil
}

// SaveConfig writes k to the settings file atomically.
func (cm *ConfigMigrator) SaveConfig(k *koanf.Koanf) error {
	data, err := k.Marshal(jsonparser.Parser())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err == nil {
		data = pretty.Bytes()
	}
	if len(data) > constants.MaxSettingsFileSize {
		return fmt.Errorf("settings size (%d bytes) exceeds limit (%d bytes)", len(data), constants.MaxSettingsFileSize)
	}

	if err := os.MkdirAll(cm.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tmpFile := cm.configPath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmpFile, cm.configPath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}
	return nil
}

// checkSettingsFile stats path, refusing files above the size limit.
func checkSettingsFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > constants.MaxSettingsFileSize {
		return fmt.Errorf("settings file %s is too large (%d bytes)", path, info.Size())
	}
	return nil
}
