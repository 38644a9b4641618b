package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/calltrail/assets"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/pkg/filesystem"
	"github.com/doeshing/calltrail/internal/ports"
)

// Environment variables read by the loader. Values in a .env file in the
// working directory are applied first without overriding the real
// environment.
const (
	EnvConfigPath    = "CALLTRAIL_CONFIG"
	EnvInstanceID    = "CALLTRAIL_INSTANCE_ID"
	EnvListen        = "CALLTRAIL_LISTEN"
	EnvJournalDriver = "CALLTRAIL_JOURNAL_DRIVER"
	EnvJournalPath   = "CALLTRAIL_JOURNAL_PATH"
	EnvLogLevel      = "CALLTRAIL_LOG_LEVEL"
)

// FileLoader loads YAML configuration from ~/.calltrail/config.yaml
// (overridable via CALLTRAIL_CONFIG).
type FileLoader struct {
	overridePath string
	envFile      string
	envOnce      sync.Once
}

// NewFileLoader builds a new loader. An empty path uses the default location.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path, envFile: ".env"}
}

// Load implements ports.ConfigProvider. A missing file is created with the
// defaults.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	l.loadEnvFile()
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return applyEnv(cfg), nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return applyEnv(hydrateDefaults(cfg)), nil
}

func (l *FileLoader) loadEnvFile() {
	l.envOnce.Do(func() {
		if l.envFile == "" {
			return
		}
		if _, err := os.Stat(l.envFile); err != nil {
			return
		}
		_ = godotenv.Load(l.envFile)
	})
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return expandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(configDir(), "config.yaml")
}

// Path returns the config file location.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

// Save writes cfg to the config file.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

// Backup copies the current config file next to itself with a timestamp
// suffix and returns the copy's path.
func (l *FileLoader) Backup() (string, error) {
	path := l.resolvePath()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	out := append(append([]byte{}, assets.DefaultConfigHeader...), '\n')
	return os.WriteFile(path, append(out, raw...), domain.SecureFilePermissions)
}

// DefaultConfig returns the configuration written on first run. Each call
// generates a fresh instance id.
func DefaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		InstanceID:          uuid.NewString(),
		History: domain.HistorySettings{
			ReplayOnStart: true,
		},
		Journal: domain.JournalSettings{
			Driver:    domain.JournalDriverJSONL,
			Path:      DefaultJournalPath(domain.JournalDriverJSONL),
			QueueSize: domain.DefaultJournalQueueSize,
		},
		Fleet: domain.FleetSettings{
			Timeout:           domain.DefaultFleetTimeout.String(),
			Parallelism:       domain.DefaultFleetParallelism,
			DefaultConnection: domain.DefaultConnectionID,
			Connections: map[string][]domain.PeerDefinition{
				domain.DefaultConnectionID: {{Name: "self", URL: domain.LocalPeerURL}},
			},
		},
		Server: domain.ServerSettings{
			Listen: domain.DefaultListenAddr,
		},
		Logging: domain.LoggingSettings{
			Level:  "warn",
			Format: "text",
		},
	}
}

// DefaultJournalPath returns the journal location for a driver.
func DefaultJournalPath(driver string) string {
	if driver == domain.JournalDriverSQLite {
		return filepath.Join(configDir(), "history.db")
	}
	return filepath.Join(configDir(), "history.jsonl")
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if strings.TrimSpace(cfg.InstanceID) == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = domain.JournalDriverJSONL
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath(cfg.GetJournalDriver())
	}
	cfg.Journal.Path = expandPath(cfg.Journal.Path)
	if cfg.Journal.QueueSize == 0 {
		cfg.Journal.QueueSize = domain.DefaultJournalQueueSize
	}
	if cfg.Fleet.Parallelism == 0 {
		cfg.Fleet.Parallelism = domain.DefaultFleetParallelism
	}
	if cfg.Fleet.DefaultConnection == "" {
		cfg.Fleet.DefaultConnection = domain.DefaultConnectionID
	}
	if cfg.Fleet.Connections == nil {
		cfg.Fleet.Connections = map[string][]domain.PeerDefinition{}
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = domain.DefaultListenAddr
	}
	return cfg
}

func applyEnv(cfg domain.Config) domain.Config {
	if v := os.Getenv(EnvInstanceID); v != "" {
		cfg.InstanceID = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv(EnvJournalDriver); v != "" {
		cfg.Journal.Driver = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		cfg.Journal.Path = expandPath(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return cfg
}

func configDir() string {
	return filepath.Join(filesystem.UserHomeDir(), ".calltrail")
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
