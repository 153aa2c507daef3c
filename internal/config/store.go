package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// settingsFile is the persisted settings file name inside the data directory.
const settingsFile = "settings.yaml"

// Settings holds the station configuration.
type Settings struct {
	ListenAddr    string `yaml:"listen_addr" json:"listenAddr"`
	ReceiverAddr  string `yaml:"receiver_addr" json:"receiverAddr"`
	ReportDir     string `yaml:"report_dir" json:"reportDir"`
	AdvertiseName string `yaml:"advertise_name" json:"advertiseName"` // empty = no mDNS announcement
	HTTPAddr      string `yaml:"http_addr" json:"httpAddr"`           // empty = no status API
	MQTT          MQTT   `yaml:"mqtt" json:"mqtt"`
}

// MQTT configures the optional result mirror.
type MQTT struct {
	BrokerURL   string `yaml:"broker_url" json:"brokerURL"` // e.g. "tcp://localhost:1883"; empty disables the mirror
	ClientID    string `yaml:"client_id" json:"clientID"`
	TopicPrefix string `yaml:"topic_prefix" json:"topicPrefix"`
	Username    string `yaml:"username,omitempty" json:"username,omitempty"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
}

// DefaultSettings returns the default station settings.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:    ":6000",
		ReceiverAddr:  "127.0.0.1:16000",
		ReportDir:     filepath.Join("build", "SCtest"),
		AdvertiseName: "SCtest Station",
		MQTT: MQTT{
			ClientID:    "sctest-station",
			TopicPrefix: "sctest",
		},
	}
}

// Store provides thread-safe settings persistence backed by a YAML file.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	path     string
}

// NewStore creates a Store that persists settings to dataDir/settings.yaml.
// If the file does not exist or is invalid, default settings are used.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	s := &Store{
		path:     filepath.Join(dataDir, settingsFile),
		settings: DefaultSettings(),
	}
	s.load()
	return s, nil
}

// NewMemoryStore creates a Store that keeps settings in memory only (no file persistence).
func NewMemoryStore() *Store {
	return &Store{settings: DefaultSettings()}
}

// Path returns the settings file, or "" for a memory store.
func (s *Store) Path() string { return s.path }

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the settings and persists to disk.
func (s *Store) Update(settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return s.save()
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return // file missing is OK, use defaults
	}
	// Fields absent from the file keep their defaults.
	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		slog.Warn("invalid settings file, using defaults", "path", s.path, "err", err)
		return
	}
	s.settings = settings
}

func (s *Store) save() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}
