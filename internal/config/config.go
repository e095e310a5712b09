// Package config provides the configuration structure shared by the editor
// and the engine worker.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Storage drivers.
const (
	DriverNATS   = "nats"
	DriverSQLite = "sqlite"
)

// Environment variables that override the configuration file.
const (
	EnvNATSURL       = "TTS_EDITOR_NATS_URL"
	EnvEngineCommand = "TTS_EDITOR_ENGINE_COMMAND"
	EnvDictBaseURL   = "TTS_EDITOR_DICT_BASE_URL"
	EnvModelBaseURL  = "TTS_EDITOR_MODEL_BASE_URL"
	EnvLogsDir       = "TTS_EDITOR_LOGS_DIR"
)

var (
	// ErrUnknownDriver indicates an unsupported storage driver.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// ErrMissingValue indicates a required setting left empty.
	ErrMissingValue = errors.New("missing configuration value")
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL string `toml:"url"`
	// Embedded starts an in-process server instead of dialing URL.
	Embedded                 bool   `toml:"embedded"`
	StoreDir                 string `toml:"store_dir"`
	RequestSubject           string `toml:"request_subject"`
	KVBucket                 string `toml:"kv_bucket"`
	AssetBucket              string `toml:"asset_bucket"`
	AudioBucket              string `toml:"audio_bucket"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// EngineConfig holds the configuration of the speech engine worker.
type EngineConfig struct {
	Command      string `toml:"command"`
	WorkDir      string `toml:"work_dir"`
	DictBaseURL  string `toml:"dict_base_url"`
	ModelBaseURL string `toml:"model_base_url"`
	FetchWorkers int    `toml:"fetch_workers"`
	// Spawn makes the editor start the worker in-process.
	Spawn                  bool `toml:"spawn"`
	DownloadTimeoutSeconds int  `toml:"download_timeout_seconds"`
}

// PlaybackConfig holds the configuration of audio playback.
type PlaybackConfig struct {
	// Device is "default" for the system output or "null" for silent timing.
	Device      string `toml:"device"`
	ItemDelayMS int    `toml:"item_delay_ms"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	CacheDir    string `toml:"cache_dir"`
	ExportDir   string `toml:"export_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig     `toml:"nats"`
	Storage  StorageConfig  `toml:"storage"`
	Engine   EngineConfig   `toml:"engine"`
	Playback PlaybackConfig `toml:"playback"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load reads the environment overlay from .env, when present, and the
// project configuration through the configurator.
func Load(log *logger.Logger) (*Config, error) {
	loadDotEnv(log)

	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile reads the configuration from a TOML file.
func LoadFile(path string, log *logger.Logger) (*Config, error) {
	loadDotEnv(log)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes TOML, applies environment overrides and fills defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return finish(&cfg)
}

func loadDotEnv(log *logger.Logger) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Failed to load .env file: %v", err)
	}
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyEnv()
	cfg.applyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		EnvNATSURL:       &c.NATS.URL,
		EnvEngineCommand: &c.Engine.Command,
		EnvDictBaseURL:   &c.Engine.DictBaseURL,
		EnvModelBaseURL:  &c.Engine.ModelBaseURL,
		EnvLogsDir:       &c.Paths.BaseLogsDir,
	}

	for name, target := range overrides {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			*target = value
		}
	}
}

func (c *Config) applyDefaults() {
	base := filepath.Join(os.TempDir(), "tts-editor")

	setDefault(&c.NATS.URL, "nats://127.0.0.1:4222")
	setDefault(&c.NATS.StoreDir, filepath.Join(base, "jetstream"))
	setDefault(&c.NATS.RequestSubject, "engine.request")
	setDefault(&c.NATS.KVBucket, "tts_editor")
	setDefault(&c.NATS.AssetBucket, "tts_editor_assets")
	setDefault(&c.NATS.AudioBucket, "tts_editor_audio")
	setDefault(&c.Storage.Driver, DriverNATS)
	setDefault(&c.Storage.SQLitePath, filepath.Join(base, "editor.db"))
	setDefault(&c.Engine.WorkDir, filepath.Join(base, "engine"))
	setDefault(&c.Playback.Device, "default")
	setDefault(&c.Paths.BaseLogsDir, filepath.Join(base, "logs"))
	setDefault(&c.Paths.CacheDir, filepath.Join(base, "cache"))
	setDefault(&c.Paths.ExportDir, ".")

	if c.Engine.FetchWorkers <= 0 {
		c.Engine.FetchWorkers = 4
	}

	if c.Engine.DownloadTimeoutSeconds <= 0 {
		c.Engine.DownloadTimeoutSeconds = 300
	}

	if c.Playback.ItemDelayMS <= 0 {
		c.Playback.ItemDelayMS = 500
	}
}

func setDefault(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverNATS, DriverSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}

	return nil
}

// ValidateWorker checks the settings the engine worker cannot run without.
func (c *Config) ValidateWorker() error {
	required := map[string]string{
		"engine.command":        c.Engine.Command,
		"engine.dict_base_url":  c.Engine.DictBaseURL,
		"engine.model_base_url": c.Engine.ModelBaseURL,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s", ErrMissingValue, name)
		}
	}

	return nil
}
