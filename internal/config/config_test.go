// Package config_test tests the configuration loading shared by the editor
// and the engine worker.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-editor/internal/config"
)

const tomlData = `
[nats]
url = "nats://127.0.0.1:4222"
embedded = true
store_dir = "/var/lib/tts-editor/jetstream"
request_subject = "engine.request"
kv_bucket = "EDITOR"
asset_bucket = "ASSETS"
audio_bucket = "AUDIO_FILES"
audio_chunk_created_subject = "audio.chunk.created"

[storage]
driver = "sqlite"
sqlite_path = "/var/lib/tts-editor/editor.db"

[engine]
command = "/usr/local/bin/speech-engine"
work_dir = "/var/lib/tts-editor/engine"
dict_base_url = "https://assets.example.com/dict/"
model_base_url = "https://assets.example.com/models/"
fetch_workers = 8
spawn = true

[playback]
device = "null"
item_delay_ms = 250

[paths]
base_logs_dir = "/var/log/tts-editor"
cache_dir = "/var/cache/tts-editor"
export_dir = "/home/user/voices"
`

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(tomlData))
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, "/var/lib/tts-editor/jetstream", cfg.NATS.StoreDir)
	assert.Equal(t, "engine.request", cfg.NATS.RequestSubject)
	assert.Equal(t, "EDITOR", cfg.NATS.KVBucket)
	assert.Equal(t, "ASSETS", cfg.NATS.AssetBucket)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioBucket)
	assert.Equal(t, "audio.chunk.created", cfg.NATS.AudioChunkCreatedSubject)
	assert.Equal(t, config.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/tts-editor/editor.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "/var/lib/tts-editor/engine", cfg.Engine.WorkDir)
	assert.Equal(t, "https://assets.example.com/dict/", cfg.Engine.DictBaseURL)
	assert.Equal(t, 8, cfg.Engine.FetchWorkers)
	assert.True(t, cfg.Engine.Spawn)
	assert.Equal(t, 300, cfg.Engine.DownloadTimeoutSeconds, "unset values get defaults")
	assert.Equal(t, "null", cfg.Playback.Device)
	assert.Equal(t, 250, cfg.Playback.ItemDelayMS)
	assert.Equal(t, "/var/cache/tts-editor", cfg.Paths.CacheDir)
	assert.Equal(t, "/home/user/voices", cfg.Paths.ExportDir)

	require.NoError(t, cfg.ValidateWorker())
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, "engine.request", cfg.NATS.RequestSubject)
	assert.Equal(t, config.DriverNATS, cfg.Storage.Driver)
	assert.Equal(t, 4, cfg.Engine.FetchWorkers)
	assert.Equal(t, 500, cfg.Playback.ItemDelayMS)
	assert.NotEmpty(t, cfg.Paths.BaseLogsDir)

	require.ErrorIs(t, cfg.ValidateWorker(), config.ErrMissingValue)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]byte("[storage]\ndriver = \"postgres\"\n"))
	require.ErrorIs(t, err, config.ErrUnknownDriver)

	_, err = config.Parse([]byte("[nats\n"))
	require.Error(t, err)
}

func TestParse_EnvironmentOverride(t *testing.T) {
	t.Setenv(config.EnvEngineCommand, "/opt/engine")

	cfg, err := config.Parse([]byte(tomlData))
	require.NoError(t, err)
	assert.Equal(t, "/opt/engine", cfg.Engine.Command)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	testLogger, err := logger.New(t.TempDir(), "config-test.log")
	require.NoError(t, err)

	cfg, err := config.LoadFile(path, testLogger)
	require.NoError(t, err)
	assert.Equal(t, "ASSETS", cfg.NATS.AssetBucket)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"), testLogger)
	require.ErrorIs(t, err, os.ErrNotExist)
}
