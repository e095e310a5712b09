package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-editor/internal/assets"
	"github.com/book-expert/tts-editor/internal/config"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/editor"
	"github.com/book-expert/tts-editor/internal/gateway"
	"github.com/book-expert/tts-editor/internal/kvstore"
	"github.com/book-expert/tts-editor/internal/objectstore"
	"github.com/book-expert/tts-editor/internal/playback"
	"github.com/book-expert/tts-editor/internal/schema"
	"github.com/book-expert/tts-editor/internal/speech"
	"github.com/book-expert/tts-editor/internal/state"
	"github.com/book-expert/tts-editor/internal/worker"
)

const (
	logFileName       = "tts-editor.log"
	bootstrapLogName  = "tts-editor-bootstrap.log"
	flushTimeout      = 10 * time.Second
	audioCacheDirName = "audio"
)

// Session is one open editing session: storage, engine connection and the
// editor on top of them.
type Session struct {
	Config *config.Config
	Log    *logger.Logger
	State  *state.Manager
	Editor *editor.Editor

	startMu sync.Mutex
	started bool
	closers []func() error
}

// newSession assembles a session from already opened parts. Closers
// registered with onClose run in reverse order on Close.
func newSession(cfg *config.Config, log *logger.Logger, manager *state.Manager, edit *editor.Editor) *Session {
	return &Session{Config: cfg, Log: log, State: manager, Editor: edit}
}

func (s *Session) onClose(closer func() error) {
	s.closers = append(s.closers, closer)
}

// StartEngine starts the engine once per session. It blocks until the
// worker answers or ctx is done.
func (s *Session) StartEngine(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.started {
		return nil
	}

	err := s.Editor.Start(ctx)
	if err != nil {
		return err
	}

	s.started = true

	return nil
}

// Close flushes pending writes and releases everything the session opened.
func (s *Session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	errs := []error{s.Editor.Close(), s.State.Flush(ctx)}

	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}

	return errors.Join(errs...)
}

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger in %s: %w", logPath, err)
	}

	return log, nil
}

// loadConfig follows the bootstrap sequence: a temporary logger, the
// configuration, then the final logger in the configured directory.
func loadConfig(configPath string) (*config.Config, *logger.Logger, error) {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogName)
	if err != nil {
		return nil, nil, err
	}

	defer func() { _ = bootstrapLog.Close() }()

	var cfg *config.Config

	if configPath != "" {
		cfg, err = config.LoadFile(configPath, bootstrapLog)
	} else {
		cfg, err = config.Load(bootstrapLog)
	}

	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, logFileName)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return nil, nil, err
	}

	return cfg, finalLog, nil
}

// openSession connects every collaborator described by the configuration.
func openSession(ctx context.Context, opts *RootOptions, errOut io.Writer) (session *Session, err error) {
	cfg, log, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	var closers []func() error

	defer func() {
		if err == nil {
			return
		}

		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}

		_ = log.Close()
	}()

	natsConnection, shutdown, err := connectNATS(cfg.NATS, log)
	if err != nil {
		return nil, err
	}

	closers = append(closers, shutdown)

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := openStore(cfg, jetstreamContext)
	if err != nil {
		return nil, err
	}

	closers = append(closers, store.Close)

	validator, err := schema.New()
	if err != nil {
		return nil, err
	}

	reporter := newReporter(log, errOut)
	manager := state.New(store, validator, reporter, log)

	err = manager.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if cfg.Engine.Spawn {
		stop, spawnErr := spawnWorker(cfg, natsConnection, jetstreamContext, log)
		if spawnErr != nil {
			return nil, spawnErr
		}

		closers = append(closers, stop)
	}

	engineGateway, err := gateway.New(natsConnection, cfg.NATS.RequestSubject, log)
	if err != nil {
		return nil, err
	}

	closers = append(closers, engineGateway.Close)

	artifacts, err := objectstore.New(jetstreamContext, cfg.NATS.AudioBucket)
	if err != nil {
		return nil, err
	}

	player, closePlayer := openPlayer(cfg.Playback.Device, log)
	closers = append(closers, closePlayer)

	audioDir := filepath.Join(cfg.Paths.CacheDir, audioCacheDirName)

	err = os.MkdirAll(audioDir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio cache directory %s: %w", audioDir, err)
	}

	edit := editor.New(editor.Config{
		AudioDir:                 audioDir,
		ItemDelay:                time.Duration(cfg.Playback.ItemDelayMS) * time.Millisecond,
		AudioChunkCreatedSubject: cfg.NATS.AudioChunkCreatedSubject,
	}, editor.Deps{
		State:     manager,
		Engine:    engineGateway,
		Player:    player,
		Artifacts: artifacts,
		Publisher: natsConnection,
		Reporter:  reporter,
		Log:       log,
	})

	session = newSession(cfg, log, manager, edit)
	session.onClose(log.Close)

	for _, closer := range closers {
		session.onClose(closer)
	}

	log.System("Editor session opened with %s storage", cfg.Storage.Driver)

	return session, nil
}

func openStore(cfg *config.Config, jetstreamContext nats.JetStreamContext) (core.KVStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}

		store, err := kvstore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		store, err := kvstore.NewNatsKV(jetstreamContext, cfg.NATS.KVBucket)
		if err != nil {
			return nil, err
		}

		return store, nil
	}
}

func openPlayer(device string, log *logger.Logger) (playback.Player, func() error) {
	if device == "null" {
		return playback.NewNullPlayer(), func() error { return nil }
	}

	player, err := playback.NewDevicePlayer(log)
	if err != nil {
		log.Warn("No audio device available, playing silently: %v", err)

		return playback.NewNullPlayer(), func() error { return nil }
	}

	return player, player.Close
}

// newEngineWorker builds the engine worker described by the configuration.
func newEngineWorker(
	cfg *config.Config,
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	log *logger.Logger,
) (*worker.NatsWorker, error) {
	err := cfg.ValidateWorker()
	if err != nil {
		return nil, err
	}

	engine, err := speech.New(speech.Config{Binary: cfg.Engine.Command, WorkDir: cfg.Engine.WorkDir}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech engine: %w", err)
	}

	assetStore, err := objectstore.New(jetstreamContext, cfg.NATS.AssetBucket)
	if err != nil {
		return nil, err
	}

	downloader := assets.NewHTTPDownloader(time.Duration(cfg.Engine.DownloadTimeoutSeconds) * time.Second)
	cache := assets.NewCache(assetStore, downloader, log)

	plan := worker.AssetPlan{
		DictBaseURL:  cfg.Engine.DictBaseURL,
		ModelBaseURL: cfg.Engine.ModelBaseURL,
		FetchWorkers: cfg.Engine.FetchWorkers,
	}

	return worker.NewNatsWorker(natsConnection, cfg.NATS.RequestSubject, engine, cache, plan, log)
}

// spawnWorker runs the engine worker in this process until the returned
// stop function is called.
func spawnWorker(
	cfg *config.Config,
	natsConnection *nats.Conn,
	jetstreamContext nats.JetStreamContext,
	log *logger.Logger,
) (func() error, error) {
	engineWorker, err := newEngineWorker(cfg, natsConnection, jetstreamContext, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- engineWorker.Run(ctx)
	}()

	return func() error {
		cancel()

		return <-done
	}, nil
}
