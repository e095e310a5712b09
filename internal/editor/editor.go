// Package editor turns user commands into state mutations and serialized
// engine work. It owns the synthesized audio cache and the playback queue and
// keeps both consistent with the loaded project.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/tts-editor/internal/audiocache"
	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/playback"
	"github.com/book-expert/tts-editor/internal/protocol"
	"github.com/book-expert/tts-editor/internal/serial"
	"github.com/book-expert/tts-editor/internal/state"
)

var (
	// ErrEngineNotReady indicates an engine command issued before Start succeeded.
	ErrEngineNotReady = errors.New("speech engine is not ready")
	// ErrUnsupportedBackend indicates that the engine has no usable compute backend.
	ErrUnsupportedBackend = errors.New("speech engine backend is not supported on this machine")
	// ErrSegmentChanged indicates that a segment changed while its audio was
	// being synthesized, so the result was discarded.
	ErrSegmentChanged = errors.New("segment changed during synthesis")
)

// Engine is the request side of the background speech engine.
type Engine interface {
	CheckBackend(ctx context.Context) (bool, error)
	Init(ctx context.Context) error
	LoadDict(ctx context.Context, dict model.UserDict) error
	ClearDict(ctx context.Context) error
	Analyze(ctx context.Context, text string) ([]model.KanaData, error)
	Synth(ctx context.Context, request protocol.SynthRequest) (core.SynthOutput, error)
}

// Publisher sends one message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds the editor's tunables.
type Config struct {
	// AudioDir receives the WAV files backing cached audio.
	AudioDir string
	// ItemDelay is the pause before each queued item plays.
	ItemDelay time.Duration
	// AudioChunkCreatedSubject announces exported audio. Empty disables it.
	AudioChunkCreatedSubject string
}

// Deps are the collaborators of an Editor. Artifacts and Publisher are
// optional.
type Deps struct {
	State     *state.Manager
	Engine    Engine
	Player    playback.Player
	Artifacts core.ObjectStore
	Publisher Publisher
	Reporter  core.Reporter
	Log       *logger.Logger
}

// Editor orchestrates one editing session.
type Editor struct {
	state     *state.Manager
	engine    Engine
	artifacts core.ObjectStore
	publisher Publisher
	reporter  core.Reporter
	log       *logger.Logger
	cfg       Config
	newID     func() string

	chain *serial.Serializer
	audio *audiocache.Cache[*audiocache.Handle]
	queue *playback.Queue

	mu           sync.Mutex
	ready        bool
	fingerprints map[string]string
	playing      string
}

// New wires an editor to its collaborators and starts observing state.
func New(cfg Config, deps Deps) *Editor {
	if cfg.ItemDelay <= 0 {
		cfg.ItemDelay = playback.DefaultItemDelay
	}

	reporter := deps.Reporter
	if reporter == nil {
		reporter = core.ReporterFunc(func(core.Alert) {})
	}

	editor := &Editor{
		state:        deps.State,
		engine:       deps.Engine,
		artifacts:    deps.Artifacts,
		publisher:    deps.Publisher,
		reporter:     reporter,
		log:          deps.Log,
		cfg:          cfg,
		newID:        uuid.NewString,
		chain:        serial.New(),
		audio:        audiocache.New[*audiocache.Handle](),
		queue:        playback.NewQueue(deps.Player, cfg.ItemDelay, deps.Log),
		fingerprints: make(map[string]string),
	}

	editor.queue.OnStart(editor.trackStarted)
	editor.state.OnProjectChange(editor.projectChanged)
	editor.state.OnSettingsChange(editor.settingsChanged)

	return editor
}

// State returns the state manager the editor mutates.
func (e *Editor) State() *state.Manager {
	return e.state
}

// Ready reports whether Start has completed.
func (e *Editor) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.ready
}

// Start checks the engine backend, initializes the engine and loads the user
// dictionary. Engine commands fail with ErrEngineNotReady until it succeeds.
func (e *Editor) Start(ctx context.Context) error {
	future := serial.Go(ctx, e.chain, func(ctx context.Context) error {
		supported, err := e.engine.CheckBackend(ctx)
		if err != nil {
			e.alert(err, "Failed to check the speech engine backend", "Restart the editor")

			return fmt.Errorf("failed to check engine backend: %w", err)
		}

		if !supported {
			e.alert(ErrUnsupportedBackend, "This machine is not supported",
				"The speech engine found no usable compute backend")

			return ErrUnsupportedBackend
		}

		err = e.engine.Init(ctx)
		if err != nil {
			e.alert(err, "Failed to initialize the speech engine", "Restart the editor")

			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		e.mu.Lock()
		e.ready = true
		e.mu.Unlock()

		e.log.Info("Speech engine is ready")

		return e.loadDict(ctx, e.state.Settings().UserDict)
	})

	_, err := future.Wait(ctx)

	return err
}

func (e *Editor) loadDict(ctx context.Context, dict model.UserDict) error {
	if len(dict) == 0 {
		e.log.Info("User dictionary is empty, nothing to load")

		return nil
	}

	err := e.engine.LoadDict(ctx, dict)
	if err != nil {
		e.alert(err, "Failed to load the user dictionary into the speech engine", "Restart the editor")

		return fmt.Errorf("failed to load user dictionary: %w", err)
	}

	return nil
}

// Idle waits until every engine command issued so far has settled.
func (e *Editor) Idle(ctx context.Context) error {
	return e.chain.Idle(ctx)
}

// WaitPlayback waits until the playback queue is empty.
func (e *Editor) WaitPlayback(ctx context.Context) error {
	return e.queue.WaitIdle(ctx)
}

// PlaybackState returns the playback queue state.
func (e *Editor) PlaybackState() playback.State {
	return e.queue.State()
}

// Playing returns the id of the segment being played, or "".
func (e *Editor) Playing() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.playing
}

// CachedAudio returns the ids of segments whose audio is cached.
func (e *Editor) CachedAudio() []string {
	return e.audio.IDs()
}

// Close stops playback and releases all cached audio.
func (e *Editor) Close() error {
	e.queue.Close()

	return e.audio.InvalidateAll()
}

func (e *Editor) trackStarted(track playback.Track) {
	handle, ok := track.(*audiocache.Handle)
	if !ok {
		return
	}

	playing := ""

	for _, id := range e.audio.IDs() {
		cached, found := e.audio.Get(id)
		if found && cached == handle {
			playing = id

			break
		}
	}

	e.mu.Lock()
	e.playing = playing
	e.mu.Unlock()

	if playing != "" {
		e.log.Info("Playing segment %s", playing)
	}
}

// projectChanged drops cached audio of every segment whose content changed
// or that disappeared. A different project drops everything.
func (e *Editor) projectChanged(previous, current *model.Project) {
	next := fingerprints(current)

	e.mu.Lock()
	old := e.fingerprints
	e.fingerprints = next
	e.mu.Unlock()

	if previous == nil || current == nil || previous.ID != current.ID {
		err := e.audio.InvalidateAll()
		if err != nil {
			e.log.Warn("Failed to release cached audio: %v", err)
		}

		return
	}

	for id, fingerprint := range old {
		if next[id] == fingerprint {
			continue
		}

		err := e.audio.Invalidate(id)
		if err != nil {
			e.log.Warn("Failed to release cached audio of segment %s: %v", id, err)
		}
	}
}

// settingsChanged reloads the engine's user dictionary after it changed.
func (e *Editor) settingsChanged(previous, current *model.Settings) {
	if reflect.DeepEqual(previous.UserDict, current.UserDict) || !e.Ready() {
		return
	}

	dict := current.UserDict

	serial.Go(context.Background(), e.chain, func(ctx context.Context) error {
		err := e.engine.ClearDict(ctx)
		if err != nil {
			e.alert(err, "Failed to clear the user dictionary in the speech engine", "Restart the editor")

			return fmt.Errorf("failed to clear user dictionary: %w", err)
		}

		return e.loadDict(ctx, dict)
	})
}

func (e *Editor) fingerprint(id string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fingerprint, ok := e.fingerprints[id]

	return fingerprint, ok
}

func fingerprints(project *model.Project) map[string]string {
	out := make(map[string]string)
	if project == nil {
		return out
	}

	for _, segment := range project.TextData {
		out[segment.ID] = fingerprintOf(segment)
	}

	return out
}

func fingerprintOf(segment model.Segment) string {
	data, err := json.Marshal(segment)
	if err != nil {
		return segment.ID
	}

	return string(data)
}

func (e *Editor) alert(err error, lines ...string) {
	e.log.Error("%s: %v", lines[0], err)
	e.reporter.Report(core.Alert{Lines: lines, Err: err})
}

func (e *Editor) requireReady() error {
	if !e.Ready() {
		return ErrEngineNotReady
	}

	return nil
}

// Pending is the outcome of engine commands queued by one editor call.
type Pending struct {
	futures []*serial.Future[struct{}]
}

func pendingOf(futures ...*serial.Future[struct{}]) *Pending {
	return &Pending{futures: futures}
}

// Wait blocks until every queued command settled and joins their errors.
// A nil Pending has nothing to wait for.
func (p *Pending) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	for _, future := range p.futures {
		_, err := future.Wait(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
