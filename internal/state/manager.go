// Package state owns the editor's in-memory settings and loaded project.
//
// Every committed mutation is validated, recorded into the project history
// unless suppressed, written to the key-value store in the background and
// announced to registered observers. Background writes run one at a time in
// commit order.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/history"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/schema"
	"github.com/book-expert/tts-editor/internal/serial"
)

// SettingsKey is the store key of the settings record.
const SettingsKey = "settings"

// ErrNoProject indicates a project operation while no project is loaded.
var ErrNoProject = errors.New("no project loaded")

// ProjectObserver receives copies of the project before and after a change.
// Either may be nil when no project was or is loaded.
type ProjectObserver func(previous, current *model.Project)

// SettingsObserver receives copies of the settings before and after a change.
type SettingsObserver func(previous, current *model.Settings)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the clock used to stamp project open dates.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDGenerator replaces the generator of new project ids.
func WithIDGenerator(newID func() string) Option {
	return func(m *Manager) {
		m.newID = newID
	}
}

type entity int

const (
	entitySettings entity = iota
	entityProject
)

// Manager is the single owner of Settings and the loaded Project. It is safe
// for concurrent use.
type Manager struct {
	store     core.KVStore
	validator *schema.Validator
	reporter  core.Reporter
	log       *logger.Logger
	writes    *serial.Serializer
	now       func() time.Time
	newID     func() string

	mu                sync.Mutex
	settings          *model.Settings
	project           *model.Project
	history           *history.History
	settingsSaved     bool
	projectSaved      bool
	settingsGen       uint64
	projectGen        uint64
	projectObservers  []ProjectObserver
	settingsObservers []SettingsObserver
}

// New returns a manager holding default settings and no project.
func New(
	store core.KVStore,
	validator *schema.Validator,
	reporter core.Reporter,
	log *logger.Logger,
	opts ...Option,
) *Manager {
	if reporter == nil {
		reporter = core.ReporterFunc(func(core.Alert) {})
	}

	manager := &Manager{
		store:         store,
		validator:     validator,
		reporter:      reporter,
		log:           log,
		writes:        serial.New(),
		now:           time.Now,
		newID:         uuid.NewString,
		settings:      model.DefaultSettings(),
		project:       nil,
		history:       history.New(),
		settingsSaved: true,
		projectSaved:  true,
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// OnProjectChange registers an observer called after every project change,
// including loads, unloads, undo and redo.
func (m *Manager) OnProjectChange(observer ProjectObserver) {
	m.mu.Lock()
	m.projectObservers = append(m.projectObservers, observer)
	m.mu.Unlock()
}

// OnSettingsChange registers an observer called after every settings change.
func (m *Manager) OnSettingsChange(observer SettingsObserver) {
	m.mu.Lock()
	m.settingsObservers = append(m.settingsObservers, observer)
	m.mu.Unlock()
}

// Settings returns a copy of the settings.
func (m *Manager) Settings() *model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settings.Clone()
}

// Project returns a copy of the loaded project, or nil.
func (m *Manager) Project() *model.Project {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.project.Clone()
}

// Saved reports whether the latest settings and project writes succeeded.
func (m *Manager) Saved() (settingsSaved, projectSaved bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settingsSaved, m.projectSaved
}

// HistoryPosition returns the history cursor and length.
func (m *Manager) HistoryPosition() (index, length int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.history.Index(), m.history.Len()
}

// CanUndo reports whether Undo would change the project.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.history.CanUndo()
}

// CanRedo reports whether Redo would change the project.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.history.CanRedo()
}

// SuppressNextRecord keeps the next project commit out of the history.
func (m *Manager) SuppressNextRecord() {
	m.mu.Lock()
	m.history.Suppress()
	m.mu.Unlock()
}

// Flush waits until every background write issued so far has finished.
func (m *Manager) Flush(ctx context.Context) error {
	return m.writes.Idle(ctx)
}

// UpdateSettings applies fn to a copy of the settings and commits the copy
// when fn succeeds and the result is valid.
func (m *Manager) UpdateSettings(fn func(settings *model.Settings) error) error {
	m.mu.Lock()

	next := m.settings.Clone()

	err := fn(next)
	if err != nil {
		m.mu.Unlock()

		return err
	}

	notify, err := m.commitSettingsLocked(next)
	m.mu.Unlock()

	if err != nil {
		return err
	}

	notify()

	return nil
}

// UpdateProject applies fn to a copy of the loaded project and commits the
// copy when fn succeeds and the result is valid. The commit is recorded into
// the history unless a record was suppressed.
func (m *Manager) UpdateProject(fn func(project *model.Project) error) error {
	m.mu.Lock()

	if m.project == nil {
		m.mu.Unlock()

		return ErrNoProject
	}

	next := m.project.Clone()

	err := fn(next)
	if err != nil {
		m.mu.Unlock()

		return err
	}

	notify, err := m.commitProjectLocked(next)
	m.mu.Unlock()

	if err != nil {
		return err
	}

	notify()

	return nil
}

// UpdateProjectWithoutHistory is UpdateProject with the record suppressed.
func (m *Manager) UpdateProjectWithoutHistory(fn func(project *model.Project) error) error {
	m.mu.Lock()

	if m.project == nil {
		m.mu.Unlock()

		return ErrNoProject
	}

	next := m.project.Clone()

	err := fn(next)
	if err != nil {
		m.mu.Unlock()

		return err
	}

	m.history.Suppress()

	notify, err := m.commitProjectLocked(next)
	if err != nil {
		// Nothing was committed, so the flag must not leak into the next edit.
		m.history.RecordIfNotSuppressed(nil)
	}
	m.mu.Unlock()

	if err != nil {
		return err
	}

	notify()

	return nil
}

// Undo installs the previous snapshot. It reports whether anything changed.
func (m *Manager) Undo() (bool, error) {
	return m.travel(m.history.Undo)
}

// Redo installs the next snapshot. It reports whether anything changed.
func (m *Manager) Redo() (bool, error) {
	return m.travel(m.history.Redo)
}

func (m *Manager) travel(step func() (*model.Project, bool)) (bool, error) {
	m.mu.Lock()

	if m.project == nil {
		m.mu.Unlock()

		return false, nil
	}

	before := m.history.Index()

	snapshot, ok := step()
	if !ok {
		m.mu.Unlock()

		return false, nil
	}

	notify, err := m.commitProjectLocked(snapshot)
	if err != nil {
		m.history.Rewind(before)
	}
	m.mu.Unlock()

	if err != nil {
		return false, err
	}

	notify()

	return true, nil
}

// commitSettingsLocked validates next, installs it and queues its write. The
// returned function notifies observers and must be called without the lock.
func (m *Manager) commitSettingsLocked(next *model.Settings) (func(), error) {
	data, err := m.validator.ValidateValue(schema.Settings, next)
	if err != nil {
		return nil, err
	}

	previous := m.settings
	m.settings = next
	m.settingsSaved = false
	m.settingsGen++
	m.queueWriteLocked(entitySettings, SettingsKey, data, m.settingsGen)

	observers := append([]SettingsObserver{}, m.settingsObservers...)
	before, after := previous.Clone(), next.Clone()

	return func() {
		for _, observer := range observers {
			observer(before, after)
		}
	}, nil
}

// commitProjectLocked validates next, installs it, records it into the
// history and queues its write.
func (m *Manager) commitProjectLocked(next *model.Project) (func(), error) {
	data, err := m.validator.ValidateValue(schema.Project, next)
	if err != nil {
		return nil, err
	}

	previous := m.project
	m.project = next
	m.history.RecordIfNotSuppressed(next)
	m.projectSaved = false
	m.projectGen++
	m.queueWriteLocked(entityProject, next.ID, data, m.projectGen)

	return m.projectNotificationLocked(previous, next), nil
}

func (m *Manager) projectNotificationLocked(previous, current *model.Project) func() {
	observers := append([]ProjectObserver{}, m.projectObservers...)
	before, after := previous.Clone(), current.Clone()

	return func() {
		for _, observer := range observers {
			observer(before, after)
		}
	}
}

// queueWriteLocked writes data in the background. The saved flag of the
// entity turns true only if no newer write was queued meanwhile.
func (m *Manager) queueWriteLocked(kind entity, key string, data []byte, generation uint64) {
	serial.Go(context.Background(), m.writes, func(ctx context.Context) error {
		err := m.store.Set(ctx, key, data)
		if err != nil {
			m.reportSaveFailure(kind, err)

			return err
		}

		m.markSaved(kind, generation)

		return nil
	})
}

func (m *Manager) markSaved(kind entity, generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch kind {
	case entitySettings:
		if generation == m.settingsGen {
			m.settingsSaved = true
		}
	case entityProject:
		if generation == m.projectGen {
			m.projectSaved = true
		}
	}
}

func (m *Manager) reportSaveFailure(kind entity, err error) {
	what := "settings"
	if kind == entityProject {
		what = "project"
	}

	m.log.Error("Failed to save %s: %v", what, err)
	m.reporter.Report(core.Alert{
		Lines: []string{
			fmt.Sprintf("Failed to save the %s", what),
			"If this keeps happening, restart the editor",
		},
		Err: err,
	})
}

// writeNow runs write on the write chain and waits for it, so it observes
// every background write queued before it.
func (m *Manager) writeNow(ctx context.Context, write func(ctx context.Context) error) error {
	_, err := serial.Go(ctx, m.writes, write).Wait(ctx)

	return err
}

// SaveSettings validates and writes the settings now.
func (m *Manager) SaveSettings(ctx context.Context) error {
	m.mu.Lock()

	data, err := m.validator.ValidateValue(schema.Settings, m.settings)
	generation := m.settingsGen
	m.mu.Unlock()

	if err != nil {
		return err
	}

	return m.writeNow(ctx, func(ctx context.Context) error {
		setErr := m.store.Set(ctx, SettingsKey, data)
		if setErr != nil {
			return setErr
		}

		m.markSaved(entitySettings, generation)

		return nil
	})
}

// SaveProject validates and writes the loaded project now. Without a loaded
// project it only marks the project saved.
func (m *Manager) SaveProject(ctx context.Context) error {
	m.mu.Lock()

	if m.project == nil {
		m.projectSaved = true
		m.mu.Unlock()

		return nil
	}

	data, err := m.validator.ValidateValue(schema.Project, m.project)
	generation := m.projectGen
	key := m.project.ID
	m.mu.Unlock()

	if err != nil {
		return err
	}

	return m.writeNow(ctx, func(ctx context.Context) error {
		setErr := m.store.Set(ctx, key, data)
		if setErr != nil {
			return setErr
		}

		m.markSaved(entityProject, generation)

		return nil
	})
}

// LoadSettings replaces the settings with the stored record. A missing
// record keeps the current settings.
func (m *Manager) LoadSettings(ctx context.Context) error {
	data, err := m.store.Get(ctx, SettingsKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}

		return err
	}

	err = m.validator.Validate(schema.Settings, data)
	if err != nil {
		return err
	}

	var settings model.Settings

	err = json.Unmarshal(data, &settings)
	if err != nil {
		return fmt.Errorf("%w: settings: %w", core.ErrValidation, err)
	}

	m.mu.Lock()
	previous := m.settings
	m.settings = settings.Clone()
	m.settingsSaved = true
	m.settingsGen++
	observers := append([]SettingsObserver{}, m.settingsObservers...)
	before, after := previous.Clone(), m.settings.Clone()
	m.mu.Unlock()

	for _, observer := range observers {
		observer(before, after)
	}

	return nil
}
