package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/schema"
)

// GetProject reads and validates a stored project without loading it. It
// waits for queued writes first so the read sees every earlier commit.
func (m *Manager) GetProject(ctx context.Context, id string) (*model.Project, error) {
	err := m.Flush(ctx)
	if err != nil {
		return nil, err
	}

	data, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = m.validator.Validate(schema.Project, data)
	if err != nil {
		return nil, err
	}

	var project model.Project

	err = json.Unmarshal(data, &project)
	if err != nil {
		return nil, fmt.Errorf("%w: project %s: %w", core.ErrValidation, id, err)
	}

	return project.Clone(), nil
}

// LoadProject makes the stored project current, restarts its history and
// stamps its open date. An absent or invalid record leaves state unchanged.
func (m *Manager) LoadProject(ctx context.Context, id string) error {
	project, err := m.GetProject(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", id, err)
	}

	m.mu.Lock()

	previous := m.project
	m.project = project
	m.history.Reset(project)
	m.projectSaved = true
	m.projectGen++

	notifyProject := m.projectNotificationLocked(previous, project)

	var notifySettings func()

	next := m.settings.Clone()
	if info := next.Info(id); info != nil {
		info.Date = m.now().UnixMilli()

		notifySettings, err = m.commitSettingsLocked(next)
	}
	m.mu.Unlock()

	notifyProject()

	if err != nil {
		return err
	}

	if notifySettings != nil {
		notifySettings()
	}

	return nil
}

// UnloadProject drops the current project and its history.
func (m *Manager) UnloadProject() {
	m.mu.Lock()
	notify := m.unloadLocked()
	m.mu.Unlock()

	notify()
}

func (m *Manager) unloadLocked() func() {
	previous := m.project
	m.project = nil
	m.history.Reset(nil)
	m.projectSaved = true
	m.projectGen++

	return m.projectNotificationLocked(previous, nil)
}

// AddProject creates and loads an empty project named name and returns its id.
// The new project starts its own history and is written without a record.
func (m *Manager) AddProject(name string) (string, error) {
	id := m.newID()
	project := model.NewProject(id)

	data, err := m.validator.ValidateValue(schema.Project, project)
	if err != nil {
		return "", err
	}

	m.mu.Lock()

	next := m.settings.Clone()
	next.ProjectInfo = append(next.ProjectInfo, model.ProjectInfo{
		ID:   id,
		Name: name,
		Date: m.now().UnixMilli(),
	})

	notifySettings, err := m.commitSettingsLocked(next)
	if err != nil {
		m.mu.Unlock()

		return "", err
	}

	previous := m.project
	m.project = project
	m.history.Reset(project)
	m.projectSaved = false
	m.projectGen++
	m.queueWriteLocked(entityProject, id, data, m.projectGen)

	notifyProject := m.projectNotificationLocked(previous, project)
	m.mu.Unlock()

	notifySettings()
	notifyProject()

	return id, nil
}

// RemoveProject deletes a project and its index entry, unloading it first
// when it is the current project.
func (m *Manager) RemoveProject(ctx context.Context, id string) error {
	m.mu.Lock()

	next := m.settings.Clone()
	kept := next.ProjectInfo[:0]

	for _, info := range next.ProjectInfo {
		if info.ID != id {
			kept = append(kept, info)
		}
	}

	next.ProjectInfo = kept

	notifySettings, err := m.commitSettingsLocked(next)
	if err != nil {
		m.mu.Unlock()

		return err
	}

	notifyProject := func() {}
	if m.project != nil && m.project.ID == id {
		notifyProject = m.unloadLocked()
	}
	m.mu.Unlock()

	notifySettings()
	notifyProject()

	return m.writeNow(ctx, func(ctx context.Context) error {
		return m.store.Remove(ctx, id)
	})
}

// RenameProject changes the display name of a project.
func (m *Manager) RenameProject(id, name string) error {
	return m.UpdateSettings(func(settings *model.Settings) error {
		info := settings.Info(id)
		if info == nil {
			return core.NotFoundf("project %s", id)
		}

		info.Name = name

		return nil
	})
}
