package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/schema"
)

// ExportAll returns every readable project together with the settings as one
// bundle document. Projects that cannot be read are left out, their index
// entries are dropped from the exported settings and a warning is reported.
func (m *Manager) ExportAll(ctx context.Context) ([]byte, error) {
	err := m.Flush(ctx)
	if err != nil {
		return nil, err
	}

	settings := m.Settings()
	projects := make([]model.Project, 0, len(settings.ProjectInfo))
	exported := make(map[string]bool, len(settings.ProjectInfo))

	var failed []string

	for _, info := range settings.ProjectInfo {
		project, getErr := m.GetProject(ctx, info.ID)
		if getErr != nil {
			m.log.Warn("Skipping project %s in export: %v", info.ID, getErr)
			failed = append(failed, info.Name)

			continue
		}

		projects = append(projects, *project)
		exported[project.ID] = true
	}

	kept := make([]model.ProjectInfo, 0, len(exported))

	for _, info := range settings.ProjectInfo {
		if exported[info.ID] {
			kept = append(kept, info)
		}
	}

	settings.ProjectInfo = kept

	data, err := m.validator.ValidateValue(schema.Bundle, &model.Bundle{Settings: *settings, Projects: projects})
	if err != nil {
		return nil, err
	}

	if len(failed) > 0 {
		m.reporter.Report(core.Alert{
			Lines: append([]string{"Some projects could not be exported:"}, failed...),
			Err:   nil,
		})
	}

	return data, nil
}

// ImportAll replaces every stored record with the bundle's content. Projects
// without an index entry and index entries without a project are dropped with
// a warning. The current license acceptance is kept.
func (m *Manager) ImportAll(ctx context.Context, data []byte) error {
	err := m.validator.Validate(schema.Bundle, data)
	if err != nil {
		return err
	}

	var bundle model.Bundle

	err = json.Unmarshal(data, &bundle)
	if err != nil {
		return fmt.Errorf("%w: bundle: %w", core.ErrValidation, err)
	}

	imported := bundle.Clone()
	indexed := make(map[string]bool, len(imported.Settings.ProjectInfo))

	for _, info := range imported.Settings.ProjectInfo {
		indexed[info.ID] = true
	}

	present := make(map[string]bool, len(imported.Projects))
	projects := imported.Projects[:0]
	dropped := 0

	for _, project := range imported.Projects {
		if !indexed[project.ID] {
			dropped++

			continue
		}

		present[project.ID] = true
		projects = append(projects, project)
	}

	infos := imported.Settings.ProjectInfo[:0]

	for _, info := range imported.Settings.ProjectInfo {
		if !present[info.ID] {
			dropped++

			continue
		}

		infos = append(infos, info)
	}

	imported.Settings.ProjectInfo = infos

	m.UnloadProject()

	err = m.writeNow(ctx, func(ctx context.Context) error {
		clearErr := m.store.Clear(ctx)
		if clearErr != nil {
			return clearErr
		}

		for _, project := range projects {
			encoded, marshalErr := json.Marshal(project)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal project %s: %w", project.ID, marshalErr)
			}

			setErr := m.store.Set(ctx, project.ID, encoded)
			if setErr != nil {
				return setErr
			}
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to import projects: %w", err)
	}

	err = m.UpdateSettings(func(settings *model.Settings) error {
		licenseAgreed := settings.LicenseAgreed
		*settings = imported.Settings
		settings.LicenseAgreed = licenseAgreed

		return nil
	})
	if err != nil {
		return err
	}

	if dropped > 0 {
		m.log.Warn("Dropped %d inconsistent entries while importing", dropped)
		m.reporter.Report(core.Alert{
			Lines: []string{
				"Some data in the imported file was inconsistent and was skipped",
				fmt.Sprintf("Skipped entries: %d", dropped),
			},
			Err: nil,
		})
	}

	return nil
}
