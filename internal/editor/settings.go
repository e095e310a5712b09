package editor

import (
	"errors"
	"fmt"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
)

var (
	// ErrEmptyWord indicates a dictionary entry without a word.
	ErrEmptyWord = errors.New("dictionary word is empty")
	// ErrEmptyReading indicates a dictionary entry without a reading.
	ErrEmptyReading = errors.New("dictionary reading is empty")
	// ErrDuplicateWord indicates a dictionary entry whose word is already taken.
	ErrDuplicateWord = errors.New("dictionary word already exists")
)

// RegisterPreset stores config as a named preset and returns its id.
func (e *Editor) RegisterPreset(name string, config model.SynthConfig) (string, error) {
	id := e.newID()

	err := e.state.UpdateSettings(func(settings *model.Settings) error {
		settings.Presets = append(settings.Presets, model.Preset{ID: id, Name: name, Config: config})

		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// RemovePreset deletes a registered preset. The built-in preset cannot be
// removed.
func (e *Editor) RemovePreset(id string) error {
	return e.state.UpdateSettings(func(settings *model.Settings) error {
		for i, preset := range settings.Presets {
			if preset.ID == id {
				settings.Presets = append(settings.Presets[:i], settings.Presets[i+1:]...)

				return nil
			}
		}

		return core.NotFoundf("preset %s", id)
	})
}

// ApplyPreset copies a preset's configuration onto a segment. Nothing is
// committed when the segment already uses it.
func (e *Editor) ApplyPreset(segmentID, presetID string) error {
	preset := e.state.Settings().Preset(presetID)
	if preset == nil {
		return core.NotFoundf("preset %s", presetID)
	}

	project := e.state.Project()
	if project != nil {
		segment, _ := project.Segment(segmentID)
		if segment != nil && segment.SynthConfig == preset.Config {
			return nil
		}
	}

	return e.SetSynthConfig(segmentID, preset.Config)
}

// SetDictEntry stores the reading of word. When originalWord names another
// existing entry, that entry is renamed to word. The engine's dictionary is
// reloaded afterwards.
func (e *Editor) SetDictEntry(word string, reading []model.DictMora, originalWord string) error {
	if word == "" {
		return ErrEmptyWord
	}

	if len(reading) == 0 {
		return ErrEmptyReading
	}

	return e.state.UpdateSettings(func(settings *model.Settings) error {
		if _, exists := settings.UserDict[word]; exists && word != originalWord {
			return fmt.Errorf("%w: %s", ErrDuplicateWord, word)
		}

		settings.UserDict[word] = append([]model.DictMora{}, reading...)

		if originalWord != "" && originalWord != word {
			delete(settings.UserDict, originalWord)
		}

		return nil
	})
}

// RemoveDictEntry deletes word from the user dictionary.
func (e *Editor) RemoveDictEntry(word string) error {
	return e.state.UpdateSettings(func(settings *model.Settings) error {
		if _, exists := settings.UserDict[word]; !exists {
			return core.NotFoundf("dictionary entry %s", word)
		}

		delete(settings.UserDict, word)

		return nil
	})
}

// AgreeLicense records that the user accepted the license.
func (e *Editor) AgreeLicense() error {
	return e.state.UpdateSettings(func(settings *model.Settings) error {
		settings.LicenseAgreed = true

		return nil
	})
}

// SetShortcut rebinds one action.
func (e *Editor) SetShortcut(action string, shortcut model.Shortcut) error {
	return e.state.UpdateSettings(func(settings *model.Settings) error {
		current, ok := settings.KeyboardShortcuts[action]
		if !ok {
			return core.NotFoundf("shortcut %s", action)
		}

		if shortcut.Desc == "" {
			shortcut.Desc = current.Desc
		}

		settings.KeyboardShortcuts[action] = shortcut

		return nil
	})
}

// ResetShortcuts restores the default bindings.
func (e *Editor) ResetShortcuts() error {
	return e.state.UpdateSettings(func(settings *model.Settings) error {
		settings.KeyboardShortcuts = model.DefaultKeyboardShortcuts()

		return nil
	})
}
