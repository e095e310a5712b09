package model

// DefaultPresetID is the fixed id of the built-in preset.
const DefaultPresetID = "default"

// DefaultSynthConfig is the configuration of the built-in preset.
func DefaultSynthConfig() SynthConfig {
	return SynthConfig{
		Speed:   1.0,
		Volume:  0.5,
		Pitch:   1.0,
		Whisper: false,
	}
}

// DefaultPreset returns the built-in preset.
func DefaultPreset() Preset {
	return Preset{
		ID:     DefaultPresetID,
		Name:   "Default",
		Config: DefaultSynthConfig(),
	}
}

// ShortcutKeys lists every action that has a keyboard binding.
var ShortcutKeys = []string{
	"new", "settings", "help", "undo", "redo", "projects", "play",
	"play:all", "save", "save:all", "dict", "preset", "remove",
}

// DefaultKeyboardShortcuts returns the default binding table.
func DefaultKeyboardShortcuts() KeyboardShortcuts {
	return KeyboardShortcuts{
		"new":      {Code: "KeyJ", Desc: "Add a project or a segment"},
		"settings": {Code: "KeyI", Desc: "Open settings"},
		"help":     {Code: "KeyH", Desc: "Open help"},
		"undo":     {Code: "KeyZ", Desc: "Undo"},
		"redo":     {Code: "KeyY", Desc: "Redo"},
		"projects": {Code: "KeyL", Desc: "Back to the project list"},
		"play":     {Code: "Space", Desc: "Play the selected segment"},
		"play:all": {Code: "Space", Shift: true, Desc: "Play every segment"},
		"save":     {Code: "KeyS", Desc: "Save the selected segment's audio"},
		"save:all": {Code: "KeyS", Shift: true, Desc: "Save every segment's audio"},
		"dict":     {Code: "KeyD", Desc: "Open the dictionary"},
		"preset":   {Code: "KeyP", Desc: "Open the preset list"},
		"remove":   {Code: "KeyK", Shift: true, Desc: "Remove the selected segment"},
	}
}

// DefaultSettings returns the settings used before anything was persisted.
func DefaultSettings() *Settings {
	return &Settings{
		ProjectInfo:       []ProjectInfo{},
		UserDict:          UserDict{},
		Presets:           []Preset{},
		PresetsDefault:    DefaultPreset(),
		KeyboardShortcuts: DefaultKeyboardShortcuts(),
		LicenseAgreed:     false,
	}
}

// NewProject returns an empty project.
func NewProject(id string) *Project {
	return &Project{ID: id, TextData: []Segment{}}
}

// NewSegment returns an empty segment voiced by the given speaker.
func NewSegment(id string, speaker SpeakerID, cfg SynthConfig) Segment {
	return Segment{
		ID:          id,
		Text:        "",
		KanaData:    []PhoneticUnit{},
		SpeakerID:   speaker,
		SynthConfig: cfg,
	}
}
