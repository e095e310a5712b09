// Package model defines the persisted data of the editor: settings, projects,
// segments and the export bundle, together with their structural copies.
package model

// Accent is the pitch accent of one phonetic unit.
type Accent string

// Supported accents.
const (
	AccentHigh Accent = "high"
	AccentLow  Accent = "low"
)

// SpeakerID identifies one of the voices the engine can synthesize.
type SpeakerID string

// Supported speakers.
const (
	SpeakerLaychie SpeakerID = "laychie"
	SpeakerLayney  SpeakerID = "layney"
)

// Speakers lists every speaker in display order. The first one is the default.
var Speakers = []SpeakerID{SpeakerLaychie, SpeakerLayney}

var speakerNames = map[SpeakerID]string{
	SpeakerLaychie: "Laychie",
	SpeakerLayney:  "Layney",
}

// DisplayName returns the human-readable name of the speaker.
func (s SpeakerID) DisplayName() string {
	name, ok := speakerNames[s]
	if !ok {
		return string(s)
	}

	return name
}

// Valid reports whether the speaker is one the engine knows.
func (s SpeakerID) Valid() bool {
	_, ok := speakerNames[s]

	return ok
}

// SynthConfig holds the per-segment synthesis parameters.
type SynthConfig struct {
	Speed   float64 `json:"speed"   yaml:"speed"`
	Volume  float64 `json:"volume"  yaml:"volume"`
	Pitch   float64 `json:"pitch"   yaml:"pitch"`
	Whisper bool    `json:"whisper" yaml:"whisper"`
}

// KanaData is one phonetic unit as produced by the engine's analyzer.
type KanaData struct {
	Kana    string    `json:"kana"    yaml:"kana"`
	Accent  Accent    `json:"accent"  yaml:"accent"`
	Lengths []float64 `json:"lengths" yaml:"lengths"`
}

// PhoneticUnit is a KanaData extended with the duration-ratio breakdown
// used by the length adjuster.
type PhoneticUnit struct {
	Kana         string    `json:"kana"         yaml:"kana"`
	Accent       Accent    `json:"accent"       yaml:"accent"`
	Lengths      []float64 `json:"lengths"      yaml:"lengths"`
	LengthRatios []float64 `json:"lengthRatios" yaml:"lengthRatios"`
}

// Segment is a unit of text with its own analysis, speaker and synthesis config.
type Segment struct {
	ID          string         `json:"id"          yaml:"id"`
	Text        string         `json:"text"        yaml:"text"`
	KanaData    []PhoneticUnit `json:"kanaData"    yaml:"kanaData"`
	SpeakerID   SpeakerID      `json:"speakerId"   yaml:"speakerId"`
	SynthConfig SynthConfig    `json:"synthConfig" yaml:"synthConfig"`
}

// Project is an ordered sequence of segments.
type Project struct {
	ID       string    `json:"id"       yaml:"id"`
	TextData []Segment `json:"textData" yaml:"textData"`
}

// ProjectInfo is one entry of the project index kept in the settings.
type ProjectInfo struct {
	ID   string `json:"id"   yaml:"id"`
	Name string `json:"name" yaml:"name"`
	// Date is the last-opened time in unix milliseconds.
	Date int64 `json:"date" yaml:"date"`
}

// Preset is a named synthesis configuration.
type Preset struct {
	ID     string      `json:"id"     yaml:"id"`
	Name   string      `json:"name"   yaml:"name"`
	Config SynthConfig `json:"config" yaml:"config"`
}

// DictMora is one reading unit of a user dictionary entry.
type DictMora struct {
	Kana   string `json:"kana"   yaml:"kana"`
	Accent Accent `json:"accent" yaml:"accent"`
}

// UserDict maps a word to its reading.
type UserDict map[string][]DictMora

// Shortcut is one keyboard binding.
type Shortcut struct {
	Code  string `json:"code"  yaml:"code"`
	Alt   bool   `json:"alt"   yaml:"alt"`
	Shift bool   `json:"shift" yaml:"shift"`
	Desc  string `json:"desc"  yaml:"desc"`
}

// KeyboardShortcuts maps an action name to its binding.
type KeyboardShortcuts map[string]Shortcut

// Settings is the single global settings record.
type Settings struct {
	ProjectInfo       []ProjectInfo     `json:"projectInfo"       yaml:"projectInfo"`
	UserDict          UserDict          `json:"userDict"          yaml:"userDict"`
	Presets           []Preset          `json:"presets"           yaml:"presets"`
	PresetsDefault    Preset            `json:"presetsDefault"    yaml:"presetsDefault"`
	KeyboardShortcuts KeyboardShortcuts `json:"keyboardShortcuts" yaml:"keyboardShortcuts"`
	LicenseAgreed     bool              `json:"licenseAgreed"     yaml:"licenseAgreed"`
}

// Bundle is the export/import document.
type Bundle struct {
	Settings Settings  `json:"settings"`
	Projects []Project `json:"projects"`
}

// Segment returns the segment with the given id and its index, or -1.
func (p *Project) Segment(id string) (*Segment, int) {
	for i := range p.TextData {
		if p.TextData[i].ID == id {
			return &p.TextData[i], i
		}
	}

	return nil, -1
}

// Info returns the index entry of the given project, or nil.
func (s *Settings) Info(projectID string) *ProjectInfo {
	for i := range s.ProjectInfo {
		if s.ProjectInfo[i].ID == projectID {
			return &s.ProjectInfo[i]
		}
	}

	return nil
}

// Preset returns the preset with the given id. The default preset is found
// by its id as well.
func (s *Settings) Preset(id string) *Preset {
	if id == s.PresetsDefault.ID {
		return &s.PresetsDefault
	}

	for i := range s.Presets {
		if s.Presets[i].ID == id {
			return &s.Presets[i]
		}
	}

	return nil
}

// Analyzed converts engine output into phonetic units, computing each unit's
// length ratios as length divided by the unit's total length.
func Analyzed(data []KanaData) []PhoneticUnit {
	units := make([]PhoneticUnit, 0, len(data))
	for _, item := range data {
		units = append(units, NewPhoneticUnit(item.Kana, item.Accent, item.Lengths))
	}

	return units
}

// NewPhoneticUnit builds a unit and its length ratios.
func NewPhoneticUnit(kana string, accent Accent, lengths []float64) PhoneticUnit {
	total := 0.0
	for _, length := range lengths {
		total += length
	}

	ratios := make([]float64, len(lengths))
	for i, length := range lengths {
		if total > 0 {
			ratios[i] = length / total
		}
	}

	return PhoneticUnit{
		Kana:         kana,
		Accent:       accent,
		Lengths:      append([]float64{}, lengths...),
		LengthRatios: ratios,
	}
}

// KanaData strips the ratios off a unit for the synthesizer.
func (u PhoneticUnit) KanaData() KanaData {
	return KanaData{
		Kana:    u.Kana,
		Accent:  u.Accent,
		Lengths: append([]float64{}, u.Lengths...),
	}
}
