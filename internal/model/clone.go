package model

// Clone functions return structural copies that share no memory with the
// receiver. Nil slices and maps come back empty so that the JSON form of a
// copy always carries lists and objects, never null.

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}

	segments := make([]Segment, len(p.TextData))
	for i := range p.TextData {
		segments[i] = p.TextData[i].Clone()
	}

	return &Project{ID: p.ID, TextData: segments}
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	units := make([]PhoneticUnit, len(s.KanaData))
	for i, unit := range s.KanaData {
		units[i] = unit.Clone()
	}

	s.KanaData = units

	return s
}

// Clone returns a deep copy of the unit.
func (u PhoneticUnit) Clone() PhoneticUnit {
	u.Lengths = cloneFloats(u.Lengths)
	u.LengthRatios = cloneFloats(u.LengthRatios)

	return u
}

// Clone returns a deep copy of the settings.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}

	out := *s
	out.ProjectInfo = append(make([]ProjectInfo, 0, len(s.ProjectInfo)), s.ProjectInfo...)
	out.Presets = append(make([]Preset, 0, len(s.Presets)), s.Presets...)
	out.UserDict = s.UserDict.Clone()

	out.KeyboardShortcuts = make(KeyboardShortcuts, len(s.KeyboardShortcuts))
	for key, shortcut := range s.KeyboardShortcuts {
		out.KeyboardShortcuts[key] = shortcut
	}

	return &out
}

// Clone returns a deep copy of the dictionary.
func (d UserDict) Clone() UserDict {
	out := make(UserDict, len(d))
	for word, reading := range d {
		out[word] = append(make([]DictMora, 0, len(reading)), reading...)
	}

	return out
}

// Clone returns a deep copy of the bundle.
func (b *Bundle) Clone() *Bundle {
	projects := make([]Project, len(b.Projects))
	for i := range b.Projects {
		projects[i] = *b.Projects[i].Clone()
	}

	return &Bundle{Settings: *b.Settings.Clone(), Projects: projects}
}

func cloneFloats(values []float64) []float64 {
	return append(make([]float64, 0, len(values)), values...)
}
