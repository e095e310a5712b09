package cli

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/book-expert/tts-editor/internal/model"
)

const timeLayout = "2006-01-02 15:04"

func table(write func(writer *tabwriter.Writer)) string {
	var builder strings.Builder

	writer := tabwriter.NewWriter(&builder, 0, 4, 2, ' ', 0)
	write(writer)
	_ = writer.Flush()

	return builder.String()
}

// ProjectRow is one entry of the project index.
type ProjectRow struct {
	ID     string    `json:"id"     yaml:"id"`
	Name   string    `json:"name"   yaml:"name"`
	Opened time.Time `json:"opened" yaml:"opened"`
	Open   bool      `json:"open"   yaml:"open"`
}

// ProjectList is the project index, most recently opened first.
type ProjectList []ProjectRow

func newProjectList(settings *model.Settings, current *model.Project) ProjectList {
	rows := make(ProjectList, 0, len(settings.ProjectInfo))
	for _, info := range settings.ProjectInfo {
		rows = append(rows, ProjectRow{
			ID:     info.ID,
			Name:   info.Name,
			Opened: time.UnixMilli(info.Date),
			Open:   current != nil && current.ID == info.ID,
		})
	}

	slices.SortStableFunc(rows, func(a, b ProjectRow) int {
		return b.Opened.Compare(a.Opened)
	})

	return rows
}

func (l ProjectList) String() string {
	if len(l) == 0 {
		return "No projects.\n"
	}

	return table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "\tID\tNAME\tOPENED")

		for _, row := range l {
			marker := ""
			if row.Open {
				marker = "*"
			}

			_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", marker, row.ID, row.Name, row.Opened.Format(timeLayout))
		}
	})
}

// SegmentRow is one segment of the open project.
type SegmentRow struct {
	Index   int               `json:"index"   yaml:"index"`
	ID      string            `json:"id"      yaml:"id"`
	Speaker model.SpeakerID   `json:"speaker" yaml:"speaker"`
	Text    string            `json:"text"    yaml:"text"`
	Kana    string            `json:"kana"    yaml:"kana"`
	Config  model.SynthConfig `json:"config"  yaml:"config"`
	Cached  bool              `json:"cached"  yaml:"cached"`
}

// SegmentList is the open project's segments in order.
type SegmentList []SegmentRow

func newSegmentList(project *model.Project, cached []string) SegmentList {
	rows := make(SegmentList, 0, len(project.TextData))
	for i, segment := range project.TextData {
		rows = append(rows, SegmentRow{
			Index:   i + 1,
			ID:      segment.ID,
			Speaker: segment.SpeakerID,
			Text:    segment.Text,
			Kana:    kanaLine(segment.KanaData),
			Config:  segment.SynthConfig,
			Cached:  slices.Contains(cached, segment.ID),
		})
	}

	return rows
}

func (l SegmentList) String() string {
	if len(l) == 0 {
		return "No segments.\n"
	}

	return table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "#\tID\tSPEAKER\tTEXT\tAUDIO")

		for _, row := range l {
			audio := ""
			if row.Cached {
				audio = "cached"
			}

			_, _ = fmt.Fprintf(writer, "%d\t%s\t%s\t%s\t%s\n",
				row.Index, row.ID, row.Speaker.DisplayName(), row.Text, audio)
		}
	})
}

// kanaLine renders units the way readings are typed: high units carry a
// trailing caret.
func kanaLine(units []model.PhoneticUnit) string {
	moras := make([]model.DictMora, 0, len(units))
	for _, unit := range units {
		moras = append(moras, model.DictMora{Kana: unit.Kana, Accent: unit.Accent})
	}

	return formatReading(moras)
}

// SegmentDetail is one segment with its phonetic units.
type SegmentDetail struct {
	Segment model.Segment `json:"segment" yaml:"segment"`
}

func (d SegmentDetail) String() string {
	segment := d.Segment

	var builder strings.Builder

	_, _ = fmt.Fprintf(&builder, "ID:      %s\n", segment.ID)
	_, _ = fmt.Fprintf(&builder, "Text:    %s\n", segment.Text)
	_, _ = fmt.Fprintf(&builder, "Speaker: %s\n", segment.SpeakerID.DisplayName())
	_, _ = fmt.Fprintf(&builder, "Config:  speed=%g volume=%g pitch=%g whisper=%t\n",
		segment.SynthConfig.Speed, segment.SynthConfig.Volume, segment.SynthConfig.Pitch, segment.SynthConfig.Whisper)

	if len(segment.KanaData) == 0 {
		builder.WriteString("Not analyzed.\n")

		return builder.String()
	}

	builder.WriteString(table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "UNIT\tKANA\tACCENT\tLENGTHS")

		for i, unit := range segment.KanaData {
			lengths := make([]string, 0, len(unit.Lengths))
			for _, length := range unit.Lengths {
				lengths = append(lengths, fmt.Sprintf("%.3g", length))
			}

			_, _ = fmt.Fprintf(writer, "%d\t%s\t%s\t%s\n", i, unit.Kana, unit.Accent, strings.Join(lengths, " "))
		}
	}))

	return builder.String()
}

// HistoryView is the undo history cursor.
type HistoryView struct {
	Index   int  `json:"index"   yaml:"index"`
	Length  int  `json:"length"  yaml:"length"`
	CanUndo bool `json:"canUndo" yaml:"canUndo"`
	CanRedo bool `json:"canRedo" yaml:"canRedo"`
}

func (h HistoryView) String() string {
	return fmt.Sprintf("Snapshot %d of %d (undo: %t, redo: %t)\n", h.Index+1, h.Length, h.CanUndo, h.CanRedo)
}

// DictList is the user dictionary sorted by word.
type DictList []DictRow

// DictRow is one user dictionary entry.
type DictRow struct {
	Word    string           `json:"word"    yaml:"word"`
	Reading []model.DictMora `json:"reading" yaml:"reading"`
}

func newDictList(dict model.UserDict) DictList {
	rows := make(DictList, 0, len(dict))
	for word, reading := range dict {
		rows = append(rows, DictRow{Word: word, Reading: reading})
	}

	slices.SortFunc(rows, func(a, b DictRow) int {
		return strings.Compare(a.Word, b.Word)
	})

	return rows
}

func (l DictList) String() string {
	if len(l) == 0 {
		return "Dictionary is empty.\n"
	}

	return table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "WORD\tREADING")

		for _, row := range l {
			_, _ = fmt.Fprintf(writer, "%s\t%s\n", row.Word, formatReading(row.Reading))
		}
	})
}

// PresetList is the default preset followed by the user presets.
type PresetList []model.Preset

func (l PresetList) String() string {
	return table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "ID\tNAME\tSPEED\tVOLUME\tPITCH\tWHISPER")

		for _, preset := range l {
			_, _ = fmt.Fprintf(writer, "%s\t%s\t%g\t%g\t%g\t%t\n", preset.ID, preset.Name,
				preset.Config.Speed, preset.Config.Volume, preset.Config.Pitch, preset.Config.Whisper)
		}
	})
}

// ShortcutList is the keyboard bindings sorted by action.
type ShortcutList []ShortcutRow

// ShortcutRow is one keyboard binding.
type ShortcutRow struct {
	Action   string         `json:"action"   yaml:"action"`
	Shortcut model.Shortcut `json:"shortcut" yaml:"shortcut"`
}

func newShortcutList(shortcuts model.KeyboardShortcuts) ShortcutList {
	rows := make(ShortcutList, 0, len(shortcuts))
	for action, shortcut := range shortcuts {
		rows = append(rows, ShortcutRow{Action: action, Shortcut: shortcut})
	}

	slices.SortFunc(rows, func(a, b ShortcutRow) int {
		return strings.Compare(a.Action, b.Action)
	})

	return rows
}

func (l ShortcutList) String() string {
	return table(func(writer *tabwriter.Writer) {
		_, _ = fmt.Fprintln(writer, "ACTION\tKEYS\tDESCRIPTION")

		for _, row := range l {
			_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\n", row.Action, formatKeys(row.Shortcut), row.Shortcut.Desc)
		}
	})
}

func formatKeys(shortcut model.Shortcut) string {
	keys := make([]string, 0, 3)
	if shortcut.Alt {
		keys = append(keys, "Alt")
	}

	if shortcut.Shift {
		keys = append(keys, "Shift")
	}

	return strings.Join(append(keys, shortcut.Code), "+")
}

// Message is a one-line confirmation.
type Message struct {
	Message string `json:"message"      yaml:"message"`
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
}

func (m Message) String() string {
	return m.Message + "\n"
}

func messagef(format string, args ...any) Message {
	return Message{Message: fmt.Sprintf(format, args...), ID: ""}
}
