package editor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/serial"
	"github.com/book-expert/tts-editor/internal/state"
)

// ErrIndexOutOfRange indicates a phonetic unit index outside the segment.
var ErrIndexOutOfRange = errors.New("phonetic unit index out of range")

// errAtBoundary aborts a move past either end of the project.
var errAtBoundary = errors.New("segment at boundary")

// errStale aborts an engine result commit whose segment moved on.
var errStale = errors.New("stale engine result")

func findSegment(project *model.Project, id string) (*model.Segment, int, error) {
	segment, index := project.Segment(id)
	if segment == nil {
		return nil, -1, core.NotFoundf("segment %s", id)
	}

	return segment, index, nil
}

// AddSegment inserts an empty segment after afterID, or appends one when
// afterID is empty or unknown. The new segment takes its speaker and
// configuration from the segment it follows, or the defaults.
func (e *Editor) AddSegment(afterID string) (string, error) {
	id := e.newID()

	err := e.state.UpdateProject(func(project *model.Project) error {
		speaker := model.Speakers[0]
		config := model.DefaultSynthConfig()
		position := len(project.TextData)

		if anchor, index := project.Segment(afterID); anchor != nil {
			speaker = anchor.SpeakerID
			config = anchor.SynthConfig
			position = index + 1
		}

		segment := model.NewSegment(id, speaker, config)
		project.TextData = append(project.TextData, model.Segment{})
		copy(project.TextData[position+1:], project.TextData[position:])
		project.TextData[position] = segment

		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// RemoveSegment deletes a segment. Its cached audio is released.
func (e *Editor) RemoveSegment(id string) error {
	return e.state.UpdateProject(func(project *model.Project) error {
		_, index, err := findSegment(project, id)
		if err != nil {
			return err
		}

		project.TextData = append(project.TextData[:index], project.TextData[index+1:]...)

		return nil
	})
}

// MoveUp swaps a segment with the one before it. The first segment stays.
func (e *Editor) MoveUp(id string) error {
	return e.move(id, -1)
}

// MoveDown swaps a segment with the one after it. The last segment stays.
func (e *Editor) MoveDown(id string) error {
	return e.move(id, 1)
}

func (e *Editor) move(id string, offset int) error {
	err := e.state.UpdateProject(func(project *model.Project) error {
		_, index, err := findSegment(project, id)
		if err != nil {
			return err
		}

		target := index + offset
		if target < 0 || target >= len(project.TextData) {
			return errAtBoundary
		}

		project.TextData[index], project.TextData[target] = project.TextData[target], project.TextData[index]

		return nil
	})
	if errors.Is(err, errAtBoundary) {
		return nil
	}

	return err
}

// SetText replaces a segment's text with its NFC form. The edit itself is
// kept out of the history; once the engine is ready, an analysis is queued
// whose result replaces the phonetic units and is recorded. The returned
// Pending is nil when no analysis was queued.
func (e *Editor) SetText(ctx context.Context, id, text string) (*Pending, error) {
	text = norm.NFC.String(text)

	err := e.state.UpdateProjectWithoutHistory(func(project *model.Project) error {
		segment, _, err := findSegment(project, id)
		if err != nil {
			return err
		}

		segment.Text = text

		return nil
	})
	if err != nil {
		return nil, err
	}

	if !e.Ready() {
		e.log.Warn("Speech engine is not ready, skipping analysis of segment %s", id)

		return nil, nil
	}

	future := serial.Go(ctx, e.chain, func(ctx context.Context) error {
		return e.analyze(ctx, id, text)
	})

	return pendingOf(future), nil
}

func (e *Editor) analyze(ctx context.Context, id, text string) error {
	units, err := e.engine.Analyze(ctx, text)
	if err != nil {
		e.alert(err, "Failed to analyze the text", "If this keeps happening, restart the editor")

		return fmt.Errorf("failed to analyze segment %s: %w", id, err)
	}

	err = e.state.UpdateProject(func(project *model.Project) error {
		segment, _ := project.Segment(id)
		if segment == nil || segment.Text != text {
			return errStale
		}

		segment.KanaData = model.Analyzed(units)

		return nil
	})
	if errors.Is(err, errStale) || errors.Is(err, state.ErrNoProject) {
		e.log.Info("Dropping analysis of segment %s, it changed meanwhile", id)

		return nil
	}

	return err
}

// SetSpeaker changes the voice of a segment.
func (e *Editor) SetSpeaker(id string, speaker model.SpeakerID) error {
	return e.state.UpdateProject(func(project *model.Project) error {
		segment, _, err := findSegment(project, id)
		if err != nil {
			return err
		}

		segment.SpeakerID = speaker

		return nil
	})
}

// SetSynthConfig changes the synthesis parameters of a segment.
func (e *Editor) SetSynthConfig(id string, config model.SynthConfig) error {
	return e.state.UpdateProject(func(project *model.Project) error {
		segment, _, err := findSegment(project, id)
		if err != nil {
			return err
		}

		segment.SynthConfig = config

		return nil
	})
}

// SetKanaData replaces the phonetic units of a segment, recomputing their
// length ratios.
func (e *Editor) SetKanaData(id string, units []model.KanaData) error {
	return e.state.UpdateProject(func(project *model.Project) error {
		segment, _, err := findSegment(project, id)
		if err != nil {
			return err
		}

		segment.KanaData = model.Analyzed(units)

		return nil
	})
}

// SetAccent changes the accent of one phonetic unit.
func (e *Editor) SetAccent(id string, unit int, accent model.Accent) error {
	return e.updateUnit(id, unit, func(phonetic *model.PhoneticUnit) {
		phonetic.Accent = accent
	})
}

// SetLength rescales one phonetic unit to a total length, keeping the
// proportions between its parts.
func (e *Editor) SetLength(id string, unit int, total float64) error {
	return e.updateUnit(id, unit, func(phonetic *model.PhoneticUnit) {
		for i, ratio := range phonetic.LengthRatios {
			if i < len(phonetic.Lengths) {
				phonetic.Lengths[i] = total * ratio
			}
		}
	})
}

func (e *Editor) updateUnit(id string, unit int, update func(*model.PhoneticUnit)) error {
	return e.state.UpdateProject(func(project *model.Project) error {
		segment, _, err := findSegment(project, id)
		if err != nil {
			return err
		}

		if unit < 0 || unit >= len(segment.KanaData) {
			return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, unit, len(segment.KanaData))
		}

		update(&segment.KanaData[unit])

		return nil
	})
}

// Undo restores the previous project snapshot.
func (e *Editor) Undo() (bool, error) {
	return e.state.Undo()
}

// Redo restores the next project snapshot.
func (e *Editor) Redo() (bool, error) {
	return e.state.Redo()
}
