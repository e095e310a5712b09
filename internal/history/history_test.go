package history_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-editor/internal/history"
	"github.com/book-expert/tts-editor/internal/model"
)

const segmentA = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"

func withText(project *model.Project, text string) *model.Project {
	next := project.Clone()
	next.TextData[0].Text = text

	return next
}

func TestHistory_Reset(t *testing.T) {
	t.Parallel()

	timeline := history.New()
	assert.Equal(t, 0, timeline.Len())
	assert.Equal(t, -1, timeline.Index())

	project := model.NewProject("p")
	timeline.Reset(project)
	assert.Equal(t, 1, timeline.Len())
	assert.Equal(t, 0, timeline.Index())
	assert.False(t, timeline.CanUndo())
	assert.False(t, timeline.CanRedo())

	timeline.Suppress()
	timeline.Reset(nil)
	assert.Equal(t, 0, timeline.Len())
	assert.Equal(t, -1, timeline.Index())
	assert.False(t, timeline.Suppressed(), "reset clears the suppress flag")
}

func TestHistory_Scenario(t *testing.T) {
	t.Parallel()

	timeline := history.New()
	timeline.Reset(nil)

	project := model.NewProject("p")
	project.TextData = append(project.TextData,
		model.NewSegment(segmentA, model.SpeakerLaychie, model.DefaultSynthConfig()))

	// Add segment A.
	require.True(t, timeline.RecordIfNotSuppressed(project))
	assert.Equal(t, 1, timeline.Len())
	assert.Equal(t, 0, timeline.Index())

	first := withText(project, "first")
	timeline.RecordIfNotSuppressed(first)
	assert.Equal(t, 2, timeline.Len())
	assert.Equal(t, 1, timeline.Index())

	second := withText(first, "second")
	timeline.RecordIfNotSuppressed(second)
	assert.Equal(t, 3, timeline.Len())
	assert.Equal(t, 2, timeline.Index())

	live, ok := timeline.Undo()
	require.True(t, ok)
	assert.Equal(t, 1, timeline.Index())
	assert.Equal(t, "first", live.TextData[0].Text)

	// Installing the undone project is not recorded.
	assert.False(t, timeline.RecordIfNotSuppressed(live))
	assert.Equal(t, 3, timeline.Len())

	timeline.RecordIfNotSuppressed(withText(live, "branch"))
	assert.Equal(t, 3, timeline.Len())
	assert.Equal(t, 2, timeline.Index())

	_, ok = timeline.Redo()
	assert.False(t, ok, "redo at the tail is a no-op")
	assert.Equal(t, 2, timeline.Index())
	assert.False(t, timeline.Suppressed(), "a no-op redo does not set the flag")
}

func TestHistory_UndoAllRestoresOriginal(t *testing.T) {
	t.Parallel()

	original := model.NewProject("p")
	original.TextData = append(original.TextData,
		model.NewSegment(segmentA, model.SpeakerLayney, model.DefaultSynthConfig()))

	timeline := history.New()
	timeline.Reset(original)

	live := original.Clone()
	for i := range 5 {
		live = withText(live, fmt.Sprintf("edit %d", i))
		timeline.RecordIfNotSuppressed(live)
	}

	for range 5 {
		undone, ok := timeline.Undo()
		require.True(t, ok)
		timeline.RecordIfNotSuppressed(undone)

		live = undone
	}

	assert.Equal(t, original, live)

	_, ok := timeline.Undo()
	assert.False(t, ok, "undo at index 0 is a no-op")
}

func TestHistory_RedoAfterTwoUndos(t *testing.T) {
	t.Parallel()

	base := model.NewProject("p")
	base.TextData = append(base.TextData,
		model.NewSegment(segmentA, model.SpeakerLaychie, model.DefaultSynthConfig()))

	timeline := history.New()
	timeline.Reset(base)

	one := withText(base, "one")
	two := withText(one, "two")
	timeline.RecordIfNotSuppressed(one)
	timeline.RecordIfNotSuppressed(two)

	_, _ = timeline.Undo()
	_, _ = timeline.Undo()

	redone, ok := timeline.Redo()
	require.True(t, ok)
	assert.Equal(t, one, redone)

	redone, ok = timeline.Redo()
	require.True(t, ok)
	assert.Equal(t, two, redone)
	assert.False(t, timeline.CanRedo())
}

func TestHistory_SnapshotsDoNotAlias(t *testing.T) {
	t.Parallel()

	project := model.NewProject("p")
	project.TextData = append(project.TextData,
		model.NewSegment(segmentA, model.SpeakerLaychie, model.DefaultSynthConfig()))

	timeline := history.New()
	timeline.Reset(project)
	timeline.RecordIfNotSuppressed(withText(project, "x"))

	project.TextData[0].Text = "mutated after reset"

	undone, ok := timeline.Undo()
	require.True(t, ok)
	assert.Empty(t, undone.TextData[0].Text)

	undone.TextData[0].Text = "mutated copy"

	redone, ok := timeline.Redo()
	require.True(t, ok)
	assert.Equal(t, "x", redone.TextData[0].Text)
}

func TestHistory_RewindTakesBackUndo(t *testing.T) {
	t.Parallel()

	project := model.NewProject("p")
	project.TextData = append(project.TextData,
		model.NewSegment(segmentA, model.SpeakerLaychie, model.DefaultSynthConfig()))

	timeline := history.New()
	timeline.Reset(project)
	timeline.RecordIfNotSuppressed(withText(project, "x"))

	_, ok := timeline.Undo()
	require.True(t, ok)
	require.True(t, timeline.Suppressed())

	timeline.Rewind(1)
	assert.Equal(t, 1, timeline.Index())
	assert.False(t, timeline.Suppressed())
	assert.True(t, timeline.RecordIfNotSuppressed(withText(project, "y")))
	assert.Equal(t, 3, timeline.Len())

	timeline.Suppress()
	timeline.Rewind(7)
	assert.Equal(t, 2, timeline.Index())
	assert.False(t, timeline.Suppressed())
}
