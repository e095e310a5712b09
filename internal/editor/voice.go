package editor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"

	"github.com/book-expert/tts-editor/internal/audiocache"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/protocol"
	"github.com/book-expert/tts-editor/internal/serial"
	"github.com/book-expert/tts-editor/internal/state"
)

const (
	minFileNumberDigits = 3
	fileNameTextLength  = 9
	fileNameEllipsis    = "…"
)

// AudioFileName names the exported audio of the segment at index in a
// project of total segments: a zero-padded position, the speaker's name and
// the beginning of the text.
func AudioFileName(index, total int, segment model.Segment) string {
	digits := max(minFileNumberDigits, len(strconv.Itoa(total)))
	number := fmt.Sprintf("%0*d", digits, index+1)

	runes := []rune(segment.Text)
	beginning := segment.Text

	if len(runes) > fileNameTextLength {
		beginning = string(runes[:fileNameTextLength]) + fileNameEllipsis
	}

	return fmt.Sprintf("%s_%s_%s.wav", number, segment.SpeakerID.DisplayName(), beginning)
}

// Play queues a segment for playback, synthesizing its audio unless it is
// cached. A prioritized segment cuts the current one short and replaces
// everything pending.
func (e *Editor) Play(ctx context.Context, id string, prioritize bool) (*Pending, error) {
	segment, _, _, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	future := serial.Go(ctx, e.chain, func(ctx context.Context) error {
		handle, voiceErr := e.voice(ctx, segment)
		if voiceErr != nil {
			return voiceErr
		}

		e.queue.Enqueue(handle, prioritize)

		return nil
	})

	return pendingOf(future), nil
}

// PlayAll queues every segment in order, the first one prioritized.
func (e *Editor) PlayAll(ctx context.Context) (*Pending, error) {
	project, err := e.projectForEngine()
	if err != nil {
		return nil, err
	}

	pending := pendingOf()

	for i, segment := range project.TextData {
		queued, playErr := e.Play(ctx, segment.ID, i == 0)
		if playErr != nil {
			return pending, playErr
		}

		pending.futures = append(pending.futures, queued.futures...)
	}

	return pending, nil
}

// SaveAudio writes a segment's audio into dir, uploads it to the artifact
// store and announces it.
func (e *Editor) SaveAudio(ctx context.Context, id, dir string) (*Pending, error) {
	segment, index, project, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	fileName := AudioFileName(index, len(project.TextData), segment)

	future := serial.Go(ctx, e.chain, func(ctx context.Context) error {
		handle, voiceErr := e.voice(ctx, segment)
		if voiceErr != nil {
			return voiceErr
		}

		return e.export(ctx, handle, project.ID, dir, fileName)
	})

	return pendingOf(future), nil
}

// SaveAllAudio saves every segment's audio into dir.
func (e *Editor) SaveAllAudio(ctx context.Context, dir string) (*Pending, error) {
	project, err := e.projectForEngine()
	if err != nil {
		return nil, err
	}

	pending := pendingOf()

	for _, segment := range project.TextData {
		queued, saveErr := e.SaveAudio(ctx, segment.ID, dir)
		if saveErr != nil {
			return pending, saveErr
		}

		pending.futures = append(pending.futures, queued.futures...)
	}

	return pending, nil
}

func (e *Editor) projectForEngine() (*model.Project, error) {
	err := e.requireReady()
	if err != nil {
		return nil, err
	}

	project := e.state.Project()
	if project == nil {
		return nil, state.ErrNoProject
	}

	return project, nil
}

func (e *Editor) lookup(id string) (model.Segment, int, *model.Project, error) {
	project, err := e.projectForEngine()
	if err != nil {
		return model.Segment{}, -1, nil, err
	}

	segment, index, err := findSegment(project, id)
	if err != nil {
		return model.Segment{}, -1, nil, err
	}

	return *segment, index, project, nil
}

// voice returns the cached audio of segment or synthesizes it. Fresh audio
// is cached only while the segment still matches what was synthesized.
func (e *Editor) voice(ctx context.Context, segment model.Segment) (*audiocache.Handle, error) {
	handle, ok := e.audio.Get(segment.ID)
	if ok && !handle.Released() {
		return handle, nil
	}

	expected := fingerprintOf(segment)

	request := protocol.SynthRequest{
		AnalyzedData: make([]model.KanaData, 0, len(segment.KanaData)),
		SpeakerID:    segment.SpeakerID,
		Config:       segment.SynthConfig,
	}
	for _, unit := range segment.KanaData {
		request.AnalyzedData = append(request.AnalyzedData, unit.KanaData())
	}

	output, err := e.engine.Synth(ctx, request)
	if err != nil {
		e.alert(err, "Failed to synthesize the voice", "If this keeps happening, restart the editor")

		return nil, fmt.Errorf("failed to synthesize segment %s: %w", segment.ID, err)
	}

	handle, err = audiocache.WriteHandle(e.cfg.AudioDir, output.SampleRate, output.Samples)
	if err != nil {
		return nil, err
	}

	current, ok := e.fingerprint(segment.ID)
	if !ok || current != expected {
		_ = handle.Release()

		return nil, fmt.Errorf("%w: %s", ErrSegmentChanged, segment.ID)
	}

	err = e.audio.Set(segment.ID, handle)
	if err != nil {
		e.log.Warn("Failed to release replaced audio of segment %s: %v", segment.ID, err)
	}

	return handle, nil
}

func (e *Editor) export(
	ctx context.Context,
	handle *audiocache.Handle,
	projectID, dir, fileName string,
) error {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, fileName)

	err = handle.CopyTo(path)
	if err != nil {
		return fmt.Errorf("failed to save audio to %s: %w", path, err)
	}

	e.log.Info("Saved audio to %s", path)

	if e.artifacts == nil {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read saved audio %s: %w", path, err)
	}

	key := projectID + "/" + fileName

	err = e.artifacts.Upload(ctx, key, data)
	if err != nil {
		e.alert(err, "Failed to upload the saved audio", fileName)

		return fmt.Errorf("failed to upload audio %s: %w", key, err)
	}

	return e.announce(projectID, key)
}

// announce publishes the artifact key with the project id as workflow id.
func (e *Editor) announce(projectID, key string) error {
	if e.publisher == nil || e.cfg.AudioChunkCreatedSubject == "" {
		return nil
	}

	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: projectID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey: key,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio event: %w", err)
	}

	err = e.publisher.Publish(e.cfg.AudioChunkCreatedSubject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio event for %s: %w", key, err)
	}

	return nil
}
