// Package worker provides the NATS engine worker: it answers the editor's
// engine requests by driving a core.SpeechEngine.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/protocol"
)

var (
	// ErrUnsupportedSpeaker indicates that a synth request names an unknown speaker.
	ErrUnsupportedSpeaker = errors.New("unsupported speaker")
	// ErrInvalidAccent indicates a phonetic unit or dictionary reading with an unknown accent.
	ErrInvalidAccent = errors.New("invalid accent")
	// ErrEmptyReading indicates a dictionary entry without any reading.
	ErrEmptyReading = errors.New("dictionary reading cannot be empty")
	// ErrMissingData indicates a request whose payload is required but absent.
	ErrMissingData = errors.New("request data is required")
)

// AssetSource fetches engine assets by URL.
type AssetSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Clear(ctx context.Context) error
}

// NatsWorker listens for engine requests on a NATS subject and answers each
// one on its reply subject.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	engine         core.SpeechEngine
	assets         AssetSource
	plan           AssetPlan
	log            *logger.Logger

	// The engine is not safe for concurrent use.
	engineMu sync.Mutex
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	engine core.SpeechEngine,
	assets AssetSource,
	plan AssetPlan,
	log *logger.Logger,
) (*NatsWorker, error) {
	err := plan.Validate()
	if err != nil {
		return nil, err
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		engine:         engine,
		assets:         assets,
		plan:           plan,
		log:            log,
		engineMu:       sync.Mutex{},
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.System("Engine worker listening on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

// request is a validated envelope with its decoded payload.
type request struct {
	id    string
	op    protocol.Operation
	text  string
	dict  model.UserDict
	synth protocol.SynthRequest
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx := context.Background()

	req, err := w.parseAndValidateRequest(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate request %q: %v", req.id, err)
		w.respond(msg, protocol.Failure(req.id, err))

		return
	}

	w.engineMu.Lock()
	data, processErr := w.dispatch(ctx, req)
	w.engineMu.Unlock()

	if processErr != nil {
		w.log.Error("Engine request %s (%s) failed: %v", req.id, req.op, processErr)
		w.respond(msg, protocol.Failure(req.id, processErr))

		return
	}

	response, err := protocol.Success(req.id, data)
	if err != nil {
		w.log.Error("Failed to build response for request %s: %v", req.id, err)
		w.respond(msg, protocol.Failure(req.id, err))

		return
	}

	w.respond(msg, response)
}

func (w *NatsWorker) dispatch(ctx context.Context, req *request) (any, error) {
	switch req.op {
	case protocol.OpCheckBackend:
		return w.engine.CheckBackend(ctx)
	case protocol.OpInit:
		return nil, w.initEngine(ctx)
	case protocol.OpLoadDict:
		return nil, w.engine.LoadUserDict(ctx, req.dict)
	case protocol.OpClearDict:
		return nil, w.engine.ClearUserDict(ctx)
	case protocol.OpAnalyze:
		return w.engine.Analyze(ctx, req.text)
	case protocol.OpSynth:
		output, err := w.engine.Synthesize(ctx, core.SynthInput{
			AnalyzedData: req.synth.AnalyzedData,
			SpeakerID:    req.synth.SpeakerID,
			Config:       req.synth.Config,
		})
		if err != nil {
			return nil, err
		}

		return protocol.NewSynthResult(output.SampleRate, output.Samples), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", protocol.ErrMalformedRequest, req.op)
	}
}

// initEngine loads every asset and hands it to the engine. On any failure the
// asset cache is dropped so the next attempt downloads fresh copies.
func (w *NatsWorker) initEngine(ctx context.Context) error {
	dict, models, err := w.fetchAssets(ctx)
	if err == nil {
		err = w.engine.Init(ctx, dict, models)
	}

	if err != nil {
		clearErr := w.assets.Clear(ctx)
		if clearErr != nil {
			w.log.Warn("Failed to clear asset cache after failed init: %v", clearErr)
		}

		return err
	}

	return nil
}

// respond marshals and sends the response on the request's reply subject.
func (w *NatsWorker) respond(msg *nats.Msg, response *protocol.Response) {
	data, err := json.Marshal(response)
	if err != nil {
		w.log.Error("Failed to marshal response: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish response: %v", err)
	}
}

// parseAndValidateRequest never returns a nil request. On error the request
// still carries the envelope id when one could be read, so the failure settles
// that id; an empty id produces a null-id response.
func (w *NatsWorker) parseAndValidateRequest(msg *nats.Msg) (*request, error) {
	envelope, err := protocol.ParseRequest(msg.Data)
	if envelope == nil {
		return &request{}, err
	}

	req := &request{id: envelope.ID, op: envelope.Type}
	if err != nil {
		return req, err
	}

	switch envelope.Type {
	case protocol.OpAnalyze:
		err = envelope.Decode(&req.text)
	case protocol.OpLoadDict:
		err = envelope.Decode(&req.dict)
		if err == nil {
			err = validateDict(req.dict)
		}
	case protocol.OpSynth:
		err = envelope.Decode(&req.synth)
		if err == nil {
			err = validateSynth(req.synth)
		}
	case protocol.OpCheckBackend, protocol.OpInit, protocol.OpClearDict:
	}

	if err != nil {
		return req, err
	}

	return req, nil
}

func validateAccent(accent model.Accent) error {
	if accent != model.AccentHigh && accent != model.AccentLow {
		return fmt.Errorf("%w: %q", ErrInvalidAccent, accent)
	}

	return nil
}

func validateDict(dict model.UserDict) error {
	if dict == nil {
		return fmt.Errorf("%w: %s", ErrMissingData, protocol.OpLoadDict)
	}

	for word, reading := range dict {
		if len(reading) == 0 {
			return fmt.Errorf("%w: '%s'", ErrEmptyReading, word)
		}

		for _, mora := range reading {
			err := validateAccent(mora.Accent)
			if err != nil {
				return fmt.Errorf("dictionary entry '%s': %w", word, err)
			}
		}
	}

	return nil
}

func validateSynth(synth protocol.SynthRequest) error {
	if !synth.SpeakerID.Valid() {
		return fmt.Errorf("%w: '%s'", ErrUnsupportedSpeaker, synth.SpeakerID)
	}

	if synth.AnalyzedData == nil {
		return fmt.Errorf("%w: analyzedData", ErrMissingData)
	}

	for _, unit := range synth.AnalyzedData {
		err := validateAccent(unit.Accent)
		if err != nil {
			return err
		}
	}

	return nil
}
