// Package gateway is the editor's request/response client to the engine
// worker. Requests go out on the worker's subject with a private reply
// subject; every response is matched to its waiting caller by correlation id.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/protocol"
)

// ErrClosed indicates a call on a closed gateway.
var ErrClosed = errors.New("gateway closed")

// Gateway correlates engine requests with their responses. It is safe for
// concurrent use, although the editor only ever has one call in flight.
type Gateway struct {
	natsConnection *nats.Conn
	subject        string
	inbox          string
	subscription   *nats.Subscription
	log            *logger.Logger

	mu      sync.Mutex
	pending map[string]chan *protocol.Response
	closed  bool
}

// New subscribes to a fresh inbox and returns a gateway publishing on subject.
func New(natsConnection *nats.Conn, subject string, log *logger.Logger) (*Gateway, error) {
	gateway := &Gateway{
		natsConnection: natsConnection,
		subject:        subject,
		inbox:          natsConnection.NewRespInbox(),
		subscription:   nil,
		log:            log,
		pending:        make(map[string]chan *protocol.Response),
		closed:         false,
	}

	subscription, err := natsConnection.Subscribe(gateway.inbox, gateway.handleResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply subject %s: %w", gateway.inbox, err)
	}

	gateway.subscription = subscription

	return gateway, nil
}

// Call sends one request and waits for its response. There is no timeout:
// the call waits until the worker answers or ctx is done. An abandoned call
// forgets its id, and a late response for it is ignored.
func (g *Gateway) Call(ctx context.Context, op protocol.Operation, payload any) (json.RawMessage, error) {
	id := uuid.NewString()

	request, err := protocol.NewRequest(id, op, payload)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	resolver := make(chan *protocol.Response, 1)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()

		return nil, ErrClosed
	}

	g.pending[id] = resolver
	g.mu.Unlock()

	publishErr := g.natsConnection.PublishMsg(&nats.Msg{
		Subject: g.subject,
		Reply:   g.inbox,
		Data:    data,
	})
	if publishErr != nil {
		g.forget(id)

		return nil, fmt.Errorf("failed to publish %s request: %w", op, publishErr)
	}

	select {
	case response, ok := <-resolver:
		if !ok {
			return nil, ErrClosed
		}

		if response.Type == protocol.StatusError {
			return nil, &core.EngineError{Op: string(op), Payload: response.Data}
		}

		return response.Data, nil
	case <-ctx.Done():
		g.forget(id)

		return nil, fmt.Errorf("failed to wait for %s response: %w", op, ctx.Err())
	}
}

func (g *Gateway) forget(id string) {
	g.mu.Lock()
	delete(g.pending, id)
	g.mu.Unlock()
}

func (g *Gateway) handleResponse(msg *nats.Msg) {
	response, err := protocol.ParseResponse(msg.Data)
	if err != nil {
		g.log.Error("Failed to parse engine response: %v", err)

		return
	}

	if response.ID == nil {
		g.log.Error("Engine reported an error without a request id: %s", string(response.Data))

		return
	}

	g.mu.Lock()
	resolver, ok := g.pending[*response.ID]
	delete(g.pending, *response.ID)
	g.mu.Unlock()

	if !ok {
		g.log.Warn("Ignoring response for unknown request %s", *response.ID)

		return
	}

	resolver <- response
}

// Pending returns the number of calls waiting for a response.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.pending)
}

// Close unsubscribes from the reply subject and fails every waiting call.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()

		return nil
	}

	g.closed = true
	for id, resolver := range g.pending {
		close(resolver)
		delete(g.pending, id)
	}
	g.mu.Unlock()

	err := g.subscription.Unsubscribe()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe from %s: %w", g.inbox, err)
	}

	return nil
}

// CheckBackend asks whether the engine's compute backend is usable.
func (g *Gateway) CheckBackend(ctx context.Context) (bool, error) {
	data, err := g.Call(ctx, protocol.OpCheckBackend, nil)
	if err != nil {
		return false, err
	}

	var ok bool

	err = json.Unmarshal(data, &ok)
	if err != nil {
		return false, fmt.Errorf("failed to decode backend check result: %w", err)
	}

	return ok, nil
}

// Init loads the engine's dictionaries and models.
func (g *Gateway) Init(ctx context.Context) error {
	_, err := g.Call(ctx, protocol.OpInit, nil)

	return err
}

// LoadDict replaces the engine's user dictionary.
func (g *Gateway) LoadDict(ctx context.Context, dict model.UserDict) error {
	_, err := g.Call(ctx, protocol.OpLoadDict, dict)

	return err
}

// ClearDict empties the engine's user dictionary.
func (g *Gateway) ClearDict(ctx context.Context) error {
	_, err := g.Call(ctx, protocol.OpClearDict, nil)

	return err
}

// Analyze converts text into phonetic units.
func (g *Gateway) Analyze(ctx context.Context, text string) ([]model.KanaData, error) {
	data, err := g.Call(ctx, protocol.OpAnalyze, text)
	if err != nil {
		return nil, err
	}

	var units []model.KanaData

	err = json.Unmarshal(data, &units)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analysis result: %w", err)
	}

	return units, nil
}

// Synth voices one segment.
func (g *Gateway) Synth(ctx context.Context, request protocol.SynthRequest) (core.SynthOutput, error) {
	data, err := g.Call(ctx, protocol.OpSynth, request)
	if err != nil {
		return core.SynthOutput{}, err
	}

	var result protocol.SynthResult

	err = json.Unmarshal(data, &result)
	if err != nil {
		return core.SynthOutput{}, fmt.Errorf("failed to decode synthesis result: %w", err)
	}

	samples, err := result.Samples()
	if err != nil {
		return core.SynthOutput{}, err
	}

	return core.SynthOutput{SampleRate: result.SampleRate, Samples: samples}, nil
}
