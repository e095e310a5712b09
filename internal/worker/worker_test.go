// Package worker_test tests the NATS engine worker.
package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/gateway"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/natstest"
	"github.com/book-expert/tts-editor/internal/protocol"
	"github.com/book-expert/tts-editor/internal/worker"
)

const testSubject = "test_subject"

var (
	errMockFetch = errors.New("mock fetch error")
	errMockInit  = errors.New("mock init error")
	errMockSynth = errors.New("mock synth error")
)

// mockAssetSource serves every URL with its own text as content.
type mockAssetSource struct {
	mu              sync.Mutex
	fetchShouldFail string
	fetched         []string
	cleared         int
}

func (m *mockAssetSource) Fetch(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchShouldFail != "" && strings.HasSuffix(url, m.fetchShouldFail) {
		return nil, errMockFetch
	}

	m.fetched = append(m.fetched, url)

	return []byte(url[strings.LastIndex(url, "/")+1:]), nil
}

func (m *mockAssetSource) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleared++

	return nil
}

// mockSpeechEngine is a mock implementation of the SpeechEngine interface.
type mockSpeechEngine struct {
	initShouldFail  bool
	synthShouldFail bool
	dict            []core.AssetFile
	models          core.ModelFiles
	userDict        model.UserDict
	synthInput      core.SynthInput
}

func (m *mockSpeechEngine) CheckBackend(_ context.Context) (bool, error) {
	return true, nil
}

func (m *mockSpeechEngine) Init(_ context.Context, dict []core.AssetFile, models core.ModelFiles) error {
	if m.initShouldFail {
		return errMockInit
	}

	m.dict = dict
	m.models = models

	return nil
}

func (m *mockSpeechEngine) LoadUserDict(_ context.Context, dict model.UserDict) error {
	m.userDict = dict

	return nil
}

func (m *mockSpeechEngine) ClearUserDict(_ context.Context) error {
	m.userDict = nil

	return nil
}

func (m *mockSpeechEngine) Analyze(_ context.Context, text string) ([]model.KanaData, error) {
	return []model.KanaData{{Kana: text, Accent: model.AccentLow, Lengths: []float64{2}}}, nil
}

func (m *mockSpeechEngine) Synthesize(_ context.Context, input core.SynthInput) (core.SynthOutput, error) {
	if m.synthShouldFail {
		return core.SynthOutput{}, errMockSynth
	}

	m.synthInput = input

	return core.SynthOutput{SampleRate: 22050, Samples: []float32{0.25}}, nil
}

func setupTest(t *testing.T) (*mockSpeechEngine, *mockAssetSource, *nats.Conn) {
	t.Helper()

	_, natsConnection := natstest.StartServer(t)

	testLogger, err := logger.New(t.TempDir(), "worker-test.log")
	require.NoError(t, err)

	engine := &mockSpeechEngine{}
	assets := &mockAssetSource{}

	workerInstance, err := worker.NewNatsWorker(natsConnection, testSubject, engine, assets, worker.AssetPlan{
		DictBaseURL:  "https://assets.example.com/dict/",
		ModelBaseURL: "https://assets.example.com/models/",
		FetchWorkers: 3,
	}, testLogger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-errChan
	})

	// Wait for the subscription to be registered.
	require.Eventually(t, func() bool {
		_, requestErr := natsConnection.Request(testSubject, []byte("{}"), 100*time.Millisecond)

		return requestErr == nil
	}, 5*time.Second, 10*time.Millisecond)

	return engine, assets, natsConnection
}

func call(t *testing.T, natsConnection *nats.Conn, op protocol.Operation, data any) *protocol.Response {
	t.Helper()

	request, err := protocol.NewRequest(uuid.NewString(), op, data)
	require.NoError(t, err)

	encoded, err := json.Marshal(request)
	require.NoError(t, err)

	return send(t, natsConnection, encoded)
}

func send(t *testing.T, natsConnection *nats.Conn, encoded []byte) *protocol.Response {
	t.Helper()

	replyMsg, err := natsConnection.Request(testSubject, encoded, 5*time.Second)
	require.NoError(t, err, "Request should succeed and receive a reply")

	response, err := protocol.ParseResponse(replyMsg.Data)
	require.NoError(t, err)

	return response
}

func TestNewNatsWorker_InvalidPlan(t *testing.T) {
	t.Parallel()

	_, err := worker.NewNatsWorker(nil, testSubject, nil, nil, worker.AssetPlan{}, nil)
	require.ErrorIs(t, err, worker.ErrBaseURL)
}

func TestMessageHandler_Init(t *testing.T) {
	t.Parallel()

	engine, assets, natsConnection := setupTest(t)

	response := call(t, natsConnection, protocol.OpInit, nil)
	require.Equal(t, protocol.StatusSuccess, response.Type, string(response.Data))

	// 7 dictionary files plus the joined system dictionary.
	require.Len(t, engine.dict, len(worker.DictFileNames)+1)

	sysDict := engine.dict[len(engine.dict)-1]
	assert.Equal(t, worker.SystemDictName, sysDict.Name)
	assert.Equal(t, strings.Join(worker.SystemDictPartNames(), ""), string(sysDict.Data))
	assert.Equal(t, "char.bin", string(engine.dict[0].Data))

	assert.Equal(t, "model.json", string(engine.models.F0))
	assert.Contains(t, assets.fetched, "https://assets.example.com/models/f0/model.json")
	assert.Contains(t, assets.fetched, "https://assets.example.com/dict/sys-21.dic")
	assert.Zero(t, assets.cleared)
}

func TestMessageHandler_InitFailureClearsCache(t *testing.T) {
	t.Parallel()

	engine, assets, natsConnection := setupTest(t)

	assets.mu.Lock()
	assets.fetchShouldFail = "sys-7.dic"
	assets.mu.Unlock()

	response := call(t, natsConnection, protocol.OpInit, nil)
	require.Equal(t, protocol.StatusError, response.Type)
	assert.Contains(t, string(response.Data), "sys-7.dic")
	assert.Equal(t, 1, assets.cleared)

	assets.mu.Lock()
	assets.fetchShouldFail = ""
	assets.mu.Unlock()

	engine.initShouldFail = true

	response = call(t, natsConnection, protocol.OpInit, nil)
	require.Equal(t, protocol.StatusError, response.Type)
	assert.Equal(t, 2, assets.cleared)
}

func TestMessageHandler_Operations(t *testing.T) {
	t.Parallel()

	engine, _, natsConnection := setupTest(t)

	response := call(t, natsConnection, protocol.OpCheckBackend, nil)
	require.Equal(t, protocol.StatusSuccess, response.Type)
	assert.JSONEq(t, "true", string(response.Data))

	dict := model.UserDict{"語": {{Kana: "ゴ", Accent: model.AccentHigh}}}
	response = call(t, natsConnection, protocol.OpLoadDict, dict)
	require.Equal(t, protocol.StatusSuccess, response.Type)
	assert.Equal(t, dict, engine.userDict)

	response = call(t, natsConnection, protocol.OpClearDict, nil)
	require.Equal(t, protocol.StatusSuccess, response.Type)
	assert.Nil(t, engine.userDict)

	response = call(t, natsConnection, protocol.OpAnalyze, "テキスト")
	require.Equal(t, protocol.StatusSuccess, response.Type)
	assert.JSONEq(t, `[{"kana":"テキスト","accent":"low","lengths":[2]}]`, string(response.Data))

	synth := protocol.SynthRequest{
		AnalyzedData: []model.KanaData{{Kana: "ア", Accent: model.AccentHigh, Lengths: []float64{1}}},
		SpeakerID:    model.SpeakerLayney,
		Config:       model.DefaultSynthConfig(),
	}
	response = call(t, natsConnection, protocol.OpSynth, synth)
	require.Equal(t, protocol.StatusSuccess, response.Type)
	assert.Equal(t, model.SpeakerLayney, engine.synthInput.SpeakerID)

	var result protocol.SynthResult
	require.NoError(t, json.Unmarshal(response.Data, &result))

	samples, err := result.Samples()
	require.NoError(t, err)
	assert.Equal(t, 22050, result.SampleRate)
	assert.Equal(t, []float32{0.25}, samples)
}

func TestMessageHandler_EngineFailureKeepsID(t *testing.T) {
	t.Parallel()

	engine, _, natsConnection := setupTest(t)
	engine.synthShouldFail = true

	request, err := protocol.NewRequest("request-1", protocol.OpSynth, protocol.SynthRequest{
		AnalyzedData: []model.KanaData{},
		SpeakerID:    model.SpeakerLaychie,
		Config:       model.DefaultSynthConfig(),
	})
	require.NoError(t, err)

	encoded, err := json.Marshal(request)
	require.NoError(t, err)

	response := send(t, natsConnection, encoded)
	require.Equal(t, protocol.StatusError, response.Type)
	require.NotNil(t, response.ID)
	assert.Equal(t, "request-1", *response.ID)
	assert.Contains(t, string(response.Data), errMockSynth.Error())
}

func TestMessageHandler_UnidentifiedRequestsGetNullID(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	testCases := map[string]string{
		"not json":   `{{{`,
		"missing id": `{"type":"engine:init"}`,
	}

	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			response := send(t, natsConnection, []byte(payload))
			assert.Equal(t, protocol.StatusError, response.Type)
			assert.Nil(t, response.ID)
		})
	}
}

func TestMessageHandler_InvalidPayloadKeepsID(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	testCases := map[string]string{
		"unknown type":    `{"id":"x","type":"engine:explode"}`,
		"analyze no data": `{"id":"x","type":"engine:analyze"}`,
		"bad speaker":     `{"id":"x","type":"engine:synth","data":{"analyzedData":[],"speakerId":"nobody","config":{}}}`,
		"bad accent":      `{"id":"x","type":"engine:dict:load","data":{"語":[{"kana":"ゴ","accent":"mid"}]}}`,
		"empty reading":   `{"id":"x","type":"engine:dict:load","data":{"語":[]}}`,
	}

	for name, payload := range testCases {
		t.Run(name, func(t *testing.T) {
			response := send(t, natsConnection, []byte(payload))
			assert.Equal(t, protocol.StatusError, response.Type)
			require.NotNil(t, response.ID)
			assert.Equal(t, "x", *response.ID)
		})
	}
}

func TestGatewaySynth_UnsupportedSpeakerSettles(t *testing.T) {
	t.Parallel()

	_, _, natsConnection := setupTest(t)

	testLogger, err := logger.New(t.TempDir(), "gateway-test.log")
	require.NoError(t, err)

	engineGateway, err := gateway.New(natsConnection, testSubject, testLogger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = engineGateway.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = engineGateway.Synth(ctx, protocol.SynthRequest{
		AnalyzedData: []model.KanaData{{Kana: "ア", Accent: model.AccentHigh, Lengths: []float64{1}}},
		SpeakerID:    model.SpeakerID("nobody"),
		Config:       model.DefaultSynthConfig(),
	})

	var engineErr *core.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.NoError(t, ctx.Err())
	assert.Contains(t, string(engineErr.Payload), worker.ErrUnsupportedSpeaker.Error())
	assert.Zero(t, engineGateway.Pending())
}
