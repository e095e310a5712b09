package editor_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/book-expert/tts-editor/internal/model"
	"github.com/book-expert/tts-editor/internal/protocol"
)

var errMockEngine = errors.New("mock engine error")

// mockEngine records every call and answers with canned results.
type mockEngine struct {
	mu                  sync.Mutex
	calls               []string
	backendSupported    bool
	initShouldFail      bool
	synthShouldFail     bool
	loadedDicts         []model.UserDict
	synthesizedSpeakers []model.SpeakerID
}

func newMockEngine() *mockEngine {
	return &mockEngine{backendSupported: true}
}

func (m *mockEngine) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockEngine) CheckBackend(context.Context) (bool, error) {
	m.record("check")

	return m.backendSupported, nil
}

func (m *mockEngine) Init(context.Context) error {
	m.record("init")

	if m.initShouldFail {
		return &core.EngineError{Op: string(protocol.OpInit), Payload: []byte(`"no models"`)}
	}

	return nil
}

func (m *mockEngine) LoadDict(_ context.Context, dict model.UserDict) error {
	m.record("dict:load")

	m.mu.Lock()
	m.loadedDicts = append(m.loadedDicts, dict.Clone())
	m.mu.Unlock()

	return nil
}

func (m *mockEngine) ClearDict(context.Context) error {
	m.record("dict:clear")

	return nil
}

// Analyze returns one unit per character with lengths 1 and 3.
func (m *mockEngine) Analyze(_ context.Context, text string) ([]model.KanaData, error) {
	m.record("analyze")

	units := make([]model.KanaData, 0, len(text))
	for _, r := range text {
		units = append(units, model.KanaData{Kana: string(r), Accent: model.AccentLow, Lengths: []float64{1, 3}})
	}

	return units, nil
}

func (m *mockEngine) Synth(_ context.Context, request protocol.SynthRequest) (core.SynthOutput, error) {
	m.record("synth")

	m.mu.Lock()
	m.synthesizedSpeakers = append(m.synthesizedSpeakers, request.SpeakerID)
	fail := m.synthShouldFail
	m.mu.Unlock()

	if fail {
		return core.SynthOutput{}, &core.EngineError{Op: string(protocol.OpSynth), Payload: []byte(`"synth failed"`)}
	}

	return core.SynthOutput{SampleRate: 24000, Samples: make([]float32, 24)}, nil
}

func (m *mockEngine) count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, recorded := range m.calls {
		if recorded == call {
			n++
		}
	}

	return n
}

func (m *mockEngine) callLog() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return strings.Join(m.calls, ",")
}

// mockKVStore is an in-memory core.KVStore.
type mockKVStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{records: make(map[string][]byte)}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.records[key]
	if !ok {
		return nil, core.NotFoundf("record %s", key)
	}

	return value, nil
}

func (m *mockKVStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.records[key] = append([]byte{}, value...)
	m.mu.Unlock()

	return nil
}

func (m *mockKVStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.records, key)
	m.mu.Unlock()

	return nil
}

func (m *mockKVStore) Clear(context.Context) error {
	m.mu.Lock()
	m.records = make(map[string][]byte)
	m.mu.Unlock()

	return nil
}

func (m *mockKVStore) Keys(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.records))
	for key := range m.records {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

func (m *mockKVStore) Close() error {
	return nil
}

// mockObjectStore keeps uploads in memory.
type mockObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *mockObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, core.NotFoundf("object %s", key)
	}

	return data, nil
}

func (m *mockObjectStore) Upload(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return nil
}

func (m *mockObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()

	return nil
}

func (m *mockObjectStore) Clear(context.Context) error {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.mu.Unlock()

	return nil
}

// mockPublisher records published messages.
type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (m *mockPublisher) Publish(subject string, data []byte) error {
	m.mu.Lock()
	m.subjects = append(m.subjects, subject)
	m.payloads = append(m.payloads, data)
	m.mu.Unlock()

	return nil
}

// mockReporter counts alerts.
type mockReporter struct {
	mu     sync.Mutex
	alerts []core.Alert
}

func (r *mockReporter) Report(alert core.Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
}

func (r *mockReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.alerts)
}
