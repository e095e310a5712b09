// Package core defines the interfaces shared by the editor and the engine worker.
package core

import (
	"context"

	"github.com/book-expert/tts-editor/internal/model"
)

// KVStore defines durable key to value byte storage.
// Get returns an error wrapping ErrNotFound when the key is absent; every
// other failure wraps ErrStorage.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// AssetFile is one dictionary file handed to the engine on init.
type AssetFile struct {
	Name string
	Data []byte
}

// ModelFiles are the machine learning models handed to the engine on init.
type ModelFiles struct {
	Duration []byte
	F0       []byte
	Volume   []byte
}

// SynthInput is everything the synthesizer needs for one segment.
type SynthInput struct {
	AnalyzedData []model.KanaData  `json:"analyzedData"`
	SpeakerID    model.SpeakerID   `json:"speakerId"`
	Config       model.SynthConfig `json:"config"`
}

// SynthOutput is raw mono float32 PCM.
type SynthOutput struct {
	SampleRate int
	Samples    []float32
}

// SpeechEngine defines the black-box text analysis and synthesis engine
// driven by the worker. Implementations are not safe for concurrent use.
type SpeechEngine interface {
	CheckBackend(ctx context.Context) (bool, error)
	Init(ctx context.Context, dict []AssetFile, models ModelFiles) error
	LoadUserDict(ctx context.Context, dict model.UserDict) error
	ClearUserDict(ctx context.Context) error
	Analyze(ctx context.Context, text string) ([]model.KanaData, error)
	Synthesize(ctx context.Context, input SynthInput) (SynthOutput, error)
}

// Alert is one user-facing report: human-readable lines plus the raw error.
type Alert struct {
	Lines []string
	Err   error
}

// Reporter receives user-facing reports. Implementations must be safe for
// concurrent use because saves complete on background goroutines.
type Reporter interface {
	Report(alert Alert)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(alert Alert)

// Report calls f(alert).
func (f ReporterFunc) Report(alert Alert) {
	f(alert)
}
