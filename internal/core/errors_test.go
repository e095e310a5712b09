package core_test

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/book-expert/tts-editor/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestEngineError_StringPayload(t *testing.T) {
	t.Parallel()

	err := &core.EngineError{Op: "engine:synth", Payload: json.RawMessage(`"model missing"`)}

	assert.Equal(t, "engine engine:synth failed: model missing", err.Error())
}

func TestEngineError_ObjectPayload(t *testing.T) {
	t.Parallel()

	err := &core.EngineError{Op: "engine:init", Payload: json.RawMessage(`{"code":3}`)}

	assert.Equal(t, `engine engine:init failed: {"code":3}`, err.Error())
}

func TestStorageErrorf_WrapsBoth(t *testing.T) {
	t.Parallel()

	err := core.StorageErrorf(io.ErrUnexpectedEOF, "failed to read key %q", "settings")

	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, errors.Is(err, core.ErrNotFound))
}

func TestNotFoundf(t *testing.T) {
	t.Parallel()

	err := core.NotFoundf("segment %s", "abc")

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, err.Error(), "segment abc")
}
