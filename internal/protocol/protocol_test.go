package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/book-expert/tts-editor/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		wantErr bool
		wantID  string
	}{
		{name: "valid", input: `{"id":"a","type":"engine:analyze","data":"x"}`, wantID: "a"},
		{name: "no data", input: `{"id":"b","type":"engine:dict:clear"}`, wantID: "b"},
		{name: "unknown type", input: `{"id":"c","type":"engine:explode"}`, wantErr: true, wantID: "c"},
		{name: "missing id", input: `{"type":"engine:init"}`, wantErr: true},
		{name: "not json", input: `{{`, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			request, err := protocol.ParseRequest([]byte(testCase.input))
			if testCase.wantErr {
				require.ErrorIs(t, err, protocol.ErrMalformedRequest)
			} else {
				require.NoError(t, err)
			}

			if testCase.wantID != "" {
				require.NotNil(t, request)
				assert.Equal(t, testCase.wantID, request.ID)
			}
		})
	}
}

func TestRequest_Decode(t *testing.T) {
	t.Parallel()

	request, err := protocol.NewRequest("id", protocol.OpAnalyze, "hello")
	require.NoError(t, err)

	var payload string
	require.NoError(t, request.Decode(&payload))
	assert.Equal(t, "hello", payload)

	empty, err := protocol.NewRequest("id", protocol.OpAnalyze, nil)
	require.NoError(t, err)
	require.ErrorIs(t, empty.Decode(&payload), protocol.ErrMalformedRequest)
}

func TestFailure_NullID(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(protocol.Failure("", errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"type":"error","data":"boom"}`, string(encoded))

	encoded, err = json.Marshal(protocol.Failure("x", errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","type":"error","data":"boom"}`, string(encoded))
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	response, err := protocol.ParseResponse([]byte(`{"id":"x","type":"success","data":true}`))
	require.NoError(t, err)
	require.NotNil(t, response.ID)
	assert.Equal(t, "x", *response.ID)

	_, err = protocol.ParseResponse([]byte(`{"id":"x","type":"pending"}`))
	require.ErrorIs(t, err, protocol.ErrMalformedResponse)
}

func TestSynthResult_Samples(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -1, 0.25}
	result := protocol.NewSynthResult(24000, samples)
	assert.Len(t, result.PCM, 16)

	encoded, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded protocol.SynthResult
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	got, err := decoded.Samples()
	require.NoError(t, err)
	assert.Equal(t, samples, got)
	assert.Equal(t, 24000, decoded.SampleRate)

	_, err = protocol.SynthResult{SampleRate: 1, PCM: []byte{1, 2, 3}}.Samples()
	require.ErrorIs(t, err, protocol.ErrMalformedResponse)
}
