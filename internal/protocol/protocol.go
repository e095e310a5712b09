// Package protocol defines the JSON envelopes exchanged between the editor's
// engine gateway and the engine worker, and the payload of every operation.
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/book-expert/tts-editor/internal/model"
)

// DefaultRequestSubject is the subject the worker listens on.
const DefaultRequestSubject = "engine.request"

// Operation tags one kind of engine request.
type Operation string

// Engine operations.
const (
	OpCheckBackend Operation = "engine:backend:check"
	OpInit         Operation = "engine:init"
	OpLoadDict     Operation = "engine:dict:load"
	OpClearDict    Operation = "engine:dict:clear"
	OpAnalyze      Operation = "engine:analyze"
	OpSynth        Operation = "engine:synth"
)

// Operations lists every operation the worker accepts.
var Operations = []Operation{OpCheckBackend, OpInit, OpLoadDict, OpClearDict, OpAnalyze, OpSynth}

// Known reports whether op is an operation the worker accepts.
func (op Operation) Known() bool {
	for _, known := range Operations {
		if op == known {
			return true
		}
	}

	return false
}

// Status is the outcome of a response.
type Status string

// Response statuses.
const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

var (
	// ErrMalformedRequest indicates a request envelope that cannot be dispatched.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrMalformedResponse indicates a response envelope that cannot be settled.
	ErrMalformedResponse = errors.New("malformed response")
)

// Request is one engine call. ID correlates the response. Data is absent for
// operations without a payload, a JSON string for engine:analyze, a user
// dictionary for engine:dict:load and a SynthRequest for engine:synth.
type Request struct {
	ID   string          `json:"id"`
	Type Operation       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response settles the request with the same ID. A nil ID means the worker
// could not tell which request failed.
type Response struct {
	ID   *string         `json:"id"`
	Type Status          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SynthRequest carries everything needed to voice one segment.
type SynthRequest struct {
	AnalyzedData []model.KanaData  `json:"analyzedData"`
	SpeakerID    model.SpeakerID   `json:"speakerId"`
	Config       model.SynthConfig `json:"config"`
}

// SynthResult is mono PCM as little-endian float32 bytes, base64 encoded on
// the wire.
type SynthResult struct {
	SampleRate int    `json:"sampleRate"`
	PCM        []byte `json:"pcm"`
}

// NewSynthResult packs samples into a result.
func NewSynthResult(sampleRate int, samples []float32) SynthResult {
	pcm := make([]byte, len(samples)*4)
	for i, sample := range samples {
		binary.LittleEndian.PutUint32(pcm[i*4:], math.Float32bits(sample))
	}

	return SynthResult{SampleRate: sampleRate, PCM: pcm}
}

// Samples unpacks the PCM bytes.
func (r SynthResult) Samples() ([]float32, error) {
	if len(r.PCM)%4 != 0 {
		return nil, fmt.Errorf("%w: pcm length %d is not a multiple of 4", ErrMalformedResponse, len(r.PCM))
	}

	samples := make([]float32, len(r.PCM)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.PCM[i*4:]))
	}

	return samples, nil
}

// NewRequest marshals data into a request envelope.
func NewRequest(id string, op Operation, data any) (*Request, error) {
	request := &Request{ID: id, Type: op, Data: nil}

	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
		}

		request.Data = encoded
	}

	return request, nil
}

// ParseRequest decodes and checks a request envelope. The returned request is
// non-nil whenever the envelope was valid JSON, so the caller can still learn
// the id of a request whose type was rejected.
func ParseRequest(data []byte) (*Request, error) {
	var request Request

	err := json.Unmarshal(data, &request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRequest, err)
	}

	if request.ID == "" {
		return &request, fmt.Errorf("%w: missing id", ErrMalformedRequest)
	}

	if !request.Type.Known() {
		return &request, fmt.Errorf("%w: unknown type %q", ErrMalformedRequest, request.Type)
	}

	return &request, nil
}

// Decode unmarshals the request payload into target.
func (r *Request) Decode(target any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", ErrMalformedRequest, r.Type)
	}

	err := json.Unmarshal(r.Data, target)
	if err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrMalformedRequest, r.Type, err)
	}

	return nil
}

// Success builds a success response for id.
func Success(id string, data any) (*Response, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	return &Response{ID: &id, Type: StatusSuccess, Data: encoded}, nil
}

// Failure builds an error response. An empty id produces a null id.
func Failure(id string, err error) *Response {
	// json.Marshal of a string cannot fail.
	encoded, _ := json.Marshal(err.Error())

	response := &Response{ID: nil, Type: StatusError, Data: encoded}
	if id != "" {
		response.ID = &id
	}

	return response
}

// ParseResponse decodes a response envelope.
func ParseResponse(data []byte) (*Response, error) {
	var response Response

	err := json.Unmarshal(data, &response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if response.Type != StatusSuccess && response.Type != StatusError {
		return &response, fmt.Errorf("%w: unknown type %q", ErrMalformedResponse, response.Type)
	}

	return &response, nil
}
