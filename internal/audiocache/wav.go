package audiocache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	wavHeaderSize   = 44
	formatIEEEFloat = 3
	bitsPerSample   = 32
	bytesPerSample  = bitsPerSample / 8
	monoChannels    = 1
)

// ErrInvalidWAV indicates a file that is not a mono float32 WAV.
var ErrInvalidWAV = errors.New("invalid wav data")

// EncodeWAV writes samples as a mono IEEE float32 WAV stream.
func EncodeWAV(w io.Writer, sampleRate int, samples []float32) error {
	dataSize := uint32(len(samples) * bytesPerSample)

	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(wavHeaderSize - 8 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(formatIEEEFloat),
		uint16(monoChannels),
		uint32(sampleRate),
		uint32(sampleRate * monoChannels * bytesPerSample),
		uint16(monoChannels * bytesPerSample),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		dataSize,
	}

	for _, field := range header {
		err := binary.Write(w, binary.LittleEndian, field)
		if err != nil {
			return fmt.Errorf("failed to write wav header: %w", err)
		}
	}

	err := binary.Write(w, binary.LittleEndian, samples)
	if err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}

	return nil
}

// DecodeWAV reads a stream written by EncodeWAV.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < wavHeaderSize ||
		!bytes.Equal(data[0:4], []byte("RIFF")) ||
		!bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])

	if format != formatIEEEFloat || channels != monoChannels || bits != bitsPerSample {
		return nil, 0, fmt.Errorf("%w: format %d, %d channels, %d bits", ErrInvalidWAV, format, channels, bits)
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if dataSize > len(data)-wavHeaderSize || dataSize%bytesPerSample != 0 {
		return nil, 0, fmt.Errorf("%w: bad data size %d", ErrInvalidWAV, dataSize)
	}

	samples := make([]float32, dataSize/bytesPerSample)
	for i := range samples {
		offset := wavHeaderSize + i*bytesPerSample
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
	}

	return samples, int(sampleRate), nil
}
