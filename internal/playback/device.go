package playback

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/book-expert/logger"
	"github.com/gen2brain/malgo"
)

const bytesPerFrame = 4

// DevicePlayer plays tracks on the default output device. The device is
// opened lazily and reopened when a track's sample rate differs.
type DevicePlayer struct {
	log *logger.Logger

	mu           sync.Mutex
	malgoContext *malgo.AllocatedContext
	device       *malgo.Device
	sampleRate   int
	samples      []float32
	position     int
	done         func()
}

// NewDevicePlayer initializes the audio backend.
func NewDevicePlayer(log *logger.Logger) (*DevicePlayer, error) {
	malgoContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	return &DevicePlayer{
		log:          log,
		malgoContext: malgoContext,
	}, nil
}

// Play starts track and calls done once it has been written out.
func (p *DevicePlayer) Play(track Track, done func()) error {
	samples, sampleRate, err := track.Samples()
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	err = p.ensureDevice(sampleRate)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.samples = samples
	p.position = 0
	p.done = done
	p.mu.Unlock()

	return nil
}

// FastForward ends the current track.
func (p *DevicePlayer) FastForward() {
	p.mu.Lock()
	p.position = len(p.samples)
	p.mu.Unlock()
}

func (p *DevicePlayer) ensureDevice(sampleRate int) error {
	p.mu.Lock()
	device := p.device
	current := p.sampleRate
	p.mu.Unlock()

	if device != nil && current == sampleRate {
		return nil
	}

	if device != nil {
		device.Uninit()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)

	var callbacks malgo.DeviceCallbacks
	callbacks.Data = p.fill

	newDevice, err := malgo.InitDevice(p.malgoContext.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	err = newDevice.Start()
	if err != nil {
		newDevice.Uninit()

		return fmt.Errorf("failed to start playback device: %w", err)
	}

	p.mu.Lock()
	p.device = newDevice
	p.sampleRate = sampleRate
	p.mu.Unlock()

	p.log.Info("Playback device opened at %d Hz", sampleRate)

	return nil
}

// fill is the device data callback. It writes the next frames and silence
// once the track is exhausted.
func (p *DevicePlayer) fill(pOutputSample, _ []byte, framecount uint32) {
	p.mu.Lock()

	for frame := range int(framecount) {
		offset := frame * bytesPerFrame
		if offset+bytesPerFrame > len(pOutputSample) {
			break
		}

		value := float32(0)
		if p.position < len(p.samples) {
			value = p.samples[p.position]
			p.position++
		}

		binary.LittleEndian.PutUint32(pOutputSample[offset:], math.Float32bits(value))
	}

	var done func()
	if p.done != nil && p.position >= len(p.samples) {
		done = p.done
		p.done = nil
	}

	p.mu.Unlock()

	if done != nil {
		go done()
	}
}

// Close releases the device and the audio backend.
func (p *DevicePlayer) Close() error {
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.mu.Unlock()

	if device != nil {
		device.Uninit()
	}

	if p.malgoContext != nil {
		err := p.malgoContext.Uninit()
		if err != nil {
			return fmt.Errorf("failed to uninitialize malgo context: %w", err)
		}

		p.malgoContext.Free()
		p.malgoContext = nil
	}

	return nil
}
