package playback

import (
	"fmt"
	"sync"
	"time"
)

// NullPlayer discards audio but keeps real track timing. It stands in for
// the device on machines without audio output.
type NullPlayer struct {
	mu    sync.Mutex
	timer *time.Timer
	done  func()
}

// NewNullPlayer returns a silent player.
func NewNullPlayer() *NullPlayer {
	return &NullPlayer{}
}

// Play calls done after the track's duration.
func (p *NullPlayer) Play(track Track, done func()) error {
	samples, sampleRate, err := track.Samples()
	if err != nil {
		return fmt.Errorf("failed to load track: %w", err)
	}

	duration := time.Duration(0)
	if sampleRate > 0 {
		duration = time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	}

	p.mu.Lock()
	p.done = done
	p.timer = time.AfterFunc(duration, p.finish)
	p.mu.Unlock()

	return nil
}

// FastForward ends the current track now.
func (p *NullPlayer) FastForward() {
	p.mu.Lock()
	timer := p.timer
	p.mu.Unlock()

	if timer != nil && timer.Stop() {
		go p.finish()
	}
}

func (p *NullPlayer) finish() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.timer = nil
	p.mu.Unlock()

	if done != nil {
		done()
	}
}
