// Package playback plays synthesized segments one after another with a short
// pause between items. A prioritized item replaces everything pending and cuts
// the current item short.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/book-expert/logger"
)

// DefaultItemDelay is the pause before each item starts.
const DefaultItemDelay = 500 * time.Millisecond

// Track is playable mono float32 audio.
type Track interface {
	Samples() ([]float32, int, error)
}

// Player is the audio sink. Play starts track and must call done exactly once
// when the track ends, either naturally or after FastForward. done may be
// called from any goroutine.
type Player interface {
	Play(track Track, done func()) error
	FastForward()
}

// State is the queue's playback state.
type State int

// Queue states.
const (
	StateIdle State = iota
	// StateWaiting means an item is pending and the inter-item delay is running.
	StateWaiting
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Queue orders tracks for sequential playback. It is safe for concurrent use.
type Queue struct {
	player Player
	delay  time.Duration
	log    *logger.Logger

	mu         sync.Mutex
	pending    []Track
	current    Track
	state      State
	timer      *time.Timer
	generation uint64
	idle       chan struct{}
	closed     bool
	onStart    func(Track)

	// starting is set while player.Play runs. A fast-forward requested in
	// that window is held in skipRequested and applied once Play returns.
	starting      bool
	skipRequested bool
}

// NewQueue returns an idle queue playing through player.
func NewQueue(player Player, delay time.Duration, log *logger.Logger) *Queue {
	idle := make(chan struct{})
	close(idle)

	return &Queue{
		player:  player,
		delay:   delay,
		log:     log,
		pending: nil,
		state:   StateIdle,
		idle:    idle,
	}
}

// OnStart registers a callback invoked whenever a track starts playing.
func (q *Queue) OnStart(callback func(Track)) {
	q.mu.Lock()
	q.onStart = callback
	q.mu.Unlock()
}

// Enqueue adds track. A prioritized track replaces every pending track and
// fast-forwards the one playing, so it is the next thing heard.
func (q *Queue) Enqueue(track Track, prioritize bool) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return
	}

	fastForward := false

	if prioritize {
		q.pending = []Track{track}

		if q.state == StatePlaying {
			fastForward = !q.starting
			q.skipRequested = q.starting
		}
	} else {
		q.pending = append(q.pending, track)
	}

	if q.state == StateIdle {
		q.idle = make(chan struct{})
		q.scheduleNextLocked()
	}

	q.mu.Unlock()

	if fastForward {
		q.player.FastForward()
	}
}

// scheduleNextLocked arms the delay timer for the head of the queue, or goes
// idle when nothing is pending.
func (q *Queue) scheduleNextLocked() {
	if len(q.pending) == 0 {
		q.state = StateIdle
		q.current = nil
		close(q.idle)

		return
	}

	q.state = StateWaiting
	q.timer = time.AfterFunc(q.delay, q.startNext)
}

func (q *Queue) startNext() {
	q.mu.Lock()

	if q.closed || q.state != StateWaiting {
		q.mu.Unlock()

		return
	}

	if len(q.pending) == 0 {
		q.scheduleNextLocked()
		q.mu.Unlock()

		return
	}

	track := q.pending[0]
	q.pending = q.pending[1:]
	q.current = track
	q.state = StatePlaying
	q.generation++
	q.starting = true
	q.skipRequested = false
	generation := q.generation
	onStart := q.onStart

	q.mu.Unlock()

	if onStart != nil {
		onStart(track)
	}

	err := q.player.Play(track, func() { q.finished(generation) })

	q.mu.Lock()
	q.starting = false
	skip := q.skipRequested || q.closed
	q.skipRequested = false
	q.mu.Unlock()

	if err != nil {
		q.log.Error("Failed to play track: %v", err)
		q.finished(generation)

		return
	}

	if skip {
		q.player.FastForward()
	}
}

func (q *Queue) finished(generation uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || generation != q.generation || q.state != StatePlaying {
		return
	}

	q.current = nil
	q.scheduleNextLocked()
}

// State returns the current playback state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.state
}

// Pending returns the number of tracks waiting to play.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Current returns the playing track, or nil.
func (q *Queue) Current() Track {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.current
}

// WaitIdle blocks until nothing is playing or pending.
func (q *Queue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to wait for playback: %w", ctx.Err())
	}
}

// Close drops every pending track and stops the current one. Later
// enqueues are ignored.
func (q *Queue) Close() {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()

		return
	}

	q.closed = true
	playing := q.state == StatePlaying && !q.starting

	if q.timer != nil {
		q.timer.Stop()
	}

	q.pending = nil
	q.current = nil
	q.generation++

	if q.state != StateIdle {
		q.state = StateIdle
		close(q.idle)
	}

	q.mu.Unlock()

	if playing {
		q.player.FastForward()
	}
}
