// Package player drives a playback cursor from one of three mutually
// exclusive sources: a free-running wall clock, an externally owned audio
// clock, or direct scrub input.
//
// The failure mode this package exists to prevent is two clock sources
// racing to set the cursor: every transition stops the previous source
// before the next one takes over, and a generation counter drops ticks
// from a superseded clock that were already in flight. The free-running
// clock self-terminates when the cursor reaches the duration.
//
// Frames are delivered through a caller-supplied callback; the player never
// touches the rendering surface itself.
//
// Typical usage:
//
//	p := player.New(ren.DurationMs(), func(cursorMs float64) {
//		frame := ren.RenderAt(cursorMs, w, h)
//		// hand frame to the display
//	})
//	p.Play(ctx)        // free-running replay
//	p.Seek(1500)       // scrub: immediate single frame
//	p.SyncAudio(t)     // follow an external audio element
package player

import (
	"context"
	"math"
	"sync"
	"time"
)

// Mode identifies the active cursor source.
type Mode int

const (
	ModeIdle Mode = iota
	ModeFree
	ModeAudio
	ModeScrub
)

func (m Mode) String() string {
	switch m {
	case ModeFree:
		return "free"
	case ModeAudio:
		return "audio"
	case ModeScrub:
		return "scrub"
	default:
		return "idle"
	}
}

// Option customises a Player.
type Option func(*Player)

// WithFrameInterval sets the free-running tick interval (default: 33ms,
// roughly 30 frames per second).
func WithFrameInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithAudioOffset sets the signed ink-to-audio offset in milliseconds
// applied in audio-synced mode. Positive means ink lags audio start.
func WithAudioOffset(ms float64) Option {
	return func(p *Player) { p.offset = ms }
}

// Player owns the playback cursor for one recording.
type Player struct {
	duration float64
	interval time.Duration
	offset   float64
	onFrame  func(cursorMs float64)

	mu     sync.Mutex
	mode   Mode
	cursor float64
	gen    uint64 // bumped on every source transition; stale ticks drop out
	cancel context.CancelFunc
}

// New creates a Player for a recording of the given duration. onFrame is
// invoked with the clamped cursor on every tick, seek, and audio update;
// it must be safe to call from the player's tick goroutine.
func New(durationMs float64, onFrame func(cursorMs float64), opts ...Option) *Player {
	p := &Player{
		duration: math.Max(0, durationMs),
		interval: 33 * time.Millisecond,
		onFrame:  onFrame,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Play switches to the free-running clock, resuming from the current
// cursor (or from the start if playback had finished). Any previously
// active source is stopped first.
func (p *Player) Play(ctx context.Context) {
	p.mu.Lock()
	p.stopLocked()
	if p.duration <= 0 {
		p.mode = ModeIdle
		p.mu.Unlock()
		return
	}
	if p.cursor >= p.duration {
		p.cursor = 0
	}
	p.mode = ModeFree
	gen := p.gen
	base := p.cursor
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	interval := p.interval
	p.mu.Unlock()

	go p.runFree(ctx, gen, base, time.Now(), interval)
}

func (p *Player) runFree(ctx context.Context, gen uint64, base float64, start time.Time, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			cursor := base + float64(now.Sub(start))/float64(time.Millisecond)
			finished := cursor >= p.duration
			if finished {
				cursor = p.duration
			}
			if !p.advance(gen, cursor) {
				return // superseded by another source
			}
			if finished {
				p.finish(gen)
				return
			}
		}
	}
}

// advance publishes a tick from the free-running clock unless that clock
// has been superseded.
func (p *Player) advance(gen uint64, cursor float64) bool {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return false
	}
	p.cursor = cursor
	cb := p.onFrame
	p.mu.Unlock()

	if cb != nil {
		cb(cursor)
	}
	return true
}

// finish ends natural playback at the duration boundary.
func (p *Player) finish(gen uint64) {
	p.mu.Lock()
	if gen == p.gen {
		p.mode = ModeIdle
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
	}
	p.mu.Unlock()
}

// Pause stops the active clock source, keeping the cursor where it is.
func (p *Player) Pause() {
	p.mu.Lock()
	p.stopLocked()
	p.mode = ModeIdle
	p.mu.Unlock()
}

// Stop stops the active clock source and rewinds to the start.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mode = ModeIdle
	p.cursor = 0
	p.mu.Unlock()
}

// Seek is the scrub source: the cursor is set directly and one frame is
// emitted immediately, no debounce, so the display always matches the
// slider position. Any running clock is stopped first.
func (p *Player) Seek(ms float64) {
	p.mu.Lock()
	p.stopLocked()
	p.mode = ModeScrub
	p.cursor = clamp(ms, 0, p.duration)
	cursor := p.cursor
	cb := p.onFrame
	p.mu.Unlock()

	if cb != nil {
		cb(cursor)
	}
}

// SyncAudio forwards a reading of the external audio clock. The player does
// no ticking of its own in this mode — the audio element's periodic updates
// are the beat. The configured audio offset is applied here.
func (p *Player) SyncAudio(audioMs float64) {
	p.mu.Lock()
	if p.mode != ModeAudio {
		p.stopLocked()
		p.mode = ModeAudio
	}
	p.cursor = clamp(audioMs+p.offset, 0, p.duration)
	cursor := p.cursor
	cb := p.onFrame
	p.mu.Unlock()

	if cb != nil {
		cb(cursor)
	}
}

// stopLocked cancels the running clock source, if any, and invalidates its
// in-flight ticks. Callers hold p.mu.
func (p *Player) stopLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Cursor returns the current playback position in milliseconds.
func (p *Player) Cursor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Mode returns the active cursor source.
func (p *Player) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// DurationMs returns the playback duration.
func (p *Player) DurationMs() float64 {
	return p.duration
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
