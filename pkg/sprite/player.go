package sprite

import (
	"sync"
	"time"
)

// Player owns the wall-clock timer that drives a Clock. Each player
// instance owns its timer and state independently; nothing is shared
// across players.
//
// The ticker goroutine is acquired on Play and released on Pause,
// Close, or a new Load, with the stop path blocking until the
// goroutine has exited. Loads bump a generation counter that every
// armed tick checks, so a tick from a previous sheet's timer can never
// advance the new one.
type Player struct {
	mu      sync.Mutex
	clock   *Clock
	loadGen int

	timerStop    chan struct{}
	timerStopped chan struct{}

	offsets chan Offset
}

// NewPlayer creates a player with no sheet loaded.
func NewPlayer(fps float64) *Player {
	return &Player{
		clock:   NewClock(fps),
		offsets: make(chan Offset, 1),
	}
}

// Offsets returns the channel on which the player publishes the render
// offset after every tick and every externally driven state change.
// The channel holds only the latest value; slow consumers see the most
// recent offset, never a backlog.
func (p *Player) Offsets() <-chan Offset { return p.offsets }

// Load installs freshly resolved sheet geometry. Any outstanding timer
// is cancelled first so no tick fires against the previous geometry,
// then the clock resets to frame 0 stopped. Playback resumes only on
// an explicit Play.
func (p *Player) Load(geom Geometry, columns, frameCount int) {
	p.stopTimer()

	p.mu.Lock()
	p.loadGen++
	p.clock.SetSheet(geom, columns, frameCount)
	off := p.clock.Offset()
	p.mu.Unlock()

	p.publish(off)
}

// Play enters the Running state and arms the ticker. It is a no-op if
// already running or if no playable sheet is loaded.
func (p *Player) Play() {
	p.mu.Lock()
	if p.clock.Running() || !p.clock.CanTick() {
		p.mu.Unlock()
		return
	}
	p.clock.Play()
	gen := p.loadGen
	period := p.clock.Period()
	off := p.clock.Offset()
	p.mu.Unlock()

	p.publish(off)
	p.startTimer(gen, period)
}

// Pause freezes the index at its current value and releases the timer.
func (p *Player) Pause() {
	p.mu.Lock()
	p.clock.Pause()
	off := p.clock.Offset()
	p.mu.Unlock()

	p.publish(off)
	p.stopTimer()
}

// Toggle flips between playing and paused and reports the new state.
func (p *Player) Toggle() bool {
	p.mu.Lock()
	running := p.clock.Running()
	p.mu.Unlock()

	if running {
		p.Pause()
		return false
	}
	p.Play()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Running()
}

// SetFPS changes the playback speed. While running, the timer restarts
// at the new period without altering the current frame index.
func (p *Player) SetFPS(fps float64) {
	p.stopTimer()

	p.mu.Lock()
	p.clock.SetFPS(fps)
	running := p.clock.Running() && p.clock.CanTick()
	gen := p.loadGen
	period := p.clock.Period()
	p.mu.Unlock()

	if running {
		p.startTimer(gen, period)
	}
}

// Close releases the timer. It is idempotent and safe to call on every
// teardown path; the offsets channel stays open so pending readers
// never panic.
func (p *Player) Close() {
	p.mu.Lock()
	p.clock.Pause()
	p.mu.Unlock()
	p.stopTimer()
}

// Frame returns the current frame index.
func (p *Player) Frame() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Frame()
}

// FrameCount returns the number of frames in the loaded sheet, or 0.
func (p *Player) FrameCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.FrameCount()
}

// FPS returns the current playback speed.
func (p *Player) FPS() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.FPS()
}

// Running reports whether the player is advancing frames.
func (p *Player) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Running()
}

// Offset returns the translation that reveals the current frame.
func (p *Player) Offset() Offset {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock.Offset()
}

// startTimer spawns the ticker goroutine for the given load generation.
func (p *Player) startTimer(gen int, period time.Duration) {
	if period <= 0 {
		return
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})

	p.mu.Lock()
	p.timerStop = stop
	p.timerStopped = stopped
	p.mu.Unlock()

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !p.tick(gen) {
					return
				}
			}
		}
	}()
}

// tick advances the clock once and publishes the new offset. It
// reports false when the timer belongs to a stale load or the clock
// has stopped, telling the goroutine to exit.
func (p *Player) tick(gen int) bool {
	p.mu.Lock()
	if gen != p.loadGen || !p.clock.Running() {
		p.mu.Unlock()
		return false
	}
	p.clock.Advance()
	off := p.clock.Offset()
	p.mu.Unlock()

	p.publish(off)
	return true
}

// stopTimer cancels the ticker goroutine, if any, and waits for it to
// exit. Safe to call when no timer is armed.
func (p *Player) stopTimer() {
	p.mu.Lock()
	stop := p.timerStop
	stopped := p.timerStopped
	p.timerStop = nil
	p.timerStopped = nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// publish replaces the buffered offset with the latest value.
func (p *Player) publish(off Offset) {
	for {
		select {
		case p.offsets <- off:
			return
		default:
			select {
			case <-p.offsets:
			default:
			}
		}
	}
}
