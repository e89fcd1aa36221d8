package sprite

import "time"

// Clock is the playback state machine for a single sprite player: the
// current frame index, the running flag and the speed. It performs no
// timing of its own; Player drives Advance from a wall-clock ticker.
// Clock is not goroutine-safe; Player serializes access.
type Clock struct {
	geom    Geometry
	columns int
	frames  int
	fps     float64
	index   int
	running bool
}

// NewClock creates a stopped clock with no sheet loaded.
func NewClock(fps float64) *Clock {
	return &Clock{fps: fps}
}

// SetSheet installs freshly resolved geometry, stops playback and
// resets the index to the first frame. The caller must explicitly Play
// again to resume with the new sheet.
func (c *Clock) SetSheet(geom Geometry, columns, frameCount int) {
	c.geom = geom
	c.columns = columns
	c.frames = frameCount
	c.index = 0
	c.running = false
}

// Play enters the Running state. The index is not reset; playback
// resumes where it was paused.
func (c *Clock) Play() { c.running = true }

// Pause enters the Stopped state, freezing the index at its current value.
func (c *Clock) Pause() { c.running = false }

// Toggle flips between Running and Stopped and reports the new state.
func (c *Clock) Toggle() bool {
	c.running = !c.running
	return c.running
}

// Running reports whether the clock is in the Running state.
func (c *Clock) Running() bool { return c.running }

// Frame returns the current frame index.
func (c *Clock) Frame() int { return c.index }

// FrameCount returns the number of frames in the loaded sheet, or 0.
func (c *Clock) FrameCount() int { return c.frames }

// FPS returns the current playback speed.
func (c *Clock) FPS() float64 { return c.fps }

// SetFPS changes the playback speed. The frame index is untouched; a
// running Player restarts its ticker at the new period.
func (c *Clock) SetFPS(fps float64) { c.fps = fps }

// Period returns the tick interval derived from the speed, or 0 when
// the speed is not positive (the clock must not tick).
func (c *Clock) Period() time.Duration {
	if c.fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.fps)
}

// CanTick reports whether frame advancement is possible: a sheet is
// loaded, its geometry resolved, and the speed positive. A false
// result models "no sheet loaded yet", not an error.
func (c *Clock) CanTick() bool {
	return c.frames > 0 && c.fps > 0 && !c.geom.IsZero()
}

// Advance steps to the next frame with wraparound. It is a no-op when
// the clock is stopped or CanTick is false.
func (c *Clock) Advance() {
	if !c.running || !c.CanTick() {
		return
	}
	c.index = (c.index + 1) % c.frames
}

// Geometry returns the resolved frame geometry, zero when no sheet is
// loaded.
func (c *Clock) Geometry() Geometry { return c.geom }

// Columns returns the column count of the loaded sheet, or 0.
func (c *Clock) Columns() int { return c.columns }

// Offset returns the translation that reveals the current frame.
func (c *Clock) Offset() Offset {
	return OffsetFor(c.geom, c.columns, c.index)
}
