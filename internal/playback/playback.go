// Package playback implements the transport state machine that drives what
// the user sees while editing: play/pause/stop, clamped current time, loop
// region wrapping, and current-segment resolution.
package playback

import "github.com/okoshkin/dubedit/internal/models"

// State is the transport state.
type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
	Paused  State = "paused"
)

// Controller holds transient playback state for the open project. It never
// mutates segments; it only observes the collection handed to it.
//
// Single-writer: the active view drives it from one goroutine.
type Controller struct {
	state         State
	currentTimeMs int64
	durationMs    int64

	loopEnabled bool
	loopStartMs int64
	loopEndMs   int64

	segments         []models.Segment
	currentSegmentID string

	// onSegmentChange fires only when the resolved segment id actually
	// changes. Suppressing same-id updates is load-bearing: it prevents
	// feedback loops with a reactive audio element re-evaluating on every
	// time tick.
	onSegmentChange func(id string)
}

func NewController() *Controller {
	return &Controller{state: Stopped}
}

// OnSegmentChange registers the current-segment listener. The id is empty
// when no segment contains the current time.
func (c *Controller) OnSegmentChange(fn func(id string)) {
	c.onSegmentChange = fn
}

// SetSegments replaces the observed collection and re-resolves the current
// segment.
func (c *Controller) SetSegments(segs []models.Segment) {
	c.segments = segs
	c.resolveSegment()
}

// SetDuration sets the media duration and re-clamps the current time.
func (c *Controller) SetDuration(ms int64) {
	if ms < 0 {
		ms = 0
	}
	c.durationMs = ms
	c.SetCurrentTime(c.currentTimeMs)
}

func (c *Controller) State() State { return c.state }

func (c *Controller) CurrentTimeMs() int64 { return c.currentTimeMs }

func (c *Controller) DurationMs() int64 { return c.durationMs }

func (c *Controller) CurrentSegmentID() string { return c.currentSegmentID }

// Play starts or resumes playback; it does not touch the current time.
func (c *Controller) Play() { c.state = Playing }

// Pause suspends playback, keeping the current time.
func (c *Controller) Pause() {
	if c.state == Playing {
		c.state = Paused
	}
}

// Stop halts playback and resets the current time to zero.
func (c *Controller) Stop() {
	c.state = Stopped
	c.SetCurrentTime(0)
}

// Toggle flips playing and paused. A stopped transport stays stopped.
func (c *Controller) Toggle() {
	switch c.state {
	case Playing:
		c.state = Paused
	case Paused:
		c.state = Playing
	}
}

// SetLoop configures the loop region. A region with end <= start disables
// looping.
func (c *Controller) SetLoop(startMs, endMs int64) {
	if endMs <= startMs {
		c.loopEnabled = false
		return
	}
	c.loopStartMs = startMs
	c.loopEndMs = endMs
}

// EnableLoop toggles loop wrapping without touching the region bounds.
func (c *Controller) EnableLoop(on bool) { c.loopEnabled = on }

// SetCurrentTime clamps ms into [0, duration], applies loop wrapping, and
// re-resolves the current segment. Wrapping happens only while playing and
// only at or past the loop end; time strictly inside the region never
// snaps.
func (c *Controller) SetCurrentTime(ms int64) {
	if ms < 0 {
		ms = 0
	}
	if c.durationMs > 0 && ms > c.durationMs {
		ms = c.durationMs
	}

	if c.loopEnabled && c.state == Playing && c.loopEndMs > c.loopStartMs && ms >= c.loopEndMs {
		ms = c.loopStartMs
	}

	c.currentTimeMs = ms
	c.resolveSegment()
}

// Seek is SetCurrentTime for user-initiated jumps.
func (c *Controller) Seek(ms int64) { c.SetCurrentTime(ms) }

// SegmentAt returns the segment whose [start, end) half-open range
// contains ms; an end boundary belongs to the next segment.
func (c *Controller) SegmentAt(ms int64) (models.Segment, bool) {
	for i := range c.segments {
		if ms >= c.segments[i].StartTimeMs && ms < c.segments[i].EndTimeMs {
			return c.segments[i], true
		}
	}
	return models.Segment{}, false
}

func (c *Controller) resolveSegment() {
	id := ""
	if seg, ok := c.SegmentAt(c.currentTimeMs); ok {
		id = seg.ID
	}
	if id == c.currentSegmentID {
		return
	}
	c.currentSegmentID = id
	if c.onSegmentChange != nil {
		c.onSegmentChange(id)
	}
}
