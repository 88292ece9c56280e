// Package timeline implements the time-to-pixel math of the timeline
// widget: clamped zoom, anchor-centered zoom changes, zoom-to-fit and
// snap-to-grid. All state here is transient view state.
package timeline

import "math"

const (
	MinZoom = 0.1
	MaxZoom = 10.0

	// ZoomStepFactor multiplies/divides the zoom on step in/out.
	ZoomStepFactor = 1.25

	// BasePixelsPerSecond is the horizontal scale at zoom 1.
	BasePixelsPerSecond = 100.0
)

// View is the zoom/scroll state of one timeline viewport.
type View struct {
	zoom            float64
	scrollLeftPx    float64
	viewportWidthPx float64

	snapEnabled     bool
	snapThresholdMs int64
}

func NewView(viewportWidthPx float64) *View {
	return &View{zoom: 1.0, viewportWidthPx: viewportWidthPx}
}

func (v *View) Zoom() float64         { return v.zoom }
func (v *View) ScrollLeftPx() float64 { return v.scrollLeftPx }

// SetViewportWidth updates the viewport size, e.g. on window resize.
func (v *View) SetViewportWidth(px float64) {
	if px > 0 {
		v.viewportWidthPx = px
	}
}

// MsToPixels converts a timeline position to a pixel offset at the current
// zoom.
func (v *View) MsToPixels(ms int64) float64 {
	return float64(ms) / 1000.0 * BasePixelsPerSecond * v.zoom
}

// PixelsToMs is the inverse of MsToPixels, rounded to the nearest ms.
func (v *View) PixelsToMs(px float64) int64 {
	return int64(math.Round(px / (BasePixelsPerSecond * v.zoom) * 1000.0))
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// SetZoom sets a clamped zoom level. When an anchor time is given, the
// scroll position is recomputed so the anchor's pixel position stays
// centered in the viewport.
func (v *View) SetZoom(zoom float64, anchorMs *int64) {
	v.zoom = clampZoom(zoom)
	if anchorMs == nil {
		return
	}
	scroll := v.MsToPixels(*anchorMs) - v.viewportWidthPx/2
	if scroll < 0 {
		scroll = 0
	}
	v.scrollLeftPx = scroll
}

// ZoomIn steps the zoom up by the fixed factor.
func (v *View) ZoomIn(anchorMs *int64) {
	v.SetZoom(v.zoom*ZoomStepFactor, anchorMs)
}

// ZoomOut steps the zoom down by the fixed factor.
func (v *View) ZoomOut(anchorMs *int64) {
	v.SetZoom(v.zoom/ZoomStepFactor, anchorMs)
}

// ZoomToFit computes the zoom making durationMs exactly fill the viewport,
// then clamps it, and resets the scroll to the start.
func (v *View) ZoomToFit(durationMs int64) {
	if durationMs <= 0 || v.viewportWidthPx <= 0 {
		return
	}
	v.zoom = clampZoom(v.viewportWidthPx / (float64(durationMs) / 1000.0 * BasePixelsPerSecond))
	v.scrollLeftPx = 0
}

// SetScroll sets the horizontal scroll offset, floored at zero.
func (v *View) SetScroll(px float64) {
	if px < 0 {
		px = 0
	}
	v.scrollLeftPx = px
}

// ConfigureSnap enables or disables snap-to-grid with the given threshold.
func (v *View) ConfigureSnap(enabled bool, thresholdMs int64) {
	v.snapEnabled = enabled
	v.snapThresholdMs = thresholdMs
}

// Snap rounds ms to the nearest grid line (half-up) when snapping is
// enabled; identity otherwise.
func (v *View) Snap(ms int64) int64 {
	if !v.snapEnabled || v.snapThresholdMs <= 0 {
		return ms
	}
	t := v.snapThresholdMs
	return (ms + t/2) / t * t
}
