// Package replay renders deterministic playback frames from a merged ink
// event stream.
//
// A Renderer is a pure function of its inputs: rendering the same
// (events, cursor, display size) triple always produces the same pixels.
// Every frame starts from a cleared surface and replays events up to the
// cursor — full segments whose reveal time has passed, plus one linearly
// interpolated partial segment at the boundary. Erasing is destructive
// (destination-out): it removes pixels, including ink from strokes drawn
// earlier in the same frame.
//
// Typical usage:
//
//	ren := replay.New(capture, timeline.Build(capture.Strokes, timeline.Options{}))
//	img := ren.RenderAt(cursorMs, 800, 600)
//	png, _ := replay.EncodePNG(img)
package replay

import (
	"image"
	"sort"

	"github.com/hazyhaar/inkplay/ink"
	"github.com/hazyhaar/inkplay/timeline"
)

// Renderer replays a merged event stream onto fresh raster frames. It owns
// its event list as an immutable value; construct a new Renderer when the
// underlying payload changes.
type Renderer struct {
	events     []timeline.Event
	duration   float64
	capW, capH float64
}

// New builds a Renderer for the given capture and timeline. The event list
// is merged once here; RenderAt only reads it.
func New(capture *ink.Capture, tl *timeline.Timeline) *Renderer {
	return &Renderer{
		events:   tl.Events(),
		duration: tl.DurationMs(),
		capW:     capture.Width,
		capH:     capture.Height,
	}
}

// DurationMs returns the playback duration; the valid cursor domain is
// [0, DurationMs].
func (r *Renderer) DurationMs() float64 {
	return r.duration
}

// EventCount returns the number of merged events.
func (r *Renderer) EventCount() int {
	return len(r.events)
}

// RenderAt paints the frame visible at cursorMs into a fresh w×h RGBA
// image. Callers clamp cursorMs into [0, DurationMs] beforehand; cursor 0
// renders nothing, cursor >= DurationMs renders everything.
func (r *Renderer) RenderAt(cursorMs float64, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 || len(r.events) == 0 {
		return img
	}
	sx, sy := r.scale(w, h)

	// Events are sorted by reveal time; cut is the first not yet revealed.
	cut := sort.Search(len(r.events), func(i int) bool {
		return r.events[i].T1 > cursorMs
	})
	for i := 0; i < cut; i++ {
		ev := &r.events[i]
		paintEvent(img, ev, ev.X1, ev.Y1, sx, sy)
	}

	// The first unrevealed event is the only partial one: interpolate its
	// endpoint from its own start time.
	if cut < len(r.events) {
		ev := &r.events[cut]
		if frac := partialFraction(ev, cursorMs); frac > 0 {
			x := ev.X0 + (ev.X1-ev.X0)*frac
			y := ev.Y0 + (ev.Y1-ev.Y0)*frac
			paintEvent(img, ev, x, y, sx, sy)
		}
	}
	return img
}

// RenderStatic paints the complete drawing, equivalent to RenderAt at or
// past the duration.
func (r *Renderer) RenderStatic(w, h int) *image.RGBA {
	return r.RenderAt(r.duration, w, h)
}

func (r *Renderer) scale(w, h int) (sx, sy float64) {
	sx, sy = 1, 1
	if r.capW > 0 {
		sx = float64(w) / r.capW
	}
	if r.capH > 0 {
		sy = float64(h) / r.capH
	}
	return sx, sy
}

func partialFraction(ev *timeline.Event, cursorMs float64) float64 {
	if cursorMs <= ev.T0 {
		return 0
	}
	if ev.T1 <= ev.T0 {
		// zero-length in time and cursor is past the start
		return 1
	}
	f := (cursorMs - ev.T0) / (ev.T1 - ev.T0)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
