// Package timeline converts canonical ink strokes into a time-stamped
// sequence of draw segments and flattens them into one globally ordered
// event stream for playback.
//
// Two pacing paths exist. When at least one point of the capture carries a
// real timestamp, declared times are used, coerced monotonically forward
// within each stroke and forward-filled where individual points lack one.
// When no point carries a timestamp at all, a deterministic "replay in
// authoring order" timeline is synthesized: a fixed increment per segment
// and a larger gap between strokes. Either way the earliest segment start
// is shifted to zero, so the playback cursor domain is [0, DurationMs].
//
// Typical usage:
//
//	tl := timeline.Build(capture.Strokes, timeline.Options{})
//	events := tl.Events()
//	// paint events with t1 <= cursor, interpolate the one at the boundary
package timeline

import (
	"math"

	"github.com/hazyhaar/inkplay/ink"
)

// Segment is the line between two consecutive points of one stroke, placed
// on the normalized timeline. T0 <= T1 always; T1 is the reveal time (the
// pen reaches the endpoint).
type Segment struct {
	X0    float64  `json:"x0"`
	Y0    float64  `json:"y0"`
	X1    float64  `json:"x1"`
	Y1    float64  `json:"y1"`
	Color string   `json:"color"`
	Size  float64  `json:"size"`
	Tool  ink.Tool `json:"tool"`
	T0    float64  `json:"t0"`
	T1    float64  `json:"t1"`
}

// Options tunes the synthetic pacing. The exact constants are tunables, not
// a correctness requirement; only determinism is.
type Options struct {
	// StepMs advances the clock per segment when a point lacks a timestamp
	// (default: 10).
	StepMs float64

	// GapMs advances the clock between strokes on the fully synthetic path
	// (default: 150).
	GapMs float64
}

func (o *Options) defaults() {
	if o.StepMs <= 0 {
		o.StepMs = 10
	}
	if o.GapMs <= 0 {
		o.GapMs = 150
	}
}

// Timeline is the immutable result of Build. It is a pure value: building
// twice from the same strokes yields an identical timeline.
type Timeline struct {
	segments    []Segment
	duration    float64
	timestamped bool
}

// Build derives the segment timeline from normalized strokes. Strokes with
// fewer than two points contribute nothing; an empty input yields a timeline
// with DurationMs 0 and no segments.
func Build(strokes []ink.Stroke, opts Options) *Timeline {
	opts.defaults()

	timestamped := false
	for _, s := range strokes {
		for _, p := range s.Points {
			if p.HasT {
				timestamped = true
				break
			}
		}
		if timestamped {
			break
		}
	}

	var segs []Segment
	if timestamped {
		segs = buildTimestamped(strokes, opts.StepMs)
	} else {
		segs = buildSynthetic(strokes, opts)
	}

	tl := &Timeline{segments: segs, timestamped: timestamped}
	if len(segs) == 0 {
		return tl
	}

	// Normalize: earliest segment start becomes 0, relative spacing kept.
	min := segs[0].T0
	for _, s := range segs[1:] {
		if s.T0 < min {
			min = s.T0
		}
	}
	for i := range segs {
		segs[i].T0 -= min
		segs[i].T1 -= min
		if segs[i].T1 > tl.duration {
			tl.duration = segs[i].T1
		}
	}
	return tl
}

// buildTimestamped walks each stroke's point pairs using declared times.
// A point's effective time is max(0, declared) when present, else the
// previous effective time plus stepMs — forward-filling avoids zero-duration
// holes when only some points in a stroke carry timestamps. Out-of-order
// declared times are coerced forward so the stroke stays monotonic.
func buildTimestamped(strokes []ink.Stroke, stepMs float64) []Segment {
	var segs []Segment
	for _, s := range strokes {
		if len(s.Points) < 2 {
			continue
		}
		prev := effectiveTime(s.Points[0], 0, stepMs, true)
		prevPt := s.Points[0]
		for _, p := range s.Points[1:] {
			eff := effectiveTime(p, prev, stepMs, false)
			segs = append(segs, Segment{
				X0: prevPt.X, Y0: prevPt.Y, X1: p.X, Y1: p.Y,
				Color: s.Color, Size: s.Size, Tool: s.Tool,
				T0: prev, T1: eff,
			})
			prev = eff
			prevPt = p
		}
	}
	return segs
}

func effectiveTime(p ink.Point, prev, stepMs float64, first bool) float64 {
	var eff float64
	switch {
	case p.HasT:
		eff = math.Max(0, p.T)
	case first:
		eff = 0
	default:
		eff = prev + stepMs
	}
	if !first && eff < prev {
		eff = prev
	}
	return eff
}

// buildSynthetic paces strokes in their original order with a running clock:
// StepMs per segment, GapMs after each stroke that produced segments.
func buildSynthetic(strokes []ink.Stroke, opts Options) []Segment {
	var segs []Segment
	clock := 0.0
	for _, s := range strokes {
		if len(s.Points) < 2 {
			continue
		}
		for i := 1; i < len(s.Points); i++ {
			t0 := clock
			clock += opts.StepMs
			segs = append(segs, Segment{
				X0: s.Points[i-1].X, Y0: s.Points[i-1].Y,
				X1: s.Points[i].X, Y1: s.Points[i].Y,
				Color: s.Color, Size: s.Size, Tool: s.Tool,
				T0: t0, T1: clock,
			})
		}
		clock += opts.GapMs
	}
	return segs
}

// Segments returns the per-stroke segment list in build order.
func (tl *Timeline) Segments() []Segment {
	return tl.segments
}

// DurationMs is the maximum segment end time; 0 when no segments exist.
// It defines the valid playback cursor domain [0, DurationMs].
func (tl *Timeline) DurationMs() float64 {
	return tl.duration
}

// Timestamped reports whether real capture timing drove the build, as
// opposed to synthetic authoring-order pacing.
func (tl *Timeline) Timestamped() bool {
	return tl.timestamped
}
