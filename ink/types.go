package ink

// Tool identifies the drawing instrument of a stroke.
type Tool string

const (
	ToolPen         Tool = "pen"
	ToolHighlighter Tool = "highlighter"
	ToolEraser      Tool = "eraser"
	ToolOther       Tool = "other"
)

// Ink reports whether strokes of this tool deposit ink. Everything except
// the eraser does; ToolOther is rendered like a pen but kept distinct so
// callers can still filter on it.
func (t Tool) Ink() bool { return t != ToolEraser }

// Point is one sampled position of a stroke. T is milliseconds since the
// capture epoch; HasT distinguishes a real timestamp from a missing one
// (legacy payloads carry no per-point timing at all).
type Point struct {
	X, Y float64
	T    float64
	HasT bool
}

// Stroke is one continuous pen, highlighter, or eraser gesture. A stroke
// with fewer than two points produces no visible playback segment.
type Stroke struct {
	Color  string
	Size   float64
	Tool   Tool
	Points []Point
}

// TimingHint carries optional timing metadata found alongside the strokes.
// AudioOffsetMs is signed: positive means ink timestamps lag audio start,
// negative means ink leads.
type TimingHint struct {
	CaptureEpochMs float64
	AudioOffsetMs  float64
}

// Capture is the canonical result of normalizing a raw stroke payload.
// Width and Height are the pixel dimensions of the canvas the strokes were
// recorded on, 0 when the payload does not say.
type Capture struct {
	Strokes []Stroke
	Width   float64
	Height  float64
	Hint    TimingHint
}

// HasTimestamps reports whether any point carries a real capture timestamp.
// When false, playback pacing is synthesized from stroke order.
func (c *Capture) HasTimestamps() bool {
	for _, s := range c.Strokes {
		for _, p := range s.Points {
			if p.HasT {
				return true
			}
		}
	}
	return false
}

// PointCount returns the total number of usable points across all strokes.
func (c *Capture) PointCount() int {
	n := 0
	for _, s := range c.Strokes {
		n += len(s.Points)
	}
	return n
}
