package replay

import (
	"bytes"
	"image"
	"testing"

	"github.com/hazyhaar/inkplay/ink"
	"github.com/hazyhaar/inkplay/timeline"
)

func capture(t *testing.T, payload string) *ink.Capture {
	t.Helper()
	return ink.New(ink.Config{}).Normalize(payload)
}

func renderer(t *testing.T, payload string) *Renderer {
	t.Helper()
	c := capture(t, payload)
	return New(c, timeline.Build(c.Strokes, timeline.Options{}))
}

func alphaAt(r *Renderer, cursor float64, w, h, x, y int) uint8 {
	return r.RenderAt(cursor, w, h).RGBAAt(x, y).A
}

func TestRenderAt_PartialSegment(t *testing.T) {
	// Scenario: a single segment (0,0)@0 → (10,0)@100. At cursor 50 the pen
	// has reached (5,0): ink near the midpoint, none near the far end.
	r := renderer(t, `{"strokes":[{"color":"#000","size":4,"tool":"pen",
		"pts":[{"x":0,"y":0,"t":0},{"x":10,"y":0,"t":100}]}]}`)

	if r.DurationMs() != 100 {
		t.Fatalf("duration = %v, want 100", r.DurationMs())
	}

	if a := alphaAt(r, 50, 20, 10, 3, 0); a == 0 {
		t.Error("cursor 50: expected ink at (3,0)")
	}
	if a := alphaAt(r, 50, 20, 10, 9, 0); a != 0 {
		t.Errorf("cursor 50: unexpected ink at (9,0), alpha %d", a)
	}
	// At full duration the endpoint is covered.
	if a := alphaAt(r, 100, 20, 10, 9, 0); a == 0 {
		t.Error("cursor 100: expected ink at (9,0)")
	}
}

func TestRenderAt_ZeroCursorRendersNothing(t *testing.T) {
	r := renderer(t, `{"strokes":[{"size":4,"pts":[{"x":2,"y":2,"t":10},{"x":8,"y":2,"t":90}]}]}`)
	img := r.RenderAt(0, 16, 8)
	for i := range img.Pix {
		if img.Pix[i] != 0 {
			t.Fatal("cursor 0 must render an empty frame")
		}
	}
}

func TestRenderAt_FullEqualsStatic(t *testing.T) {
	// WHAT: RenderAt(duration) is pixel-identical to the static full draw.
	// WHY: the merge + cursor cut must not drop or duplicate segments at
	// the boundary.
	r := renderer(t, `{"strokes":[
		{"color":"#223344","size":3,"tool":"pen","points":[{"x":5,"y":5,"t":0},{"x":40,"y":10,"t":80},{"x":20,"y":30,"t":200}]},
		{"color":"#223344","size":3,"tool":"pen","points":[{"x":10,"y":25,"t":50},{"x":35,"y":25,"t":150}]}
	]}`)

	full := r.RenderAt(r.DurationMs(), 50, 40)

	// Independent static draw: every event painted fully, no cursor logic.
	static := image.NewRGBA(image.Rect(0, 0, 50, 40))
	for i := range r.events {
		ev := &r.events[i]
		paintEvent(static, ev, ev.X1, ev.Y1, 1, 1)
	}
	if !bytes.Equal(full.Pix, static.Pix) {
		t.Error("RenderAt(duration) differs from static full draw")
	}
	// And past the end nothing changes either.
	past := r.RenderAt(r.DurationMs()+1000, 50, 40)
	if !bytes.Equal(full.Pix, past.Pix) {
		t.Error("cursor past duration must equal full render")
	}
}

func TestRenderAt_Deterministic(t *testing.T) {
	r := renderer(t, `{"strokes":[{"size":4,"points":[{"x":1,"y":1},{"x":12,"y":9},{"x":3,"y":14}]}]}`)
	a := r.RenderAt(15, 24, 24)
	b := r.RenderAt(15, 24, 24)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("same cursor rendered differently across calls")
	}
}

func TestRenderAt_EraserRemovesEarlierInk(t *testing.T) {
	// Scenario: an eraser crossing a pen stroke at shared timestamps. At or
	// after the eraser's reveal time the crossing pixels are gone; strictly
	// before, the pen ink is intact.
	r := renderer(t, `{"strokes":[
		{"color":"#000","size":4,"tool":"pen","points":[{"x":0,"y":10,"t":0},{"x":30,"y":10,"t":100}]},
		{"color":"#000","size":8,"tool":"eraser","points":[{"x":15,"y":0,"t":0},{"x":15,"y":20,"t":100}]}
	]}`)

	// Strictly before the eraser's t1: pen partially drawn, nothing erased.
	if a := alphaAt(r, 99, 40, 20, 10, 10); a == 0 {
		t.Error("cursor 99: expected pen ink at (10,10)")
	}
	// At the eraser's reveal time: crossing removed, rest intact.
	if a := alphaAt(r, 100, 40, 20, 15, 10); a != 0 {
		t.Errorf("cursor 100: crossing pixel not erased, alpha %d", a)
	}
	if a := alphaAt(r, 100, 40, 20, 3, 10); a == 0 {
		t.Error("cursor 100: pen ink outside the eraser path missing")
	}
}

func TestRenderAt_ScalesFromCaptureSpace(t *testing.T) {
	// Scenario: capture 400×300 displayed at 800×600 — exactly 2× on both
	// axes.
	r := renderer(t, `{"canvasWidth":400,"canvasHeight":300,"strokes":[
		{"size":4,"points":[{"x":50,"y":50,"t":0},{"x":150,"y":50,"t":100}]}
	]}`)

	img := r.RenderAt(100, 800, 600)
	if img.RGBAAt(200, 100).A == 0 {
		t.Error("expected ink at scaled midpoint (200,100)")
	}
	if img.RGBAAt(100, 50).A != 0 {
		t.Error("unexpected ink at unscaled capture coordinates (100,50)")
	}
}

func TestRenderAt_HighlighterTranslucent(t *testing.T) {
	pen := renderer(t, `{"strokes":[{"color":"#000","size":6,"tool":"pen","points":[{"x":2,"y":5,"t":0},{"x":18,"y":5,"t":10}]}]}`)
	hl := renderer(t, `{"strokes":[{"color":"#000","size":6,"tool":"highlighter","points":[{"x":2,"y":5,"t":0},{"x":18,"y":5,"t":10}]}]}`)

	pa := alphaAt(pen, 10, 20, 10, 10, 5)
	ha := alphaAt(hl, 10, 20, 10, 10, 5)
	if ha >= pa {
		t.Errorf("highlighter alpha %d not below pen alpha %d", ha, pa)
	}
	if ha == 0 {
		t.Error("highlighter must still be visible")
	}
}

func TestRenderAt_EmptyTimeline(t *testing.T) {
	r := renderer(t, `"not a payload"`)
	if r.DurationMs() != 0 {
		t.Errorf("duration = %v, want 0", r.DurationMs())
	}
	img := r.RenderAt(0, 10, 10)
	for i := range img.Pix {
		if img.Pix[i] != 0 {
			t.Fatal("empty timeline rendered pixels")
		}
	}
}

func TestEncodePNG(t *testing.T) {
	r := renderer(t, `{"strokes":[{"points":[{"x":1,"y":1},{"x":5,"y":5}]}]}`)
	data, err := EncodePNG(r.RenderStatic(8, 8))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		r, a uint8
	}{
		{"#ff0000", 0xff, 0xff},
		{"#F00", 0xff, 0xff},
		{"#ff000080", 0xff, 0x80},
		{"red", 0xff, 0xff},
		{"", fallbackColor.R, 0xff},
		{"bogus", fallbackColor.R, 0xff},
	}
	for _, tt := range tests {
		c := parseColor(tt.in)
		if c.R != tt.r || c.A != tt.a {
			t.Errorf("parseColor(%q) = %+v, want R=%d A=%d", tt.in, c, tt.r, tt.a)
		}
	}
}
