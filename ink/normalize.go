// Package ink normalizes raw stroke-capture payloads into one canonical
// stroke model.
//
// Capture payloads come from independently-evolving client code and arrive
// in several dialects: a top-level array of point objects, a top-level array
// of stroke objects, an object wrapping the stroke list under "strokes",
// "lines" or "paths", or a single stroke object keyed "points", "pts" or
// "path". Canvas dimensions hide behind an equally loose set of aliases.
//
// The contract is fail-soft: Normalize never returns nil and never panics.
// Unparseable input yields an empty Capture; partially corrupt input yields
// whatever strokes were salvageable. A broken replay must never take the
// surrounding page down with it.
//
// Typical usage:
//
//	norm := ink.New(ink.Config{})
//	capture := norm.Normalize(rawPayload)
//	tl := timeline.Build(capture.Strokes, timeline.Options{})
package ink

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalizer converts raw payloads into Captures.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer with the given configuration.
func New(cfg Config) *Normalizer {
	cfg.defaults()
	return &Normalizer{cfg: cfg}
}

// Width/height aliases observed across capture clients. First match wins;
// non-numeric and non-positive values are skipped.
var (
	widthAliases  = []string{"canvasWidth", "canvas_w", "canvas_width", "sourceWidth", "pageWidth", "w", "width"}
	heightAliases = []string{"canvasHeight", "canvas_h", "canvas_height", "sourceHeight", "pageHeight", "h", "height"}

	strokeListKeys = []string{"strokes", "lines", "paths"}
	pointListKeys  = []string{"points", "pts", "path"}
)

// Normalize converts a raw payload into a Capture. The payload may be a JSON
// string, raw bytes, or an already-decoded value. It never fails: malformed
// input degrades to an empty Capture.
func (n *Normalizer) Normalize(raw any) *Capture {
	c := &Capture{}
	v := n.decode(raw)
	if v == nil {
		return c
	}

	switch val := v.(type) {
	case map[string]any:
		n.fromObject(val, c)
	case []any:
		c.Strokes = n.strokeList(val)
	default:
		n.cfg.Logger.Debug("ink: unrecognized payload shape, ignoring")
	}
	return c
}

// decode turns string/byte payloads into decoded JSON values. Parse failure
// is swallowed: the payload is treated as absent.
func (n *Normalizer) decode(raw any) any {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		return raw
	}

	if len(data) == 0 {
		return nil
	}
	if len(data) > n.cfg.MaxPayloadBytes {
		n.cfg.Logger.Warn("ink: payload exceeds size cap, ignoring", "bytes", len(data))
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		n.cfg.Logger.Debug("ink: payload is not valid JSON, ignoring", "error", err)
		return nil
	}
	return out
}

func (n *Normalizer) fromObject(obj map[string]any, c *Capture) {
	c.Width = firstDim(obj, widthAliases)
	c.Height = firstDim(obj, heightAliases)

	if v, ok := firstNum(obj, "captureEpochMs", "capture_epoch_ms", "epochMs"); ok {
		c.Hint.CaptureEpochMs = v
	}
	if v, ok := firstNum(obj, "audioOffsetMs", "audio_offset_ms", "offsetMs"); ok {
		c.Hint.AudioOffsetMs = v
	}

	for _, key := range strokeListKeys {
		if arr, ok := obj[key].([]any); ok {
			c.Strokes = n.strokeList(arr)
			return
		}
	}

	// No wrapper key: the object may itself be a single stroke.
	if s, ok := n.stroke(obj); ok {
		c.Strokes = []Stroke{s}
	}
}

// strokeList handles both dialects of top-level arrays: a list of stroke
// objects, or a bare list of points forming one anonymous stroke.
func (n *Normalizer) strokeList(arr []any) []Stroke {
	if len(arr) == 0 {
		return nil
	}

	if pts := n.points(arr); len(pts) > 0 {
		return []Stroke{{
			Color:  n.cfg.DefaultColor,
			Size:   n.cfg.DefaultSize,
			Tool:   ToolPen,
			Points: pts,
		}}
	}

	var strokes []Stroke
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := n.stroke(obj); ok {
			strokes = append(strokes, s)
		}
	}
	return strokes
}

// stroke coerces one stroke-like object. Returns false when no usable points
// remain after filtering; such strokes are silently dropped.
func (n *Normalizer) stroke(obj map[string]any) (Stroke, bool) {
	var pts []Point
	for _, key := range pointListKeys {
		if arr, ok := obj[key].([]any); ok {
			pts = n.points(arr)
			break
		}
	}
	if len(pts) == 0 {
		return Stroke{}, false
	}

	s := Stroke{
		Color:  n.cfg.DefaultColor,
		Size:   n.cfg.DefaultSize,
		Tool:   ToolPen,
		Points: pts,
	}
	if v, ok := obj["color"].(string); ok && v != "" {
		s.Color = v
	} else if v, ok := obj["strokeColor"].(string); ok && v != "" {
		s.Color = v
	}
	if v, ok := firstNum(obj, "size", "strokeWidth", "lineWidth", "width"); ok && v > 0 {
		s.Size = v
	}
	if v, ok := firstString(obj, "tool", "mode", "type"); ok {
		s.Tool = classifyTool(v)
	}
	return s, true
}

// points filters an array down to usable points: finite x and y required,
// t kept only when finite. Both object points ({x,y,t}) and compact array
// points ([x,y] / [x,y,t]) are accepted.
func (n *Normalizer) points(arr []any) []Point {
	var pts []Point
	for _, el := range arr {
		switch v := el.(type) {
		case map[string]any:
			x, okX := num(v["x"])
			y, okY := num(v["y"])
			if !okX || !okY {
				continue
			}
			p := Point{X: x, Y: y}
			if t, ok := firstNum(v, "t", "time", "ts", "timestamp"); ok {
				p.T = t
				p.HasT = true
			}
			pts = append(pts, p)
		case []any:
			if len(v) < 2 {
				continue
			}
			x, okX := num(v[0])
			y, okY := num(v[1])
			if !okX || !okY {
				continue
			}
			p := Point{X: x, Y: y}
			if len(v) >= 3 {
				if t, ok := num(v[2]); ok {
					p.T = t
					p.HasT = true
				}
			}
			pts = append(pts, p)
		}
	}
	return pts
}

// classifyTool maps free-form tool/mode/type fields onto the canonical enum.
// Unrecognized values become ToolOther, which renders like a pen.
func classifyTool(s string) Tool {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return ToolPen
	case strings.Contains(v, "erase"):
		return ToolEraser
	case strings.Contains(v, "highlight"), strings.Contains(v, "marker"):
		return ToolHighlighter
	case strings.Contains(v, "pen"), strings.Contains(v, "pencil"),
		strings.Contains(v, "draw"), strings.Contains(v, "brush"),
		strings.Contains(v, "ink"):
		return ToolPen
	default:
		return ToolOther
	}
}

func firstDim(obj map[string]any, aliases []string) float64 {
	for _, key := range aliases {
		if v, ok := num(obj[key]); ok && v > 0 {
			return v
		}
	}
	return 0
}

func firstNum(obj map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := num(obj[key]); ok {
			return v, true
		}
	}
	return 0, false
}

func firstString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// num coerces JSON-decoded scalars to a finite float64.
func num(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
