package replay

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/vector"

	"github.com/hazyhaar/inkplay/ink"
	"github.com/hazyhaar/inkplay/timeline"
)

const (
	highlighterAlpha      = 0.35
	highlighterWidthScale = 1.5

	capSteps = 8 // line segments per semicircular end cap
)

// fallbackColor matches the normalizer's default dark ink.
var fallbackColor = color.RGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}

// paintEvent rasterizes one segment onto img, with the endpoint possibly
// pulled back for partial rendering. Coordinates are capture-space and get
// scaled here; stroke width scales with the mean axis factor.
func paintEvent(img *image.RGBA, ev *timeline.Event, x1, y1, sx, sy float64) {
	px0, py0 := ev.X0*sx, ev.Y0*sy
	px1, py1 := x1*sx, y1*sy

	width := ev.Size * (sx + sy) / 2
	opacity := 1.0
	if ev.Tool == ink.ToolHighlighter {
		opacity = highlighterAlpha
		width *= highlighterWidthScale
	}
	if width < 1 {
		width = 1
	}

	mask, org := strokeMask(img.Bounds(), px0, py0, px1, py1, width/2)
	if mask == nil {
		return
	}
	if ev.Tool == ink.ToolEraser {
		eraseMask(img, mask, org)
		return
	}
	blendMask(img, mask, org, parseColor(ev.Color), opacity)
}

// strokeMask rasterizes the capsule (thick line with round caps) covering
// the segment into an alpha coverage mask. org is the image-space position
// of the mask's origin. Returns nil when the capsule misses the clip.
func strokeMask(clip image.Rectangle, x0, y0, x1, y1, radius float64) (*image.Alpha, image.Point) {
	box := image.Rect(
		int(math.Floor(math.Min(x0, x1)-radius))-1,
		int(math.Floor(math.Min(y0, y1)-radius))-1,
		int(math.Ceil(math.Max(x0, x1)+radius))+1,
		int(math.Ceil(math.Max(y0, y1)+radius))+1,
	).Intersect(clip)
	if box.Empty() {
		return nil, image.Point{}
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)

	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		// Degenerate segment: a dot.
		circle(z, x0-ox, y0-oy, radius)
	} else {
		capsule(z, x0-ox, y0-oy, x1-ox, y1-oy, dx/length, dy/length, radius)
	}

	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask, box.Min
}

// capsule traces the outline of a thick segment: two straight edges offset
// by radius plus a semicircular cap at each end.
func capsule(z *vector.Rasterizer, x0, y0, x1, y1, ux, uy, radius float64) {
	// perpendicular to the direction (ux, uy)
	px, py := -uy, ux
	base := math.Atan2(py, px)

	z.MoveTo(float32(x0+px*radius), float32(y0+py*radius))
	z.LineTo(float32(x1+px*radius), float32(y1+py*radius))
	arc(z, x1, y1, radius, base, base-math.Pi)
	z.LineTo(float32(x0-px*radius), float32(y0-py*radius))
	arc(z, x0, y0, radius, base-math.Pi, base-2*math.Pi)
	z.ClosePath()
}

func circle(z *vector.Rasterizer, cx, cy, radius float64) {
	z.MoveTo(float32(cx+radius), float32(cy))
	steps := 2 * capSteps
	for i := 1; i <= steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		z.LineTo(float32(cx+radius*math.Cos(a)), float32(cy+radius*math.Sin(a)))
	}
	z.ClosePath()
}

// arc appends line segments approximating a circular arc from angle a0 to
// a1 (radians) around (cx, cy). The path must already be at the a0 point.
func arc(z *vector.Rasterizer, cx, cy, radius, a0, a1 float64) {
	for i := 1; i <= capSteps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(capSteps)
		z.LineTo(float32(cx+radius*math.Cos(a)), float32(cy+radius*math.Sin(a)))
	}
}

// blendMask source-over composites col (scaled by coverage and opacity)
// onto img at org.
func blendMask(img *image.RGBA, mask *image.Alpha, org image.Point, col color.RGBA, opacity float64) {
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := float64(mask.AlphaAt(x, y).A) / 255 * opacity
			if a == 0 {
				continue
			}
			ix, iy := org.X+x, org.Y+y
			dst := img.RGBAAt(ix, iy)
			inv := 1 - a
			img.SetRGBA(ix, iy, color.RGBA{
				R: uint8(float64(col.R)*a + float64(dst.R)*inv + 0.5),
				G: uint8(float64(col.G)*a + float64(dst.G)*inv + 0.5),
				B: uint8(float64(col.B)*a + float64(dst.B)*inv + 0.5),
				A: uint8(255*a + float64(dst.A)*inv + 0.5),
			})
		}
	}
}

// eraseMask destination-out composites the coverage mask against img:
// covered pixels lose their ink rather than being painted over.
func eraseMask(img *image.RGBA, mask *image.Alpha, org image.Point) {
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := float64(mask.AlphaAt(x, y).A) / 255
			if a == 0 {
				continue
			}
			ix, iy := org.X+x, org.Y+y
			dst := img.RGBAAt(ix, iy)
			inv := 1 - a
			img.SetRGBA(ix, iy, color.RGBA{
				R: uint8(float64(dst.R)*inv + 0.5),
				G: uint8(float64(dst.G)*inv + 0.5),
				B: uint8(float64(dst.B)*inv + 0.5),
				A: uint8(float64(dst.A)*inv + 0.5),
			})
		}
	}
}

// parseColor understands #rgb, #rrggbb and #rrggbbaa hex notations plus a
// handful of CSS names seen in capture payloads. Anything else falls back
// to the default dark ink — color is cosmetic, never an error.
func parseColor(s string) color.RGBA {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "black":
		return color.RGBA{A: 0xff}
	case "white":
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	case "red":
		return color.RGBA{R: 0xff, A: 0xff}
	case "green":
		return color.RGBA{G: 0x80, A: 0xff}
	case "blue":
		return color.RGBA{B: 0xff, A: 0xff}
	case "yellow":
		return color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	}
	if !strings.HasPrefix(v, "#") {
		return fallbackColor
	}
	hex := v[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 && len(hex) != 8 {
		return fallbackColor
	}
	n, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return fallbackColor
	}
	if len(hex) == 8 {
		return color.RGBA{
			R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n),
		}
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}
}
