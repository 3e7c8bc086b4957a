package replay

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// EncodePNG encodes a rendered frame as PNG bytes, the format the HTTP and
// MCP surfaces hand out.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
