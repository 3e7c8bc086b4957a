package replay

import (
	"fmt"
	"io"
	"os"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/inkplay/ink"
	"github.com/hazyhaar/inkplay/timeline"
)

// A4 portrait in points, the default export page.
const (
	defaultPageWidthPt  = 595.28
	defaultPageHeightPt = 841.89
)

// PDFOptions controls the exported page geometry.
type PDFOptions struct {
	// PageWidth/PageHeight in points. Defaults to A4 portrait when zero and
	// no backing PDF is given.
	PageWidth  float64
	PageHeight float64

	// BackingPDF optionally names the source document the strokes were drawn
	// over; the exported page then takes that page's dimensions so the ink
	// lands in the original coordinate box.
	BackingPDF string

	// PageNr is the 1-based page in BackingPDF (default: 1).
	PageNr int
}

// ExportPDF draws the complete replay as vector line work on a single PDF
// page. Events are emitted in merged order; erasers are drawn as white
// strokes, which on a blank page is visually equivalent to the raster
// destination-out compositing.
func ExportPDF(w io.Writer, capture *ink.Capture, tl *timeline.Timeline, opts PDFOptions) error {
	pw, ph := opts.PageWidth, opts.PageHeight
	if opts.BackingPDF != "" {
		pageNr := opts.PageNr
		if pageNr < 1 {
			pageNr = 1
		}
		var err error
		pw, ph, err = backingPageDims(opts.BackingPDF, pageNr)
		if err != nil {
			return fmt.Errorf("backing page dims: %w", err)
		}
	}
	if pw <= 0 || ph <= 0 {
		pw, ph = defaultPageWidthPt, defaultPageHeightPt
	}

	sx, sy := 1.0, 1.0
	if capture.Width > 0 {
		sx = pw / capture.Width
	}
	if capture.Height > 0 {
		sy = ph / capture.Height
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	pdf.AddPage()
	pdf.SetLineCapStyle("round")

	for _, ev := range tl.Events() {
		width := ev.Size * (sx + sy) / 2
		alpha := 1.0
		col := parseColor(ev.Color)
		switch ev.Tool {
		case ink.ToolEraser:
			col.R, col.G, col.B = 0xff, 0xff, 0xff
		case ink.ToolHighlighter:
			alpha = highlighterAlpha
			width *= highlighterWidthScale
		}
		pdf.SetAlpha(alpha, "Normal")
		pdf.SetDrawColor(int(col.R), int(col.G), int(col.B))
		pdf.SetLineWidth(width)
		pdf.Line(ev.X0*sx, ev.Y0*sy, ev.X1*sx, ev.Y1*sy)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf output: %w", err)
	}
	return nil
}

// backingPageDims reads the media box of one page from a PDF file.
func backingPageDims(path string, pageNr int) (float64, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	dims, err := pctx.PageDims()
	if err != nil {
		return 0, 0, fmt.Errorf("page dims: %w", err)
	}
	if pageNr > len(dims) {
		return 0, 0, fmt.Errorf("page %d out of range (document has %d)", pageNr, len(dims))
	}
	d := dims[pageNr-1]
	return d.Width, d.Height, nil
}
