// Package extract orchestrates the OCR pipeline: decode the upload, apply
// the optional preprocessing filter, recognize text per unit (whole image or
// PDF page), and concatenate the results in natural page order.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/textlift/textlift/internal/models"
	"github.com/textlift/textlift/internal/ocr"
	"github.com/textlift/textlift/internal/preprocess"
	"github.com/textlift/textlift/internal/raster"
)

var (
	// ErrNoPages means the PDF opened fine but contains no renderable pages.
	ErrNoPages = errors.New("PDF has no pages")
	// ErrBadImage means the upload could not be decoded as an image.
	ErrBadImage = errors.New("cannot decode image")
	// ErrBadPDF means the upload could not be opened as a PDF.
	ErrBadPDF = errors.New("cannot open PDF")
)

// A PDF page whose embedded text layer has at least this many characters is
// used as-is; shorter layers (page numbers, stray artifacts on a scan) fall
// through to rasterization and OCR.
const minTextLayerChars = 32

// Request is one extraction unit of work.
type Request struct {
	Data       []byte
	Kind       string // models.JobKindImage or models.JobKindPDF
	Preprocess bool
	Languages  []string
}

// PageResult records the outcome for a single page.
type PageResult struct {
	Number int
	Status string
	Source string
	Text   string
}

// Result is the assembled output. Text keeps natural page order with
// "--- Page N ---" separators for PDFs; single images carry the raw text.
type Result struct {
	Text      string
	PageCount int
	Pages     []PageResult
}

// ProgressFunc is invoked after each completed page.
type ProgressFunc func(done, total int)

type Extractor struct {
	engine     ocr.Engine
	rasterizer raster.Rasterizer
	pipeline   *preprocess.Pipeline
	languages  []string
	dpi        int
}

func New(engine ocr.Engine, rasterizer raster.Rasterizer, pipeline *preprocess.Pipeline, languages []string, dpi int) *Extractor {
	return &Extractor{
		engine:     engine,
		rasterizer: rasterizer,
		pipeline:   pipeline,
		languages:  languages,
		dpi:        dpi,
	}
}

func (e *Extractor) Run(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int, int) {}
	}
	switch req.Kind {
	case models.JobKindImage:
		return e.runImage(ctx, req, progress)
	case models.JobKindPDF:
		return e.runPDF(ctx, req, progress)
	default:
		return nil, fmt.Errorf("unsupported kind: %s", req.Kind)
	}
}

func (e *Extractor) runImage(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(req.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}

	payload := req.Data
	if req.Preprocess {
		payload, err = encodePNG(e.pipeline.Apply(img))
		if err != nil {
			return nil, err
		}
	}

	res, err := e.recognize(ctx, payload, req.Languages)
	if err != nil {
		return nil, fmt.Errorf("OCR: %w", err)
	}

	progress(1, 1)

	status := models.PageStatusOK
	if res.Text == "" {
		status = models.PageStatusEmpty
	}
	return &Result{
		Text:      res.Text,
		PageCount: 1,
		Pages: []PageResult{{
			Number: 1,
			Status: status,
			Source: models.PageSourceOCR,
			Text:   res.Text,
		}},
	}, nil
}

func (e *Extractor) runPDF(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	doc, err := e.rasterizer.Open(req.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPDF, err)
	}
	defer doc.Close()

	total := doc.PageCount()
	if total == 0 {
		return nil, ErrNoPages
	}

	// Text-layer extraction failing wholesale is not fatal: encrypted or
	// malformed PDFs that MuPDF still renders just go through OCR page by
	// page.
	textLayer, err := pdfTextLayer(req.Data)
	if err != nil {
		slog.Warn("text layer unavailable, using OCR for all pages", "error", err)
		textLayer = nil
	}

	var out strings.Builder
	pages := make([]PageResult, 0, total)

	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := e.extractPage(ctx, doc, textLayer, n, req)
		pages = append(pages, page)

		switch page.Status {
		case models.PageStatusOK:
			fmt.Fprintf(&out, "--- Page %d ---\n%s\n\n", n, page.Text)
		default:
			fmt.Fprintf(&out, "--- Page %d (OCR failed or no text detected) ---\n\n", n)
		}

		progress(n, total)
	}

	return &Result{
		Text:      out.String(),
		PageCount: total,
		Pages:     pages,
	}, nil
}

// extractPage resolves one page: embedded text layer when it is substantial,
// OCR over the rendered bitmap otherwise. Failures never abort the document;
// the page is marked failed and the loop moves on.
func (e *Extractor) extractPage(ctx context.Context, doc raster.Document, textLayer []string, n int, req Request) PageResult {
	if n-1 < len(textLayer) && len(textLayer[n-1]) >= minTextLayerChars {
		return PageResult{
			Number: n,
			Status: models.PageStatusOK,
			Source: models.PageSourceTextLayer,
			Text:   textLayer[n-1],
		}
	}

	page, err := doc.Render(ctx, n)
	if err != nil {
		slog.Error("render page failed", "page", n, "error", err)
		return PageResult{Number: n, Status: models.PageStatusFailed, Source: models.PageSourceOCR}
	}

	img := page.Image
	if req.Preprocess {
		img = e.pipeline.Apply(img)
	}
	payload, err := encodePNG(img)
	if err != nil {
		slog.Error("encode page failed", "page", n, "error", err)
		return PageResult{Number: n, Status: models.PageStatusFailed, Source: models.PageSourceOCR}
	}

	res, err := e.recognize(ctx, payload, req.Languages)
	if err != nil {
		slog.Error("OCR page failed", "page", n, "error", err)
		return PageResult{Number: n, Status: models.PageStatusFailed, Source: models.PageSourceOCR}
	}
	if res.Text == "" {
		return PageResult{Number: n, Status: models.PageStatusEmpty, Source: models.PageSourceOCR}
	}
	return PageResult{Number: n, Status: models.PageStatusOK, Source: models.PageSourceOCR, Text: res.Text}
}

func (e *Extractor) recognize(ctx context.Context, payload []byte, languages []string) (ocr.Result, error) {
	if len(languages) == 0 {
		languages = e.languages
	}
	return e.engine.Recognize(ctx, ocr.Input{
		Image:     payload,
		Languages: languages,
		DPI:       e.dpi,
	})
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
