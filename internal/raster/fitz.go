package raster

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// FitzRasterizer renders PDF pages with MuPDF via go-fitz.
type FitzRasterizer struct {
	dpi int
}

func NewFitzRasterizer(dpi int) *FitzRasterizer {
	if dpi <= 0 {
		dpi = 200
	}
	return &FitzRasterizer{dpi: dpi}
}

func (r *FitzRasterizer) Open(pdf []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: r.dpi}, nil
}

type fitzDocument struct {
	doc *fitz.Document
	dpi int
}

func (d *fitzDocument) PageCount() int { return d.doc.NumPage() }

func (d *fitzDocument) Render(ctx context.Context, pageNumber int) (Page, error) {
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	default:
	}

	if pageNumber < 1 || pageNumber > d.doc.NumPage() {
		return Page{}, fmt.Errorf("page %d out of range (1-%d)", pageNumber, d.doc.NumPage())
	}

	// go-fitz pages are zero-based.
	img, err := d.doc.ImageDPI(pageNumber-1, float64(d.dpi))
	if err != nil {
		return Page{}, fmt.Errorf("render page %d: %w", pageNumber, err)
	}
	return Page{Number: pageNumber, Image: img}, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
