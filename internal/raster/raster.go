// Package raster turns PDF pages into bitmaps. Rendering is delegated to
// MuPDF through go-fitz; this package only sequences pages and carries the
// configured DPI.
package raster

import (
	"context"
	"image"
)

// Page is one rendered PDF page.
type Page struct {
	Number int // 1-based
	Image  image.Image
}

// Document is an open PDF whose pages can be rendered one at a time, in any
// order. Close releases the underlying native document.
type Document interface {
	PageCount() int
	Render(ctx context.Context, pageNumber int) (Page, error)
	Close() error
}

// Rasterizer opens PDF bytes for page rendering.
type Rasterizer interface {
	Open(pdf []byte) (Document, error)
}
