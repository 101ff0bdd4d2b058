// Package ocr defines the contract between the extraction pipeline and the
// OCR provider. Recognition itself is always delegated to Tesseract, either
// in-process through gosseract or by shelling out to the binary.
package ocr

import (
	"context"
	"fmt"

	"github.com/textlift/textlift/internal/config"
)

// Input is a single encoded image submitted for recognition.
type Input struct {
	// Image is the encoded payload, PNG unless stated otherwise.
	Image []byte
	// Languages holds Tesseract language codes (e.g. "eng", "deu"). Empty
	// means the engine default.
	Languages []string
	// DPI carries the effective dots-per-inch when known; zero means unknown.
	DPI int
}

// Result is the recognized text for one input.
type Result struct {
	Text string
}

// Engine is the provider contract: one image in, one result out.
type Engine interface {
	Name() string
	// Available reports whether the underlying engine can run on this host.
	Available() bool
	Recognize(ctx context.Context, in Input) (Result, error)
}

// NewEngine builds the configured engine.
func NewEngine(cfg config.OCRConfig) (Engine, error) {
	switch cfg.Engine {
	case "gosseract":
		return NewGosseractEngine(), nil
	case "cli":
		return NewCLIEngine(cfg.Binary), nil
	default:
		return nil, fmt.Errorf("unknown OCR engine: %s", cfg.Engine)
	}
}
