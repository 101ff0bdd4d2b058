package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs Tesseract in-process through its C API. A fresh client
// is created per call; gosseract clients are not safe for concurrent use.
type GosseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewGosseractEngine() *GosseractEngine {
	return &GosseractEngine{clientFactory: gosseract.NewClient}
}

func (e *GosseractEngine) Name() string { return "gosseract" }

func (e *GosseractEngine) Available() bool {
	c := e.clientFactory()
	defer c.Close()
	return c.Version() != ""
}

func (e *GosseractEngine) Recognize(ctx context.Context, in Input) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return Result{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(in.DPI)); err != nil {
			return Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return Result{Text: strings.TrimSpace(text)}, nil
}
