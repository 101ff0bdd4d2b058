// Package preprocess implements the fixed binarization pipeline applied
// before OCR: grayscale, adaptive mean threshold, sharpen. Grayscale and
// sharpening come from the imaging library; the adaptive threshold is a local
// mean over an integral image, since imaging only ships global adjustments.
package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/textlift/textlift/internal/config"
)

type Pipeline struct {
	window  int
	offset  int
	sharpen float64
}

func New(cfg config.PreprocessConfig) *Pipeline {
	window := cfg.WindowSize
	if window < 3 {
		window = 25
	}
	if window%2 == 0 {
		window++
	}
	return &Pipeline{
		window:  window,
		offset:  cfg.Offset,
		sharpen: cfg.Sharpen,
	}
}

// Apply runs the full pipeline and returns a pure black/white image with
// slightly sharpened glyph edges.
func (p *Pipeline) Apply(img image.Image) image.Image {
	gray := imaging.Grayscale(img)
	bin := p.adaptiveThreshold(gray)
	if p.sharpen > 0 {
		return imaging.Sharpen(bin, p.sharpen)
	}
	return bin
}

// adaptiveThreshold binarizes against the mean brightness of the surrounding
// window: pixels brighter than (local mean - offset) become white, the rest
// black. A local threshold keeps text legible under uneven lighting where a
// single global cutoff would wipe out whole regions.
func (p *Pipeline) adaptiveThreshold(gray *image.NRGBA) *image.NRGBA {
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gray
	}

	integral := integralImage(gray)
	half := p.window / 2

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1), min(y+half, h-1)
			area := (x1 - x0 + 1) * (y1 - y0 + 1)

			sum := integral[(y1+1)*(w+1)+(x1+1)] -
				integral[y0*(w+1)+(x1+1)] -
				integral[(y1+1)*(w+1)+x0] +
				integral[y0*(w+1)+x0]
			mean := int(sum) / area

			// Grayscale image, so the red channel is the brightness.
			v := int(gray.NRGBAAt(x, y).R)
			c := color.NRGBA{A: 255}
			if v > mean-p.offset {
				c.R, c.G, c.B = 255, 255, 255
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

// integralImage returns the (w+1)x(h+1) summed-area table of the red channel.
func integralImage(img *image.NRGBA) []uint64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	integral := make([]uint64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(img.NRGBAAt(x, y).R)
			integral[(y+1)*(w+1)+(x+1)] = integral[y*(w+1)+(x+1)] + rowSum
		}
	}
	return integral
}
