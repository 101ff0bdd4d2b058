package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textlift/textlift/internal/config"
)

func testConfig() config.PreprocessConfig {
	return config.PreprocessConfig{WindowSize: 25, Offset: 10, Sharpen: 0}
}

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestApplyKeepsDimensions(t *testing.T) {
	p := New(testConfig())
	img := uniformImage(40, 30, color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	out := p.Apply(img)
	assert.Equal(t, 40, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
}

func TestApplyWhiteStaysWhite(t *testing.T) {
	p := New(testConfig())
	img := uniformImage(20, 20, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	out := p.Apply(img).(*image.NRGBA)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			px := out.NRGBAAt(x, y)
			require.Equal(t, uint8(255), px.R, "pixel (%d,%d)", x, y)
		}
	}
}

func TestThresholdKeepsGlyphBlack(t *testing.T) {
	p := New(testConfig())

	// White page with a small dark mark. The window is larger than the mark,
	// so the local mean stays near white and the mark must binarize to black.
	img := uniformImage(50, 50, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	for y := 24; y < 27; y++ {
		for x := 24; x < 27; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
		}
	}

	out := p.adaptiveThreshold(img)
	assert.Equal(t, uint8(0), out.NRGBAAt(25, 25).R, "glyph center should be black")
	assert.Equal(t, uint8(255), out.NRGBAAt(5, 5).R, "background should be white")
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R, "clipped corner window should still be white")
}

func TestThresholdIsBinary(t *testing.T) {
	p := New(testConfig())

	img := image.NewNRGBA(image.Rect(0, 0, 30, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			v := uint8((x * 8) % 256)
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	out := p.adaptiveThreshold(img)
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			px := out.NRGBAAt(x, y)
			require.Contains(t, []uint8{0, 255}, px.R, "pixel (%d,%d)", x, y)
			require.Equal(t, px.R, px.G)
			require.Equal(t, px.R, px.B)
		}
	}
}

func TestNewNormalizesWindow(t *testing.T) {
	p := New(config.PreprocessConfig{WindowSize: 24, Offset: 10})
	assert.Equal(t, 25, p.window)

	p = New(config.PreprocessConfig{WindowSize: 0, Offset: 10})
	assert.Equal(t, 25, p.window)
}

func TestIntegralImage(t *testing.T) {
	img := uniformImage(4, 3, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	integral := integralImage(img)
	// Bottom-right corner of the table holds the sum of every pixel.
	assert.Equal(t, uint64(4*3*10), integral[len(integral)-1])
}
