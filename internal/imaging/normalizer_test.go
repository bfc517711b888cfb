package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/spherical/invoice-extractor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient builds a w×h image whose gray level runs from lo to hi left to right.
func gradient(w, h int, lo, hi uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(int(lo) + (int(hi)-int(lo))*x/(w-1))
			img.Set(x, y, color.RGBA{v, v, v, 0xff})
		}
	}
	return img
}

func TestNormalize_ProducesDecodableJPEG(t *testing.T) {
	n := NewNormalizer(DefaultOptions())
	page := domain.PageImage{PageNumber: 3, Width: 40, Height: 20, Image: gradient(40, 20, 40, 200)}

	enc, err := n.Normalize(page)
	require.NoError(t, err)

	assert.Equal(t, 3, enc.PageNumber)
	assert.Equal(t, "image/jpeg", enc.MIMEType)

	raw, err := base64.StdEncoding.DecodeString(enc.Base64)
	require.NoError(t, err)
	assert.Equal(t, enc.Data, raw)

	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 20, decoded.Bounds().Dy())
}

func TestNormalize_Deterministic(t *testing.T) {
	n := NewNormalizer(Options{})
	page := domain.PageImage{PageNumber: 1, Image: gradient(32, 32, 10, 240)}

	first, err := n.Normalize(page)
	require.NoError(t, err)
	second, err := n.Normalize(page)
	require.NoError(t, err)

	assert.Equal(t, first.Base64, second.Base64)
}

func TestNormalize_NilImage(t *testing.T) {
	_, err := NewNormalizer(DefaultOptions()).Normalize(domain.PageImage{PageNumber: 1})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConversion))
}

func TestNewNormalizer_Defaults(t *testing.T) {
	n := NewNormalizer(Options{Quality: 60})
	assert.Equal(t, 60, n.opts.Quality)
	assert.Equal(t, 1.05, n.opts.Sharpness)
	assert.Equal(t, 1.03, n.opts.Contrast)
}

func TestAutocontrast_StretchesToFullRange(t *testing.T) {
	img := toRGB(gradient(16, 4, 50, 200))
	autocontrast(img)

	lo, hi := uint8(255), uint8(0)
	for i := 0; i < len(img.Pix); i += 4 {
		lo = min(lo, img.Pix[i])
		hi = max(hi, img.Pix[i])
	}
	assert.Equal(t, uint8(0), lo)
	assert.Equal(t, uint8(255), hi)
}

func TestAutocontrast_FlatImageUnchanged(t *testing.T) {
	img := toRGB(gradient(8, 8, 128, 128))
	before := append([]uint8(nil), img.Pix...)

	autocontrast(img)
	assert.Equal(t, before, img.Pix)
}

func TestSharpen_UniformImageUnchanged(t *testing.T) {
	img := toRGB(gradient(8, 8, 90, 90))
	out := sharpen(img, 1.05)
	assert.Equal(t, img.Pix, out.Pix)
}

func TestSharpen_AmplifiesEdges(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	center := img.PixOffset(1, 1)
	img.Pix[center] = 200

	out := sharpen(img, 2.0)
	assert.Greater(t, out.Pix[center], img.Pix[center])
	// border pixels are copied verbatim
	assert.Equal(t, img.Pix[0], out.Pix[0])
}

func TestAdjustContrast(t *testing.T) {
	img := toRGB(gradient(16, 1, 0, 255))
	before := append([]uint8(nil), img.Pix...)

	adjustContrast(img, 1.0)
	assert.Equal(t, before, img.Pix, "factor 1 is a no-op")

	adjustContrast(img, 1.5)
	// darkest stays clipped at 0, brightest at 255, mid-range spreads out
	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, uint8(255), img.Pix[len(img.Pix)-4])
}

func TestToRGB_DropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0x40})

	dst := toRGB(src)
	assert.Equal(t, []uint8{10, 20, 30, 0xff}, dst.Pix[:4])
}
