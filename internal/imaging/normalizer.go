// Package imaging prepares rendered pages for the vision model: a fixed
// enhancement pipeline followed by JPEG and base64 encoding.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/spherical/invoice-extractor/internal/domain"
)

const mimeJPEG = "image/jpeg"

// Options controls the enhancement pipeline.
type Options struct {
	Sharpness float64 // 1.0 leaves the image unchanged
	Contrast  float64 // 1.0 leaves the image unchanged
	Quality   int     // JPEG quality, 1-100
}

// DefaultOptions returns the mild enhancement used for invoices.
func DefaultOptions() Options {
	return Options{Sharpness: 1.05, Contrast: 1.03, Quality: 85}
}

// Normalizer applies Options to page images. It holds no mutable state.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a normalizer. Zero fields fall back to DefaultOptions.
func NewNormalizer(opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.Sharpness == 0 {
		opts.Sharpness = def.Sharpness
	}
	if opts.Contrast == 0 {
		opts.Contrast = def.Contrast
	}
	if opts.Quality == 0 {
		opts.Quality = def.Quality
	}
	return &Normalizer{opts: opts}
}

// Normalize converts to RGB, stretches contrast to the full range, applies the
// sharpness and contrast boosts, then encodes to base64 JPEG.
func (n *Normalizer) Normalize(page domain.PageImage) (domain.EncodedImage, error) {
	if page.Image == nil {
		return domain.EncodedImage{}, domain.ConversionError(fmt.Sprintf("page %d has no image", page.PageNumber), nil)
	}

	img := toRGB(page.Image)
	autocontrast(img)
	img = sharpen(img, n.opts.Sharpness)
	adjustContrast(img, n.opts.Contrast)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.opts.Quality}); err != nil {
		return domain.EncodedImage{}, domain.ConversionError(fmt.Sprintf("Failed to encode page %d as JPG", page.PageNumber), err)
	}

	data := buf.Bytes()
	return domain.EncodedImage{
		PageNumber: page.PageNumber,
		MIMEType:   mimeJPEG,
		Data:       data,
		Base64:     base64.StdEncoding.EncodeToString(data),
	}, nil
}

// toRGB copies src into an opaque RGBA buffer, discarding alpha.
func toRGB(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := dst.PixOffset(x, y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// autocontrast remaps each channel so its darkest value becomes 0 and its
// lightest 255. Flat channels are left alone.
func autocontrast(img *image.RGBA) {
	for ch := 0; ch < 3; ch++ {
		lo, hi := 255, 0
		for i := ch; i < len(img.Pix); i += 4 {
			v := int(img.Pix[i])
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi <= lo {
			continue
		}

		scale := 255.0 / float64(hi-lo)
		offset := -float64(lo) * scale
		var lut [256]uint8
		for v := range lut {
			lut[v] = clamp8(float64(v)*scale + offset)
		}
		for i := ch; i < len(img.Pix); i += 4 {
			img.Pix[i] = lut[img.Pix[i]]
		}
	}
}

// sharpen blends the image with a smoothed copy. factor > 1 moves pixels
// away from their blurred value. Edge pixels are not filtered.
func sharpen(img *image.RGBA, factor float64) *image.RGBA {
	if factor == 1 {
		return img
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	out := image.NewRGBA(img.Rect)
	copy(out.Pix, img.Pix)
	if w < 3 || h < 3 {
		return out
	}

	// 1 1 1 / 1 5 1 / 1 1 1, normalized by 13
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := img.PixOffset(x, y)
			for ch := 0; ch < 3; ch++ {
				sum := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						v := int(img.Pix[img.PixOffset(x+dx, y+dy)+ch])
						if dx == 0 && dy == 0 {
							v *= 5
						}
						sum += v
					}
				}
				smooth := float64(sum) / 13
				orig := float64(img.Pix[i+ch])
				out.Pix[i+ch] = clamp8(smooth + factor*(orig-smooth))
			}
		}
	}
	return out
}

// adjustContrast blends the image with a flat gray of its mean luminance.
func adjustContrast(img *image.RGBA, factor float64) {
	if factor == 1 || len(img.Pix) == 0 {
		return
	}

	var total float64
	for i := 0; i < len(img.Pix); i += 4 {
		total += luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])
	}
	mean := float64(int(total/float64(len(img.Pix)/4) + 0.5))

	var lut [256]uint8
	for v := range lut {
		lut[v] = clamp8(mean + factor*(float64(v)-mean))
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = lut[img.Pix[i+0]]
		img.Pix[i+1] = lut[img.Pix[i+1]]
		img.Pix[i+2] = lut[img.Pix[i+2]]
	}
}

// luma uses the ITU-R 601-2 transform.
func luma(r, g, b uint8) float64 {
	return float64(r)*0.299 + float64(g)*0.587 + float64(b)*0.114
}

func clamp8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
