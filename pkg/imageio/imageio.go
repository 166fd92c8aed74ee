// Package imageio decodes pool and query images with every container
// format the search pool can hold registered up front, and derives the
// per-image measurements the gallery reports.
package imageio

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Load decodes the image at path using whichever registered format
// matches its magic bytes.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Probe reads just enough of the file at path to report pixel dimensions
// and the short format name, without decoding pixel data.
func Probe(path string) (width, height int, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Brightness returns the mean luminance of img normalized to [0, 1],
// using the integer BT.601 weighting (299R + 587G + 114B) / 1000 over
// 8-bit channels. An empty image reports zero.
func Brightness(img image.Image) float64 {
	bounds := img.Bounds()
	pixels := bounds.Dx() * bounds.Dy()
	if pixels == 0 {
		return 0
	}

	var sum uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (299*uint64(r>>8) + 587*uint64(g>>8) + 114*uint64(b>>8)) / 1000
			sum += lum
		}
	}
	return float64(sum) / float64(pixels) / 255.0
}

// ColorMode maps the decoded representation to the channel-layout label
// the gallery displays. The label follows the producing ecosystem's
// convention (L, P, RGB, RGBA, CMYK).
func ColorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.Paletted:
		return "P"
	case *image.NRGBA, *image.NRGBA64:
		return "RGBA"
	case *image.CMYK:
		return "CMYK"
	default:
		return "RGB"
	}
}
