package fingerprint

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"golang.org/x/image/draw"
)

const hashSide = 8

// VisualHash reduces img to the 64-bit average hash used as an asset's visual
// fingerprint. Bit i (row-major over an 8x8 bilinear downsample) is set when
// that cell's luma is at least the integer mean luma.
func VisualHash(img image.Image) string {
	grid := image.NewRGBA(image.Rect(0, 0, hashSide, hashSide))
	draw.BiLinear.Scale(grid, grid.Bounds(), img, img.Bounds(), draw.Src, nil)
	return fmt.Sprintf("%016x", averageHash(grid))
}

func averageHash(grid *image.RGBA) uint64 {
	var (
		lum [hashSide * hashSide]int
		sum int
	)
	for y := 0; y < hashSide; y++ {
		for x := 0; x < hashSide; x++ {
			off := grid.PixOffset(x, y)
			r, g, b := int(grid.Pix[off]), int(grid.Pix[off+1]), int(grid.Pix[off+2])
			v := (r*299 + g*587 + b*114) / 1000
			lum[y*hashSide+x] = v
			sum += v
		}
	}
	avg := sum / len(lum)

	var hash uint64
	for i, v := range lum {
		if v >= avg {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// Hamming returns the number of differing bits between two visual hashes.
func Hamming(a, b string) (int, error) {
	x, err := strconv.ParseUint(a, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse visual hash %q: %w", a, err)
	}
	y, err := strconv.ParseUint(b, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse visual hash %q: %w", b, err)
	}
	return bits.OnesCount64(x ^ y), nil
}

// VisualSimilarity maps the Hamming distance of two hashes onto [0,1].
// Unparseable hashes score 0.
func VisualSimilarity(a, b string) float64 {
	d, err := Hamming(a, b)
	if err != nil {
		return 0
	}
	return 1 - float64(d)/64
}
