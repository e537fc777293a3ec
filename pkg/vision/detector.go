// Package vision holds the pixel-level heuristics used by the crop engine:
// an edge-magnitude map with an integral table for constant-time window sums,
// and a lip-redness mouth locator.
package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// findEdgesKernel is the classic 3x3 "find edges" Laplacian.
var findEdgesKernel = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// EdgeMap converts img to grayscale and returns its edge magnitude.
// Negative responses clamp to zero.
func EdgeMap(img image.Image) *image.NRGBA {
	gray := imaging.Grayscale(img)
	return imaging.Convolve3x3(gray, findEdgesKernel, nil)
}

// Integral is a summed-area table over one channel of an image.
type Integral struct {
	width  int
	height int
	sums   []int64
}

// NewIntegral builds the table over the red channel of a grayscale image.
func NewIntegral(img *image.NRGBA) *Integral {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	stride := w + 1
	sums := make([]int64, stride*(h+1))

	for y := 0; y < h; y++ {
		var rowSum int64
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			rowSum += int64(row[x*4])
			sums[(y+1)*stride+x+1] = sums[y*stride+x+1] + rowSum
		}
	}

	return &Integral{width: w, height: h, sums: sums}
}

// Sum returns the channel total over the rectangle [x, x+w) x [y, y+h).
// The rectangle is clipped to the table.
func (ii *Integral) Sum(x, y, w, h int) int64 {
	x1, y1 := clampInt(x, 0, ii.width), clampInt(y, 0, ii.height)
	x2, y2 := clampInt(x+w, 0, ii.width), clampInt(y+h, 0, ii.height)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	stride := ii.width + 1
	return ii.sums[y2*stride+x2] - ii.sums[y1*stride+x2] - ii.sums[y2*stride+x1] + ii.sums[y1*stride+x1]
}

// Density returns the mean value over a square window.
func (ii *Integral) Density(x, y, side int) float64 {
	if side <= 0 {
		return 0
	}
	return float64(ii.Sum(x, y, side, side)) / float64(side*side)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
