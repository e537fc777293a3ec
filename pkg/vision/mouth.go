package vision

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

const (
	mouthSampleSide   = 220
	mouthMinROI       = 20
	mouthPixelFloor   = 6.0
	mouthPeakRequired = 14.0
)

// Point is a location in floating point pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// LipScore rates how lip-like a pixel is. Red-dominant pixels score high,
// white and gray fabrics score near or below zero.
func LipScore(r, g, b uint8) float64 {
	return float64(r) - 0.55*float64(g) - 0.45*float64(b)
}

// LocateMouth finds the weighted centroid of lip-red pixels inside roi.
// The returned point is relative to roi.Bounds().Min. ok is false when the
// signal is too weak to trust.
func LocateMouth(roi image.Image) (Point, bool) {
	rb := roi.Bounds()
	rw, rh := rb.Dx(), rb.Dy()
	if rw < mouthMinROI || rh < mouthMinROI {
		return Point{}, false
	}

	var small *image.NRGBA
	scale := math.Min(1.0, mouthSampleSide/float64(max(rw, rh)))
	if scale < 1.0 {
		small = imaging.Resize(roi, max(1, int(float64(rw)*scale)), max(1, int(float64(rh)*scale)), imaging.Lanczos)
	} else {
		small = imaging.Clone(roi)
	}

	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()
	x1, x2 := int(float64(sw)*0.12), int(float64(sw)*0.88)
	y1, y2 := int(float64(sh)*0.30), int(float64(sh)*0.86)
	if x2 <= x1+4 || y2 <= y1+4 {
		return Point{}, false
	}

	var sumW, sumX, sumY, peak float64
	for y := y1; y < y2; y++ {
		row := small.Pix[y*small.Stride:]
		for x := x1; x < x2; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			score := LipScore(r, g, b)
			if score <= mouthPixelFloor {
				continue
			}
			sat := float64(max(r, g, b) - min(r, g, b))
			w := score * (0.6 + sat/255.0)
			sumW += w
			sumX += w * float64(x)
			sumY += w * float64(y)
			if score > peak {
				peak = score
			}
		}
	}

	if sumW <= 1e-6 || peak < mouthPeakRequired {
		return Point{}, false
	}

	cx := sumX / sumW / float64(sw) * float64(rw)
	cy := sumY / sumW / float64(sh) * float64(rh)
	return Point{X: cx, Y: cy}, true
}
