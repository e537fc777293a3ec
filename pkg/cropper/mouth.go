package cropper

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/meme-maker/pkg/types"
	"github.com/menta2k/meme-maker/pkg/vision"
)

// variantOffsets jitter the crop centre, as a fraction of the crop side,
// so five calls on the same region produce five different tiles.
var variantOffsets = [5][2]float64{
	{0, 0},
	{-0.05, 0},
	{0.05, 0},
	{0, -0.05},
	{0, 0.05},
}

// mouthLift moves the crop centre below the mouth so the upper lip is never clipped.
const mouthLift = 0.06

func variantOffset(variant int) (float64, float64) {
	n := len(variantOffsets)
	o := variantOffsets[((variant%n)+n)%n]
	return o[0], o[1]
}

// MouthCloseup crops a square around the mouth located inside box.
func MouthCloseup(img image.Image, box types.Box, variant int) image.Rectangle {
	roi := roiFromBox(img, box)
	rw, rh := float64(roi.Dx()), float64(roi.Dy())
	roiMin := math.Min(rw, rh)

	cx, cy := rw*0.50, rh*0.56
	if p, ok := vision.LocateMouth(imaging.Crop(img, roi)); ok {
		cx, cy = p.X, p.Y
	}

	// Keep the focus out of bibs and collars.
	cy = math.Min(cy, rh*0.64)

	side := types.Clamp(roiMin*0.52, roiMin*0.38, roiMin*0.70)
	dx, dy := variantOffset(variant)
	cx += dx * side
	cy += dy * side
	cy += mouthLift * side

	return placeSquare(roi, cx, cy, side)
}

// MouthCloseupGlobal searches the top 78% of the image for a mouth and crops around it.
func MouthCloseupGlobal(img image.Image, variant int) image.Rectangle {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	short := math.Min(w, h)

	searchH := max(1, int(h*0.78))
	roi := image.Rect(0, 0, b.Dx(), searchH).Add(b.Min)

	var cx, cy, side float64
	if p, ok := vision.LocateMouth(imaging.Crop(img, roi)); ok {
		cx, cy = p.X, p.Y
		side = short * 0.34
	} else {
		cx, cy = w*0.50, h*0.42
		side = short * 0.42
	}
	side = types.Clamp(side, short*0.26, short*0.55)

	dx, dy := variantOffset(variant)
	cx += dx * side
	cy += dy * side
	cy += mouthLift * side
	cy = math.Min(cy, h*0.72)

	return placeSquare(b, cx, cy, side)
}

// roiFromBox converts a normalized box to a pixel rectangle of at least 2x2.
func roiFromBox(img image.Image, box types.Box) image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	box = box.Clamped()

	left := clampInt(int(box.X*float64(w)), 0, max(0, w-2))
	top := clampInt(int(box.Y*float64(h)), 0, max(0, h-2))
	right := clampInt(left+int(box.W*float64(w)), min(left+2, w), w)
	bottom := clampInt(top+int(box.H*float64(h)), min(top+2, h), h)

	return image.Rect(left, top, right, bottom).Add(b.Min)
}

// placeSquare positions a square of the given side centred on (cx, cy),
// relative to area, and shifts it inside area.
func placeSquare(area image.Rectangle, cx, cy, side float64) image.Rectangle {
	aw, ah := float64(area.Dx()), float64(area.Dy())
	side = math.Max(1, math.Min(side, math.Min(aw, ah)))

	left := int(math.Max(0, math.Min(aw-side, cx-side/2)))
	top := int(math.Max(0, math.Min(ah-side, cy-side/2)))
	right := int(math.Min(aw, float64(left)+side))
	bottom := int(math.Min(ah, float64(top)+side))

	return CenterSquare(image.Rect(left, top, right, bottom).Add(area.Min))
}
