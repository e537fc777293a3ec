package cropper

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/meme-maker/pkg/types"
	"github.com/menta2k/meme-maker/pkg/vision"
)

const (
	autoFocusMinSide   = 96
	autoFocusMaxSample = 320
	autoFocusGrid      = 10
	autoFocusPenalty   = 0.22
	degenerateEdge     = 10
)

var autoFocusScales = []float64{0.45, 0.60, 0.78}

// SmartCropper turns crop hints into square output tiles.
type SmartCropper struct {
	config CropConfig
}

// CropConfig holds configuration for square cropping
type CropConfig struct {
	OutputSize int
	Filter     imaging.ResampleFilter
}

// New creates a new SmartCropper producing 512x512 Lanczos-resampled tiles
func New() *SmartCropper {
	return &SmartCropper{
		config: CropConfig{
			OutputSize: types.OutputSize,
			Filter:     imaging.Lanczos,
		},
	}
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	if config.OutputSize <= 0 {
		config.OutputSize = types.OutputSize
	}
	if config.Filter.Support == 0 && config.Filter.Kernel == nil {
		config.Filter = imaging.Lanczos
	}
	return &SmartCropper{config: config}
}

// Plan returns one source rectangle per output slot.
func (c *SmartCropper) Plan(img image.Image, hints []types.CropHint, pref types.CropPreference) []image.Rectangle {
	rects := make([]image.Rectangle, types.CropCount)
	var focus *image.Rectangle

	for i := range rects {
		hint := types.NoHint()
		if i < len(hints) {
			hint = hints[i]
		}
		box, ok := hint.Box()

		switch {
		case pref == types.PreferMouthCloseup && ok:
			rects[i] = MouthCloseup(img, box, i)
		case pref == types.PreferMouthCloseup:
			rects[i] = MouthCloseupGlobal(img, i)
		case ok:
			rects[i] = SquareFromBox(img, box)
		default:
			if focus == nil {
				r := AutoFocus(img)
				focus = &r
			}
			rects[i] = *focus
		}
	}
	return rects
}

// Crops cuts every rectangle out of img and resizes it to the output size.
func (c *SmartCropper) Crops(img image.Image, rects []image.Rectangle) []image.Image {
	out := make([]image.Image, 0, len(rects))
	for _, r := range rects {
		out = append(out, c.Tile(img, r))
	}
	return out
}

// Tile crops a single rectangle and resizes it to the output size.
func (c *SmartCropper) Tile(img image.Image, r image.Rectangle) image.Image {
	size := c.config.OutputSize
	return imaging.Resize(CropSquare(img, r), size, size, c.config.Filter)
}

// MakeCrops plans and cuts the five output tiles in one step.
func (c *SmartCropper) MakeCrops(img image.Image, hints []types.CropHint, pref types.CropPreference) ([]image.Rectangle, []image.Image) {
	rects := c.Plan(img, hints, pref)
	return rects, c.Crops(img, rects)
}

// CenterSquare returns the largest square centred inside r.
func CenterSquare(r image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	side := min(w, h)
	left := r.Min.X + (w-side)/2
	top := r.Min.Y + (h-side)/2
	return image.Rect(left, top, left+side, top+side)
}

// SquareFromBox converts a normalized box into a square centred on the box.
// Boxes that collapse to 10px or less fall through to AutoFocus.
func SquareFromBox(img image.Image, box types.Box) image.Rectangle {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	box = box.Clamped()

	left := box.X * w
	top := box.Y * h
	bw := box.W * w
	bh := box.H * h

	cx := left + bw/2
	cy := top + bh/2
	side := math.Min(math.Max(1, math.Min(bw, bh)), math.Min(w, h))
	half := side / 2

	l, t, r, btm := cx-half, cy-half, cx+half, cy+half
	if l < 0 {
		r -= l
		l = 0
	}
	if t < 0 {
		btm -= t
		t = 0
	}
	if r > w {
		l -= r - w
		r = w
	}
	if btm > h {
		t -= btm - h
		btm = h
	}

	li := int(math.Max(0, math.Floor(l)))
	ti := int(math.Max(0, math.Floor(t)))
	ri := int(math.Min(w, math.Ceil(r)))
	bi := int(math.Min(h, math.Ceil(btm)))

	if ri-li <= degenerateEdge || bi-ti <= degenerateEdge {
		return AutoFocus(img)
	}
	return CenterSquare(image.Rect(li, ti, ri, bi).Add(b.Min))
}

// AutoFocus picks the square window with the highest edge density, with a
// mild penalty for distance from the image centre.
func AutoFocus(img image.Image) image.Rectangle {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if min(w, h) < autoFocusMinSide {
		return CenterSquare(b)
	}

	ratio := 1.0
	small := img
	if long := max(w, h); long > autoFocusMaxSample {
		ratio = float64(autoFocusMaxSample) / float64(long)
		small = imaging.Resize(img, max(1, int(float64(w)*ratio)), max(1, int(float64(h)*ratio)), imaging.Lanczos)
	}

	sw, sh := small.Bounds().Dx(), small.Bounds().Dy()
	if min(sw, sh) < autoFocusMinSide {
		return CenterSquare(b)
	}

	ii := vision.NewIntegral(vision.EdgeMap(small))
	minSide := min(sw, sh)

	var sizes []int
	for _, s := range autoFocusScales {
		if side := int(float64(minSide) * s); side >= autoFocusMinSide {
			sizes = append(sizes, side)
		}
	}
	if len(sizes) == 0 {
		return CenterSquare(b)
	}

	cx, cy := float64(sw)/2, float64(sh)/2
	norm := math.Max(1, float64(minSide)/2)
	bestScore := math.Inf(-1)
	bestX, bestY, bestSide := (sw-sizes[0])/2, (sh-sizes[0])/2, sizes[0]

	for _, side := range sizes {
		for _, pos := range gridPositions(max(0, sw-side), max(0, sh-side)) {
			density := ii.Density(pos.X, pos.Y, side)
			wx := float64(pos.X) + float64(side)/2 - cx
			wy := float64(pos.Y) + float64(side)/2 - cy
			dist := math.Hypot(wx, wy) / norm
			score := density * (1 - autoFocusPenalty*math.Min(1, dist))
			if score > bestScore {
				bestScore = score
				bestX, bestY, bestSide = pos.X, pos.Y, side
			}
		}
	}

	oside := min(int(float64(bestSide)/ratio), min(w, h))
	ox := clampInt(int(float64(bestX)/ratio), 0, w-oside)
	oy := clampInt(int(float64(bestY)/ratio), 0, h-oside)
	return CenterSquare(image.Rect(ox, oy, ox+oside, oy+oside).Add(b.Min))
}

func gridPositions(maxX, maxY int) []image.Point {
	if maxX == 0 && maxY == 0 {
		return []image.Point{{}}
	}
	pts := make([]image.Point, 0, autoFocusGrid*autoFocusGrid)
	for yi := 0; yi < autoFocusGrid; yi++ {
		y := maxY * yi / (autoFocusGrid - 1)
		for xi := 0; xi < autoFocusGrid; xi++ {
			x := maxX * xi / (autoFocusGrid - 1)
			pts = append(pts, image.Point{X: x, Y: y})
		}
	}
	return pts
}

// CropSquare materialises a rectangle from img.
func CropSquare(img image.Image, r image.Rectangle) *image.NRGBA {
	return imaging.Crop(img, r)
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
