// Package selection scores square crops from several source images and picks
// a diverse top set.
package selection

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/meme-maker/pkg/types"
	"github.com/menta2k/meme-maker/pkg/vision"
)

const (
	scoreSample    = 128
	lipStride      = 4
	lipThreshold   = 12.0
	exposureTarget = 0.55
)

// Score512 rates a crop by sharpness, exposure and contrast. The result is in [0,1].
func Score512(img image.Image) float64 {
	small := imaging.Resize(imaging.Grayscale(img), scoreSample, scoreSample, imaging.Linear)
	mean, std := channelStats(small)

	edges := vision.EdgeMap(small)
	edgeMean, _ := channelStats(edges)

	exposure := 1 - math.Min(1, math.Abs(mean/255-exposureTarget)/exposureTarget)
	contrast := math.Min(1, std/255*2.2)
	sharpness := math.Min(1, edgeMean/255*2.6)

	return types.Clamp(0.52*sharpness+0.28*exposure+0.20*contrast, 0, 1)
}

// LipRedness512 estimates how much of the crop's lower-centre looks like lips.
// It is used to demote mouth crops whose detector fell back to a guess.
func LipRedness512(img image.Image) float64 {
	rgb := imaging.Clone(img)
	w, h := rgb.Bounds().Dx(), rgb.Bounds().Dy()
	x1, x2 := int(float64(w)*0.14), int(float64(w)*0.86)
	y1, y2 := int(float64(h)*0.32), int(float64(h)*0.84)

	var hit, total int
	var intensity float64
	for y := y1; y < y2; y += lipStride {
		row := rgb.Pix[y*rgb.Stride:]
		for x := x1; x < x2; x += lipStride {
			score := vision.LipScore(row[x*4], row[x*4+1], row[x*4+2])
			if score > lipThreshold {
				hit++
				intensity += math.Min(255, score) / 255
			}
			total++
		}
	}
	if total == 0 || hit == 0 {
		return 0
	}

	density := math.Min(1, float64(hit)/float64(total)*10)
	intensity /= float64(hit)
	return types.Clamp(density*(0.55+0.45*intensity), 0, 1)
}

// channelStats returns the mean and population standard deviation of the red channel.
func channelStats(img *image.NRGBA) (float64, float64) {
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0, 0
	}
	var sum, sq float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			v := float64(row[x*4])
			sum += v
			sq += v * v
		}
	}
	mean := sum / n
	variance := math.Max(0, sq/n-mean*mean)
	return mean, math.Sqrt(variance)
}
