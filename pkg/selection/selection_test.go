package selection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/types"
)

func createTestImage(width, height int, fill color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	return img
}

func createCheckerImage(width, height, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBA{40, 40, 40, 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{230, 230, 230, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func cand(src int, kind types.CropType, score float64) types.CropCandidate {
	return types.CropCandidate{SourceIndex: src, Type: kind, Score: score}
}

func countMouths(cands []types.CropCandidate) int {
	n := 0
	for _, c := range cands {
		if c.Type == types.CropMouth {
			n++
		}
	}
	return n
}

func TestScore512(t *testing.T) {
	flat := Score512(createTestImage(512, 512, color.NRGBA{140, 140, 140, 255}))
	textured := Score512(createCheckerImage(512, 512, 16))
	black := Score512(createTestImage(512, 512, color.NRGBA{0, 0, 0, 255}))

	assert.Greater(t, textured, flat)
	assert.Greater(t, flat, black)
	for _, s := range []float64{flat, textured, black} {
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
	assert.InDelta(t, 0.0, black, 1e-9)
}

func TestLipRedness512(t *testing.T) {
	assert.Equal(t, 0.0, LipRedness512(createTestImage(512, 512, color.NRGBA{128, 128, 128, 255})))

	red := LipRedness512(createTestImage(512, 512, color.NRGBA{220, 40, 60, 255}))
	assert.Greater(t, red, 0.8)
	assert.LessOrEqual(t, red, 1.0)
}

func TestBuildCandidates(t *testing.T) {
	images := []image.Image{
		createCheckerImage(300, 200, 10),
		createTestImage(150, 150, color.NRGBA{90, 90, 90, 255}),
		createTestImage(64, 80, color.NRGBA{200, 60, 70, 255}),
	}

	cands, err := BuildCandidates(context.Background(), images, []string{"a.png", ""}, true)
	require.NoError(t, err)
	require.Len(t, cands, 6)

	for i, c := range cands {
		assert.Equal(t, i/2, c.SourceIndex)
		if i%2 == 0 {
			assert.Equal(t, types.CropFace, c.Type)
		} else {
			assert.Equal(t, types.CropMouth, c.Type)
		}
	}
	assert.Equal(t, "a.png", cands[0].SourceName)
	assert.Equal(t, "image_2", cands[2].SourceName)
	assert.Equal(t, "image_3", cands[4].SourceName)

	faceOnly, err := BuildCandidates(context.Background(), images, nil, false)
	require.NoError(t, err)
	assert.Len(t, faceOnly, 3)
}

func TestBuildCandidatesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildCandidates(ctx, []image.Image{createCheckerImage(50, 50, 5)}, nil, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPickTopEmpty(t *testing.T) {
	assert.Nil(t, PickTop(nil, 5, 5))
}

func TestPickTopPrefersDiversity(t *testing.T) {
	cands := []types.CropCandidate{
		cand(0, types.CropFace, 0.9),
		cand(0, types.CropMouth, 0.85),
		cand(1, types.CropFace, 0.5),
		cand(1, types.CropMouth, 0.4),
		cand(2, types.CropFace, 0.3),
	}

	got := PickTop(cands, 5, 5)
	require.Len(t, got, 5)

	// First pass takes the best candidate of each source.
	assert.Equal(t, cands[0], got[0])
	assert.Equal(t, cands[2], got[1])
	assert.Equal(t, cands[4], got[2])
	assert.Equal(t, cands[1], got[3])
	assert.Equal(t, cands[3], got[4])
}

func TestPickTopMouthCap(t *testing.T) {
	var cands []types.CropCandidate
	for i := 0; i < 6; i++ {
		cands = append(cands, cand(i, types.CropMouth, 0.9), cand(i, types.CropFace, 0.2))
	}

	got := PickTop(cands, 2, 5)
	require.Len(t, got, 5)
	assert.Equal(t, 2, countMouths(got))

	none := PickTop(cands, 0, 5)
	assert.Equal(t, 0, countMouths(none))
}

func TestPickTopPadsCyclically(t *testing.T) {
	cands := []types.CropCandidate{
		cand(0, types.CropFace, 0.2),
		cand(1, types.CropFace, 0.7),
	}

	got := PickTop(cands, 0, 5)
	require.Len(t, got, 5)
	assert.Equal(t, []types.CropCandidate{cands[1], cands[0], cands[1], cands[0], cands[1]}, got)
}

func TestPickTopOnlyBlockedMouthsUsesFiller(t *testing.T) {
	cands := []types.CropCandidate{cand(0, types.CropMouth, 0.4), cand(1, types.CropMouth, 0.6)}

	got := PickTop(cands, 0, 5)
	require.Len(t, got, 5)
	for _, c := range got {
		assert.Equal(t, cands[1], c)
	}
}

func TestPickTopNeverShort(t *testing.T) {
	for n := 1; n <= 7; n++ {
		var cands []types.CropCandidate
		for i := 0; i < n; i++ {
			cands = append(cands, cand(i%3, types.CropFace, float64(i)/10))
		}
		assert.Len(t, PickTop(cands, 1, 5), 5)
	}
}

func BenchmarkScore512(b *testing.B) {
	img := createCheckerImage(512, 512, 12)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Score512(img)
	}
}
