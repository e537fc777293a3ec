package render

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/types"
)

func createTestImage(width, height int, c color.NRGBA) *image.NRGBA {
	return imaging.New(width, height, c)
}

func TestRenderDrawsBand(t *testing.T) {
	c := NewCaptioner()
	white := color.NRGBA{255, 255, 255, 255}

	out := c.Render(createTestImage(types.OutputSize, types.OutputSize, white), "hello")
	assert.Equal(t, types.OutputSize, out.Bounds().Dx())
	assert.Equal(t, types.OutputSize, out.Bounds().Dy())

	assert.Equal(t, white, out.NRGBAAt(5, 5))
	band := out.NRGBAAt(5, types.OutputSize-5)
	assert.Less(t, band.R, uint8(200))
	assert.Equal(t, band.R, band.G)
}

func TestRenderFitsNonSquareTile(t *testing.T) {
	c := NewCaptioner()
	out := c.Render(createTestImage(300, 120, color.NRGBA{10, 20, 30, 255}), "x")
	assert.Equal(t, image.Rect(0, 0, types.OutputSize, types.OutputSize), out.Bounds())
}

func TestFitShrinksLongCaptions(t *testing.T) {
	c := NewCaptioner()

	lines, scale := c.fit("Hi")
	assert.Equal(t, []string{"Hi"}, lines)
	assert.Equal(t, scales[0], scale)

	long := strings.Repeat("wobble ", 12)
	lines, scale = c.fit(long)
	assert.LessOrEqual(t, len(lines), maxLines)
	assert.Less(t, scale, scales[0])
	for _, line := range lines {
		assert.LessOrEqual(t, c.measure(line)*scale, types.OutputSize-2*marginX)
	}

	lines, _ = c.fit("   ")
	assert.Equal(t, []string{"Got it"}, lines)
}

func TestWrapSplitsLongWords(t *testing.T) {
	c := NewCaptioner()
	lines := c.wrap("abcdefghij", 7*4)
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, lines)
}

func TestCardIsDeterministic(t *testing.T) {
	c := NewCaptioner()
	a := c.Card("same", "seed-1")
	b := c.Card("same", "seed-1")
	assert.Equal(t, a.Pix, b.Pix)

	bg := a.NRGBAAt(2, 2)
	assert.Contains(t, cardPalettes, bg)
}

func TestDirStoreSaveMemes(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir, "png", 0, nil)
	tiles := []image.Image{
		createTestImage(types.OutputSize, types.OutputSize, color.NRGBA{200, 0, 0, 255}),
		createTestImage(types.OutputSize, types.OutputSize, color.NRGBA{0, 200, 0, 255}),
	}

	memes, err := store.SaveMemes("req", tiles, []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, memes, types.CropCount)

	for i, m := range memes {
		assert.Equal(t, filepath.Join(dir, m.Filename), m.Path)
		_, err := os.Stat(m.Path)
		assert.NoError(t, err, "meme %d", i+1)
	}
	assert.Equal(t, "req_1.png", memes[0].Filename)
	assert.Equal(t, "three", memes[2].Caption)
	assert.Equal(t, "Got it", memes[4].Caption)

	// Slots beyond the available tiles reuse the first one.
	third, err := imaging.Open(memes[2].Path)
	require.NoError(t, err)
	r, _, _, _ := third.At(5, 5).RGBA()
	assert.Equal(t, uint32(200*0x101), r)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, types.CropCount, "no temporary files are left behind")
}

func TestDirStoreTextOnly(t *testing.T) {
	store := NewDirStore(t.TempDir(), "jpg", 85, nil)

	memes, err := store.SaveMemes("card", nil, []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, memes, types.CropCount)
	assert.Equal(t, "card_5.jpg", memes[4].Filename)

	img, err := imaging.Open(memes[0].Path)
	require.NoError(t, err)
	assert.Equal(t, types.OutputSize, img.Bounds().Dx())
}

func BenchmarkRender(b *testing.B) {
	c := NewCaptioner()
	tile := createTestImage(types.OutputSize, types.OutputSize, color.NRGBA{90, 90, 90, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Render(tile, "when the snack is gone")
	}
}
