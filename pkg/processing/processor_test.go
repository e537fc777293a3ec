package processing

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/meme-maker/pkg/types"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	p := NewProcessor()

	img, err := p.DecodeImage(encodePNG(t, createTestImage(40, 30)))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestDecodeImageUnreadable(t *testing.T) {
	p := NewProcessor()

	tests := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := p.DecodeImage(data)
			assert.ErrorIs(t, err, types.ErrUnreadableImage)
		})
	}
}

func TestEncodeForModelDownscales(t *testing.T) {
	p := &Processor{MaxModelDim: 100, JPEGQuality: 80}

	data, mime, err := p.EncodeForModel(createTestImage(400, 200), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, decoded.Bounds().Dx())
	assert.Equal(t, 50, decoded.Bounds().Dy())
}

func TestEncodeForModelKeepsPNG(t *testing.T) {
	p := &Processor{MaxModelDim: 100}

	data, mime, err := p.EncodeForModel(createTestImage(200, 400), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
	assert.Equal(t, 100, decoded.Bounds().Dy())
}

func TestMontage3x2(t *testing.T) {
	p := NewProcessor()
	tiles := make([]image.Image, 5)
	for i := range tiles {
		tiles[i] = imaging.New(types.OutputSize, types.OutputSize, color.NRGBA{255, 255, 255, 255})
	}

	m := p.Montage3x2(tiles)
	assert.Equal(t, types.OutputSize*3, m.Bounds().Dx())
	assert.Equal(t, types.OutputSize*2, m.Bounds().Dy())

	// Fifth tile is the middle bottom cell; the last cell stays background.
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, m.NRGBAAt(types.OutputSize+10, types.OutputSize+10))
	assert.Equal(t, montageBackground, m.NRGBAAt(2*types.OutputSize+10, types.OutputSize+10))
}

func TestSaveImageFormats(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(32, 32)

	for _, format := range []string{"png", "jpg", "webp"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(dir, "out"+Extension(format))
			require.NoError(t, p.SaveImage(img, path, format, 90, false))

			data, mime, err := p.LoadImage(path)
			require.NoError(t, err)
			assert.Contains(t, mime, "image/")

			decoded, err := p.DecodeImage(data)
			require.NoError(t, err)
			assert.Equal(t, 32, decoded.Bounds().Dx())
		})
	}
}

func TestGuessMime(t *testing.T) {
	assert.Equal(t, "image/png", GuessMime("x.bin", encodePNG(t, createTestImage(4, 4))))
	assert.Equal(t, "image/webp", GuessMime("photo.WEBP", nil))
	assert.Equal(t, "image/jpeg", GuessMime("photo", nil))
}

func TestDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := imaging.New(100, 100, color.NRGBA{0, 0, 0, 255})

	out := p.DebugOverlay(img, []image.Rectangle{image.Rect(10, 10, 60, 60)})
	assert.Equal(t, color.NRGBA{255, 204, 0, 255}, out.NRGBAAt(10, 30))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(30, 30))
}

func TestLimitsCheck(t *testing.T) {
	l := Limits{MaxBytes: 10, MaxTotalBytes: 15, MaxFiles: 2}

	assert.NoError(t, l.Check([][]byte{make([]byte, 10)}))
	assert.ErrorIs(t, l.Check(nil), ErrUploadTooLarge)
	assert.ErrorIs(t, l.Check([][]byte{make([]byte, 11)}), ErrUploadTooLarge)
	assert.ErrorIs(t, l.Check([][]byte{make([]byte, 8), make([]byte, 8)}), ErrUploadTooLarge)
	assert.ErrorIs(t, l.Check([][]byte{{1}, {2}, {3}}), ErrUploadTooLarge)
}

func BenchmarkDecodeImage(b *testing.B) {
	p := NewProcessor()
	var buf bytes.Buffer
	_ = png.Encode(&buf, createTestImage(256, 256))
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.DecodeImage(data)
	}
}
