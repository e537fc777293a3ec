package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/meme-maker/pkg/types"
)

// Montage layout: three columns, two rows, one output tile per cell.
const (
	MontageColumns = 3
	MontageRows    = 2
)

var montageBackground = color.NRGBA{20, 24, 32, 255}

// Processor handles image decoding, encoding and debug rendering.
type Processor struct {
	// MaxModelDim bounds the longest side of images sent to a model. Zero keeps the original size.
	MaxModelDim int
	JPEGQuality int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{MaxModelDim: 1536, JPEGQuality: 90}
}

// DecodeImage decodes upload bytes, honoring EXIF orientation.
// Failures wrap types.ErrUnreadableImage.
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", types.ErrUnreadableImage)
	}

	if img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode (animated or extended files the x/image decoder rejects)
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: unknown or unsupported format", types.ErrUnreadableImage)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: zero-sized image", types.ErrUnreadableImage)
	}
	return img, nil
}

// LoadImage reads a file and returns its bytes together with a guessed MIME type.
func (p *Processor) LoadImage(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	return data, GuessMime(path, data), nil
}

// EncodeForModel re-encodes img, downscaled so its longest side fits
// MaxModelDim. PNG sources stay lossless as PNG; everything else is sent as JPEG.
func (p *Processor) EncodeForModel(img image.Image, sourceMime string) ([]byte, string, error) {
	if p.MaxModelDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > p.MaxModelDim || h > p.MaxModelDim {
			if w >= h {
				img = imaging.Resize(img, p.MaxModelDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, p.MaxModelDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if strings.EqualFold(strings.TrimSpace(sourceMime), "image/png") {
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality())); err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// Montage3x2 lays out up to five tiles as
//
//	#1 #2 #3
//	#4 #5
//
// on a dark background. Tiles are drawn at their top-left cell corner.
func (p *Processor) Montage3x2(tiles []image.Image) *image.NRGBA {
	cell := types.OutputSize
	canvas := imaging.New(cell*MontageColumns, cell*MontageRows, montageBackground)
	for i, tile := range tiles {
		if i >= types.CropCount {
			break
		}
		col, row := i%MontageColumns, i/MontageColumns
		canvas = imaging.Overlay(canvas, tile, image.Pt(col*cell, row*cell), 1.0)
	}
	return canvas
}

// EncodeMontage renders the montage for tiles as JPEG bytes.
func (p *Processor) EncodeMontage(tiles []image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, p.Montage3x2(tiles), &jpeg.Options{Quality: p.quality()}); err != nil {
		return nil, "", fmt.Errorf("failed to encode montage: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func (p *Processor) quality() int {
	if p.JPEGQuality <= 0 || p.JPEGQuality > 100 {
		return 90
	}
	return p.JPEGQuality
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "webp":
		return ".webp"
	case "png":
		return ".png"
	default:
		return ".jpg"
	}
}

// GuessMime picks a MIME type from the file content, falling back to the extension.
func GuessMime(path string, data []byte) string {
	if len(data) > 0 {
		sniffed := http.DetectContentType(data)
		if strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return "image/jpeg"
}

// DebugOverlay draws every crop rectangle over img, each in its own color,
// and marks the image center.
func (p *Processor) DebugOverlay(img image.Image, rects []image.Rectangle) *image.NRGBA {
	nrgba := imaging.Clone(img)
	origin := img.Bounds().Min
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	palette := []color.NRGBA{
		{255, 204, 0, 255}, // gold
		{0, 255, 0, 255},
		{0, 170, 255, 255},
		{255, 0, 255, 255},
		{255, 96, 0, 255},
	}
	stroke := int(math.Max(2, 0.004*float64(min(w, h))))

	for i, r := range rects {
		drawRect(nrgba, r.Sub(origin), palette[i%len(palette)], stroke)
	}

	red := color.NRGBA{255, 0, 0, 255}
	ix, iy := w/2, h/2
	drawHLine(nrgba, iy, ix-6, ix+6, red)
	drawVLine(nrgba, ix, iy-6, iy+6, red)

	return nrgba
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
