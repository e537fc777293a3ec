// Package render draws captions onto square tiles and persists the results.
package render

import (
	"hash/fnv"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/meme-maker/pkg/safety"
	"github.com/menta2k/meme-maker/pkg/types"
)

const (
	marginX       = 26
	maxTextHeight = 170
	maxLines      = 3
	padBottom     = 14
	bandPad       = 12
	lineGap       = 2
	outline       = 1
)

// Glyphs are drawn at the face's native size and scaled up, largest first.
var scales = []int{5, 4, 3, 2}

var (
	textColor    = color.NRGBA{255, 255, 255, 255}
	outlineColor = color.NRGBA{0, 0, 0, 255}
	bandColor    = color.NRGBA{0, 0, 0, 120}
)

var cardPalettes = []color.NRGBA{
	{248, 250, 252, 255},
	{255, 247, 237, 255},
	{240, 253, 250, 255},
	{245, 243, 255, 255},
	{254, 242, 242, 255},
}

// Captioner renders caption text with a bitmap face.
type Captioner struct {
	face font.Face
}

// NewCaptioner returns a Captioner using the 7x13 bitmap face.
func NewCaptioner() *Captioner {
	return &Captioner{face: basicfont.Face7x13}
}

// Render draws caption over the bottom of tile on a translucent band.
// The tile is fitted to the output size first.
func (c *Captioner) Render(tile image.Image, caption string) *image.NRGBA {
	size := types.OutputSize
	var base *image.NRGBA
	if b := tile.Bounds(); b.Dx() != size || b.Dy() != size {
		base = imaging.Fill(tile, size, size, imaging.Center, imaging.Lanczos)
	} else {
		base = imaging.Clone(tile)
	}

	lines, scale := c.fit(caption)
	strip := c.drawStrip(lines)
	text := imaging.Resize(strip, strip.Bounds().Dx()*scale, strip.Bounds().Dy()*scale, imaging.NearestNeighbor)

	textW, textH := text.Bounds().Dx(), text.Bounds().Dy()
	y := max(bandPad, size-padBottom-textH)
	x := (size - textW) / 2

	top := max(0, y-bandPad)
	band := imaging.New(size, size-top, bandColor)
	base = imaging.Overlay(base, band, image.Pt(0, top), 1.0)
	return imaging.Overlay(base, text, image.Pt(x, y), 1.0)
}

// Card renders caption on a plain background picked deterministically from seed.
func (c *Captioner) Card(caption, seed string) *image.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	bg := cardPalettes[h.Sum32()%uint32(len(cardPalettes))]
	return c.Render(imaging.New(types.OutputSize, types.OutputSize, bg), caption)
}

// fit picks the largest scale at which caption wraps into at most maxLines
// lines within the margins and height budget.
func (c *Captioner) fit(caption string) ([]string, int) {
	text := strings.TrimSpace(caption)
	if text == "" {
		text = safety.DefaultCaption
	}

	for _, scale := range scales {
		width := (types.OutputSize-2*marginX)/scale - 2*outline
		lines := c.wrap(text, width)
		if len(lines) <= maxLines && c.blockHeight(len(lines))*scale <= maxTextHeight {
			return lines, scale
		}
	}

	scale := scales[len(scales)-1]
	lines := c.wrap(text, (types.OutputSize-2*marginX)/scale-2*outline)
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines, scale
}

// wrap breaks text on spaces so that each line is at most width pixels wide.
// Words wider than a line are split by rune.
func (c *Captioner) wrap(text string, width int) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if c.measure(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		for _, r := range word {
			if current != "" && c.measure(current+string(r)) > width {
				lines = append(lines, current)
				current = ""
			}
			current += string(r)
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (c *Captioner) measure(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

func (c *Captioner) lineHeight() int {
	return c.face.Metrics().Height.Ceil()
}

func (c *Captioner) blockHeight(n int) int {
	return n*c.lineHeight() + max(0, n-1)*lineGap + 2*outline
}

// drawStrip draws centered, outlined lines at native size on a transparent strip.
func (c *Captioner) drawStrip(lines []string) *image.NRGBA {
	width := 0
	for _, line := range lines {
		width = max(width, c.measure(line))
	}
	width += 2 * outline
	height := c.blockHeight(len(lines))
	strip := image.NewNRGBA(image.Rect(0, 0, width, height))

	ascent := c.face.Metrics().Ascent.Ceil()
	step := c.lineHeight() + lineGap
	for i, line := range lines {
		x := (width - c.measure(line)) / 2
		y := outline + i*step + ascent
		for dy := -outline; dy <= outline; dy++ {
			for dx := -outline; dx <= outline; dx++ {
				if dx != 0 || dy != 0 {
					c.drawString(strip, line, x+dx, y+dy, outlineColor)
				}
			}
		}
		c.drawString(strip, line, x, y, textColor)
	}
	return strip
}

func (c *Captioner) drawString(dst *image.NRGBA, s string, x, y int, col color.NRGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: c.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
