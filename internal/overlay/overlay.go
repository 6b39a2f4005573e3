// Package overlay renders scene text to a transparent raster surface the
// frame compositor stacks on top of each frame. The markdown-to-HTML path of
// the web editor is out of scope; this renderer draws the raw overlay string
// with a fixed bitmap font.
package overlay

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ChoiceSeparator splits scene text from the choice list in an overlay string.
const ChoiceSeparator = "---"

// Renderer produces the text overlay surface for a frame.
type Renderer interface {
	Render(ctx context.Context, text string, width, height int) (image.Image, error)
}

// Basic renders overlay text with the stdlib-adjacent basicfont face:
// wrapped scene text at the top, numbered choices beneath, over a translucent
// backing strip so text stays readable on any background.
type Basic struct {
	face font.Face
}

// NewBasic constructs the default overlay renderer.
func NewBasic() *Basic {
	return &Basic{face: basicfont.Face7x13}
}

// Render draws the overlay. The output surface always matches the requested
// dimensions; pixels outside the text strip stay fully transparent.
func (b *Basic) Render(_ context.Context, text string, width, height int) (image.Image, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return dst, nil
	}

	scene, choices := SplitScene(trimmed)

	const margin = 24
	lineHeight := b.face.Metrics().Height.Ceil() + 4
	maxColumns := (width - 2*margin) / 7 // basicfont glyphs are 7px wide
	if maxColumns < 8 {
		maxColumns = 8
	}

	lines := wrap(scene, maxColumns)
	for i, choice := range choices {
		lines = append(lines, "")
		numbered := formatChoice(i+1, choice)
		lines = append(lines, wrap(numbered, maxColumns)...)
	}

	stripHeight := len(lines)*lineHeight + 2*margin
	if stripHeight > height {
		stripHeight = height
	}
	backing := color.RGBA{A: 0x99}
	draw.Draw(dst, image.Rect(0, 0, width, stripHeight), image.NewUniform(backing), image.Point{}, draw.Src)

	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}),
		Face: b.face,
	}
	y := margin + b.face.Metrics().Ascent.Ceil()
	for _, line := range lines {
		if y > stripHeight-margin/2 {
			break
		}
		drawer.Dot = fixed.P(margin, y)
		drawer.DrawString(line)
		y += lineHeight
	}

	return dst, nil
}

// SplitScene separates an overlay string into scene text and choice lines
// using the --- separator convention.
func SplitScene(text string) (scene string, choices []string) {
	parts := strings.SplitN(text, "\n"+ChoiceSeparator+"\n", 2)
	scene = strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return scene, nil
	}
	for _, line := range strings.Split(parts[1], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		choices = append(choices, line)
	}
	return scene, choices
}

func formatChoice(n int, choice string) string {
	return strings.TrimSpace(strings.Join([]string{numeral(n), choice}, " "))
}

func numeral(n int) string {
	digits := "0123456789"
	if n < 10 {
		return string(digits[n]) + "."
	}
	return string(digits[n/10]) + string(digits[n%10]) + "."
}

func wrap(text string, columns int) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= columns {
				current += " " + word
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

var _ Renderer = (*Basic)(nil)
