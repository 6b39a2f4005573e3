package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// BackgroundGeometry returns the placement of a background image on the
// canvas: scaled to fit while preserving aspect ratio, centered, with the
// remaining area letterboxed (top/bottom for wide images, left/right for
// tall ones).
func BackgroundGeometry(canvasWidth, canvasHeight, imageWidth, imageHeight int) (drawWidth, drawHeight, offsetX, offsetY int) {
	if imageWidth <= 0 || imageHeight <= 0 || canvasWidth <= 0 || canvasHeight <= 0 {
		return 0, 0, 0, 0
	}
	scale := math.Min(
		float64(canvasWidth)/float64(imageWidth),
		float64(canvasHeight)/float64(imageHeight),
	)
	drawWidth = int(math.Round(float64(imageWidth) * scale))
	drawHeight = int(math.Round(float64(imageHeight) * scale))
	offsetX = (canvasWidth - drawWidth) / 2
	offsetY = (canvasHeight - drawHeight) / 2
	return drawWidth, drawHeight, offsetX, offsetY
}

// RenderFrame composites one video frame onto dst for the given playback
// progress in [0,1]. background and overlay may be nil. The function is
// deterministic: identical inputs always produce identical pixels.
func RenderFrame(dst *image.RGBA, samples []float64, cfg Config, progress float64, background image.Image, overlay image.Image) {
	bounds := dst.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return
	}
	progress = clampFloat(progress, 0, 1)

	// Background: solid color, then the fitted image when present.
	draw.Draw(dst, bounds, image.NewUniform(cfg.BackgroundColor), image.Point{}, draw.Src)
	if background != nil {
		ib := background.Bounds()
		dw, dh, ox, oy := BackgroundGeometry(width, height, ib.Dx(), ib.Dy())
		if dw > 0 && dh > 0 {
			target := image.Rect(bounds.Min.X+ox, bounds.Min.Y+oy, bounds.Min.X+ox+dw, bounds.Min.Y+oy+dh)
			xdraw.ApproxBiLinear.Scale(dst, target, background, ib, xdraw.Over, nil)
		}
	}

	// Waveform band geometry.
	bandHeight := float64(height)
	bandTop := 0.0
	if cfg.WaveformPosition == PositionBottom {
		bandHeight = float64(height) * cfg.WaveformHeight
		bandTop = float64(height) - bandHeight
	}
	centerY := bandTop + bandHeight/2

	if cfg.WaveformOverlayOpacity > 0 {
		darkenRect(dst, image.Rect(
			bounds.Min.X,
			bounds.Min.Y+int(math.Round(bandTop)),
			bounds.Max.X,
			bounds.Max.Y,
		), cfg.WaveformOverlayOpacity)
	}

	if len(samples) > 0 {
		switch cfg.Style {
		case StyleLine:
			drawEnvelopeStyle(dst, samples, cfg, progress, centerY, bandHeight, false)
		case StyleMirror:
			drawEnvelopeStyle(dst, samples, cfg, progress, centerY, bandHeight, true)
		default:
			drawBars(dst, samples, cfg, progress, centerY, bandHeight)
		}
	}

	// The bar brightening is the sole positional indicator when glow is on.
	// A frame without a waveform has no playback position to mark.
	if !cfg.PlayAreaGlow && len(samples) > 0 {
		drawPlayhead(dst, cfg, progress, bandTop)
	}

	if overlay != nil {
		draw.Draw(dst, bounds, overlay, overlay.Bounds().Min, draw.Over)
	}
}

func drawBars(dst *image.RGBA, samples []float64, cfg Config, progress, centerY, bandHeight float64) {
	bounds := dst.Bounds()
	width := float64(bounds.Dx())
	count := len(samples)
	slotWidth := width / float64(count)
	gap := slotWidth * cfg.BarGap
	barWidth := slotWidth - gap
	if barWidth <= 0 {
		return
	}
	progressX := progress * width

	for i, sample := range samples {
		halfHeight := sample * (bandHeight * 0.8) * 0.5
		if halfHeight <= 0 {
			continue
		}
		x0 := float64(bounds.Min.X) + float64(i)*slotWidth + gap/2
		barColor := cfg.barColor(i, count, progress)
		if cfg.PlayAreaGlow {
			barColor = cfg.glowColor(barColor, x0+barWidth/2-float64(bounds.Min.X), progressX)
		}
		radius := math.Min(2, barWidth/2)
		if radius > halfHeight {
			radius = halfHeight
		}
		// Mirrored halves above and below the band center.
		fillRoundedRect(dst, x0, centerY-halfHeight, x0+barWidth, centerY, radius, barColor)
		fillRoundedRect(dst, x0, centerY, x0+barWidth, centerY+halfHeight, radius, barColor)
	}
}

// drawEnvelopeStyle renders the line and mirror styles: a continuous
// amplitude envelope symmetric about the band center, stroked for line and
// filled for mirror, with quadratic midpoint smoothing in the mirror case.
func drawEnvelopeStyle(dst *image.RGBA, samples []float64, cfg Config, progress, centerY, bandHeight float64, fill bool) {
	bounds := dst.Bounds()
	width := bounds.Dx()
	amps := columnAmplitudes(samples, width, fill)
	progressX := progress * float64(width)

	prevTop, prevBottom := centerY, centerY
	for x := 0; x < width; x++ {
		halfHeight := amps[x] * (bandHeight * 0.8) * 0.5
		top := centerY - halfHeight
		bottom := centerY + halfHeight

		columnColor := cfg.barColor(x, width, progress)
		if cfg.PlayAreaGlow {
			columnColor = cfg.glowColor(columnColor, float64(x), progressX)
		}

		px := bounds.Min.X + x
		if fill {
			fillVSpan(dst, px, top, bottom, columnColor)
		} else {
			// Stroke both envelopes, bridging vertical jumps so the path
			// stays continuous.
			strokeVSpan(dst, px, math.Min(prevTop, top), math.Max(prevTop, top)+2, columnColor)
			strokeVSpan(dst, px, math.Min(prevBottom, bottom)-1, math.Max(prevBottom, bottom)+1, columnColor)
		}
		prevTop, prevBottom = top, bottom
	}
}

// columnAmplitudes expands the sample sequence to one amplitude per pixel
// column. Linear interpolation for the line style; quadratic midpoint
// smoothing (the canvas quadraticCurveTo idiom) for mirror.
func columnAmplitudes(samples []float64, width int, smooth bool) []float64 {
	amps := make([]float64, width)
	count := len(samples)
	if count == 0 || width == 0 {
		return amps
	}
	slotWidth := float64(width) / float64(count)
	pointX := func(i int) float64 { return (float64(i) + 0.5) * slotWidth }

	// Linear base pass; the smoothing pass overwrites interior columns.
	for x := 0; x < width; x++ {
		fx := float64(x)
		switch {
		case fx <= pointX(0):
			amps[x] = samples[0]
		case fx >= pointX(count - 1):
			amps[x] = samples[count-1]
		default:
			i := int((fx - slotWidth/2) / slotWidth)
			if i >= count-1 {
				i = count - 2
			}
			t := (fx - pointX(i)) / slotWidth
			amps[x] = samples[i]*(1-t) + samples[i+1]*t
		}
	}
	if !smooth || count < 3 {
		return amps
	}

	// Quadratic Bezier through segment midpoints with samples as controls.
	write := func(x int, v float64) {
		if x >= 0 && x < width {
			amps[x] = v
		}
	}
	mid := func(i int) (float64, float64) {
		return (pointX(i) + pointX(i+1)) / 2, (samples[i] + samples[i+1]) / 2
	}
	steps := int(math.Ceil(slotWidth)) * 4
	if steps < 8 {
		steps = 8
	}
	for i := 1; i < count-1; i++ {
		startX, startY := mid(i - 1)
		endX, endY := mid(i)
		controlX, controlY := pointX(i), samples[i]
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			u := 1 - t
			x := u*u*startX + 2*u*t*controlX + t*t*endX
			y := u*u*startY + 2*u*t*controlY + t*t*endY
			write(int(x), y)
		}
	}
	return amps
}

func drawPlayhead(dst *image.RGBA, cfg Config, progress, bandTop float64) {
	bounds := dst.Bounds()
	width := float64(bounds.Dx())
	x := float64(bounds.Min.X) + progress*width
	top := float64(bounds.Min.Y) + bandTop
	bottom := float64(bounds.Max.Y)

	// Soft glow stroke behind the solid line.
	blendVStrip(dst, x-4, x+4, top, bottom, cfg.WaveformPlayedColor, 0.25)
	for px := int(x) - 1; px <= int(x); px++ {
		strokeVSpan(dst, px, top, bottom, cfg.WaveformPlayedColor)
	}
}

func (c Config) barColor(index, count int, progress float64) color.RGBA {
	if float64(index)/float64(count) < progress {
		return c.WaveformPlayedColor
	}
	return c.WaveformColor
}

// glowColor brightens the base color when the bar sits within PlayAreaWidth
// pixels of the playhead, with linear falloff. The per-channel offset is
// computed from the already-selected base color.
func (c Config) glowColor(base color.RGBA, barCenterX, progressX float64) color.RGBA {
	distance := math.Abs(barCenterX - progressX)
	if distance > float64(c.PlayAreaWidth) || c.PlayAreaWidth <= 0 {
		return base
	}
	falloff := 1 - distance/float64(c.PlayAreaWidth)
	offset := int(float64(c.PlayAreaBrightness) * falloff)
	return color.RGBA{
		R: clampChannel(int(base.R) + offset),
		G: clampChannel(int(base.G) + offset),
		B: clampChannel(int(base.B) + offset),
		A: base.A,
	}
}

func clampChannel(v int) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fillRoundedRect fills an axis-aligned rectangle with rounded corners using
// per-row horizontal spans. Pure integer pixel writes keep it deterministic.
func fillRoundedRect(dst *image.RGBA, x0, y0, x1, y1, radius float64, c color.RGBA) {
	if x1 <= x0 || y1 <= y0 {
		return
	}
	if radius > (x1-x0)/2 {
		radius = (x1 - x0) / 2
	}
	if radius > (y1-y0)/2 {
		radius = (y1 - y0) / 2
	}
	for y := int(math.Ceil(y0 - 0.5)); float64(y)+0.5 < y1; y++ {
		fy := float64(y) + 0.5
		if fy < y0 {
			continue
		}
		inset := 0.0
		if radius > 0 {
			if dy := y0 + radius - fy; dy > 0 {
				inset = radius - math.Sqrt(math.Max(0, radius*radius-dy*dy))
			} else if dy := fy - (y1 - radius); dy > 0 {
				inset = radius - math.Sqrt(math.Max(0, radius*radius-dy*dy))
			}
		}
		startX := int(math.Ceil(x0 + inset - 0.5))
		endX := int(math.Floor(x1 - inset - 0.5))
		for x := startX; x <= endX; x++ {
			setPixel(dst, x, y, c)
		}
	}
}

func fillVSpan(dst *image.RGBA, x int, y0, y1 float64, c color.RGBA) {
	for y := int(math.Ceil(y0 - 0.5)); float64(y)+0.5 <= y1; y++ {
		setPixel(dst, x, y, c)
	}
}

func strokeVSpan(dst *image.RGBA, x int, y0, y1 float64, c color.RGBA) {
	fillVSpan(dst, x, y0, y1, c)
}

// darkenRect multiplies the region by (1-opacity), i.e. composites
// rgba(0,0,0,opacity) over it.
func darkenRect(dst *image.RGBA, rect image.Rectangle, opacity float64) {
	rect = rect.Intersect(dst.Bounds())
	keep := 1 - clampFloat(opacity, 0, 1)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		offset := dst.PixOffset(rect.Min.X, y)
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Pix[offset] = uint8(float64(dst.Pix[offset]) * keep)
			dst.Pix[offset+1] = uint8(float64(dst.Pix[offset+1]) * keep)
			dst.Pix[offset+2] = uint8(float64(dst.Pix[offset+2]) * keep)
			offset += 4
		}
	}
}

// blendVStrip composites a translucent vertical strip over the canvas.
func blendVStrip(dst *image.RGBA, x0, x1, y0, y1 float64, c color.RGBA, alpha float64) {
	bounds := dst.Bounds()
	alpha = clampFloat(alpha, 0, 1)
	for x := int(math.Ceil(x0 - 0.5)); float64(x)+0.5 < x1; x++ {
		if x < bounds.Min.X || x >= bounds.Max.X {
			continue
		}
		for y := int(math.Ceil(y0 - 0.5)); float64(y)+0.5 < y1; y++ {
			if y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			offset := dst.PixOffset(x, y)
			dst.Pix[offset] = uint8(float64(dst.Pix[offset])*(1-alpha) + float64(c.R)*alpha)
			dst.Pix[offset+1] = uint8(float64(dst.Pix[offset+1])*(1-alpha) + float64(c.G)*alpha)
			dst.Pix[offset+2] = uint8(float64(dst.Pix[offset+2])*(1-alpha) + float64(c.B)*alpha)
		}
	}
}

func setPixel(dst *image.RGBA, x, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	offset := dst.PixOffset(x, y)
	dst.Pix[offset] = c.R
	dst.Pix[offset+1] = c.G
	dst.Pix[offset+2] = c.B
	dst.Pix[offset+3] = 0xff
}
