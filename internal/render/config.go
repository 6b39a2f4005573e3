package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"scenecast/internal/config"
)

// Style selects how amplitude samples are drawn.
type Style string

const (
	StyleBars   Style = "bars"
	StyleLine   Style = "line"
	StyleMirror Style = "mirror"
)

// Position selects where the waveform band sits on the canvas.
type Position string

const (
	PositionFull   Position = "full"
	PositionBottom Position = "bottom"
)

// Config carries every option the compositor and sequence generator honor.
// Construct with FromVisualization so colors are parsed and values validated
// once, before any frame is drawn.
type Config struct {
	FPS                    int
	BarWidth               int
	BarGap                 float64
	Style                  Style
	BackgroundColor        color.RGBA
	WaveformColor          color.RGBA
	WaveformPlayedColor    color.RGBA
	WaveformPosition       Position
	WaveformHeight         float64
	WaveformOverlayOpacity float64
	PlayAreaGlow           bool
	PlayAreaWidth          int
	PlayAreaBrightness     int
	FrameQuality           int
}

// FromVisualization builds a render config from application settings.
func FromVisualization(vis config.Visualization, frameQuality int) (Config, error) {
	background, err := ParseHexColor(vis.BackgroundColor)
	if err != nil {
		return Config{}, fmt.Errorf("background_color: %w", err)
	}
	unplayed, err := ParseHexColor(vis.WaveformColor)
	if err != nil {
		return Config{}, fmt.Errorf("waveform_color: %w", err)
	}
	played, err := ParseHexColor(vis.WaveformPlayedColor)
	if err != nil {
		return Config{}, fmt.Errorf("waveform_played_color: %w", err)
	}

	cfg := Config{
		FPS:                    vis.FPS,
		BarWidth:               vis.BarWidth,
		BarGap:                 vis.BarGap,
		Style:                  Style(vis.Style),
		BackgroundColor:        background,
		WaveformColor:          unplayed,
		WaveformPlayedColor:    played,
		WaveformPosition:       Position(vis.WaveformPosition),
		WaveformHeight:         vis.WaveformHeight,
		WaveformOverlayOpacity: vis.WaveformOverlayOpacity,
		PlayAreaGlow:           vis.PlayAreaGlow,
		PlayAreaWidth:          vis.PlayAreaWidth,
		PlayAreaBrightness:     vis.PlayAreaBrightness,
		FrameQuality:           frameQuality,
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("render config: fps must be positive, got %d", c.FPS)
	}
	if c.BarWidth <= 0 {
		return fmt.Errorf("render config: bar width must be positive, got %d", c.BarWidth)
	}
	switch c.Style {
	case StyleBars, StyleLine, StyleMirror:
	default:
		return fmt.Errorf("render config: unknown style %q", c.Style)
	}
	switch c.WaveformPosition {
	case PositionFull, PositionBottom:
	default:
		return fmt.Errorf("render config: unknown waveform position %q", c.WaveformPosition)
	}
	if c.WaveformHeight <= 0 || c.WaveformHeight > 1 {
		return fmt.Errorf("render config: waveform height %v outside (0,1]", c.WaveformHeight)
	}
	if c.FrameQuality < 1 || c.FrameQuality > 100 {
		return fmt.Errorf("render config: frame quality %d outside [1,100]", c.FrameQuality)
	}
	return nil
}

// ParseHexColor parses a #rrggbb color string.
func ParseHexColor(value string) (color.RGBA, error) {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) != 7 || trimmed[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q is not #rrggbb", value)
	}
	parsed, err := strconv.ParseUint(trimmed[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q is not #rrggbb: %w", value, err)
	}
	return color.RGBA{
		R: uint8(parsed >> 16),
		G: uint8(parsed >> 8),
		B: uint8(parsed),
		A: 0xff,
	}, nil
}
