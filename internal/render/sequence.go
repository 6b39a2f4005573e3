package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"

	_ "image/gif"
	_ "image/png"

	"scenecast/internal/services"
	"scenecast/internal/waveform"
)

// StageGenerating is the progress stage label reported while frames are rendered.
const StageGenerating = "Generating frames"

// ProgressFunc receives per-frame progress. current increases monotonically
// up to total; stage is a stable label for the running phase.
type ProgressFunc func(current, total int, stage string)

// Sequence is an ordered run of encoded still frames plus timing metadata.
type Sequence struct {
	Frames   [][]byte
	Duration float64
	FPS      int
}

// Inputs bundles the progress-invariant pieces a sequence needs: decoded
// amplitude data plus the background and overlay surfaces, each loaded or
// rendered exactly once.
type Inputs struct {
	Analysis   waveform.Analysis
	Background image.Image
	Overlay    image.Image
}

// LoadBackground decodes a background image file. An unreadable or
// undecodable file is tagged with services.ErrDecode.
func LoadBackground(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "render", "open background", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "render", "decode background", path, err)
	}
	return img, nil
}

// Generator drives the compositor across every time step of an audio file,
// producing the encoded frame sequence the encoder consumes.
type Generator struct {
	width  int
	height int
}

// NewGenerator constructs a generator for the given canvas dimensions.
func NewGenerator(width, height int) *Generator {
	return &Generator{width: width, height: height}
}

// NewVideoGenerator constructs a generator sized for portrait video frames.
func NewVideoGenerator() *Generator {
	return NewGenerator(waveform.VideoWidth, waveform.VideoHeight)
}

// Generate renders ceil(duration*fps) frames. Frame f uses progress
// f/(totalFrames-1); the final frame is forced to exactly 1.0 so
// floating-point drift can never leave it short of full progress. A single
// raster surface is reused across iterations; only the encoded bytes
// accumulate.
func (g *Generator) Generate(ctx context.Context, in Inputs, cfg Config, onProgress ProgressFunc) (Sequence, error) {
	if err := cfg.validate(); err != nil {
		return Sequence{}, err
	}
	duration := in.Analysis.Duration
	if duration <= 0 {
		return Sequence{}, services.Wrap(services.ErrValidation, "render", "generate", "audio duration is zero", nil)
	}

	totalFrames := int(math.Ceil(duration * float64(cfg.FPS)))
	if totalFrames < 1 {
		totalFrames = 1
	}

	surface := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	frames := make([][]byte, 0, totalFrames)
	var buf bytes.Buffer

	for f := 0; f < totalFrames; f++ {
		if err := ctx.Err(); err != nil {
			return Sequence{}, fmt.Errorf("generate frames: %w", err)
		}

		progress := 1.0
		if totalFrames > 1 {
			progress = float64(f) / float64(totalFrames-1)
		}
		if f == totalFrames-1 {
			progress = 1.0
		}

		RenderFrame(surface, in.Analysis.SampleData, cfg, progress, in.Background, in.Overlay)

		buf.Reset()
		if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: cfg.FrameQuality}); err != nil {
			return Sequence{}, fmt.Errorf("encode frame %d: %w", f, err)
		}
		frames = append(frames, append([]byte(nil), buf.Bytes()...))

		if onProgress != nil {
			onProgress(f+1, totalFrames, StageGenerating)
		}
	}

	return Sequence{Frames: frames, Duration: duration, FPS: cfg.FPS}, nil
}

// RenderStill renders the single still-card frame: background plus overlay,
// no waveform band and no playhead.
func (g *Generator) RenderStill(in Inputs, cfg Config) ([]byte, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	surface := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	still := cfg
	still.WaveformOverlayOpacity = 0
	RenderFrame(surface, nil, still, 0, in.Background, in.Overlay)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: cfg.FrameQuality}); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return buf.Bytes(), nil
}
