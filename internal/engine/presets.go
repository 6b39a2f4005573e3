package engine

import (
	"fmt"

	"scenecast/internal/config"
)

// Preset identifies one of the closed set of encode command shapes.
type Preset int

const (
	// FrameSequencePreset encodes a numbered JPEG frame sequence plus an
	// audio track into an MP4.
	FrameSequencePreset Preset = iota
	// StillImagePreset loops a single image for the duration of an audio
	// track.
	StillImagePreset
)

func (p Preset) String() string {
	switch p {
	case FrameSequencePreset:
		return "frame-sequence"
	case StillImagePreset:
		return "still-image"
	default:
		return fmt.Sprintf("preset(%d)", int(p))
	}
}

// Params holds the encode parameters shared by every preset. Codec and
// container choices are fixed here so output settings cannot drift between
// conversion paths.
type Params struct {
	FPS           int
	VideoPreset   string
	VideoCRF      int
	PixelFormat   string
	AudioBitrate  string
	AudioRate     int
	AudioChannels int
}

// ParamsFromConfig builds encode parameters from ffmpeg configuration.
func ParamsFromConfig(cfg config.FFmpeg, fps int) Params {
	return Params{
		FPS:           fps,
		VideoPreset:   cfg.VideoPreset,
		VideoCRF:      cfg.VideoCRF,
		PixelFormat:   "yuv420p",
		AudioBitrate:  cfg.AudioBitrate,
		AudioRate:     cfg.AudioRate,
		AudioChannels: cfg.AudioChannels,
	}
}

// inputs names the staged workspace entries a command operates on. All names
// are relative to the workspace root.
type inputs struct {
	FramePattern string
	StillName    string
	AudioName    string
	OutputName   string
}

// BuildArgs returns the full argument list for the preset. The function is
// pure: identical parameters and inputs always produce identical arguments.
func (p Preset) BuildArgs(params Params, in inputs) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-progress", "pipe:1", "-y"}

	switch p {
	case StillImagePreset:
		args = append(args, "-loop", "1", "-i", in.StillName)
	default:
		args = append(args,
			"-framerate", fmt.Sprintf("%d", params.FPS),
			"-i", in.FramePattern,
		)
	}

	args = append(args,
		"-i", in.AudioName,
		"-c:v", "libx264",
		"-preset", params.VideoPreset,
		"-crf", fmt.Sprintf("%d", params.VideoCRF),
		"-pix_fmt", params.PixelFormat,
		"-c:a", "aac",
		"-b:a", params.AudioBitrate,
		"-ar", fmt.Sprintf("%d", params.AudioRate),
		"-ac", fmt.Sprintf("%d", params.AudioChannels),
		"-shortest",
		"-movflags", "+faststart",
	)
	if p == StillImagePreset {
		args = append(args, "-tune", "stillimage")
	}
	return append(args, in.OutputName)
}
