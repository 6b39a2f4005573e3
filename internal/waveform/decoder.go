package waveform

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"scenecast/internal/media/ffprobe"
	"scenecast/internal/services"
)

var (
	commandContext = exec.CommandContext
	inspect        = ffprobe.Inspect
)

// Decoder produces single-channel PCM from an audio file.
type Decoder interface {
	Decode(ctx context.Context, path string) (PCM, error)
}

// Option configures the ffmpeg decoder.
type Option func(*FFmpegDecoder)

// WithBinaries overrides the default ffmpeg and ffprobe binary names.
func WithBinaries(ffmpegBinary, ffprobeBinary string) Option {
	return func(d *FFmpegDecoder) {
		if ffmpegBinary != "" {
			d.ffmpeg = ffmpegBinary
		}
		if ffprobeBinary != "" {
			d.ffprobe = ffprobeBinary
		}
	}
}

// FFmpegDecoder decodes compressed audio to s16le PCM via ffmpeg.
//
// Only the first channel is extracted (pan=mono|c0=c0); other channels are
// ignored rather than averaged. This is an accepted simplification: the
// waveform visualizes loudness shape, not a faithful downmix.
type FFmpegDecoder struct {
	ffmpeg  string
	ffprobe string
}

// NewFFmpegDecoder constructs a decoder using defaults.
func NewFFmpegDecoder(opts ...Option) *FFmpegDecoder {
	dec := &FFmpegDecoder{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(dec)
	}
	return dec
}

// Decode returns the first audio channel of the file as 16-bit PCM.
// Undecodable input is tagged with services.ErrDecode.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (PCM, error) {
	if strings.TrimSpace(path) == "" {
		return PCM{}, errors.New("decode: empty path")
	}

	info, err := inspect(ctx, d.ffprobe, path)
	if err != nil {
		return PCM{}, services.Wrap(services.ErrDecode, "waveform", "probe", path, err)
	}
	if info.AudioStreamCount() == 0 {
		return PCM{}, services.Wrap(services.ErrDecode, "waveform", "probe", "no audio stream in "+path, nil)
	}
	sampleRate := info.SampleRate()
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-map", "0:a:0",
		"-af", "pan=mono|c0=c0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-",
	}
	cmd := commandContext(ctx, d.ffmpeg, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return PCM{}, services.Wrap(services.ErrDecode, "waveform", "decode", detail, err)
	}

	raw := stdout.Bytes()
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	duration := info.DurationSeconds()
	if duration == 0 && sampleRate > 0 {
		duration = float64(len(samples)) / float64(sampleRate)
	}

	return PCM{Samples: samples, SampleRate: sampleRate, Duration: duration}, nil
}

var _ Decoder = (*FFmpegDecoder)(nil)
