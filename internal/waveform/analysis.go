package waveform

import (
	"context"
	"fmt"
)

// Canvas dimensions used by the two rendering contexts. Still cards are
// landscape, waveform videos are portrait.
const (
	StillCardWidth  = 1280
	StillCardHeight = 720
	VideoWidth      = 720
	VideoHeight     = 1280
)

// Analysis is the peak-amplitude reduction of one audio file, sized for a
// target canvas width. Samples are normalized to [0,1] with the global peak
// at 1.0; a silent source stays all-zero.
type Analysis struct {
	SampleData []float64
	Duration   float64
	SampleRate int
}

// PCM is decoded single-channel audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Duration   float64
}

// Analyze reduces decoded PCM to floor(canvasWidth/barWidth) peak samples.
// Each output sample is the peak absolute value of its contiguous block of
// floor(len(samples)/targetCount) input samples; trailing remainder samples
// are dropped. The result is normalized by the global peak.
func Analyze(pcm PCM, canvasWidth, barWidth int) (Analysis, error) {
	if canvasWidth <= 0 {
		return Analysis{}, fmt.Errorf("waveform analyze: canvas width must be positive, got %d", canvasWidth)
	}
	if barWidth <= 0 {
		return Analysis{}, fmt.Errorf("waveform analyze: bar width must be positive, got %d", barWidth)
	}

	targetCount := canvasWidth / barWidth
	if targetCount == 0 {
		return Analysis{}, fmt.Errorf("waveform analyze: bar width %d exceeds canvas width %d", barWidth, canvasWidth)
	}

	samples := make([]float64, targetCount)
	if len(pcm.Samples) > 0 {
		blockSize := len(pcm.Samples) / targetCount
		if blockSize == 0 {
			blockSize = 1
		}
		var peak float64
		for i := 0; i < targetCount; i++ {
			start := i * blockSize
			if start >= len(pcm.Samples) {
				break
			}
			end := start + blockSize
			if end > len(pcm.Samples) {
				end = len(pcm.Samples)
			}
			var blockPeak float64
			for _, s := range pcm.Samples[start:end] {
				v := float64(s)
				if v < 0 {
					v = -v
				}
				if v > blockPeak {
					blockPeak = v
				}
			}
			samples[i] = blockPeak
			if blockPeak > peak {
				peak = blockPeak
			}
		}
		// Silent input keeps every sample at zero.
		if peak > 0 {
			for i := range samples {
				samples[i] /= peak
			}
		}
	}

	return Analysis{
		SampleData: samples,
		Duration:   pcm.Duration,
		SampleRate: pcm.SampleRate,
	}, nil
}

// AnalyzeFile decodes an audio file and reduces it for the given canvas width.
func AnalyzeFile(ctx context.Context, decoder Decoder, path string, canvasWidth, barWidth int) (Analysis, error) {
	pcm, err := decoder.Decode(ctx, path)
	if err != nil {
		return Analysis{}, err
	}
	return Analyze(pcm, canvasWidth, barWidth)
}
