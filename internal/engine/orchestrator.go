package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"

	"scenecast/internal/config"
	"scenecast/internal/logging"
)

const (
	framePattern    = "frame_%05d.jpg"
	stillFileName   = "still.jpg"
	audioFilePrefix = "audio"
	outputFileName  = "output.mp4"
)

// Orchestrator runs encode conversions against the managed engine. The
// engine scratch filesystem is shared, so only one conversion may run at a
// time; overlapping requests fail fast with ErrConversionActive.
type Orchestrator struct {
	manager *Manager
	ffmpeg  config.FFmpeg
	logger  *slog.Logger
	busy    atomic.Bool
}

// NewOrchestrator returns an orchestrator bound to the given engine manager.
func NewOrchestrator(manager *Manager, ffmpeg config.FFmpeg, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{manager: manager, ffmpeg: ffmpeg, logger: logger}
}

// Encode muxes a JPEG frame sequence with an audio track into an MP4 and
// returns the encoded bytes. audioFormat hints the audio container so the
// engine can identify the staged track ("mp3", "wav", "m4a").
func (o *Orchestrator) Encode(ctx context.Context, frames [][]byte, audio []byte, fps int, audioFormat string, onProgress ProgressFunc) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("encode: no frames")
	}
	if fps <= 0 {
		return nil, fmt.Errorf("encode: invalid fps %d", fps)
	}
	duration := float64(len(frames)) / float64(fps)

	return o.convert(ctx, duration, onProgress, func(ws *workspace) (Preset, Params, inputs, error) {
		for i, frame := range frames {
			if err := ws.WriteFile(fmt.Sprintf(framePattern, i), frame); err != nil {
				return 0, Params{}, inputs{}, err
			}
		}
		audioName, err := stageAudio(ws, audio, audioFormat)
		if err != nil {
			return 0, Params{}, inputs{}, err
		}
		return FrameSequencePreset, ParamsFromConfig(o.ffmpeg, fps), inputs{
			FramePattern: framePattern,
			AudioName:    audioName,
			OutputName:   outputFileName,
		}, nil
	})
}

// EncodeStill loops a single image over an audio track. durationSeconds is
// used only for progress percentage and may be zero when unknown.
func (o *Orchestrator) EncodeStill(ctx context.Context, still []byte, audio []byte, audioFormat string, durationSeconds float64, onProgress ProgressFunc) ([]byte, error) {
	if len(still) == 0 {
		return nil, fmt.Errorf("encode still: no image")
	}

	return o.convert(ctx, durationSeconds, onProgress, func(ws *workspace) (Preset, Params, inputs, error) {
		if err := ws.WriteFile(stillFileName, still); err != nil {
			return 0, Params{}, inputs{}, err
		}
		audioName, err := stageAudio(ws, audio, audioFormat)
		if err != nil {
			return 0, Params{}, inputs{}, err
		}
		return StillImagePreset, ParamsFromConfig(o.ffmpeg, 1), inputs{
			StillName:  stillFileName,
			AudioName:  audioName,
			OutputName: outputFileName,
		}, nil
	})
}

type stageFunc func(ws *workspace) (Preset, Params, inputs, error)

func (o *Orchestrator) convert(ctx context.Context, duration float64, onProgress ProgressFunc, stage stageFunc) ([]byte, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrConversionActive
	}
	defer o.busy.Store(false)

	eng, err := o.manager.Engine(ctx)
	if err != nil {
		return nil, err
	}

	ws, err := newWorkspace(eng.ScratchRoot())
	if err != nil {
		return nil, err
	}
	defer ws.Cleanup()

	preset, params, in, err := stage(ws)
	if err != nil {
		return nil, err
	}
	ws.Track(in.OutputName)

	args := preset.BuildArgs(params, in)
	o.logger.Debug("starting conversion",
		logging.String(logging.FieldComponent, "engine"),
		logging.String("preset", preset.String()),
		logging.Int("args", len(args)))

	if err := o.run(ctx, eng, args, newProgressParser(duration, onProgress)); err != nil {
		return nil, err
	}

	out, err := ws.ReadFile(in.OutputName)
	if err != nil {
		return nil, &EncodeError{Err: fmt.Errorf("missing output: %w", err)}
	}
	return out, nil
}

func stageAudio(ws *workspace, audio []byte, format string) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
	if ext == "" {
		ext = "mp3"
	}
	name := audioFilePrefix + "." + ext
	if err := ws.WriteFile(name, audio); err != nil {
		return "", err
	}
	return name, nil
}

// run executes the engine command with its working directory inside the
// scratch root, forwarding progress lines from stdout and retaining the last
// stderr line for error reporting.
func (o *Orchestrator) run(ctx context.Context, eng *Engine, args []string, progress *progressParser) error {
	cmd := commandContext(ctx, eng.Binary(), args...)
	cmd.Dir = eng.ScratchRoot()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &EncodeError{Err: fmt.Errorf("start engine: %w", err)}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			progress.Line(scanner.Text())
		}
	}()

	var lastErrLine string
	errScanner := bufio.NewScanner(stderr)
	for errScanner.Scan() {
		if line := strings.TrimSpace(errScanner.Text()); line != "" {
			lastErrLine = line
		}
	}
	<-done

	if err := cmd.Wait(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		o.logger.Error("conversion failed",
			logging.String(logging.FieldComponent, "engine"),
			logging.Int("exit_code", code),
			logging.String("detail", lastErrLine))
		return &EncodeError{ExitCode: code, LogLine: lastErrLine, Err: err}
	}
	return nil
}
