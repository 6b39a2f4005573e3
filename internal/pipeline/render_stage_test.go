package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"scenecast/internal/config"
	"scenecast/internal/engine"
	"scenecast/internal/overlay"
	"scenecast/internal/scenes"
	"scenecast/internal/services"
	"scenecast/internal/testsupport"
	"scenecast/internal/waveform"
)

type toneDecoder struct{}

func (toneDecoder) Decode(ctx context.Context, path string) (waveform.PCM, error) {
	const (
		rate     = 8000
		duration = 0.2
	)
	total := int(rate * duration)
	samples := make([]int16, total)
	for i := range samples {
		samples[i] = int16(12000 * math.Sin(float64(i)/40))
	}
	return waveform.PCM{Samples: samples, SampleRate: rate, Duration: duration}, nil
}

type fakeEncoder struct {
	calls  atomic.Int32
	frames int
	fps    int
	format string
	err    error
}

func (f *fakeEncoder) Encode(ctx context.Context, frames [][]byte, audio []byte, fps int, audioFormat string, onProgress engine.ProgressFunc) ([]byte, error) {
	f.calls.Add(1)
	f.frames = len(frames)
	f.fps = fps
	f.format = audioFormat
	if f.err != nil {
		return nil, f.err
	}
	if onProgress != nil {
		onProgress(100, 100, engine.StageEncoding)
	}
	return []byte("encoded-video"), nil
}

func stubEngineManager(t *testing.T) *engine.Manager {
	t.Helper()
	eng := engine.NewEngine("ffmpeg", "ffmpeg version 7.1", t.TempDir())
	return engine.NewManagerWithLoader(func(ctx context.Context) (*engine.Engine, error) {
		return eng, nil
	})
}

func newRenderFixture(t *testing.T) (*RenderStage, *fakeEncoder, *scenes.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	enc := &fakeEncoder{}
	stage := NewRenderStage(cfg, store, toneDecoder{}, stubEngineManager(t), enc, overlay.NewBasic(), nil)
	return stage, enc, store, cfg
}

func newRenderScene(t *testing.T, store *scenes.Store, cfg *config.Config, withBackground bool) *scenes.Item {
	t.Helper()
	dir := cfg.Paths.StagingDir
	audioPath := filepath.Join(dir, "scene.mp3")
	testsupport.WriteFile(t, audioPath, []byte("mp3-bytes"))
	backgroundPath := ""
	if withBackground {
		backgroundPath = filepath.Join(dir, "scene.png")
		testsupport.WritePNG(t, backgroundPath, 640, 320)
	}
	item, err := store.NewScene(context.Background(), "The Cave",
		"You wake in a cave.\n---\nGo left\nGo right", audioPath, backgroundPath)
	if err != nil {
		t.Fatal(err)
	}
	return item
}

func TestRenderStageExecuteProducesVideo(t *testing.T) {
	stage, enc, store, cfg := newRenderFixture(t)
	item := newRenderScene(t, store, cfg, true)
	ctx := context.Background()

	if err := stage.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	data, err := os.ReadFile(item.RenderedFile)
	if err != nil {
		t.Fatalf("rendered file unreadable: %v", err)
	}
	if !bytes.Equal(data, []byte("encoded-video")) {
		t.Error("rendered file must hold the encoder output")
	}
	if enc.fps != cfg.Visualization.FPS {
		t.Errorf("encode fps = %d, want %d", enc.fps, cfg.Visualization.FPS)
	}
	if enc.format != "mp3" {
		t.Errorf("audio format hint = %q, want mp3", enc.format)
	}
	wantFrames := int(math.Ceil(0.2 * float64(cfg.Visualization.FPS)))
	if enc.frames != wantFrames {
		t.Errorf("encoded %d frames, want %d", enc.frames, wantFrames)
	}

	if item.StillFile == "" {
		t.Error("still card must be written alongside the video")
	} else if _, err := os.Stat(item.StillFile); err != nil {
		t.Errorf("still card unreadable: %v", err)
	}

	snap, err := item.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.EngineVersion != "ffmpeg version 7.1" {
		t.Errorf("snapshot engine version = %q", snap.EngineVersion)
	}
	if snap.AudioFingerprint == "" || snap.TextFingerprint == "" ||
		snap.BackgroundFingerprint == "" || snap.StyleFingerprint == "" {
		t.Errorf("snapshot incomplete: %+v", snap)
	}
}

func TestRenderStageSkipsFreshRender(t *testing.T) {
	stage, enc, store, cfg := newRenderFixture(t)
	item := newRenderScene(t, store, cfg, true)
	ctx := context.Background()

	if err := stage.Execute(ctx, item); err != nil {
		t.Fatalf("first Execute() error: %v", err)
	}
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if got := enc.calls.Load(); got != 1 {
		t.Fatalf("encoder called %d times, want 1 (second render must be skipped)", got)
	}
}

func TestRenderStageReRendersOnAudioChange(t *testing.T) {
	stage, enc, store, cfg := newRenderFixture(t)
	item := newRenderScene(t, store, cfg, false)
	ctx := context.Background()

	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, item.AudioPath, []byte("different-mp3-bytes"))
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	if got := enc.calls.Load(); got != 2 {
		t.Fatalf("encoder called %d times, want 2 after audio change", got)
	}
}

func TestRenderStageReRendersOnTextChange(t *testing.T) {
	stage, enc, store, cfg := newRenderFixture(t)
	item := newRenderScene(t, store, cfg, false)
	ctx := context.Background()

	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	item.SceneText = "You wake in a swamp.\n---\nGo left\nGo right"
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	if got := enc.calls.Load(); got != 2 {
		t.Fatalf("encoder called %d times, want 2 after text change", got)
	}
}

func TestRenderStageReRendersOnStyleChange(t *testing.T) {
	stage, enc, store, cfg := newRenderFixture(t)
	item := newRenderScene(t, store, cfg, false)
	ctx := context.Background()

	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	cfg.Visualization.WaveformColor = "#ff0000"
	if err := stage.Execute(ctx, item); err != nil {
		t.Fatal(err)
	}
	if got := enc.calls.Load(); got != 2 {
		t.Fatalf("encoder called %d times, want 2 after style change", got)
	}
}

func TestRenderStagePrepareValidation(t *testing.T) {
	stage, _, store, _ := newRenderFixture(t)
	ctx := context.Background()

	item, err := store.NewScene(ctx, "missing", "text", "/nope/missing.mp3", "")
	if err != nil {
		t.Fatal(err)
	}
	err = stage.Prepare(ctx, item)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Prepare() error = %v, want ErrValidation", err)
	}
	if services.FailureStatus(err) != scenes.StatusReview {
		t.Error("missing audio must classify as review")
	}
}

func TestRenderStageEngineLoadFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := engine.NewManagerWithLoader(func(ctx context.Context) (*engine.Engine, error) {
		return nil, &engine.EngineLoadError{Binary: "ffmpeg", Err: errors.New("not found")}
	})
	stage := NewRenderStage(cfg, store, toneDecoder{}, manager, &fakeEncoder{}, nil, nil)
	item := newRenderScene(t, store, cfg, false)

	err := stage.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrEngineLoad) {
		t.Fatalf("Execute() error = %v, want ErrEngineLoad", err)
	}
	if services.FailureStatus(err) != scenes.StatusFailed {
		t.Error("engine load failure must classify as failed, not review")
	}
}

func TestStyleIdentityCoversSettings(t *testing.T) {
	base := config.Default().Visualization
	changed := base
	changed.PlayAreaGlow = !base.PlayAreaGlow
	if styleIdentity(base) == styleIdentity(changed) {
		t.Error("glow change must alter the style identity")
	}
	if styleIdentity(base) != styleIdentity(config.Default().Visualization) {
		t.Error("style identity must be stable for identical settings")
	}
}
