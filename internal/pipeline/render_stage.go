package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scenecast/internal/config"
	"scenecast/internal/engine"
	"scenecast/internal/freshness"
	"scenecast/internal/logging"
	"scenecast/internal/overlay"
	"scenecast/internal/render"
	"scenecast/internal/scenes"
	"scenecast/internal/services"
	"scenecast/internal/stage"
	"scenecast/internal/waveform"
)

// Encoder is the conversion surface the render stage needs from the engine
// orchestrator.
type Encoder interface {
	Encode(ctx context.Context, frames [][]byte, audio []byte, fps int, audioFormat string, onProgress engine.ProgressFunc) ([]byte, error)
}

// RenderStage turns a scene's audio and background into a waveform video.
// Scenes whose inputs match their stored snapshot are passed through without
// re-rendering.
type RenderStage struct {
	cfg          *config.Config
	store        *scenes.Store
	decoder      waveform.Decoder
	manager      *engine.Manager
	orchestrator Encoder
	overlay      overlay.Renderer
	logger       *slog.Logger
}

// NewRenderStage wires the render stage from its collaborators.
func NewRenderStage(cfg *config.Config, store *scenes.Store, decoder waveform.Decoder, manager *engine.Manager, orchestrator Encoder, overlayRenderer overlay.Renderer, logger *slog.Logger) *RenderStage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RenderStage{
		cfg:          cfg,
		store:        store,
		decoder:      decoder,
		manager:      manager,
		orchestrator: orchestrator,
		overlay:      overlayRenderer,
		logger:       logger.With(logging.String(logging.FieldComponent, "render-stage")),
	}
}

// Prepare validates the scene's on-disk inputs before rendering starts.
func (s *RenderStage) Prepare(ctx context.Context, item *scenes.Item) error {
	if strings.TrimSpace(item.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, "render", "prepare", "scene has no audio file", nil)
	}
	if _, err := os.Stat(item.AudioPath); err != nil {
		return services.Wrap(services.ErrValidation, "render", "prepare",
			fmt.Sprintf("audio file missing: %s", item.AudioPath), err)
	}
	if item.BackgroundPath != "" {
		if _, err := os.Stat(item.BackgroundPath); err != nil {
			return services.Wrap(services.ErrValidation, "render", "prepare",
				fmt.Sprintf("background image missing: %s", item.BackgroundPath), err)
		}
	}
	item.SetProgress("Rendering", "Render started", 0)
	return nil
}

// Execute renders the scene video unless the stored snapshot proves the
// existing render is still fresh.
func (s *RenderStage) Execute(ctx context.Context, item *scenes.Item) error {
	eng, err := s.manager.Engine(ctx)
	if err != nil {
		return err
	}

	audioBytes, err := os.ReadFile(item.AudioPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "read audio", item.AudioPath, err)
	}
	var backgroundBytes []byte
	if item.BackgroundPath != "" {
		backgroundBytes, err = os.ReadFile(item.BackgroundPath)
		if err != nil {
			return services.Wrap(services.ErrValidation, "render", "read background", item.BackgroundPath, err)
		}
	}

	// Fingerprints come from the bytes actually consumed below, so edits
	// racing this render are caught as staleness on the next pass.
	current := freshness.Inputs{
		AudioFingerprint:      freshness.FingerprintBytes(audioBytes),
		TextFingerprint:       freshness.FingerprintString(item.SceneText),
		BackgroundFingerprint: freshness.FingerprintBytes(backgroundBytes),
		StyleFingerprint:      freshness.FingerprintString(styleIdentity(s.cfg.Visualization)),
		EngineVersion:         eng.Version(),
	}

	snap, err := item.Snapshot()
	if err != nil {
		s.logger.Warn("stored snapshot unreadable, re-rendering", logging.Error(err))
	} else if !snap.IsStale(current) && fileExists(item.RenderedFile) {
		s.logger.Info("render is fresh, skipping",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.String("snapshot", snap.Identity()))
		item.SetProgressComplete("Rendering", "Render up to date")
		return nil
	}

	analysis, err := waveform.AnalyzeFile(ctx, s.decoder, item.AudioPath, waveform.VideoWidth, s.cfg.Visualization.BarWidth)
	if err != nil {
		return err
	}

	var background image.Image
	if item.BackgroundPath != "" {
		if background, err = render.LoadBackground(item.BackgroundPath); err != nil {
			return err
		}
	}

	renderCfg, err := render.FromVisualization(s.cfg.Visualization, s.cfg.FFmpeg.FrameQuality)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "render", "visualization settings", err.Error(), nil)
	}

	overlayImage, err := s.renderOverlay(ctx, item)
	if err != nil {
		return err
	}

	in := render.Inputs{Analysis: analysis, Background: background, Overlay: overlayImage}
	progress := s.progressRecorder(ctx, item.ID)

	seq, err := render.NewVideoGenerator().Generate(ctx, in, renderCfg, render.ProgressFunc(progress))
	if err != nil {
		return err
	}

	video, err := s.orchestrator.Encode(ctx, seq.Frames, audioBytes, seq.FPS, audioFormat(item.AudioPath), engine.ProgressFunc(progress))
	if err != nil {
		return err
	}

	outputPath := filepath.Join(s.cfg.Paths.OutputDir, fmt.Sprintf("scene-%d.mp4", item.ID))
	if err := os.WriteFile(outputPath, video, 0o644); err != nil {
		return fmt.Errorf("write rendered video: %w", err)
	}
	item.RenderedFile = outputPath

	if stillPath, err := s.writeStillCard(in, renderCfg, item.ID); err != nil {
		s.logger.Warn("still card render failed", logging.Error(err))
	} else {
		item.StillFile = stillPath
	}

	if err := item.SetSnapshot(freshness.Capture(current)); err != nil {
		return fmt.Errorf("record render snapshot: %w", err)
	}
	item.SetProgressComplete("Rendering", "Render complete")

	s.logger.Info("scene rendered",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("frames", len(seq.Frames)),
		logging.Float64("duration_seconds", seq.Duration))
	return nil
}

// HealthCheck verifies the engine can be reached without forcing a load.
func (s *RenderStage) HealthCheck(ctx context.Context) stage.Health {
	const name = "render"
	if s.manager.Loaded() {
		return stage.Healthy(name)
	}
	if strings.TrimSpace(s.cfg.FFmpegBinary()) == "" {
		return stage.Unhealthy(name, "ffmpeg binary not configured")
	}
	return stage.Healthy(name)
}

func (s *RenderStage) renderOverlay(ctx context.Context, item *scenes.Item) (image.Image, error) {
	if s.overlay == nil || strings.TrimSpace(item.SceneText) == "" {
		return nil, nil
	}
	img, err := s.overlay.Render(ctx, item.SceneText, waveform.VideoWidth, waveform.VideoHeight)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "render", "scene overlay", "overlay render failed", err)
	}
	return img, nil
}

func (s *RenderStage) writeStillCard(in render.Inputs, cfg render.Config, id int64) (string, error) {
	card, err := render.NewGenerator(waveform.StillCardWidth, waveform.StillCardHeight).RenderStill(in, cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.Paths.OutputDir, fmt.Sprintf("scene-%d-card.jpg", id))
	if err := os.WriteFile(path, card, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// progressRecorder persists stage progress, collapsing repeated percents so
// the store is not hammered once per frame.
func (s *RenderStage) progressRecorder(ctx context.Context, id int64) func(current, total int, stageLabel string) {
	lastPercent := -1
	return func(current, total int, stageLabel string) {
		if total <= 0 {
			return
		}
		percent := current * 100 / total
		if percent == lastPercent {
			return
		}
		lastPercent = percent
		s.logger.Debug("render progress",
			logging.Int64(logging.FieldItemID, id),
			logging.Int(logging.FieldPercent, percent))
		if err := s.store.UpdateProgress(ctx, id, stageLabel,
			fmt.Sprintf("%s (%d%%)", stageLabel, percent), float64(percent)); err != nil {
			s.logger.Debug("progress update failed", logging.Error(err))
		}
	}
}

// styleIdentity is the canonical string hashed into the style fingerprint.
// Every visualization setting that changes rendered pixels appears here.
func styleIdentity(vis config.Visualization) string {
	return fmt.Sprintf("fps=%d bar_width=%d bar_gap=%v style=%s bg=%s color=%s played=%s position=%s height=%v opacity=%v glow=%t glow_width=%d glow_brightness=%d",
		vis.FPS, vis.BarWidth, vis.BarGap, vis.Style,
		vis.BackgroundColor, vis.WaveformColor, vis.WaveformPlayedColor,
		vis.WaveformPosition, vis.WaveformHeight, vis.WaveformOverlayOpacity,
		vis.PlayAreaGlow, vis.PlayAreaWidth, vis.PlayAreaBrightness)
}

func audioFormat(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "mp3"
	}
	return ext
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
