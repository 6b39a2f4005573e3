package main

import (
	"log/slog"
	"strings"
	"sync"

	"scenecast/internal/config"
	"scenecast/internal/engine"
	"scenecast/internal/logging"
	"scenecast/internal/overlay"
	"scenecast/internal/pipeline"
	"scenecast/internal/posting"
	"scenecast/internal/scenes"
	"scenecast/internal/waveform"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore() (*scenes.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return scenes.Open(cfg)
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// buildPipeline wires the full stage set. Stages may be limited so the
// one-shot render and post commands can run a single phase.
func (c *commandContext) buildPipeline(store *scenes.Store, logger *slog.Logger, renderOnly, postOnly bool) (*pipeline.Manager, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	var set pipeline.StageSet
	if !postOnly {
		manager := engine.NewManager(cfg.FFmpegBinary(), cfg.EngineScratchDir())
		orchestrator := engine.NewOrchestrator(manager, cfg.FFmpeg, logger)
		decoder := waveform.NewFFmpegDecoder(waveform.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
		set.Render = pipeline.NewRenderStage(cfg, store, decoder, manager, orchestrator, overlay.NewBasic(), logger)
	}
	if !renderOnly {
		client, err := posting.NewClient(cfg.Posting)
		if err != nil {
			return nil, err
		}
		set.Post = pipeline.NewPostStage(cfg, store, client, logger)
	}
	return pipeline.NewManager(cfg, store, logger, set), nil
}
