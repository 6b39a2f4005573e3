// Package pipeline drives scenes through their lifecycle: pending scenes are
// rendered into waveform videos, rendered scenes are posted. A single
// manager owns the loop; an flock-guarded lock file keeps concurrent
// processes from sharing the engine scratch space.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"scenecast/internal/config"
	"scenecast/internal/logging"
	"scenecast/internal/scenes"
	"scenecast/internal/stage"
)

const heartbeatInterval = 15 * time.Second

// StageSet bundles the concrete handlers the manager orchestrates.
type StageSet struct {
	Render stage.Handler
	Post   stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      scenes.Status
	processingStatus scenes.Status
	doneStatus       scenes.Status
}

// Manager coordinates scene processing using registered stage handlers.
type Manager struct {
	cfg           *config.Config
	store         *scenes.Store
	logger        *slog.Logger
	stages        []pipelineStage
	pollInterval  time.Duration
	retryInterval time.Duration
	lock          *flock.Flock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a pipeline manager from the configured stage set.
func NewManager(cfg *config.Config, store *scenes.Store, logger *slog.Logger, set StageSet) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	stages := make([]pipelineStage, 0, 2)
	if set.Render != nil {
		stages = append(stages, pipelineStage{
			name:             "render",
			handler:          set.Render,
			startStatus:      scenes.StatusPending,
			processingStatus: scenes.StatusRendering,
			doneStatus:       scenes.StatusRendered,
		})
	}
	if set.Post != nil {
		stages = append(stages, pipelineStage{
			name:             "post",
			handler:          set.Post,
			startStatus:      scenes.StatusRendered,
			processingStatus: scenes.StatusPosting,
			doneStatus:       scenes.StatusPosted,
		})
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		logger:        logger.With(logging.String(logging.FieldComponent, "pipeline")),
		stages:        stages,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		lock:          flock.New(filepath.Join(cfg.Paths.LogDir, "scenecast.lock")),
	}
}

// Start begins background processing. It fails when another process already
// holds the pipeline lock.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("pipeline already running")
	}
	if len(m.stages) == 0 {
		return errors.New("pipeline stages not configured")
	}

	locked, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pipeline lock: %w", err)
	}
	if !locked {
		return errors.New("another scenecast instance is already running")
	}

	if reset, err := m.store.ResetStuckProcessing(ctx); err != nil {
		m.releaseLock()
		return fmt.Errorf("reset stuck items: %w", err)
	} else if reset > 0 {
		m.logger.Info("reset stuck in-flight scenes", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	go m.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.releaseLock()
}

// Running reports whether the processing loop is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// LastError returns the most recent stage or store error, for status display.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) releaseLock() {
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("release pipeline lock failed", logging.Error(err))
	}
}

// RunOnce processes at most one item per stage and returns the number of
// items processed. Used by the one-shot CLI path and tests; Start/Stop wrap
// the same logic in a polling loop.
func (m *Manager) RunOnce(ctx context.Context) (int, error) {
	processed := 0
	for _, stg := range m.stages {
		item, err := m.store.ClaimNext(ctx, stg.startStatus, stg.processingStatus)
		if err != nil {
			m.setLastError(err)
			return processed, fmt.Errorf("claim next %s item: %w", stg.name, err)
		}
		if item == nil {
			continue
		}
		if err := m.processItem(ctx, stg, item); err != nil && errors.Is(err, context.Canceled) {
			return processed, err
		}
		processed++
	}
	return processed, nil
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := m.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("pipeline pass failed", logging.Error(err))
			m.sleep(ctx, m.retryInterval)
			continue
		}
		if processed == 0 {
			m.sleep(ctx, m.pollInterval)
		}
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
