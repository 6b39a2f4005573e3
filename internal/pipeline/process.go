package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scenecast/internal/logging"
	"scenecast/internal/scenes"
	"scenecast/internal/services"
)

func (m *Manager) processItem(ctx context.Context, stg pipelineStage, item *scenes.Item) error {
	runID := uuid.NewString()
	logger := m.logger.With(
		logging.String(logging.FieldStage, stg.name),
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldRunID, runID),
	)

	start := time.Now()
	logger.Info("stage started", logging.String("title", strings.TrimSpace(item.Title)))

	if err := stg.handler.Prepare(ctx, item); err != nil {
		m.handleStageFailure(ctx, logger, stg, item, err)
		return err
	}
	if err := m.store.Update(ctx, item); err != nil {
		m.setLastError(err)
		logger.Error("persist stage preparation failed", logging.Error(err))
		return err
	}

	execErr := m.executeWithHeartbeat(ctx, stg, item)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			logger.Debug("stage interrupted by shutdown")
			return execErr
		}
		m.handleStageFailure(ctx, logger, stg, item, execErr)
		return execErr
	}

	if item.Status == stg.processingStatus || item.Status == "" {
		item.Status = stg.doneStatus
	}
	item.LastHeartbeat = nil
	if err := m.store.Update(ctx, item); err != nil {
		m.setLastError(err)
		logger.Error("persist stage result failed", logging.Error(err))
		return err
	}

	logger.Info("stage completed",
		logging.String("next_status", string(item.Status)),
		logging.Duration(logging.FieldDuration, time.Since(start)))
	return nil
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, stg pipelineStage, item *scenes.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := m.store.UpdateHeartbeat(hbCtx, item.ID); err != nil && !errors.Is(err, context.Canceled) {
					m.logger.Warn("heartbeat update failed",
						logging.Int64(logging.FieldItemID, item.ID),
						logging.Error(err))
				}
			}
		}
	}()

	execErr := stg.handler.Execute(ctx, item)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// handleStageFailure classifies the error and parks the item: decode,
// validation, and configuration failures go to review since retrying cannot
// fix them, everything else is failed and retryable.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, stg pipelineStage, item *scenes.Item, stageErr error) {
	m.setLastError(stageErr)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = stg.name + " failed"
	}

	status := services.FailureStatus(stageErr)
	if status == scenes.StatusReview {
		item.SetReview(message)
	} else {
		item.SetFailed(message)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(status)),
		logging.Error(stageErr))

	if err := m.store.Update(ctx, item); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutdown in progress, stage failure not persisted")
			return
		}
		logger.Error("persist stage failure failed", logging.Error(err))
	}
}
