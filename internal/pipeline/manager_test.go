package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"scenecast/internal/scenes"
	"scenecast/internal/services"
	"scenecast/internal/stage"
	"scenecast/internal/testsupport"
)

type fakeHandler struct {
	name       string
	prepares   atomic.Int32
	executes   atomic.Int32
	prepareErr error
	executeErr error
	onExecute  func(item *scenes.Item)
}

func (f *fakeHandler) Prepare(ctx context.Context, item *scenes.Item) error {
	f.prepares.Add(1)
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, item *scenes.Item) error {
	f.executes.Add(1)
	if f.executeErr != nil {
		return f.executeErr
	}
	if f.onExecute != nil {
		f.onExecute(item)
	}
	return nil
}

func (f *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func newTestManager(t *testing.T, set StageSet) (*Manager, *scenes.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewManager(cfg, store, nil, set), store
}

func TestRunOncePushesSceneThroughBothStages(t *testing.T) {
	render := &fakeHandler{name: "render", onExecute: func(item *scenes.Item) {
		item.RenderedFile = "/out/scene.mp4"
	}}
	post := &fakeHandler{name: "post"}
	mgr, store := newTestManager(t, StageSet{Render: render, Post: post})

	ctx := context.Background()
	item, err := store.NewScene(ctx, "cave", "text", "/audio/cave.mp3", "")
	if err != nil {
		t.Fatal(err)
	}

	processed, err := mgr.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed %d items, want 2 (render then post)", processed)
	}

	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != scenes.StatusPosted {
		t.Fatalf("status = %q, want posted", got.Status)
	}
	if got.RenderedFile != "/out/scene.mp4" {
		t.Errorf("rendered file = %q, stage mutation must persist", got.RenderedFile)
	}
	if render.executes.Load() != 1 || post.executes.Load() != 1 {
		t.Errorf("executes: render=%d post=%d, want 1 each", render.executes.Load(), post.executes.Load())
	}
}

func TestRunOnceIdleQueue(t *testing.T) {
	mgr, _ := newTestManager(t, StageSet{Render: &fakeHandler{name: "render"}})
	processed, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("processed %d items on an empty queue", processed)
	}
}

func TestValidationFailureParksForReview(t *testing.T) {
	render := &fakeHandler{
		name:       "render",
		executeErr: services.Wrap(services.ErrValidation, "render", "prepare", "audio file missing", nil),
	}
	mgr, store := newTestManager(t, StageSet{Render: render})

	ctx := context.Background()
	item, err := store.NewScene(ctx, "broken", "text", "/audio/broken.mp3", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}

	got, _ := store.GetByID(ctx, item.ID)
	if got.Status != scenes.StatusReview {
		t.Fatalf("status = %q, want review for validation failure", got.Status)
	}
	if got.ReviewReason == "" {
		t.Error("review reason must be recorded")
	}
	if mgr.LastError() == nil {
		t.Error("manager must retain the last stage error")
	}
}

func TestTransientFailureMarksFailed(t *testing.T) {
	render := &fakeHandler{
		name:       "render",
		executeErr: services.Wrap(services.ErrTransient, "render", "encode", "engine crashed", errors.New("exit 1")),
	}
	mgr, store := newTestManager(t, StageSet{Render: render})

	ctx := context.Background()
	item, err := store.NewScene(ctx, "flaky", "text", "/audio/flaky.mp3", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}

	got, _ := store.GetByID(ctx, item.ID)
	if got.Status != scenes.StatusFailed {
		t.Fatalf("status = %q, want failed for transient failure", got.Status)
	}

	// Failed items are retryable; review items are not.
	retried, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if retried != 1 {
		t.Fatalf("retried %d, want 1", retried)
	}
}

func TestPrepareFailureSkipsExecute(t *testing.T) {
	render := &fakeHandler{
		name:       "render",
		prepareErr: services.Wrap(services.ErrValidation, "render", "prepare", "no audio", nil),
	}
	mgr, store := newTestManager(t, StageSet{Render: render})

	ctx := context.Background()
	if _, err := store.NewScene(ctx, "bad", "text", "", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if render.executes.Load() != 0 {
		t.Error("execute must not run after prepare failure")
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	set := StageSet{Render: &fakeHandler{name: "render"}}

	first := NewManager(cfg, store, nil, set)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	defer first.Stop()

	second := NewManager(cfg, store, nil, set)
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second manager must fail to acquire the pipeline lock")
	}
}

func TestStartResetsStuckScenes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewScene(ctx, "stuck", "text", "/audio/s.mp3", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ClaimNext(ctx, scenes.StatusPending, scenes.StatusRendering); err != nil {
		t.Fatal(err)
	}

	render := &fakeHandler{
		name:       "render",
		executeErr: services.Wrap(services.ErrTransient, "render", "encode", "stop early", nil),
	}
	mgr := NewManager(cfg, store, nil, StageSet{Render: render})
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	mgr.Stop()

	items, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Status == scenes.StatusRendering {
		t.Fatalf("stuck item left in %q, must be reset on start", items[0].Status)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	mgr, _ := newTestManager(t, StageSet{Render: &fakeHandler{name: "render"}})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mgr.Stop()
	mgr.Stop()
	if mgr.Running() {
		t.Error("manager must not report running after Stop")
	}
}
