package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scenecast/internal/config"
	"scenecast/internal/services"
)

func stubEngine(t *testing.T) *Engine {
	t.Helper()
	return &Engine{binary: "ffmpeg", version: "ffmpeg version 7.1", scratchRoot: t.TempDir()}
}

func setEngineHelper(t *testing.T, mode string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestEngineHelperProcess")
		cmd.Env = append(os.Environ(),
			"SCENECAST_ENGINE_HELPER=1",
			"SCENECAST_ENGINE_MODE="+mode,
		)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

// TestEngineHelperProcess stands in for the ffmpeg binary in orchestrator
// tests. It is a no-op unless launched through setEngineHelper.
func TestEngineHelperProcess(t *testing.T) {
	if os.Getenv("SCENECAST_ENGINE_HELPER") != "1" {
		return
	}
	switch os.Getenv("SCENECAST_ENGINE_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "frame_00000.jpg: Invalid data found when processing input")
		os.Exit(1)
	case "silent":
		os.Exit(0)
	default:
		fmt.Println("out_time_us=500000")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=1000000")
		fmt.Println("progress=end")
		if err := os.WriteFile("output.mp4", []byte("encoded-video"), 0o644); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
}

func testFFmpegConfig() config.FFmpeg {
	return config.FFmpeg{
		Binary:        "ffmpeg",
		VideoPreset:   "medium",
		VideoCRF:      23,
		AudioBitrate:  "192k",
		AudioRate:     44100,
		AudioChannels: 2,
	}
}

func TestManagerLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	eng := stubEngine(t)
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return eng, nil
	})

	const workers = 8
	results := make([]*Engine, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := mgr.Engine(context.Background())
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
	for i, got := range results {
		if got != eng {
			t.Fatalf("worker %d got a different engine instance", i)
		}
	}
}

func TestManagerRetriesAfterFailedLoad(t *testing.T) {
	var calls int
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) {
		calls++
		if calls == 1 {
			return nil, &EngineLoadError{Binary: "ffmpeg", Err: errors.New("binary not found")}
		}
		return stubEngine(t), nil
	})

	if _, err := mgr.Engine(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	} else if !errors.Is(err, services.ErrEngineLoad) {
		t.Fatalf("error = %v, want ErrEngineLoad", err)
	}
	if mgr.Loaded() {
		t.Fatal("failed load must not be memoized")
	}

	if _, err := mgr.Engine(context.Background()); err != nil {
		t.Fatalf("retry after failed load: %v", err)
	}
	if calls != 2 {
		t.Fatalf("loader called %d times, want 2", calls)
	}
}

func TestBuildArgsFrameSequence(t *testing.T) {
	params := ParamsFromConfig(testFFmpegConfig(), 30)
	args := FrameSequencePreset.BuildArgs(params, inputs{
		FramePattern: "frame_%05d.jpg",
		AudioName:    "audio.mp3",
		OutputName:   "output.mp4",
	})

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-framerate 30 -i frame_%05d.jpg",
		"-i audio.mp3",
		"-c:v libx264 -preset medium -crf 23 -pix_fmt yuv420p",
		"-c:a aac -b:a 192k -ar 44100 -ac 2",
		"-shortest",
		"-movflags +faststart",
		"-progress pipe:1",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q in %q", want, joined)
		}
	}
	if args[len(args)-1] != "output.mp4" {
		t.Errorf("output must be the final argument, got %q", args[len(args)-1])
	}

	again := FrameSequencePreset.BuildArgs(params, inputs{
		FramePattern: "frame_%05d.jpg",
		AudioName:    "audio.mp3",
		OutputName:   "output.mp4",
	})
	if strings.Join(again, " ") != joined {
		t.Error("identical parameters must produce identical arguments")
	}
}

func TestBuildArgsStillImage(t *testing.T) {
	args := StillImagePreset.BuildArgs(ParamsFromConfig(testFFmpegConfig(), 1), inputs{
		StillName:  "still.jpg",
		AudioName:  "audio.wav",
		OutputName: "output.mp4",
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-loop 1 -i still.jpg") {
		t.Errorf("still args missing loop input: %q", joined)
	}
	if !strings.Contains(joined, "-tune stillimage") {
		t.Errorf("still args missing tune: %q", joined)
	}
	if !strings.Contains(joined, "-shortest") {
		t.Errorf("still args missing -shortest: %q", joined)
	}
}

func TestProgressParser(t *testing.T) {
	var got []int
	parser := newProgressParser(10, func(current, total int, stage string) {
		if total != 100 {
			t.Errorf("total = %d, want 100", total)
		}
		if stage != StageEncoding {
			t.Errorf("stage = %q, want %q", stage, StageEncoding)
		}
		got = append(got, current)
	})

	for _, line := range []string{
		"frame=12",
		"out_time_us=2500000",
		"progress=continue",
		"out_time_us=5000000",
		"progress=continue",
		"out_time_us=5000000",
		"progress=continue",
		"out_time_us=9999999",
		"progress=end",
	} {
		parser.Line(line)
	}

	want := []int{25, 50, 100}
	if len(got) != len(want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("emitted %v, want %v", got, want)
		}
	}
}

func TestProgressParserUnknownDuration(t *testing.T) {
	var got []int
	parser := newProgressParser(0, func(current, total int, stage string) {
		got = append(got, current)
	})
	parser.Line("out_time_us=4000000")
	parser.Line("progress=continue")
	parser.Line("progress=end")

	if len(got) != 2 || got[0] != 0 || got[1] != 100 {
		t.Fatalf("emitted %v, want [0 100]", got)
	}
}

func TestEncodeProducesVideoAndCleansUp(t *testing.T) {
	setEngineHelper(t, "ok")
	eng := stubEngine(t)
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) { return eng, nil })
	orch := NewOrchestrator(mgr, testFFmpegConfig(), nil)

	frames := [][]byte{[]byte("f0"), []byte("f1"), []byte("f2")}
	var percents []int
	out, err := orch.Encode(context.Background(), frames, []byte("audio"), 30, "mp3", func(current, total int, stage string) {
		percents = append(percents, current)
	})
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if string(out) != "encoded-video" {
		t.Fatalf("output = %q, want %q", out, "encoded-video")
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("progress percents = %v, want trailing 100", percents)
	}

	entries, err := os.ReadDir(eng.ScratchRoot())
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch root not cleaned, %d entries remain", len(entries))
	}
}

func TestEncodeFailureCleansUpAndReportsLogLine(t *testing.T) {
	setEngineHelper(t, "fail")
	eng := stubEngine(t)
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) { return eng, nil })
	orch := NewOrchestrator(mgr, testFFmpegConfig(), nil)

	_, err := orch.Encode(context.Background(), [][]byte{[]byte("f0")}, []byte("audio"), 30, "mp3", nil)
	if err == nil {
		t.Fatal("expected encode failure")
	}
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("error = %v, want ErrEncode", err)
	}
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("error = %T, want *EncodeError", err)
	}
	if encErr.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", encErr.ExitCode)
	}
	if !strings.Contains(encErr.LogLine, "Invalid data") {
		t.Errorf("log line = %q, want engine error detail", encErr.LogLine)
	}

	entries, err := os.ReadDir(eng.ScratchRoot())
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed conversion left %d staged entries behind", len(entries))
	}
}

func TestEncodeMissingOutput(t *testing.T) {
	setEngineHelper(t, "silent")
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) { return stubEngine(t), nil })
	orch := NewOrchestrator(mgr, testFFmpegConfig(), nil)

	_, err := orch.Encode(context.Background(), [][]byte{[]byte("f0")}, []byte("audio"), 30, "mp3", nil)
	if !errors.Is(err, services.ErrEncode) {
		t.Fatalf("error = %v, want ErrEncode for missing output", err)
	}
}

func TestEncodeRejectsConcurrentConversion(t *testing.T) {
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) { return stubEngine(t), nil })
	orch := NewOrchestrator(mgr, testFFmpegConfig(), nil)
	orch.busy.Store(true)
	defer orch.busy.Store(false)

	_, err := orch.Encode(context.Background(), [][]byte{[]byte("f0")}, []byte("audio"), 30, "mp3", nil)
	if !errors.Is(err, ErrConversionActive) {
		t.Fatalf("error = %v, want ErrConversionActive", err)
	}
}

func TestEncodeStillStagesImage(t *testing.T) {
	setEngineHelper(t, "ok")
	eng := stubEngine(t)
	mgr := NewManagerWithLoader(func(ctx context.Context) (*Engine, error) { return eng, nil })
	orch := NewOrchestrator(mgr, testFFmpegConfig(), nil)

	out, err := orch.EncodeStill(context.Background(), []byte("jpeg"), []byte("audio"), "wav", 5, nil)
	if err != nil {
		t.Fatalf("EncodeStill() error: %v", err)
	}
	if string(out) != "encoded-video" {
		t.Fatalf("output = %q, want %q", out, "encoded-video")
	}
}

func TestWorkspaceCleanupTolerantOfMissingEntries(t *testing.T) {
	root := t.TempDir()
	ws, err := newWorkspace(root)
	if err != nil {
		t.Fatalf("newWorkspace() error: %v", err)
	}
	if err := ws.WriteFile("a.jpg", []byte("a")); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	ws.Track("never-created.mp4")
	ws.Cleanup()

	if _, err := os.Stat(filepath.Join(root, "a.jpg")); !os.IsNotExist(err) {
		t.Fatal("tracked entry should be removed by cleanup")
	}
}
