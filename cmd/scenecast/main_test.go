package main

import (
	"strings"
	"testing"

	"scenecast/internal/preflight"
	"scenecast/internal/scenes"
	"scenecast/internal/stage"
)

func TestTitleFromPath(t *testing.T) {
	cases := map[string]string{
		"/audio/the-dark-forest.mp3": "The Dark Forest",
		"cave_entrance.wav":          "Cave Entrance",
		"finale.mp3":                 "Finale",
		"/a/b/over  spaced.mp3":      "Over Spaced",
	}
	for path, want := range cases {
		if got := titleFromPath(path); got != want {
			t.Errorf("titleFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestParseSceneID(t *testing.T) {
	if id, err := parseSceneID(" 42 "); err != nil || id != 42 {
		t.Errorf("parseSceneID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"0", "-3", "abc", ""} {
		if _, err := parseSceneID(bad); err == nil {
			t.Errorf("parseSceneID(%q) must fail", bad)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title"},
		[][]string{{"1", "The Cave"}, {"2"}},
		[]columnAlignment{alignRight, alignLeft},
	)
	if !strings.Contains(out, "The Cave") || !strings.Contains(out, "ID") {
		t.Errorf("table output missing content:\n%s", out)
	}
}

func TestRenderStatusLines(t *testing.T) {
	passed := renderPreflightLine(preflight.Result{Name: "FFmpeg", Passed: true, Detail: "/usr/bin/ffmpeg"}, false)
	if !strings.Contains(passed, "[OK]") || !strings.Contains(passed, "FFmpeg") {
		t.Errorf("passed line = %q", passed)
	}

	failed := renderPreflightLine(preflight.Result{Name: "FFmpeg", Detail: "not found"}, false)
	if !strings.Contains(failed, "[ERROR]") || !strings.Contains(failed, "not found") {
		t.Errorf("failed line = %q", failed)
	}

	colored := renderPreflightLine(preflight.Result{Name: "x", Passed: true}, true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Errorf("colored line = %q", colored)
	}

	health := renderHealthLine(stage.Healthy("post"), false)
	if !strings.Contains(health, "[OK] ready") {
		t.Errorf("health line = %q", health)
	}
}

func TestFormatProgress(t *testing.T) {
	item := &scenes.Item{}
	if got := formatProgress(item); got != "" {
		t.Errorf("empty progress = %q", got)
	}
	item.SetProgress("Encoding video", "halfway", 50)
	if got := formatProgress(item); got != "Encoding video 50%" {
		t.Errorf("progress = %q", got)
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"add", "render", "post", "run", "queue", "status", "config"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd == root {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
}
