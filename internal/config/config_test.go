package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[visualization]
fps = 12
style = "mirror"

[ffmpeg]
binary = "ffmpeg-custom"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be detected")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Visualization.FPS != 12 {
		t.Fatalf("fps = %d, want 12", cfg.Visualization.FPS)
	}
	if cfg.Visualization.Style != "mirror" {
		t.Fatalf("style = %q, want mirror", cfg.Visualization.Style)
	}
	if cfg.FFmpegBinary() != "ffmpeg-custom" {
		t.Fatalf("ffmpeg binary = %q", cfg.FFmpegBinary())
	}
	// Untouched sections keep defaults.
	if cfg.Visualization.BarWidth != 4 {
		t.Fatalf("bar_width = %d, want default 4", cfg.Visualization.BarWidth)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		detail  string
	}{
		{"bad style", "[visualization]\nstyle = \"wave\"\n", "style"},
		{"bad color", "[visualization]\nwaveform_color = \"red\"\n", "waveform_color"},
		{"bad fps", "[visualization]\nfps = 0\n", "fps"},
		{"bad position", "[visualization]\nwaveform_position = \"top\"\n", "waveform_position"},
		{"bad brightness", "[visualization]\nplay_area_brightness = 500\n", "play_area_brightness"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.detail) {
				t.Fatalf("error %q does not mention %q", err, tc.detail)
			}
		})
	}
}

func TestValidHexColor(t *testing.T) {
	valid := []string{"#000000", "#ffffff", "#7Dd3Fc"}
	invalid := []string{"", "#fff", "123456", "#12345g", "#1234567"}
	for _, v := range valid {
		if !validHexColor(v) {
			t.Errorf("validHexColor(%q) = false, want true", v)
		}
	}
	for _, v := range invalid {
		if validHexColor(v) {
			t.Errorf("validHexColor(%q) = true, want false", v)
		}
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q missing after EnsureDirectories", dir)
		}
	}
}
