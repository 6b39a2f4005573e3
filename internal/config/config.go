package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Posting contains configuration for the remote posting service.
type Posting struct {
	ServiceURL     string `toml:"service_url"`
	Handle         string `toml:"handle"`
	AppPassword    string `toml:"app_password"`
	RequestTimeout int    `toml:"request_timeout"`
	ReplyChoices   bool   `toml:"reply_choices"`
}

// Visualization contains default rendering options for waveform videos.
// Per-scene values override these defaults.
type Visualization struct {
	FPS                    int     `toml:"fps"`
	BarWidth               int     `toml:"bar_width"`
	BarGap                 float64 `toml:"bar_gap"`
	Style                  string  `toml:"style"`
	BackgroundColor        string  `toml:"background_color"`
	WaveformColor          string  `toml:"waveform_color"`
	WaveformPlayedColor    string  `toml:"waveform_played_color"`
	WaveformPosition       string  `toml:"waveform_position"`
	WaveformHeight         float64 `toml:"waveform_height"`
	WaveformOverlayOpacity float64 `toml:"waveform_overlay_opacity"`
	PlayAreaGlow           bool    `toml:"play_area_glow"`
	PlayAreaWidth          int     `toml:"play_area_width"`
	PlayAreaBrightness     int     `toml:"play_area_brightness"`
}

// FFmpeg contains encoder binary and codec settings.
type FFmpeg struct {
	Binary        string `toml:"binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	VideoPreset   string `toml:"video_preset"`
	VideoCRF      int    `toml:"video_crf"`
	AudioBitrate  string `toml:"audio_bitrate"`
	AudioRate     int    `toml:"audio_rate"`
	AudioChannels int    `toml:"audio_channels"`
	FrameQuality  int    `toml:"frame_quality"`
}

// Workflow contains pipeline timing configuration.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scenecast.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Posting: remote posting service connection and behaviour
//   - Visualization: waveform rendering defaults
//   - FFmpeg: encoder binary and codec settings
//   - Workflow: pipeline polling intervals
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Posting       Posting       `toml:"posting"`
	Visualization Visualization `toml:"visualization"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: "~/.local/share/scenecast/staging",
			OutputDir:  "~/.local/share/scenecast/output",
			LogDir:     "~/.local/share/scenecast/logs",
		},
		Posting: Posting{
			ServiceURL:     "https://bsky.social",
			RequestTimeout: 30,
			ReplyChoices:   true,
		},
		Visualization: Visualization{
			FPS:                    30,
			BarWidth:               4,
			BarGap:                 0.2,
			Style:                  "bars",
			BackgroundColor:        "#101418",
			WaveformColor:          "#4a5568",
			WaveformPlayedColor:    "#7dd3fc",
			WaveformPosition:       "bottom",
			WaveformHeight:         0.25,
			WaveformOverlayOpacity: 0.35,
			PlayAreaGlow:           true,
			PlayAreaWidth:          96,
			PlayAreaBrightness:     120,
		},
		FFmpeg: FFmpeg{
			Binary:        "ffmpeg",
			FFprobeBinary: "ffprobe",
			VideoPreset:   "medium",
			VideoCRF:      23,
			AudioBitrate:  "128k",
			AudioRate:     44100,
			AudioChannels: 2,
			FrameQuality:  85,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 60,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scenecast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenecast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Posting.ServiceURL = strings.TrimRight(strings.TrimSpace(c.Posting.ServiceURL), "/")
	c.Posting.Handle = strings.TrimSpace(c.Posting.Handle)
	c.Visualization.Style = strings.ToLower(strings.TrimSpace(c.Visualization.Style))
	c.Visualization.WaveformPosition = strings.ToLower(strings.TrimSpace(c.Visualization.WaveformPosition))
	return nil
}

// Validate reports configuration values that cannot drive the pipeline.
func (c *Config) Validate() error {
	if c.Paths.StagingDir == "" {
		return errors.New("config: staging_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("config: output_dir is required")
	}
	if c.Visualization.FPS <= 0 {
		return fmt.Errorf("config: fps must be positive, got %d", c.Visualization.FPS)
	}
	if c.Visualization.BarWidth <= 0 {
		return fmt.Errorf("config: bar_width must be positive, got %d", c.Visualization.BarWidth)
	}
	if c.Visualization.BarGap < 0 || c.Visualization.BarGap >= 1 {
		return fmt.Errorf("config: bar_gap must be in [0,1), got %v", c.Visualization.BarGap)
	}
	switch c.Visualization.Style {
	case "bars", "line", "mirror":
	default:
		return fmt.Errorf("config: style must be bars, line, or mirror, got %q", c.Visualization.Style)
	}
	switch c.Visualization.WaveformPosition {
	case "full", "bottom":
	default:
		return fmt.Errorf("config: waveform_position must be full or bottom, got %q", c.Visualization.WaveformPosition)
	}
	if c.Visualization.WaveformHeight <= 0 || c.Visualization.WaveformHeight > 1 {
		return fmt.Errorf("config: waveform_height must be in (0,1], got %v", c.Visualization.WaveformHeight)
	}
	if c.Visualization.WaveformOverlayOpacity < 0 || c.Visualization.WaveformOverlayOpacity > 1 {
		return fmt.Errorf("config: waveform_overlay_opacity must be in [0,1], got %v", c.Visualization.WaveformOverlayOpacity)
	}
	if c.Visualization.PlayAreaBrightness < 0 || c.Visualization.PlayAreaBrightness > 255 {
		return fmt.Errorf("config: play_area_brightness must be in [0,255], got %d", c.Visualization.PlayAreaBrightness)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"background_color", c.Visualization.BackgroundColor},
		{"waveform_color", c.Visualization.WaveformColor},
		{"waveform_played_color", c.Visualization.WaveformPlayedColor},
	} {
		if !validHexColor(field.value) {
			return fmt.Errorf("config: %s must be a #rrggbb color, got %q", field.name, field.value)
		}
	}
	if c.FFmpeg.VideoCRF < 0 || c.FFmpeg.VideoCRF > 51 {
		return fmt.Errorf("config: video_crf must be in [0,51], got %d", c.FFmpeg.VideoCRF)
	}
	if c.FFmpeg.FrameQuality < 1 || c.FFmpeg.FrameQuality > 100 {
		return fmt.Errorf("config: frame_quality must be in [1,100], got %d", c.FFmpeg.FrameQuality)
	}
	return nil
}

func validHexColor(value string) bool {
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.FFmpeg.Binary) == "" {
		return "ffmpeg"
	}
	return c.FFmpeg.Binary
}

// EngineScratchDir returns the directory the encoder stages frames and
// outputs in.
func (c *Config) EngineScratchDir() string {
	return filepath.Join(c.Paths.StagingDir, "engine")
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		return "ffprobe"
	}
	return c.FFmpeg.FFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
