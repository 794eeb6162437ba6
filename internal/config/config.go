// Package config loads and validates kinescope configuration.
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

// Paths holds the directories and endpoints the daemon operates on.
type Paths struct {
	// StorageRoot is where finalized recordings land. Created on a
	// best-effort basis so the daemon can run while external storage is
	// temporarily unavailable.
	StorageRoot string `toml:"storage_root"`
	// ScratchDir holds in-progress recording data until finalization.
	ScratchDir string `toml:"scratch_dir"`
	// ExportDir receives recordings when the storage root is unreachable
	// at stop time. Default: ~/Downloads
	ExportDir string `toml:"export_dir"`
	// LogDir holds daemon logs, the catalog database, the control socket,
	// and the daemon lock file.
	LogDir string `toml:"log_dir"`
	// APIBind is the host:port the HTTP API listens on.
	APIBind string `toml:"api_bind"`
	// APIToken guards the HTTP API with bearer auth when set.
	APIToken string `toml:"api_token"`
}

// Capture configures the screen and webcam sources.
type Capture struct {
	// ScreenBackend selects how the screen is acquired: "x11" grabs the
	// X display directly, "portal" negotiates a PipeWire stream through
	// the desktop portal, "auto" picks based on the session type.
	ScreenBackend string `toml:"screen_backend"`
	// Display is the X display to grab (e.g. ":0"). Empty uses $DISPLAY.
	Display string `toml:"display"`
	// DisplayWidth and DisplayHeight describe the native size of the
	// captured display. Used as a fallback when probing fails.
	DisplayWidth  int `toml:"display_width"`
	DisplayHeight int `toml:"display_height"`
	// WebcamEnabled toggles the webcam overlay source.
	WebcamEnabled bool   `toml:"webcam_enabled"`
	WebcamDevice  string `toml:"webcam_device"`
	// Framerate is the capture and output frame rate.
	Framerate int `toml:"framerate"`
}

// OverlayRect pins the webcam overlay to explicit output coordinates for one
// source or display. Width and height are required; Shape is optional and
// inherits the global overlay shape when empty.
type OverlayRect struct {
	X      int    `toml:"x"`
	Y      int    `toml:"y"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Shape  string `toml:"shape"`
}

// Overlay configures default webcam overlay placement. Placement is resolved
// per recording: an entry in Sources wins over an entry in Displays, which
// wins over the Position/Width/Height defaults here.
type Overlay struct {
	// Shape is one of "circle", "rounded", "square".
	Shape  string `toml:"shape"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	// Margin is the distance in pixels from the output edge when the
	// overlay is placed by Position.
	Margin int `toml:"margin"`
	// Position anchors the default placement: "top-left", "top-right",
	// "bottom-left", "bottom-right".
	Position string `toml:"position"`
	// Sources maps a webcam source ID (e.g. "/dev/video0") to an
	// explicit overlay rectangle.
	Sources map[string]OverlayRect `toml:"sources"`
	// Displays maps a display ID (e.g. ":0" or a portal node) to an
	// explicit overlay rectangle.
	Displays map[string]OverlayRect `toml:"displays"`
}

// Audio configures microphone and system-audio capture.
type Audio struct {
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
	// MicEnabled toggles microphone capture. MicDevice selects the input
	// device by name substring; empty uses the default input device.
	MicEnabled bool   `toml:"mic_enabled"`
	MicDevice  string `toml:"mic_device"`
	// SystemAudioEnabled toggles desktop audio capture from the
	// PulseAudio/PipeWire monitor source named by SystemAudioDevice.
	SystemAudioEnabled bool   `toml:"system_audio_enabled"`
	SystemAudioDevice  string `toml:"system_audio_device"`
}

// Quality selects the encoding preset and bitrate overrides.
type Quality struct {
	// DefaultPreset is one of "720p", "1080p", "1440p", "4k".
	DefaultPreset string `toml:"default_preset"`
	// VideoBitrateOverride and AudioBitrateOverride, when non-zero,
	// replace the preset bitrates. Units are bits per second.
	VideoBitrateOverride int `toml:"video_bitrate_override"`
	AudioBitrateOverride int `toml:"audio_bitrate_override"`
	// PreferHardwareEncoder tries the VAAPI encoder before falling back
	// to the software encoder.
	PreferHardwareEncoder bool `toml:"prefer_hardware_encoder"`
}

// Watchdog configures stalled-source detection and reacquisition.
type Watchdog struct {
	// StalenessSeconds is how long a source may go without delivering a
	// frame before it is considered stalled.
	StalenessSeconds int `toml:"staleness_seconds"`
	// CooldownSeconds is the minimum gap between reacquisition attempts
	// for the same source.
	CooldownSeconds int `toml:"cooldown_seconds"`
	// FrozenFrameDetection additionally treats a source as stalled when
	// consecutive frames are perceptually identical.
	FrozenFrameDetection bool `toml:"frozen_frame_detection"`
}

// Encoder configures the encoding sink and external tool names.
type Encoder struct {
	// Container is the output container: "mkv", "mp4", or "webm".
	Container       string `toml:"container"`
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	GStreamerBinary string `toml:"gstreamer_binary"`
}

// Notifications configures ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	// Event toggles. All default to enabled.
	RecordingStarted  bool `toml:"recording_started"`
	RecordingComplete bool `toml:"recording_complete"`
	Recovery          bool `toml:"recovery"`
	Errors            bool `toml:"errors"`
}

// Logging controls log output format and retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for kinescope.
//
// Configuration sections by subsystem:
//   - Paths: directories, API bind address, API token
//   - Capture: screen backend, webcam device, frame rate
//   - Overlay: webcam overlay shape and placement layers
//   - Audio: microphone and system-audio sources
//   - Quality: encoding preset and bitrate overrides
//   - Watchdog: staleness and reacquisition cooldown
//   - Encoder: container and external tool names
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Overlay       Overlay       `toml:"overlay"`
	Audio         Audio         `toml:"audio"`
	Quality       Quality       `toml:"quality"`
	Watchdog      Watchdog      `toml:"watchdog"`
	Encoder       Encoder       `toml:"encoder"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/kinescope/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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

	defaultPath, err := expandPath("~/.config/kinescope/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("kinescope.toml")
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

// EnsureDirectories creates required directories for daemon operation.
// StorageRoot and ExportDir are created on a best-effort basis so the daemon
// can run when external storage is temporarily unavailable; the save fallback
// chain covers the gap at stop time.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.StorageRoot) != "" {
		_ = os.MkdirAll(c.Paths.StorageRoot, 0o755)
	}
	if strings.TrimSpace(c.Paths.ExportDir) != "" {
		_ = os.MkdirAll(c.Paths.ExportDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for capture and encoding.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		return defaultFFmpegBinary
	}
	return c.Encoder.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		return defaultFFprobeBinary
	}
	return c.Encoder.FFprobeBinary
}

// GStreamerBinary returns the gst-launch executable used for portal screen capture.
func (c *Config) GStreamerBinary() string {
	if strings.TrimSpace(c.Encoder.GStreamerBinary) == "" {
		return defaultGStreamerBinary
	}
	return c.Encoder.GStreamerBinary
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
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
