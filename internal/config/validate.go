package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	validBackends  = map[string]bool{"auto": true, "x11": true, "portal": true}
	validShapes    = map[string]bool{"circle": true, "rounded": true, "square": true}
	validPositions = map[string]bool{
		"top-left": true, "top-right": true,
		"bottom-left": true, "bottom-right": true,
	}
	validPresets    = map[string]bool{"720p": true, "1080p": true, "1440p": true, "4k": true}
	validContainers = map[string]bool{"mkv": true, "mp4": true, "webm": true}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateOverlay(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateQuality(); err != nil {
		return err
	}
	if err := c.validateWatchdog(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StorageRoot == "" {
		return errors.New("paths.storage_root must be set")
	}
	if c.Paths.ScratchDir == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateCapture() error {
	if !validBackends[c.Capture.ScreenBackend] {
		return fmt.Errorf("capture.screen_backend must be one of auto, x11, portal (got %q)", c.Capture.ScreenBackend)
	}
	if c.Capture.Framerate < 1 || c.Capture.Framerate > 120 {
		return errors.New("capture.framerate must be between 1 and 120")
	}
	return nil
}

func (c *Config) validateOverlay() error {
	if !validShapes[c.Overlay.Shape] {
		return fmt.Errorf("overlay.shape must be one of circle, rounded, square (got %q)", c.Overlay.Shape)
	}
	if !validPositions[c.Overlay.Position] {
		return fmt.Errorf("overlay.position must be one of top-left, top-right, bottom-left, bottom-right (got %q)", c.Overlay.Position)
	}
	for id, rect := range c.Overlay.Sources {
		if err := validateOverlayRect("overlay.sources", id, rect); err != nil {
			return err
		}
	}
	for id, rect := range c.Overlay.Displays {
		if err := validateOverlayRect("overlay.displays", id, rect); err != nil {
			return err
		}
	}
	return nil
}

func validateOverlayRect(section, id string, rect OverlayRect) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s keys must not be empty", section)
	}
	if rect.Width <= 0 || rect.Height <= 0 {
		return fmt.Errorf("%s.%q width and height must be positive", section, id)
	}
	if rect.X < 0 || rect.Y < 0 {
		return fmt.Errorf("%s.%q x and y must not be negative", section, id)
	}
	if rect.Shape != "" && !validShapes[rect.Shape] {
		return fmt.Errorf("%s.%q shape must be one of circle, rounded, square (got %q)", section, id, rect.Shape)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return errors.New("audio.channels must be 1 or 2")
	}
	return nil
}

func (c *Config) validateQuality() error {
	if !validPresets[c.Quality.DefaultPreset] {
		return fmt.Errorf("quality.default_preset must be one of 720p, 1080p, 1440p, 4k (got %q)", c.Quality.DefaultPreset)
	}
	if c.Quality.VideoBitrateOverride < 0 {
		return errors.New("quality.video_bitrate_override must not be negative")
	}
	if c.Quality.AudioBitrateOverride < 0 {
		return errors.New("quality.audio_bitrate_override must not be negative")
	}
	return nil
}

func (c *Config) validateWatchdog() error {
	if c.Watchdog.StalenessSeconds < 1 {
		return errors.New("watchdog.staleness_seconds must be at least 1")
	}
	if c.Watchdog.CooldownSeconds < 1 {
		return errors.New("watchdog.cooldown_seconds must be at least 1")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	if !validContainers[c.Encoder.Container] {
		return fmt.Errorf("encoder.container must be one of mkv, mp4, webm (got %q)", c.Encoder.Container)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}
