package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeOverlay()
	c.normalizeAudio()
	c.normalizeQuality()
	c.normalizeEncoder()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StorageRoot, err = expandPath(c.Paths.StorageRoot); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		c.Paths.ExportDir = defaultExportDir
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.ScreenBackend = strings.ToLower(strings.TrimSpace(c.Capture.ScreenBackend))
	if c.Capture.ScreenBackend == "" {
		c.Capture.ScreenBackend = defaultScreenBackend
	}
	c.Capture.Display = strings.TrimSpace(c.Capture.Display)
	c.Capture.WebcamDevice = strings.TrimSpace(c.Capture.WebcamDevice)
	if c.Capture.WebcamDevice == "" {
		c.Capture.WebcamDevice = defaultWebcamDevice
	}
	if c.Capture.DisplayWidth <= 0 {
		c.Capture.DisplayWidth = defaultDisplayWidth
	}
	if c.Capture.DisplayHeight <= 0 {
		c.Capture.DisplayHeight = defaultDisplayHeight
	}
	if c.Capture.Framerate <= 0 {
		c.Capture.Framerate = defaultFramerate
	}
}

func (c *Config) normalizeOverlay() {
	c.Overlay.Shape = strings.ToLower(strings.TrimSpace(c.Overlay.Shape))
	if c.Overlay.Shape == "" {
		c.Overlay.Shape = defaultOverlayShape
	}
	c.Overlay.Position = strings.ToLower(strings.TrimSpace(c.Overlay.Position))
	if c.Overlay.Position == "" {
		c.Overlay.Position = defaultOverlayPosition
	}
	if c.Overlay.Width <= 0 {
		c.Overlay.Width = defaultOverlayWidth
	}
	if c.Overlay.Height <= 0 {
		c.Overlay.Height = defaultOverlayHeight
	}
	if c.Overlay.Margin < 0 {
		c.Overlay.Margin = defaultOverlayMargin
	}
	for id, rect := range c.Overlay.Sources {
		rect.Shape = strings.ToLower(strings.TrimSpace(rect.Shape))
		c.Overlay.Sources[id] = rect
	}
	for id, rect := range c.Overlay.Displays {
		rect.Shape = strings.ToLower(strings.TrimSpace(rect.Shape))
		c.Overlay.Displays[id] = rect
	}
}

func (c *Config) normalizeAudio() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaultChannels
	}
	c.Audio.MicDevice = strings.TrimSpace(c.Audio.MicDevice)
	c.Audio.SystemAudioDevice = strings.TrimSpace(c.Audio.SystemAudioDevice)
	if c.Audio.SystemAudioEnabled && c.Audio.SystemAudioDevice == "" {
		c.Audio.SystemAudioDevice = "default"
	}
}

func (c *Config) normalizeQuality() {
	c.Quality.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Quality.DefaultPreset))
	if c.Quality.DefaultPreset == "" {
		c.Quality.DefaultPreset = defaultPreset
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Container = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c.Encoder.Container, ".")))
	if c.Encoder.Container == "" {
		c.Encoder.Container = defaultContainer
	}
	c.Encoder.FFmpegBinary = strings.TrimSpace(c.Encoder.FFmpegBinary)
	c.Encoder.FFprobeBinary = strings.TrimSpace(c.Encoder.FFprobeBinary)
	c.Encoder.GStreamerBinary = strings.TrimSpace(c.Encoder.GStreamerBinary)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
