package config

const (
	defaultStorageRoot     = "~/videos/kinescope"
	defaultScratchDir      = "~/.local/share/kinescope/scratch"
	defaultExportDir       = "~/Downloads"
	defaultLogDir          = "~/.local/share/kinescope/logs"
	defaultAPIBind         = "127.0.0.1:7491"
	defaultScreenBackend   = "auto"
	defaultDisplayWidth    = 1920
	defaultDisplayHeight   = 1080
	defaultWebcamDevice    = "/dev/video0"
	defaultFramerate       = 30
	defaultOverlayShape    = "rounded"
	defaultOverlayWidth    = 320
	defaultOverlayHeight   = 240
	defaultOverlayMargin   = 24
	defaultOverlayPosition = "bottom-right"
	defaultSampleRate      = 48000
	defaultChannels        = 2
	defaultPreset          = "1080p"
	defaultStaleness       = 2
	defaultCooldown        = 5
	defaultContainer       = "mkv"
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFprobeBinary   = "ffprobe"
	defaultGStreamerBinary = "gst-launch-1.0"
	defaultNotifyTimeout   = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	defaultLogRetention    = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			ScratchDir:  defaultScratchDir,
			ExportDir:   defaultExportDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Capture: Capture{
			ScreenBackend: defaultScreenBackend,
			DisplayWidth:  defaultDisplayWidth,
			DisplayHeight: defaultDisplayHeight,
			WebcamEnabled: true,
			WebcamDevice:  defaultWebcamDevice,
			Framerate:     defaultFramerate,
		},
		Overlay: Overlay{
			Shape:    defaultOverlayShape,
			Width:    defaultOverlayWidth,
			Height:   defaultOverlayHeight,
			Margin:   defaultOverlayMargin,
			Position: defaultOverlayPosition,
		},
		Audio: Audio{
			SampleRate: defaultSampleRate,
			Channels:   defaultChannels,
			MicEnabled: true,
		},
		Quality: Quality{
			DefaultPreset:         defaultPreset,
			PreferHardwareEncoder: true,
		},
		Watchdog: Watchdog{
			StalenessSeconds: defaultStaleness,
			CooldownSeconds:  defaultCooldown,
		},
		Encoder: Encoder{
			Container:       defaultContainer,
			FFmpegBinary:    defaultFFmpegBinary,
			FFprobeBinary:   defaultFFprobeBinary,
			GStreamerBinary: defaultGStreamerBinary,
		},
		Notifications: Notifications{
			RequestTimeout:    defaultNotifyTimeout,
			RecordingStarted:  true,
			RecordingComplete: true,
			Recovery:          true,
			Errors:            true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
