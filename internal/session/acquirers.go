package session

import (
	"context"
	"log/slog"
	"strings"

	"kinescope/internal/capture"
	"kinescope/internal/catalog"
	"kinescope/internal/config"
	"kinescope/internal/encoder"
	"kinescope/internal/geometry"
	"kinescope/internal/media/ffprobe"
	"kinescope/internal/notifications"
	"kinescope/internal/recovery"
	"kinescope/internal/services/portal"
	"kinescope/internal/watchdog"
)

// DefaultDependencies wires the production capture backends, encoder, and
// notifier. The daemon fills in Inhibitor and Events; tests replace whatever
// they need.
func DefaultDependencies(cfg *config.Config, store *catalog.Store, recLog *recovery.Log, logger *slog.Logger) Dependencies {
	return Dependencies{
		Recovery:    recLog,
		Catalog:     store,
		Notifier:    notifications.NewService(cfg),
		Screen:      defaultScreenAcquirer(cfg, logger),
		Webcam:      defaultWebcamAcquirer(cfg),
		Microphone:  defaultMicrophoneAcquirer(cfg),
		SystemAudio: defaultSystemAudioAcquirer(cfg),
		NewSink:     defaultSinkFactory(cfg, logger),
	}
}

// defaultScreenAcquirer picks the screen backend: X11 grabs the display
// directly, the portal negotiates a PipeWire stream, and auto selects by
// session type.
func defaultScreenAcquirer(cfg *config.Config, logger *slog.Logger) AcquireScreenFunc {
	return func(ctx context.Context) (capture.VideoSource, error) {
		backend := strings.ToLower(strings.TrimSpace(cfg.Capture.ScreenBackend))
		if backend == "" || backend == "auto" {
			if portal.WaylandSession() {
				backend = "portal"
			} else {
				backend = "x11"
			}
		}

		size := geometry.Size{Width: cfg.Capture.DisplayWidth, Height: cfg.Capture.DisplayHeight}
		if backend == "portal" {
			stream, err := portal.Negotiate(ctx, logger)
			if err != nil {
				return nil, err
			}
			if stream.Size.Width > 0 && stream.Size.Height > 0 {
				size = stream.Size
			}
			src := capture.NewScreenPortal(capture.ScreenPortalConfig{
				NodeID:    stream.NodeID,
				Size:      size,
				Framerate: cfg.Capture.Framerate,
				Binary:    cfg.GStreamerBinary(),
			})
			if err := src.Start(ctx); err != nil {
				stream.Close()
				return nil, err
			}
			return &portalScreenSource{VideoSource: src, stream: stream}, nil
		}

		src := capture.NewScreenX11(capture.ScreenX11Config{
			Display:   cfg.Capture.Display,
			Size:      size,
			Framerate: cfg.Capture.Framerate,
			Binary:    cfg.FFmpegBinary(),
		})
		if err := src.Start(ctx); err != nil {
			return nil, err
		}
		return src, nil
	}
}

// portalScreenSource revokes the portal grant once the capture process has
// exited; closing the session first would end the stream mid-read.
type portalScreenSource struct {
	capture.VideoSource
	stream *portal.Stream
}

func (p *portalScreenSource) Stop() {
	p.VideoSource.Stop()
	p.stream.Close()
}

// defaultWebcamAcquirer starts the configured V4L2 device at one constraint
// tier, probing the device's own size for the open-ended default tier.
func defaultWebcamAcquirer(cfg *config.Config) watchdog.AcquireFunc {
	prober := func(ctx context.Context, device string) (geometry.Size, error) {
		w, h, err := ffprobe.ProbeVideoSize(ctx, cfg.FFprobeBinary(), device)
		if err != nil {
			return geometry.Size{}, err
		}
		return geometry.Size{Width: w, Height: h}, nil
	}
	return func(ctx context.Context, constraint capture.Constraint) (capture.VideoSource, error) {
		src := capture.NewWebcam(capture.WebcamConfig{
			Device:     cfg.Capture.WebcamDevice,
			Constraint: constraint,
			Binary:     cfg.FFmpegBinary(),
			Probe:      prober,
		})
		if err := src.Start(ctx); err != nil {
			return nil, err
		}
		return src, nil
	}
}

func defaultMicrophoneAcquirer(cfg *config.Config) AcquireAudioFunc {
	return func(ctx context.Context) (capture.AudioSource, error) {
		mic := capture.NewMic(capture.MicConfig{
			Device:     cfg.Audio.MicDevice,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		})
		if err := mic.Start(ctx); err != nil {
			return nil, err
		}
		return mic, nil
	}
}

func defaultSystemAudioAcquirer(cfg *config.Config) AcquireAudioFunc {
	return func(ctx context.Context) (capture.AudioSource, error) {
		sys := capture.NewSystemAudio(capture.SystemAudioConfig{
			Monitor:    cfg.Audio.SystemAudioDevice,
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			Binary:     cfg.FFmpegBinary(),
		})
		if err := sys.Start(ctx); err != nil {
			return nil, err
		}
		return sys, nil
	}
}

// defaultSinkFactory resolves the encoder plan (hardware first when
// configured, software as the terminal tier) and starts the sink.
func defaultSinkFactory(cfg *config.Config, logger *slog.Logger) SinkFactory {
	return func(ctx context.Context, opts encoder.Options) (Sink, error) {
		opts.Plan = encoder.SelectPlan(ctx, cfg, opts.Preset, opts.Framerate, logger)
		sink, err := encoder.NewSink(opts)
		if err != nil {
			return nil, err
		}
		if err := sink.Start(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	}
}
