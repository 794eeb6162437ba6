package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kinescope/internal/capture"
	"kinescope/internal/compositor"
	"kinescope/internal/encoder"
	"kinescope/internal/events"
	"kinescope/internal/fallback"
	"kinescope/internal/geometry"
	"kinescope/internal/logging"
	"kinescope/internal/mixer"
	"kinescope/internal/notifications"
	"kinescope/internal/services"
	"kinescope/internal/watchdog"
)

// frozenCheckCount is how many consecutive identical watchdog checks count as
// a frozen stream: four 500ms checks, about two seconds of repeated frames.
const frozenCheckCount = 4

// Start acquires sources and transitions idle → recording. The context only
// governs acquisition: once recording, the session runs until Stop. Any fatal
// failure unwinds everything acquired so far and leaves the session idle.
func (s *Session) Start(ctx context.Context, req StartRequest) (Status, error) {
	s.mu.Lock()
	if s.starting || s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return s.Status(), services.Wrap(services.ErrValidation, "session", "start",
			fmt.Sprintf("Cannot start while the session is %s", state), nil)
	}
	recCtx, recCancel := context.WithCancel(context.Background())
	s.starting = true
	s.stopRequested = false
	s.acquireCancel = recCancel
	s.mu.Unlock()

	// Abort acquisition if the caller abandons the request. Once acquire
	// returns, the recording's own lifetime takes over.
	callerGone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			recCancel()
		case <-callerGone:
		}
	}()

	rec, err := s.acquire(recCtx, recCancel, req)
	close(callerGone)

	s.mu.Lock()
	s.starting = false
	s.acquireCancel = nil
	stopRequested := s.stopRequested
	s.stopRequested = false
	s.mu.Unlock()

	if stopRequested {
		if rec != nil {
			s.teardown(rec, true)
		}
		recCancel()
		err = services.Wrap(services.ErrUnavailable, "session", "start",
			"Recording start was cancelled before it completed", nil)
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logger.Info("recording start cancelled")
		return s.Status(), err
	}
	if err != nil {
		recCancel()
		s.mu.Lock()
		s.lastErr = err.Error()
		s.mu.Unlock()
		logging.ErrorWithContext(s.logger, "recording start failed", "start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check capture devices and encoder availability"),
		)
		s.publish(events.Event{Type: events.TypeError, Detail: err.Error()})
		s.notify(notifications.EventError, notifications.Payload{
			"context": "starting a recording",
			"error":   err.Error(),
		})
		return s.Status(), err
	}

	s.mu.Lock()
	s.state = StateRecording
	s.rec = rec
	s.lastErr = ""
	s.mu.Unlock()

	s.logger.Info("recording started",
		logging.String(logging.FieldRecordingID, rec.recordingID),
		logging.String("preset", rec.preset.Name),
		logging.String("container", rec.container),
		logging.Int("width", rec.native.Width),
		logging.Int("height", rec.native.Height),
		logging.String("audio_mode", string(rec.audioMode)),
		logging.String(logging.FieldState, string(StateRecording)),
	)
	s.publishState(StateRecording, rec.recordingID)
	s.notify(notifications.EventRecordingStarted, notifications.Payload{
		"preset": rec.preset.Name,
	})
	return s.Status(), nil
}

// acquire builds a complete recording or unwinds every partial acquisition
// in reverse order and returns the fatal error.
func (s *Session) acquire(ctx context.Context, cancel context.CancelFunc, req StartRequest) (rec *recording, err error) {
	var rollback []func()
	defer func() {
		if err != nil {
			for i := len(rollback) - 1; i >= 0; i-- {
				rollback[i]()
			}
		}
	}()

	preset, err := encoder.ResolvePreset(s.cfg, req.Quality)
	if err != nil {
		return nil, err
	}
	framerate := s.cfg.Capture.Framerate
	if framerate <= 0 {
		framerate = 30
	}

	// The screen is the recording's base surface; without it there is
	// nothing to record.
	screen, err := s.deps.Screen(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrAcquisition, "session", "start",
			"Screen capture could not be acquired", err)
	}
	rollback = append(rollback, screen.Stop)
	native := screen.Size()

	var webcam capture.VideoSource
	if s.cfg.Capture.WebcamEnabled && s.deps.Webcam != nil {
		webcam = s.acquireWebcam(ctx, framerate)
		if webcam != nil {
			rollback = append(rollback, webcam.Stop)
		}
	}

	var audioSources []capture.AudioSource
	if s.cfg.Audio.MicEnabled && s.deps.Microphone != nil {
		if mic, micErr := s.deps.Microphone(ctx); micErr != nil {
			s.degrade("microphone", "microphone unavailable, recording without it", micErr,
				"the recording has no microphone track")
		} else {
			audioSources = append(audioSources, mic)
			rollback = append(rollback, mic.Stop)
		}
	}
	if s.cfg.Audio.SystemAudioEnabled && s.deps.SystemAudio != nil {
		if sys, sysErr := s.deps.SystemAudio(ctx); sysErr != nil {
			s.degrade("system_audio", "system audio unavailable, recording without it", sysErr,
				"the recording has no desktop audio track")
		} else {
			audioSources = append(audioSources, sys)
			rollback = append(rollback, sys.Stop)
		}
	}

	stack := geometry.NewStack(s.cfg.Overlay)
	screenHolder := capture.NewHolder()
	var webcamHolder *capture.Holder
	webcamID := ""
	if webcam != nil {
		webcamHolder = capture.NewHolder()
		webcamID = webcam.ID()
	}

	comp, err := compositor.New(compositor.Options{
		Logger:    s.logger,
		Resolver:  stack.Resolver,
		Screen:    screenHolder,
		Webcam:    webcamHolder,
		WebcamID:  webcamID,
		DisplayID: screen.ID(),
		Native:    native,
		Framerate: framerate,
	})
	if err != nil && webcamHolder != nil {
		// The overlay path is optional; a screen-only compositor is not.
		s.degrade("webcam", "webcam overlay disabled, compositing screen only", err,
			"the recording has no webcam overlay")
		webcam.Stop()
		webcam = nil
		webcamHolder = nil
		webcamID = ""
		comp, err = compositor.New(compositor.Options{
			Logger:    s.logger,
			Screen:    screenHolder,
			DisplayID: screen.ID(),
			Native:    native,
			Framerate: framerate,
		})
	}
	if err != nil {
		return nil, err
	}

	mix := mixer.New(s.logger)
	mode, mixErr := mix.Start(ctx, audioSources...)
	if mixErr != nil {
		s.degrade("mixer", "audio mixing unavailable, recording without audio", mixErr,
			"the recording has no audio track")
		for _, src := range audioSources {
			src.Stop()
		}
		audioSources = nil
		mix = mixer.New(s.logger)
		mode, _ = mix.Start(ctx)
	}

	handle, err := s.deps.Recovery.Begin(ctx, preset.Codec)
	if err != nil {
		return nil, err
	}
	rollback = append(rollback, func() {
		if derr := s.deps.Recovery.Discard(context.Background(), handle.ID); derr != nil {
			s.logger.Debug("scratch discard during rollback failed",
				logging.String(logging.FieldRecordingID, handle.ID),
				logging.Error(derr),
			)
		}
	})

	chunks := newChunkBuffer()
	writer := &chunkWriter{
		ctx:    ctx,
		log:    s.deps.Recovery,
		id:     handle.ID,
		buffer: chunks,
		logger: s.logger,
		events: s.deps.Events,
	}

	opts := encoder.OptionsFromConfig(s.cfg)
	opts.Logger = s.logger
	opts.Width = native.Width
	opts.Height = native.Height
	opts.Framerate = framerate
	opts.AudioEnabled = len(audioSources) > 0
	opts.Preset = preset
	opts.Output = writer
	container := strings.TrimSpace(opts.Container)
	if container == "" {
		container = "mkv"
	}

	sink, err := s.deps.NewSink(ctx, opts)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "session", "start",
			"The encoder could not be started", err)
	}
	rollback = append(rollback, func() {
		sink.Suspend()
		sink.Abort()
	})

	var releaseInhibit func()
	if s.deps.Inhibitor != nil {
		release, inhErr := s.deps.Inhibitor.Inhibit(ctx, "Screen recording in progress")
		if inhErr != nil {
			s.degrade("inhibitor", "idle inhibitor unavailable", inhErr,
				"the desktop may lock or sleep while recording")
		} else {
			releaseInhibit = release
			rollback = append(rollback, release)
		}
	}

	wd := watchdog.New(watchdog.Options{
		Logger:       s.logger,
		Staleness:    time.Duration(s.cfg.Watchdog.StalenessSeconds) * time.Second,
		Cooldown:     time.Duration(s.cfg.Watchdog.CooldownSeconds) * time.Second,
		FrozenFrames: frozenChecks(s.cfg.Watchdog.FrozenFrameDetection),
	})

	rec = &recording{
		ctx:            ctx,
		cancel:         cancel,
		recordingID:    handle.ID,
		title:          strings.TrimSpace(req.Title),
		preset:         preset,
		container:      container,
		native:         native,
		startedAt:      s.now().UTC(),
		stack:          stack,
		webcamID:       webcamID,
		comp:           comp,
		mix:            mix,
		wd:             wd,
		sink:           sink,
		chunks:         chunks,
		audioMode:      mode,
		audioSources:   audioSources,
		releaseInhibit: releaseInhibit,
	}

	// Nothing past this point can fail; goroutines all end with rec.ctx.
	go comp.Run(ctx)
	go wd.Run(ctx)

	rec.pumpWG.Add(2)
	go s.framePump(rec)
	go s.audioPump(rec)

	wd.Attach("screen", screenHolder, screen,
		func(ctx context.Context, _ capture.Constraint) (capture.VideoSource, error) {
			return s.deps.Screen(ctx)
		},
		[]capture.Constraint{{Name: "native", Framerate: framerate}},
	)
	if webcam != nil {
		wd.Attach("webcam", webcamHolder, webcam, s.deps.Webcam, capture.DefaultTiers(framerate))
	}

	return rec, nil
}

// acquireWebcam walks the constraint ladder. Every tier failing degrades to
// screen-only rather than failing the start.
func (s *Session) acquireWebcam(ctx context.Context, framerate int) capture.VideoSource {
	tiers := capture.DefaultTiers(framerate)
	attempts := make([]fallback.Attempt[capture.VideoSource], 0, len(tiers))
	for _, tier := range tiers {
		attempts = append(attempts, fallback.Attempt[capture.VideoSource]{
			Name: tier.Name,
			Run: func(ctx context.Context) (capture.VideoSource, error) {
				return s.deps.Webcam(ctx, tier)
			},
		})
	}

	outcome, err := fallback.Run(ctx, attempts)
	if err != nil {
		s.degrade("webcam", "webcam unavailable, recording screen only", err,
			"the recording has no webcam overlay")
		return nil
	}
	for _, failure := range outcome.Failures {
		s.logger.Debug("webcam constraint tier failed",
			logging.String("tier", failure.Name),
			logging.Error(failure.Err),
		)
	}
	if outcome.Degraded() {
		logging.WarnWithContext(s.logger, "webcam acquired at a reduced tier", "webcam_degraded",
			logging.String("tier", outcome.Winner),
			logging.String(logging.FieldImpact, "the webcam overlay runs at reduced quality"),
		)
	}
	return outcome.Value
}

// degrade reports a non-fatal acquisition loss on every channel: log, event
// stream, and the operator's own logs downstream.
func (s *Session) degrade(source, msg string, err error, impact string) {
	logging.WarnWithContext(s.logger, msg, source+"_degraded",
		logging.String(logging.FieldSource, source),
		logging.Error(err),
		logging.String(logging.FieldImpact, impact),
	)
	s.publish(events.Event{Type: events.TypeDegraded, Detail: msg})
}

// framePump feeds composited frames to the encoder until the compositor
// closes its stream at teardown. A dead encoder is reported once; frames keep
// draining so the compositor never backs up.
func (s *Session) framePump(rec *recording) {
	defer rec.pumpWG.Done()
	for frame := range rec.comp.Frames() {
		if err := rec.sink.WriteFrame(frame); err != nil {
			if rec.encoderFailed.CompareAndSwap(false, true) {
				logging.ErrorWithContext(s.logger, "encoder stopped accepting frames", "encoder_failed",
					logging.String(logging.FieldRecordingID, rec.recordingID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "the recording will be salvaged from delivered chunks at stop"),
				)
				s.publish(events.Event{
					Type:        events.TypeError,
					RecordingID: rec.recordingID,
					Detail:      "encoder stopped accepting frames",
				})
				s.notify(notifications.EventError, notifications.Payload{
					"context": "encoding",
					"error":   "The encoder stopped; the recording will be salvaged when stopped.",
				})
			}
		}
	}
}

// audioPump feeds mixed audio to the encoder until the mixer closes its
// output.
func (s *Session) audioPump(rec *recording) {
	defer rec.pumpWG.Done()
	for samples := range rec.mix.Output() {
		rec.sink.WriteAudio(samples)
	}
}

func frozenChecks(enabled bool) int {
	if !enabled {
		return 0
	}
	return frozenCheckCount
}
