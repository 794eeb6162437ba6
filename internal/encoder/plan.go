package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"kinescope/internal/config"
	"kinescope/internal/fallback"
	"kinescope/internal/logging"
	"kinescope/internal/services"
)

// Plan describes one concrete encoder invocation: the codec flags plus any
// global device arguments and filter suffix the codec needs.
type Plan struct {
	Label      string
	Encoder    string
	Hardware   bool
	GlobalArgs []string
	FilterTail string
	CodecArgs  []string
}

const (
	encoderProbeTimeout = 6 * time.Second
	renderNodeGlob      = "/dev/dri/renderD*"
)

// SelectPlan chooses the encoder for a recording. When the config prefers
// hardware encoding, each VAAPI render node is probed in order with a short
// synthetic encode; the first node that completes wins. Software encoding is
// always the final attempt and never fails, so this cannot error.
func SelectPlan(ctx context.Context, cfg *config.Config, preset Preset, framerate int, logger *slog.Logger) Plan {
	gop := gopSize(framerate)
	software := softwarePlan(preset, gop)
	if cfg == nil || !cfg.Quality.PreferHardwareEncoder {
		return software
	}
	devices, err := filepath.Glob(renderNodeGlob)
	if err != nil {
		devices = nil
	}
	return selectPlanFrom(ctx, cfg.FFmpegBinary(), preset, gop, devices, software, logger)
}

func selectPlanFrom(ctx context.Context, binary string, preset Preset, gop string, devices []string, software Plan, logger *slog.Logger) Plan {
	if logger == nil {
		logger = logging.NewNop()
	}
	candidates := hardwareCandidates(preset, gop, devices)
	if len(candidates) == 0 {
		logger.Debug("no render nodes found, using software encoder",
			logging.String("encoder", software.Encoder))
		return software
	}

	available := listEncoders(ctx, binary, logger)

	attempts := make([]fallback.Attempt[Plan], 0, len(candidates)+1)
	for _, candidate := range candidates {
		candidate := candidate
		attempts = append(attempts, fallback.Attempt[Plan]{
			Name: candidate.Label,
			Run: func(ctx context.Context) (Plan, error) {
				if len(available) > 0 && !available[candidate.Encoder] {
					return Plan{}, services.Wrap(services.ErrUnavailable, "encoder", "select plan",
						fmt.Sprintf("Codec %s is not present in this ffmpeg build", candidate.Encoder), nil)
				}
				if err := probePlan(ctx, binary, candidate); err != nil {
					return Plan{}, err
				}
				return candidate, nil
			},
		})
	}
	attempts = append(attempts, fallback.Attempt[Plan]{
		Name: software.Label,
		Run: func(context.Context) (Plan, error) { return software, nil },
	})

	outcome, err := fallback.Run(ctx, attempts)
	if err != nil {
		return software
	}
	if outcome.Degraded() {
		for _, failure := range outcome.Failures {
			logger.Debug("encoder candidate rejected", logging.Error(failure.Err))
		}
		if !outcome.Value.Hardware {
			logging.WarnWithContext(logger, "hardware encoder unavailable, using software encoding", "encoder_fallback",
				logging.String("encoder", outcome.Value.Encoder),
				logging.String(logging.FieldImpact, "higher CPU load while recording"))
		}
	}
	if outcome.Value.Hardware {
		logger.Info("hardware encoder selected", logging.String("encoder", outcome.Value.Label))
	}
	return outcome.Value
}

func gopSize(framerate int) string {
	if framerate <= 0 {
		framerate = 30
	}
	return strconv.Itoa(framerate * 2)
}

func softwarePlan(preset Preset, gop string) Plan {
	name := "libx264"
	if preset.Codec == "hevc" {
		name = "libx265"
	}
	return Plan{
		Label:   name,
		Encoder: name,
		CodecArgs: []string{
			"-c:v", name,
			"-preset", "veryfast",
			"-b:v", strconv.Itoa(preset.VideoBitrate),
			"-maxrate", strconv.Itoa(preset.VideoBitrate * 5 / 4),
			"-bufsize", strconv.Itoa(preset.VideoBitrate * 2),
			"-pix_fmt", "yuv420p",
			"-g", gop,
		},
	}
}

func hardwareCandidates(preset Preset, gop string, devices []string) []Plan {
	name := "h264_vaapi"
	if preset.Codec == "hevc" {
		name = "hevc_vaapi"
	}
	plans := make([]Plan, 0, len(devices))
	for _, device := range devices {
		plans = append(plans, Plan{
			Label:      fmt.Sprintf("%s (%s)", name, device),
			Encoder:    name,
			Hardware:   true,
			GlobalArgs: []string{"-vaapi_device", device},
			FilterTail: ",format=nv12,hwupload",
			CodecArgs: []string{
				"-c:v", name,
				"-b:v", strconv.Itoa(preset.VideoBitrate),
				"-maxrate", strconv.Itoa(preset.VideoBitrate * 5 / 4),
				"-bufsize", strconv.Itoa(preset.VideoBitrate * 2),
				"-g", gop,
			},
		})
	}
	return plans
}

// listEncoders asks ffmpeg which encoders its build carries. An empty map
// means the list could not be read and candidates are probed unfiltered.
func listEncoders(ctx context.Context, binary string, logger *slog.Logger) map[string]bool {
	ctx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()

	cmd := commandContext(ctx, binary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		logger.Debug("could not list ffmpeg encoders", logging.Error(err))
		return nil
	}

	available := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || !strings.Contains(fields[0], "V") {
			continue
		}
		available[fields[1]] = true
	}
	return available
}

// probePlan runs a short synthetic encode through the candidate to confirm
// the device actually accepts work, not just that the codec is listed.
func probePlan(ctx context.Context, binary string, plan Plan) error {
	ctx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()

	args := []string{"-hide_banner", "-v", "error", "-nostdin"}
	args = append(args, plan.GlobalArgs...)
	args = append(args,
		"-f", "lavfi",
		"-i", "color=c=black:s=1280x720:r=30:d=0.5",
		"-frames:v", "8",
	)
	if plan.FilterTail != "" {
		args = append(args, "-vf", strings.TrimPrefix(plan.FilterTail, ","))
	}
	args = append(args, plan.CodecArgs...)
	args = append(args, "-f", "null", "-")

	cmd := commandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrUnavailable, "encoder", "probe",
			fmt.Sprintf("Test encode with %s failed: %s", plan.Encoder, detail), err)
	}
	return nil
}
