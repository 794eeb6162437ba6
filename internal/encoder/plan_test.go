package encoder

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"kinescope/internal/config"
	"kinescope/internal/logging"
)

// fakeEncoderTool swaps the ffmpeg subprocess for a shell script. The real
// argument list is forwarded as the script's positional parameters so it can
// branch on the call shape.
func fakeEncoderTool(t *testing.T, script string) {
	t.Helper()
	restore := commandContext
	commandContext = func(ctx context.Context, _ string, args ...string) *exec.Cmd {
		full := append([]string{"-c", script, "sh"}, args...)
		return exec.CommandContext(ctx, "sh", full...)
	}
	t.Cleanup(func() { commandContext = restore })
}

func TestSelectPlanSoftwareWhenHardwareNotPreferred(t *testing.T) {
	cfg := config.Default()
	cfg.Quality.PreferHardwareEncoder = false
	preset, _ := LookupPreset("1080p")

	plan := SelectPlan(context.Background(), &cfg, preset, 30, logging.NewNop())
	if plan.Hardware {
		t.Fatalf("plan = %+v, want software", plan)
	}
	if plan.Encoder != "libx264" {
		t.Fatalf("encoder = %q, want libx264", plan.Encoder)
	}
}

func TestSelectPlanFromWithoutDevicesUsesSoftware(t *testing.T) {
	preset, _ := LookupPreset("1080p")
	software := softwarePlan(preset, "60")

	plan := selectPlanFrom(context.Background(), "ffmpeg", preset, "60", nil, software, logging.NewNop())
	if plan.Encoder != "libx264" || plan.Hardware {
		t.Fatalf("plan = %+v, want software", plan)
	}
}

func TestSelectPlanFromPicksProbedHardware(t *testing.T) {
	fakeEncoderTool(t, `case "$*" in
*-encoders*) printf ' V..... h264_vaapi  VAAPI H.264\n V..... libx264  x264\n';;
*) exit 0;;
esac`)

	preset, _ := LookupPreset("1080p")
	software := softwarePlan(preset, "60")
	plan := selectPlanFrom(context.Background(), "ffmpeg", preset, "60",
		[]string{"/dev/dri/renderD128"}, software, logging.NewNop())

	if !plan.Hardware || plan.Encoder != "h264_vaapi" {
		t.Fatalf("plan = %+v, want probed h264_vaapi", plan)
	}
	if len(plan.GlobalArgs) != 2 || plan.GlobalArgs[1] != "/dev/dri/renderD128" {
		t.Fatalf("global args = %v, want vaapi device", plan.GlobalArgs)
	}
}

func TestSelectPlanFromFallsBackWhenProbeFails(t *testing.T) {
	fakeEncoderTool(t, `case "$*" in
*-encoders*) printf ' V..... h264_vaapi  VAAPI H.264\n';;
*) echo "device busy" >&2; exit 1;;
esac`)

	preset, _ := LookupPreset("1080p")
	software := softwarePlan(preset, "60")
	plan := selectPlanFrom(context.Background(), "ffmpeg", preset, "60",
		[]string{"/dev/dri/renderD128"}, software, logging.NewNop())

	if plan.Hardware || plan.Encoder != "libx264" {
		t.Fatalf("plan = %+v, want software fallback", plan)
	}
}

func TestSelectPlanFromSkipsEncoderMissingFromBuild(t *testing.T) {
	// The encoder list lacks vaapi, so the candidate must be rejected
	// before any probe runs; a probe here would succeed and pick it.
	fakeEncoderTool(t, `case "$*" in
*-encoders*) printf ' V..... libx264  x264\n';;
*) exit 0;;
esac`)

	preset, _ := LookupPreset("1080p")
	software := softwarePlan(preset, "60")
	plan := selectPlanFrom(context.Background(), "ffmpeg", preset, "60",
		[]string{"/dev/dri/renderD128"}, software, logging.NewNop())

	if plan.Hardware {
		t.Fatalf("plan = %+v, want software", plan)
	}
}

func TestSelectPlanFromProbesAllWhenListingFails(t *testing.T) {
	fakeEncoderTool(t, `case "$*" in
*-encoders*) exit 1;;
*) exit 0;;
esac`)

	preset, _ := LookupPreset("1080p")
	software := softwarePlan(preset, "60")
	plan := selectPlanFrom(context.Background(), "ffmpeg", preset, "60",
		[]string{"/dev/dri/renderD128"}, software, logging.NewNop())

	if !plan.Hardware {
		t.Fatalf("plan = %+v, want hardware accepted on successful probe", plan)
	}
}

func TestHardwareCandidatesPerRenderNode(t *testing.T) {
	preset, _ := LookupPreset("4k")
	plans := hardwareCandidates(preset, "60", []string{"/dev/dri/renderD128", "/dev/dri/renderD129"})
	if len(plans) != 2 {
		t.Fatalf("candidates = %d, want 2", len(plans))
	}
	for _, plan := range plans {
		if plan.Encoder != "hevc_vaapi" {
			t.Fatalf("4k candidate encoder = %q, want hevc_vaapi", plan.Encoder)
		}
		if !strings.HasPrefix(plan.FilterTail, ",") {
			t.Fatalf("filter tail %q must extend the scale chain", plan.FilterTail)
		}
	}
	if plans[0].Label == plans[1].Label {
		t.Fatalf("candidate labels collide: %q", plans[0].Label)
	}
}

func TestSoftwarePlanCodecPerPreset(t *testing.T) {
	p1080, _ := LookupPreset("1080p")
	if plan := softwarePlan(p1080, "60"); plan.Encoder != "libx264" {
		t.Fatalf("1080p software encoder = %q", plan.Encoder)
	}
	p1440, _ := LookupPreset("1440p")
	if plan := softwarePlan(p1440, "60"); plan.Encoder != "libx265" {
		t.Fatalf("1440p software encoder = %q", plan.Encoder)
	}
}

func TestGopSize(t *testing.T) {
	if got := gopSize(30); got != "60" {
		t.Fatalf("gopSize(30) = %s", got)
	}
	if got := gopSize(0); got != "60" {
		t.Fatalf("gopSize(0) = %s, want default pacing", got)
	}
}
