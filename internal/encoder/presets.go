package encoder

import (
	"fmt"
	"strings"

	"kinescope/internal/config"
	"kinescope/internal/services"
)

// Preset pins the output characteristics of one quality tier. Bitrates are
// bits per second.
type Preset struct {
	Name         string
	Width        int
	Height       int
	VideoBitrate int
	AudioBitrate int
	Codec        string
}

var presets = []Preset{
	{Name: "720p", Width: 1280, Height: 720, VideoBitrate: 4_000_000, AudioBitrate: 128_000, Codec: "h264"},
	{Name: "1080p", Width: 1920, Height: 1080, VideoBitrate: 8_000_000, AudioBitrate: 192_000, Codec: "h264"},
	{Name: "1440p", Width: 2560, Height: 1440, VideoBitrate: 14_000_000, AudioBitrate: 192_000, Codec: "hevc"},
	{Name: "4k", Width: 3840, Height: 2160, VideoBitrate: 24_000_000, AudioBitrate: 256_000, Codec: "hevc"},
}

// PresetNames lists the known quality tiers in ascending resolution order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

// LookupPreset finds a quality tier by name. Matching ignores case and
// surrounding whitespace.
func LookupPreset(name string) (Preset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// ResolvePreset picks the tier for a recording. An explicit name wins over
// the configured default, and configured bitrate overrides are applied before
// the table values are consulted, so an override always beats the tier's own
// number. The returned preset keeps the tier name even when overridden.
func ResolvePreset(cfg *config.Config, name string) (Preset, error) {
	if name == "" && cfg != nil {
		name = cfg.Quality.DefaultPreset
	}
	if name == "" {
		name = "1080p"
	}
	preset, ok := LookupPreset(name)
	if !ok {
		return Preset{}, services.Wrap(services.ErrValidation, "encoder", "resolve preset",
			fmt.Sprintf("Unknown quality preset %q (expected one of %s)", name, strings.Join(PresetNames(), ", ")), nil)
	}
	if cfg != nil {
		if cfg.Quality.VideoBitrateOverride > 0 {
			preset.VideoBitrate = cfg.Quality.VideoBitrateOverride
		}
		if cfg.Quality.AudioBitrateOverride > 0 {
			preset.AudioBitrate = cfg.Quality.AudioBitrateOverride
		}
	}
	return preset, nil
}

// FitResolution scales a source surface down to fit inside the preset's box
// while keeping its aspect ratio. Surfaces already inside the box pass
// through. Both dimensions are truncated to even values for the encoders.
func FitResolution(srcWidth, srcHeight int, preset Preset) (int, int) {
	w, h := srcWidth, srcHeight
	if w > preset.Width || h > preset.Height {
		if w*preset.Height > h*preset.Width {
			h = h * preset.Width / w
			w = preset.Width
		} else {
			w = w * preset.Height / h
			h = preset.Height
		}
	}
	w -= w % 2
	h -= h % 2
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return w, h
}
