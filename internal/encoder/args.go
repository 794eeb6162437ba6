package encoder

import (
	"fmt"
	"strconv"
)

// buildArgs assembles the full ffmpeg argument list for one recording. Video
// arrives as raw BGRA on stdin; when audioURL is non-empty a second s16le
// input is read from the relay's TCP address. Output goes to stdout so the
// caller controls where chunks land.
func buildArgs(o Options, audioURL string) []string {
	fps := strconv.Itoa(o.Framerate)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-probesize", "32",
		"-analyzeduration", "0",
		"-thread_queue_size", "2048",
		"-f", "rawvideo",
		"-pix_fmt", "bgra",
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-r", fps,
		"-i", "pipe:0",
	}

	if audioURL != "" {
		args = append(args,
			"-thread_queue_size", "8192",
			"-probesize", "32",
			"-analyzeduration", "0",
			"-f", "s16le",
			"-ar", strconv.Itoa(o.SampleRate),
			"-ac", strconv.Itoa(o.Channels),
			"-i", audioURL,
			"-map", "0:v:0",
			"-map", "1:a:0",
		)
	} else {
		args = append(args, "-map", "0:v:0", "-an")
	}

	// Output pacing repeats the input rate so the muxer clocks by frame
	// count, not arrival time.
	args = append(args, "-r", fps)
	args = append(args, o.Plan.GlobalArgs...)
	args = append(args, "-vf", scaleFilter(o.Preset)+o.Plan.FilterTail)
	args = append(args, o.Plan.CodecArgs...)

	if audioURL != "" {
		args = append(args,
			"-af", "aresample=async=1:min_hard_comp=0.100:first_pts=0",
			"-c:a", "aac",
			"-b:a", strconv.Itoa(o.Preset.AudioBitrate),
			"-ar", strconv.Itoa(o.SampleRate),
			"-ac", strconv.Itoa(o.Channels),
		)
	}

	return append(args, muxerArgs(o.Container)...)
}

// scaleFilter shrinks oversized frames into the preset box without
// stretching smaller ones, then truncates both dimensions to even values.
func scaleFilter(preset Preset) string {
	return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2",
		preset.Width, preset.Height)
}

// muxerArgs picks the container muxer. webm shares matroska framing, and
// fragmented mp4 keeps a stdout stream playable without a seekable tail.
func muxerArgs(container string) []string {
	switch container {
	case "mp4":
		return []string{"-f", "mp4", "-movflags", "frag_keyframe+empty_moov", "pipe:1"}
	default:
		return []string{"-f", "matroska", "pipe:1"}
	}
}
