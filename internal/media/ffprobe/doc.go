// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The recorder leans on it twice: ProbeVideoSize opens a capture device just
// long enough to learn its native frame size before a raw-stream
// acquisition, and Inspect recovers duration and stream layout from files,
// which the orphan sweep uses for recordings whose session never finalized.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate)
package ffprobe
