// Package encoder turns composited frames and mixed audio into a single
// container stream by driving an ffmpeg child process.
//
// Video enters as raw BGRA frames on stdin and audio as interleaved s16le
// samples over a loopback TCP relay, so the two inputs never contend for one
// pipe. The muxed output leaves on stdout in delivery order; the session
// hands each chunk to the recovery log as it arrives.
//
// Input pacing uses the nominal framerate, which makes the output clock count
// frames rather than wall time. A suspended sink drops frames and audio
// before they reach the child process, so suspended stretches contribute
// nothing to the finished recording's duration.
//
// Encoder selection prefers VAAPI hardware paths when configured, probing
// each render node with a short synthetic encode before trusting it, and
// falls back to the software codecs otherwise.
package encoder
