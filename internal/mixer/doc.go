// Package mixer combines up to two PCM audio sources into one stream.
//
// A single source passes through bit-identical. Two sources are summed
// buffer-by-buffer with saturation, in delivery order. When one source ends
// mid-recording the mixer degrades to the survivor; when the two sources
// cannot be combined (format mismatch) it falls back to the first source
// alone rather than failing the recording.
package mixer
