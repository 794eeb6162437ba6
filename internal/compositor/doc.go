// Package compositor draws the webcam overlay onto the captured screen.
//
// A ticker paced at the output framerate samples the most recent frame of
// each source, clips the webcam to its resolved shape, and emits composited
// BGRA frames for the encoder. The screen is mandatory: no frames flow until
// it has delivered one. The webcam degrades: a stalled or unplaceable
// overlay leaves the screen untouched.
package compositor
