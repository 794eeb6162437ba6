// Package watchdog supervises live capture streams and reacquires the ones
// that stall.
//
// A stream is stale when its frame holder has not updated within the
// staleness window, or, optionally, when frames keep arriving but their
// perceptual hash stops changing. A stale stream is reacquired through its
// constraint tiers in order, and the replacement source is verified to be
// delivering before the old one is released. Every attempt, successful or
// not, starts a cooldown during which the stream is left alone; at most one
// reacquisition per stream is ever in flight.
package watchdog
