// Package geometry resolves webcam overlay placement.
//
// Placement is a pure lookup over an ordered layer list: live drag wins over
// per-source overrides, which win over per-display overrides, which win over
// the anchored default. All committed and in-flight rects are expressed in
// display-native pixels; Resolve scales the winning rect into output pixels
// and enforces shape constraints (a circle is always square and recentered).
package geometry
