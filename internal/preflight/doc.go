// Package preflight provides readiness checks for the filesystem paths,
// capture devices, and push endpoint Kinescope depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure, because a
//     recording that dies at save time is far more expensive than a refused
//     start.
//   - The CLI "kinescope deps" command displays the same results alongside
//     the external tool inventory.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
