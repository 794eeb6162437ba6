// Package textutil provides text utilities for filename sanitization and
// terminal-width-aware formatting.
//
// The primary use cases are:
//   - Sanitizing recording titles for safe filesystem use on export
//   - Normalizing device names into lowercase log-safe tokens
//   - Truncating table cells by display width rather than byte length
package textutil
