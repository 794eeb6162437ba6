// Package config loads, normalizes, and validates kinescope configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// daemon and CLI need, so capture devices, overlay placement, and encoding
// quality are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical shape and preset names, and clear validation
// errors.
package config
