// Package config loads, normalizes, and validates coldvault configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI needs: staging and output directories, compression overrides, redundancy
// ratio, external tool binaries and timeouts, and logging options.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
