// Package config loads, normalizes, and validates courseforge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY and OPENROUTER_API_KEY. The Config type centralizes every
// knob the daemon and CLI need, allowing data directories, provider
// credentials, and per-provider timeouts to be discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
