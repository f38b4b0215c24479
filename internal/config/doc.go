// Package config loads, normalizes, and validates tubewatch configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// YOUTUBE_API_KEY and TUBEWATCH_HUB_SECRET. The Config type centralizes every
// knob the daemon and CLI need: storage and log directories, the hub
// subscription parameters, notification targets, and filter thresholds.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
