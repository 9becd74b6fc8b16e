// Package config loads, normalizes, and validates Narrativ configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_API_KEY, TAVILY_API_KEY, FAL_API_KEY, HF_API_KEY and NARRATIV_PORT.
// The Config type centralizes every knob the daemon and CLI need so provider
// credentials, storage directories, and workflow timings are discovered in one
// pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
