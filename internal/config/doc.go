// Package config loads, normalizes, and validates slidenotes configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SLIDENOTES_LLM_API_KEY and OPENAI_API_KEY. The Config type centralizes the
// storage backend choice, classifier connection, and alignment knobs so the
// CLI and the runner discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
