// Package config provides configuration loading and validation for the
// streaming speech pipeline service. It handles YAML-based configuration with
// per-section struct validation; unsupported values (such as a sample rate the
// VAD frame size is undefined for) are rejected at load time.
package config
