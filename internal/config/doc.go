// Package config loads server configuration from a TOML file with
// environment-variable overrides. Every field has a default, so the server
// runs with no config file at all.
package config
