// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a YAML file and validated using struct tags.
// Environment variables (optionally provided via a .env file) override the
// feed URL, static schedule path, NATS URL and port.
package config
