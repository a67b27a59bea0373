// Package config loads and validates application configuration from an
// optional YAML file and SLIDEGEN_-prefixed environment variables.
package config
