// Package config loads and validates the service configuration from a
// yaml file, with ${VAR} expansion from the environment and optional
// .env support for secrets.
package config
