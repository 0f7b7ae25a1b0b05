// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, dotenv files, YAML). It
// provides type-safe access to the settings needed by the server while
// keeping configuration details separate from business logic.
package config
