// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// The CLI loads a .env file first, so variables defined there are expanded too.
package config
