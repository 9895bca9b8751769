// Package config loads application configuration from CITYATLAS_
// environment variables with validated defaults.
package config
