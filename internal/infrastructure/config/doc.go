// Package config loads and validates the Parkshare Core configuration
// from a YAML file, with environment variable overrides for deployment
// secrets and paths (PARKSHARE_JWT_SECRET, PARKSHARE_DATABASE_PATH, ...).
package config
