package config

import "github.com/kelseyhightower/envconfig"

// loadFromEnv overlays CIVICRANK_* variables onto cfg. Unset variables leave fields untouched.
func loadFromEnv(cfg *Config) error {
	return envconfig.Process(EnvPrefix, cfg)
}
