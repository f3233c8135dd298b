package config

import (
	"fmt"
	"sync"
)

var (
	// globalConfig holds the process-wide configuration.
	globalConfig *Config

	// configMutex protects access to globalConfig.
	configMutex sync.RWMutex

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once
)

// Initialize loads .env files and the configuration at path, and stores the
// result as the global configuration. A missing file at path falls back to
// defaults when optional is set. Later calls are no-ops and return the
// first call's error.
func Initialize(path string, optional bool) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := Load(path, optional)
		if err != nil {
			initErr = err
			return
		}

		SetConfig(cfg)
	})

	return initErr
}

// GetConfig returns the global configuration, or nil before Initialize.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the global configuration. The watcher uses it after a
// successful reload; tests use it to inject a configuration.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads the configuration at path and replaces the global
// configuration only if loading and validation succeed.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}

	SetConfig(cfg)
	return cfg, nil
}
