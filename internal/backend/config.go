package backend

import (
	"fmt"
	"time"

	"bilancio/internal/config"
)

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// Remote
	APIBaseURL string
	APIToken   string

	// Memory
	DataDirectory string

	LookupCacheSize int
	LookupCacheTTL  time.Duration
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:            backendType,
		APIBaseURL:      appConfig.APIBaseURL,
		APIToken:        appConfig.APIToken,
		DataDirectory:   "data",
		LookupCacheSize: appConfig.LookupCacheSize,
		LookupCacheTTL:  appConfig.LookupCacheTTL,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == RemoteBackend && c.APIBaseURL == "" {
		return fmt.Errorf("API base URL is required for remote backend")
	}
	return nil
}

// GetBackendTypes returns all valid backend types.
func GetBackendTypes() []BackendType {
	return []BackendType{RemoteBackend, MemoryBackend}
}
