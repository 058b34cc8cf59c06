package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/gateway"
	"bilancio/internal/gateway/memory"
	"bilancio/internal/gateway/remote"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend builds the configured backend and wraps its lookups in the
// LRU cache.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var be gateway.Backend
	switch config.Type {
	case RemoteBackend:
		be = f.createRemoteBackend(ctx, config)
	case MemoryBackend:
		be = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	size, ttl := config.LookupCacheSize, config.LookupCacheTTL
	if size <= 0 {
		size = 64
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BackendResult{
		Backend: be,
		Lookups: gateway.NewCachedLookups(be, size, ttl),
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(ctx context.Context, config Config) gateway.Backend {
	client := remote.New(config.APIBaseURL, config.APIToken)

	// an unreachable API is not fatal at startup; readiness reports it
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		f.logger.Warn("Finance API not reachable at startup", "base_url", config.APIBaseURL, "error", err)
	}

	f.logger.Info("Initialized remote backend", "base_url", config.APIBaseURL)
	return client
}

func (f *DefaultFactory) createMemoryBackend(config Config) gateway.Backend {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)
	f.logger.Info("Initialized memory backend", "data_directory", dataDir)
	return store
}
