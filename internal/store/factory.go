package store

import (
	"context"
	"fmt"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/database"
	"rainrelay/internal/models"
)

var _ Store = (*database.Database)(nil)

// New opens the backend named in cfg. An empty backend selects the in-memory store.
func New(ctx context.Context, cfg models.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", constants.StoreBackendMemory:
		return NewMemoryStore(), nil
	case constants.StoreBackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = constants.DefaultSQLitePath
		}
		db, err := database.New(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case constants.StoreBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires a redis url")
		}
		ttl := time.Duration(cfg.RetentionHours) * time.Hour
		rs, err := NewRedisStore(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
