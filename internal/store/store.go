// Package store provides the string key/value persistence behind profiles.
// Every key is independent: writes are last-write-wins and there are no
// transactions across keys.
package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"calma/backend/pkg/config"
	"calma/backend/pkg/logger"
	"calma/backend/shared/redis"
)

// KV is a string key/value store.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Open builds the backend selected by cfg.Store.Backend. The returned close
// function releases the backend's resources.
func Open(cfg *config.Config, log *logger.Logger) (KV, func() error, error) {
	switch strings.ToLower(cfg.Store.Backend) {
	case "", BackendMemory:
		return NewMemory(), func() error { return nil }, nil

	case BackendRedis:
		client := redis.NewClient(redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedis(client), client.Close, nil

	case BackendPostgres:
		db, err := config.NewDB(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		kv, err := NewGorm(db)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() error { return closeDB(db) }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
