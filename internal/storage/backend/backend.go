// Package backend opens the storage.Store selected by configuration.
package backend

import (
	"fmt"
	"log"

	"github.com/zhouzirui/startup-vision/backend/internal/config"
	"github.com/zhouzirui/startup-vision/backend/internal/storage"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/memory"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/redisstore"
	"github.com/zhouzirui/startup-vision/backend/internal/storage/sqlite"
)

// Open returns the configured store. Callers own the returned store and must Close it.
func Open(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		log.Println("[storage] using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	case config.StorageSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("[storage] using sqlite store at %s", cfg.SQLitePath)
		return store, nil
	case config.StorageRedis:
		store, err := redisstore.Open(redisstore.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("[storage] using redis store at %s", cfg.RedisAddr)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
