package database

import (
	"github.com/redis/go-redis/v9"
)

// NewRedis returns nil when addr is empty; event publication is then skipped.
func NewRedis(addr string, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
