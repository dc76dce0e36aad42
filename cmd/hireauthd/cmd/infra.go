package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/migrations"
)

func openDatabase(ctx context.Context, c hireauth.Config) (*bun.DB, error) {
	db, err := bunx.Open(ctx, c.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if c.Database.AutoMigrate {
		if err := migrations.Apply(ctx, db, log); err != nil {
			bunx.Close(db)
			return nil, err
		}
	}
	return db, nil
}

// newRedis returns a cluster client for several addresses and a plain
// client otherwise.
func newRedis(ctx context.Context, c hireauth.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       c.Addrs,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		DialTimeout: c.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %v: %w", c.Addrs, err)
	}
	return client, nil
}
