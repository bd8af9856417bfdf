// Package redis stores GeoState snapshots in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lunch-locator-service/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// Store keeps the latest snapshot under a single key.
type Store struct {
	client *goredis.Client
	key    string
	logger *slog.Logger
}

// NewStore connects to addr and verifies the connection.
func NewStore(ctx context.Context, addr, key string, logger *slog.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("connected to redis snapshot store", "addr", addr, "key", key)
	return newStore(client, key, logger), nil
}

func newStore(client *goredis.Client, key string, logger *slog.Logger) *Store {
	return &Store{client: client, key: key, logger: logger}
}

// Name identifies the store in logs and metrics.
func (s *Store) Name() string { return "redis" }

// LoadSnapshot overwrites the stored snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, snap domain.Snapshot) error {
	data, err := domain.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Restore returns the stored snapshot. ok is false when none was saved.
func (s *Store) Restore(ctx context.Context) (snap domain.Snapshot, ok bool, err error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	snap, err = domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, true, nil
}

// CheckReadiness pings Redis.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
