// Package redis provides the shared Redis client used by the employee store's
// Redis backend.
//
// Graceful fallback: if Redis is unavailable, operations return ErrUnavailable
// instead of blocking, and callers decide whether to fall back to the file store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes.
const (
	KeyPrefix    = "officebot:"
	KeyEmployees = KeyPrefix + "employees" // Employee document
	KeyActivity  = KeyPrefix + "activity:" // Per-agent activity list
)

// ErrUnavailable is returned when no connection has been established.
var ErrUnavailable = errors.New("redis unavailable")

// Config holds Redis connection settings.
type Config struct {
	URL      string // redis://host:port
	Password string
	DB       int
}

var (
	client    *redis.Client
	connected bool
	mu        sync.RWMutex
)

// Init initializes the Redis connection. Returns true if connected.
func Init(cfg Config) bool {
	if cfg.URL == "" {
		log.Println("[Redis] URL not configured, skipping init")
		return false
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Printf("[Redis] Invalid URL: %v", err)
		return false
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	c := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		log.Printf("[Redis] Connection failed: %v", err)
		c.Close()
		return false
	}

	mu.Lock()
	client = c
	connected = true
	mu.Unlock()

	log.Println("[Redis] Connected")
	return true
}

// Close closes the Redis connection.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if client != nil {
		client.Close()
		client = nil
		connected = false
		log.Println("[Redis] Connection closed")
	}
}

// Client returns the Redis client. Returns nil if not available.
func Client() *redis.Client {
	mu.RLock()
	defer mu.RUnlock()
	if connected {
		return client
	}
	return nil
}

// IsAvailable checks if Redis is connected.
func IsAvailable() bool {
	mu.RLock()
	defer mu.RUnlock()
	return connected && client != nil
}

// GetJSON reads key into out. found is false when the key does not exist.
func GetJSON(ctx context.Context, key string, out any) (found bool, err error) {
	c := Client()
	if c == nil {
		return false, ErrUnavailable
	}
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON writes value to key as JSON with no expiry.
func SetJSON(ctx context.Context, key string, value any) error {
	c := Client()
	if c == nil {
		return ErrUnavailable
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	if err := c.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// AppendActivity pushes an activity entry onto the agent's list, trimming it to max entries.
func AppendActivity(ctx context.Context, agentName, entry string, max int64) error {
	c := Client()
	if c == nil {
		return ErrUnavailable
	}
	key := ActivityKey(agentName)
	pipe := c.TxPipeline()
	pipe.RPush(ctx, key, entry)
	if max > 0 {
		pipe.LTrim(ctx, key, -max, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis append %s: %w", key, err)
	}
	return nil
}

// ActivityKey returns the Redis key for an agent's activity list.
func ActivityKey(agentName string) string {
	return fmt.Sprintf("%s%s", KeyActivity, agentName)
}

// RecentActivity returns up to n of the agent's latest activity entries, oldest first.
func RecentActivity(ctx context.Context, agentName string, n int64) ([]string, error) {
	c := Client()
	if c == nil {
		return nil, ErrUnavailable
	}
	if n <= 0 {
		n = 50
	}
	entries, err := c.LRange(ctx, ActivityKey(agentName), -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", ActivityKey(agentName), err)
	}
	return entries, nil
}
